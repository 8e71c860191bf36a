package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewBatchCmd создаёт группу команд для управления batch jobs.
func NewBatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Manage batch jobs",
	}

	cmd.AddCommand(
		newBatchSubmitCmd(clientFn, outputFn),
		newBatchListCmd(clientFn, outputFn),
		newBatchShowCmd(clientFn, outputFn),
		newBatchCancelCmd(clientFn, outputFn),
		newBatchRetryCmd(clientFn, outputFn),
		newBatchStatsCmd(clientFn, outputFn),
	)

	return cmd
}

func newBatchSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var mode string
	var delay time.Duration
	var items []string

	cmd := &cobra.Command{
		Use:   "submit PHOTO_REF...",
		Short: "Submit a batch of photos for restoration",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateBatchRequest{
				DefaultMode: mode,
				DelayMs:     delay.Milliseconds(),
			}
			for _, ref := range args {
				req.Items = append(req.Items, BatchItemRequest{PhotoRef: ref})
			}
			// --item REF=MODE переопределяет режим для отдельного фото
			for _, kv := range items {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid item format %q, expected PHOTO_REF=MODE", kv)
				}
				req.Items = append(req.Items, BatchItemRequest{PhotoRef: parts[0], Mode: parts[1]})
			}
			if len(req.Items) == 0 {
				return fmt.Errorf("at least one photo reference is required")
			}

			job, err := client.SubmitBatch(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Batch submitted: %s", job.ID))
			out.Print(
				[]string{"ID", "STATUS", "MODE", "TOTAL", "CREATED"},
				[][]string{{job.ID, job.Status, job.DefaultMode, strconv.Itoa(job.Progress.Total), job.CreatedAt}},
				job,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Default restoration mode (RESTORE, ENHANCE, REIMAGINE)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay between items (e.g. 2s)")
	cmd.Flags().StringSliceVar(&items, "item", nil, "Item with explicit mode as PHOTO_REF=MODE (repeatable)")

	return cmd
}

func newBatchListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List batch jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			batches, err := client.ListBatches()
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATUS", "PROGRESS", "FAILED", "RETRIES", "CREATED"}
			rows := make([][]string, len(batches))
			for i, b := range batches {
				rows[i] = []string{
					b.ID,
					b.Status,
					fmt.Sprintf("%d/%d (%.0f%%)", b.Progress.Completed+b.Progress.Failed, b.Progress.Total, b.Progress.Percent),
					strconv.Itoa(b.Progress.Failed),
					strconv.Itoa(b.RetryCount),
					b.CreatedAt,
				}
			}

			out.Print(headers, rows, batches)
			return nil
		},
	}
}

func newBatchShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show batch job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetBatch(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "STATUS", "MODE", "PROGRESS", "ETA", "CREATED"},
				[][]string{{
					job.ID,
					job.Status,
					job.DefaultMode,
					fmt.Sprintf("%d/%d (%.0f%%)", job.Progress.Completed+job.Progress.Failed, job.Progress.Total, job.Progress.Percent),
					job.EstimatedRemaining,
					job.CreatedAt,
				}},
				job,
			)

			if len(job.Errors) > 0 && !out.jsonMode {
				out.Success("")
				headers := []string{"ITEM", "PHOTO_REF", "RETRYABLE", "ERROR"}
				rows := make([][]string, len(job.Errors))
				for i, e := range job.Errors {
					rows[i] = []string{strconv.Itoa(e.ItemIndex), e.PhotoRef, strconv.FormatBool(e.Retryable), e.Message}
				}
				out.Table(headers, rows)
			}
			return nil
		},
	}
}

func newBatchCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a queued or running batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.CancelBatch(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Batch cancelled: %s", job.ID))
			return nil
		},
	}
}

func newBatchRetryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "retry ID",
		Short: "Re-queue a failed or timed out batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.RetryBatch(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Batch re-queued: %s (retry %d)", job.ID, job.RetryCount))
			return nil
		},
	}
}

func newBatchStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show batch manager statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.Statistics()
			if err != nil {
				return err
			}

			headers := []string{"QUEUED", "ACTIVE", "SUBMITTED", "RETRIED", "ITEMS_OK", "ITEMS_FAILED"}
			rows := [][]string{{
				strconv.Itoa(stats.Queued),
				strconv.Itoa(stats.Active),
				strconv.Itoa(stats.TotalSubmitted),
				strconv.Itoa(stats.TotalRetried),
				strconv.Itoa(stats.ItemsCompleted),
				strconv.Itoa(stats.ItemsFailed),
			}}

			out.Print(headers, rows, stats)
			return nil
		},
	}
}
