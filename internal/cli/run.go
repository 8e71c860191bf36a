package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для просмотра runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect restoration runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunStepsCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var batchID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				BatchID: batchID,
				Status:  status,
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "PHOTO_REF", "MODE", "STATUS", "DECISION", "SCORE", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.PhotoRef, r.Mode, r.Status, r.Decision, formatScore(r.QualityScore), r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&batchID, "batch-id", "", "Filter by batch job ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (QUEUED, ANALYZING, PLANNING, EDITING, VALIDATING, COMPLETED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			review := ""
			if run.NeedsReview {
				review = "yes"
			}

			out.Print(
				[]string{"ID", "PHOTO_REF", "MODE", "STATUS", "DECISION", "SCORE", "RETRIES", "REVIEW", "ERROR"},
				[][]string{{
					run.ID, run.PhotoRef, run.Mode, run.Status, run.Decision,
					formatScore(run.QualityScore), strconv.Itoa(run.RetryAttempt), review, run.Error,
				}},
				run,
			)
			return nil
		},
	}
}

func newRunStepsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps RUN_ID",
		Short: "List pipeline steps of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := client.ListRunSteps(args[0])
			if err != nil {
				return err
			}

			headers := []string{"#", "STAGE", "STATUS", "ATTEMPT", "ERROR"}
			rows := make([][]string, len(steps))
			for i, s := range steps {
				rows[i] = []string{strconv.Itoa(s.Number), s.Stage, s.Status, strconv.Itoa(s.Attempt), s.Error}
			}

			out.Print(headers, rows, steps)
			return nil
		},
	}
}

func formatScore(score *int) string {
	if score == nil {
		return "-"
	}
	return strconv.Itoa(*score)
}
