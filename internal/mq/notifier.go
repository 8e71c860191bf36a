package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/fotoarhiv/restavrator/internal/batch"
	"github.com/fotoarhiv/restavrator/internal/domain"
)

// BatchNotifier транслирует события batch manager'а в batches.events.
//
// Реализует batch.Notifier. Ошибки публикации логируются и глотаются:
// события — побочный канал, обработка от брокера не зависит.
type BatchNotifier struct {
	publisher *Publisher
	logger    *slog.Logger
}

// NewBatchNotifier создаёт notifier поверх publisher'а.
func NewBatchNotifier(publisher *Publisher, logger *slog.Logger) *BatchNotifier {
	return &BatchNotifier{publisher: publisher, logger: logger}
}

// NotifyBatch публикует событие batch job.
func (n *BatchNotifier) NotifyBatch(ctx context.Context, event batch.Event) {
	payload := BatchEventPayload{
		Event:     string(event.Type),
		BatchID:   event.JobID,
		Status:    event.Status,
		Progress:  event.Progress,
		Timestamp: event.At,
	}

	if err := n.publisher.PublishBatchEvent(ctx, payload); err != nil {
		n.logger.Warn("failed to publish batch event",
			"batch_id", event.JobID,
			"event", event.Type,
			"error", err,
		)
	}
}

// BatchSubmitter — приёмник сабмитов. Реализуется batch.Manager.
type BatchSubmitter interface {
	Submit(ctx context.Context, items []domain.BatchItem, defaultMode domain.Mode, delay time.Duration) (*domain.BatchJob, error)
}

// NewBatchSubmittedHandler возвращает Handler очереди batches.submitted:
// внешний продюсер ставит batch job в обработку, минуя HTTP API.
func NewBatchSubmittedHandler(submitter BatchSubmitter, logger *slog.Logger) Handler {
	return func(ctx context.Context, d *Delivery) error {
		payload, err := ParsePayload[BatchSubmittedPayload](&d.Message)
		if err != nil {
			return err
		}

		job, err := submitter.Submit(ctx,
			payload.Items,
			domain.ParseMode(payload.DefaultMode),
			time.Duration(payload.DelayMs)*time.Millisecond,
		)
		if err != nil {
			return err
		}

		logger.Info("batch submitted via queue",
			"batch_id", job.ID,
			"items", len(payload.Items),
		)
		return nil
	}
}

// RunObserver — декоратор batch.Runner, публикующий run.finished после
// обработки run.
type RunObserver struct {
	runner    batch.Runner
	publisher *Publisher
	logger    *slog.Logger
}

// NewRunObserver оборачивает runner публикацией событий завершения.
func NewRunObserver(runner batch.Runner, publisher *Publisher, logger *slog.Logger) *RunObserver {
	return &RunObserver{runner: runner, publisher: publisher, logger: logger}
}

// Process обрабатывает run и публикует его терминальный статус.
func (o *RunObserver) Process(ctx context.Context, run *domain.Run) error {
	err := o.runner.Process(ctx, run)

	if run.IsFinished() {
		payload := RunFinishedPayload{
			RunID:    run.ID,
			BatchID:  run.BatchID,
			Status:   run.Status,
			Decision: run.Decision,
		}
		if pubErr := o.publisher.PublishRunFinished(context.WithoutCancel(ctx), payload); pubErr != nil {
			o.logger.Warn("failed to publish run.finished",
				"run_id", run.ID,
				"error", pubErr,
			)
		}
	}

	return err
}
