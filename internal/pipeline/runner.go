package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fotoarhiv/restavrator/internal/domain"
	"github.com/fotoarhiv/restavrator/internal/telemetry"
)

// Runner проводит run через этапы пайплайна и применяет вердикт
// quality gate.
type Runner struct {
	store    Store
	executor *StepExecutor
	gate     GatePolicy
	logger   *slog.Logger
}

// NewRunner создаёт runner пайплайна.
func NewRunner(store Store, executor *StepExecutor, gate GatePolicy, logger *slog.Logger) *Runner {
	return &Runner{
		store:    store,
		executor: executor,
		gate:     gate,
		logger:   logger,
	}
}

// Process обрабатывает run до терминального статуса.
//
// Run должен существовать в хранилище. Возвращает ошибку только при
// отмене контекста или run'е в терминальном статусе: ошибки этапов и
// вердикт REJECT фиксируются в статусе run (FAILED) и ошибкой Process
// не являются — итог читается из run.Status.
func (r *Runner) Process(ctx context.Context, run *domain.Run) error {
	if run.IsFinished() {
		return fmt.Errorf("%w: %s", ErrRunFinished, run.ID)
	}

	logger := telemetry.WithRunID(r.logger, run.ID.String())
	logger.Info("run started", "photo_ref", run.PhotoRef, "mode", run.Mode)

	st := r.startStage(run)

	for {
		run.MarkStage(st)
		r.saveRun(ctx, run)

		payload, err := r.executor.Execute(ctx, run, st)
		if err != nil {
			if ctx.Err() != nil {
				// Отмена — run бросается как есть, не терминален
				return ctx.Err()
			}
			run.MarkFailed(err.Error())
			r.saveRun(ctx, run)
			telemetry.RunsFailed.WithLabelValues(string(st)).Inc()
			logger.Error("run failed", "stage", st, "error", err)
			return nil
		}

		if st == domain.StageValidate {
			return r.decide(ctx, logger, run, payload)
		}

		next, ok := st.Next()
		if !ok {
			// Stages() заканчиваются на VALIDATE, сюда не попадаем
			return fmt.Errorf("no stage after %s", st)
		}
		st = next
	}
}

// decide применяет вердикт quality gate к завершённому run.
func (r *Runner) decide(ctx context.Context, logger *slog.Logger, run *domain.Run, payload *domain.StepPayload) error {
	if payload == nil || payload.Validation == nil {
		run.MarkFailed(ErrNoValidation.Error())
		r.saveRun(ctx, run)
		return nil
	}
	v := payload.Validation

	decision := r.gate.Decide(v, run.RetryAttempt)
	run.MarkDecided(decision, v.OverallScore)
	r.saveRun(ctx, run)
	telemetry.RunsDecided.WithLabelValues(string(decision)).Inc()

	logger.Info("quality gate decision",
		"decision", decision,
		"score", v.OverallScore,
		"attempt", run.RetryAttempt,
	)

	switch decision {
	case domain.QCRetry:
		run.ResetForRetry(v.IssueHints())
		r.saveRun(ctx, run)
		return r.rerun(ctx, logger, run)

	case domain.QCApprove, domain.QCApproveWithNotes:
		run.MarkCompleted(false)

	case domain.QCManualReview:
		run.MarkCompleted(true)

	case domain.QCReject:
		run.MarkFailed("rejected by quality gate")
	}

	r.saveRun(ctx, run)
	logger.Info("run finished", "status", run.Status, "duration", run.Duration())
	return nil
}

// rerun повторяет цикл EDIT → VALIDATE после вердикта RETRY.
func (r *Runner) rerun(ctx context.Context, logger *slog.Logger, run *domain.Run) error {
	for _, st := range []domain.Stage{domain.StageEdit, domain.StageValidate} {
		run.MarkStage(st)
		r.saveRun(ctx, run)

		payload, err := r.executor.Execute(ctx, run, st)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			run.MarkFailed(err.Error())
			r.saveRun(ctx, run)
			telemetry.RunsFailed.WithLabelValues(string(st)).Inc()
			logger.Error("run failed on retry", "stage", st, "error", err)
			return nil
		}

		if st == domain.StageValidate {
			return r.decide(ctx, logger, run, payload)
		}
	}
	return nil
}

// startStage определяет этап, с которого начинается обработка.
//
// Новый run стартует с ANALYZE. Run в промежуточном статусе (подобран
// после рестарта) начинает свой этап заново.
func (r *Runner) startStage(run *domain.Run) domain.Stage {
	if st, ok := run.Status.Stage(); ok {
		return st
	}
	return domain.StageAnalyze
}

// saveRun пишет run в хранилище. Ошибка записи не прерывает обработку.
func (r *Runner) saveRun(ctx context.Context, run *domain.Run) {
	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Warn("failed to persist run",
			"run_id", run.ID,
			"status", run.Status,
			"error", err,
		)
	}
}
