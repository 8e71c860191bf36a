package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
	"github.com/fotoarhiv/restavrator/internal/stage"
	"github.com/fotoarhiv/restavrator/internal/telemetry"
)

// RetryPolicy — политика повторов вызова capability внутри одного этапа.
//
// Повторяются только transient-ошибки (сетевые сбои, 408/429/5xx,
// таймаут попытки). Permanent-ошибки проваливают этап сразу.
type RetryPolicy struct {
	// MaxAttempts — максимум попыток вызова. 0 или 1 — без повторов.
	MaxAttempts int

	// Backoff — стратегия задержки: "fixed" или "exponential".
	Backoff string

	// InitialDelay — начальная задержка перед повтором.
	InitialDelay time.Duration

	// MaxDelay — потолок задержки при exponential backoff.
	MaxDelay time.Duration
}

// Delay вычисляет задержку перед повтором после попытки attempt (с 1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	initialDelay := p.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch p.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	default:
		// "fixed" или неизвестная стратегия — initialDelay
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}

// ExecutorConfig — конфигурация StepExecutor.
type ExecutorConfig struct {
	// StageTimeout — таймаут одной попытки вызова capability.
	// 0 — без таймаута (ограничивает только родительский контекст).
	StageTimeout time.Duration

	// Retry — политика повторов transient-ошибок.
	Retry RetryPolicy
}

// DefaultExecutorConfig возвращает конфигурацию по умолчанию:
// 2 минуты на попытку, до 3 попыток с exponential backoff.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		StageTimeout: 2 * time.Minute,
		Retry: RetryPolicy{
			MaxAttempts:  3,
			Backoff:      "exponential",
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
		},
	}
}

// StepExecutor выполняет один этап пайплайна: строит запрос через
// stage.Handler, вызывает capability и фиксирует step в хранилище.
//
// Каждый вызов Execute создаёт новый step — step'ы иммутабельны после
// завершения, повтор этапа в том же run даёт новую запись.
type StepExecutor struct {
	client   capability.Client
	registry *stage.Registry
	store    Store
	cfg      ExecutorConfig
	logger   *slog.Logger
}

// NewStepExecutor создаёт executor этапов.
func NewStepExecutor(client capability.Client, registry *stage.Registry, store Store, cfg ExecutorConfig, logger *slog.Logger) *StepExecutor {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	return &StepExecutor{
		client:   client,
		registry: registry,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// Execute выполняет этап st для run и возвращает payload этапа.
//
// При успехе step со статусом COMPLETED добавляется в run. При ошибке
// step фиксируется FAILED, ошибка возвращается обёрнутой в ErrStageFailed.
func (e *StepExecutor) Execute(ctx context.Context, run *domain.Run, st domain.Stage) (*domain.StepPayload, error) {
	handler, err := e.registry.Get(st)
	if err != nil {
		return nil, err
	}

	logger := telemetry.WithStage(telemetry.WithRunID(e.logger, run.ID.String()), string(st))

	step := domain.NewRunStep(run.ID, run.NextStepNumber(), st)
	e.saveStep(ctx, step, true)

	started := time.Now()

	payload, err := e.attempts(ctx, logger, run, step, handler)
	if err != nil {
		step.MarkFailed(err.Error())
		e.saveStep(ctx, step, false)
		run.AppendStep(*step)
		return nil, fmt.Errorf("%w: %s: %s", ErrStageFailed, st, err)
	}

	step.MarkCompleted(payload)
	e.saveStep(ctx, step, false)
	run.AppendStep(*step)

	telemetry.StageDuration.WithLabelValues(string(st)).Observe(time.Since(started).Seconds())

	logger.Debug("stage completed",
		"step_number", step.Number,
		"attempts", step.Attempt,
		"duration", step.Duration(),
	)

	return payload, nil
}

// attempts крутит цикл попыток вызова capability с backoff.
func (e *StepExecutor) attempts(ctx context.Context, logger *slog.Logger, run *domain.Run, step *domain.RunStep, handler stage.Handler) (*domain.StepPayload, error) {
	for {
		step.MarkInProgress()
		e.saveStep(ctx, step, false)

		payload, err := e.attempt(ctx, run, handler)
		if err == nil {
			return payload, nil
		}

		// Отмена родительского контекста — не retry
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !capability.IsRetryable(err) || step.Attempt >= e.cfg.Retry.MaxAttempts {
			return nil, err
		}

		delay := e.cfg.Retry.Delay(step.Attempt)
		telemetry.CapabilityRetries.WithLabelValues(string(step.Stage)).Inc()

		logger.Warn("transient stage error, retrying",
			"attempt", step.Attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// attempt — одна попытка: построить запрос, вызвать capability,
// разобрать ответ. Таймаут попытки идёт как transient-ошибка.
func (e *StepExecutor) attempt(ctx context.Context, run *domain.Run, handler stage.Handler) (*domain.StepPayload, error) {
	req, err := handler.Build(run)
	if err != nil {
		return nil, err
	}

	if e.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.StageTimeout)
		defer cancel()
	}

	result, err := e.client.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	return handler.Decode(result)
}

// saveStep пишет step в хранилище. Ошибка записи не прерывает
// обработку: состояние step'а живёт в памяти run'а.
func (e *StepExecutor) saveStep(ctx context.Context, step *domain.RunStep, create bool) {
	var err error
	if create {
		err = e.store.CreateStep(ctx, step)
	} else {
		err = e.store.UpdateStep(ctx, step)
	}
	if err != nil {
		e.logger.Warn("failed to persist step",
			"run_id", step.RunID,
			"stage", step.Stage,
			"error", err,
		)
	}
}
