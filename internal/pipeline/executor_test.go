package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
	"github.com/fotoarhiv/restavrator/internal/stage"
)

func newTestExecutor(client *fakeClient, store *fakeStore, cfg ExecutorConfig) *StepExecutor {
	return NewStepExecutor(client, stage.DefaultRegistry(), store, cfg, slog.Default())
}

func permanentErr() error {
	return capability.Permanent(400, "bad request")
}

func transientErr() error {
	return capability.Transient(503, "upstream overloaded")
}

func fastRetryConfig(maxAttempts int) ExecutorConfig {
	return ExecutorConfig{
		Retry: RetryPolicy{MaxAttempts: maxAttempts, Backoff: "fixed", InitialDelay: time.Millisecond},
	}
}

func TestExecutorRetriesTransientErrors(t *testing.T) {
	client := &fakeClient{
		failStage:     domain.StageAnalyze,
		failErr:       transientErr(),
		failTimesLeft: 2,
	}
	store := newFakeStore()
	executor := newTestExecutor(client, store, fastRetryConfig(3))

	run := domain.NewRun("photos/1.jpg", domain.ModeRestore, nil)
	payload, err := executor.Execute(context.Background(), run, domain.StageAnalyze)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if payload.Analysis == nil {
		t.Fatal("expected analysis payload")
	}
	if len(client.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(client.calls))
	}
	if run.Steps[0].Attempt != 3 {
		t.Errorf("expected step attempt 3, got %d", run.Steps[0].Attempt)
	}
	if run.Steps[0].Status != domain.StepStatusCompleted {
		t.Errorf("expected step COMPLETED, got %s", run.Steps[0].Status)
	}
}

func TestExecutorFailsAfterMaxAttempts(t *testing.T) {
	client := &fakeClient{
		failStage:     domain.StageAnalyze,
		failErr:       transientErr(),
		failTimesLeft: -1,
	}
	store := newFakeStore()
	executor := newTestExecutor(client, store, fastRetryConfig(3))

	run := domain.NewRun("photos/1.jpg", domain.ModeRestore, nil)
	_, err := executor.Execute(context.Background(), run, domain.StageAnalyze)
	if !errors.Is(err, ErrStageFailed) {
		t.Fatalf("expected ErrStageFailed, got %v", err)
	}
	if len(client.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(client.calls))
	}
	if run.Steps[0].Status != domain.StepStatusFailed {
		t.Errorf("expected step FAILED, got %s", run.Steps[0].Status)
	}
}

func TestExecutorPermanentErrorNoRetry(t *testing.T) {
	client := &fakeClient{
		failStage:     domain.StageAnalyze,
		failErr:       permanentErr(),
		failTimesLeft: -1,
	}
	store := newFakeStore()
	executor := newTestExecutor(client, store, fastRetryConfig(3))

	run := domain.NewRun("photos/1.jpg", domain.ModeRestore, nil)
	_, err := executor.Execute(context.Background(), run, domain.StageAnalyze)
	if !errors.Is(err, ErrStageFailed) {
		t.Fatalf("expected ErrStageFailed, got %v", err)
	}
	if len(client.calls) != 1 {
		t.Errorf("expected single attempt for permanent error, got %d", len(client.calls))
	}
}

func TestExecutorCancelledContext(t *testing.T) {
	client := &fakeClient{
		failStage:     domain.StageAnalyze,
		failErr:       transientErr(),
		failTimesLeft: -1,
	}
	store := newFakeStore()
	executor := newTestExecutor(client, store, fastRetryConfig(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := domain.NewRun("photos/1.jpg", domain.ModeRestore, nil)
	_, err := executor.Execute(ctx, run, domain.StageAnalyze)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if len(client.calls) != 1 {
		t.Errorf("expected no retries after cancellation, got %d attempts", len(client.calls))
	}
}

func TestExecutorNewStepPerExecution(t *testing.T) {
	client := &fakeClient{}
	store := newFakeStore()
	executor := newTestExecutor(client, store, fastRetryConfig(1))

	run := domain.NewRun("photos/1.jpg", domain.ModeRestore, nil)
	if _, err := executor.Execute(context.Background(), run, domain.StageAnalyze); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := executor.Execute(context.Background(), run, domain.StageAnalyze); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(run.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(run.Steps))
	}
	if run.Steps[0].Number == run.Steps[1].Number {
		t.Error("expected distinct step numbers")
	}
	if run.Steps[0].ID == run.Steps[1].ID {
		t.Error("expected distinct step IDs")
	}
}

// --- Backoff Tests ---

func TestRetryPolicyDelayExponential(t *testing.T) {
	policy := RetryPolicy{
		Backoff:      "exponential",
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		got := policy.Delay(tt.attempt)
		if got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyDelayFixed(t *testing.T) {
	policy := RetryPolicy{
		Backoff:      "fixed",
		InitialDelay: 3 * time.Second,
	}

	for attempt := 1; attempt <= 5; attempt++ {
		got := policy.Delay(attempt)
		if got != 3*time.Second {
			t.Errorf("Delay(%d) = %v, want 3s", attempt, got)
		}
	}
}

func TestRetryPolicyDelayZeroValues(t *testing.T) {
	var policy RetryPolicy

	got := policy.Delay(1)
	if got != time.Second {
		t.Errorf("Delay(1) = %v, want 1s default", got)
	}
}
