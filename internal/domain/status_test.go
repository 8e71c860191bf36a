package domain

import "testing"

func TestStageOrder(t *testing.T) {
	stages := Stages()
	if len(stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(stages))
	}

	for i, s := range stages {
		if s.Number() != i+1 {
			t.Errorf("stage %s: expected number %d, got %d", s, i+1, s.Number())
		}
	}

	// Walking Next from ANALYZE visits every stage
	current := StageAnalyze
	for i := 1; i < len(stages); i++ {
		next, ok := current.Next()
		if !ok {
			t.Fatalf("stage %s: expected a next stage", current)
		}
		if next != stages[i] {
			t.Errorf("after %s: expected %s, got %s", current, stages[i], next)
		}
		current = next
	}
	if _, ok := current.Next(); ok {
		t.Errorf("expected %s to be the last stage", current)
	}
}

func TestStatusStageRoundTrip(t *testing.T) {
	for _, s := range Stages() {
		status := StatusForStage(s)
		got, ok := status.Stage()
		if !ok {
			t.Errorf("status %s: expected a stage", status)
			continue
		}
		if got != s {
			t.Errorf("status %s: expected stage %s, got %s", status, s, got)
		}
	}

	for _, status := range []RunStatus{RunStatusQueued, RunStatusDecided, RunStatusCompleted, RunStatusFailed} {
		if _, ok := status.Stage(); ok {
			t.Errorf("status %s: expected no stage", status)
		}
	}
}

func TestParseCoercion(t *testing.T) {
	if got := ParseStage("garbage"); got != StageAnalyze {
		t.Errorf("unknown stage: expected ANALYZE, got %s", got)
	}
	if got := ParseMode("garbage"); got != ModeRestore {
		t.Errorf("unknown mode: expected RESTORE, got %s", got)
	}
	if got := ParseRunStatus("garbage"); got != RunStatusQueued {
		t.Errorf("unknown run status: expected QUEUED, got %s", got)
	}
	if got := ParseBatchStatus("garbage"); got != BatchStatusQueued {
		t.Errorf("unknown batch status: expected queued, got %s", got)
	}
	// Unknown decision coerces to the safest outcome
	if got := ParseQCDecision("garbage"); got != QCManualReview {
		t.Errorf("unknown decision: expected MANUAL_REVIEW, got %s", got)
	}

	if got := ParseMode("ENHANCE"); got != ModeEnhance {
		t.Errorf("expected ENHANCE, got %s", got)
	}
	if got := ParseRunStatus("COMPLETED"); got != RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", got)
	}
	if got := ParseQCDecision("APPROVE_WITH_NOTES"); got != QCApproveWithNotes {
		t.Errorf("expected APPROVE_WITH_NOTES, got %s", got)
	}
}

func TestRunStatusTerminal(t *testing.T) {
	terminal := map[RunStatus]bool{
		RunStatusQueued:     false,
		RunStatusAnalyzing:  false,
		RunStatusPlanning:   false,
		RunStatusEditing:    false,
		RunStatusValidating: false,
		RunStatusDecided:    false,
		RunStatusCompleted:  true,
		RunStatusFailed:     true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s: expected IsTerminal=%v, got %v", status, want, got)
		}
	}
}

func TestBatchStatusRetryable(t *testing.T) {
	retryable := map[BatchStatus]bool{
		BatchStatusQueued:         false,
		BatchStatusRunning:        false,
		BatchStatusCompleted:      false,
		BatchStatusFailed:         true,
		BatchStatusPartialSuccess: true,
		BatchStatusCancelled:      false,
		BatchStatusTimeout:        true,
	}
	for status, want := range retryable {
		if got := status.IsRetryable(); got != want {
			t.Errorf("%s: expected IsRetryable=%v, got %v", status, want, got)
		}
	}
}
