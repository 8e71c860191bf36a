package pipeline

import (
	"testing"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

func report(score int, issues ...domain.Issue) *domain.ValidationResult {
	return &domain.ValidationResult{
		OverallScore:   score,
		Issues:         issues,
		Recommendation: domain.RecommendationRetry,
	}
}

func TestGateDecide(t *testing.T) {
	policy := DefaultGatePolicy()

	tests := []struct {
		name    string
		v       *domain.ValidationResult
		attempt int
		want    domain.QCDecision
	}{
		{
			name:    "clean pass",
			v:       report(90),
			attempt: 0,
			want:    domain.QCApprove,
		},
		{
			name:    "pass with moderate issue",
			v:       report(80, domain.Issue{Severity: domain.SeverityModerate, Description: "colour shift"}),
			attempt: 0,
			want:    domain.QCApproveWithNotes,
		},
		{
			name:    "pass with minor issue only",
			v:       report(80, domain.Issue{Severity: domain.SeverityMinor, Description: "slight grain"}),
			attempt: 0,
			want:    domain.QCApprove,
		},
		{
			name:    "exactly at accept threshold",
			v:       report(75),
			attempt: 0,
			want:    domain.QCApprove,
		},
		{
			name:    "below accept with retries left",
			v:       report(72),
			attempt: 0,
			want:    domain.QCRetry,
		},
		{
			name:    "below accept retries exhausted",
			v:       report(72),
			attempt: 2,
			want:    domain.QCManualReview,
		},
		{
			name:    "at retry floor no retry",
			v:       report(50),
			attempt: 0,
			want:    domain.QCManualReview,
		},
		{
			name:    "hopeless score",
			v:       report(30),
			attempt: 0,
			want:    domain.QCReject,
		},
		{
			name:    "blocker with decent score",
			v:       report(85, domain.Issue{Severity: domain.SeverityBlocker, Description: "face replaced"}),
			attempt: 0,
			want:    domain.QCManualReview,
		},
		{
			name:    "blocker with low score",
			v:       report(40, domain.Issue{Severity: domain.SeverityBlocker, Description: "content invented"}),
			attempt: 0,
			want:    domain.QCReject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.v, tt.attempt)
			if got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGateDecideDeterministic(t *testing.T) {
	policy := DefaultGatePolicy()
	v := report(72, domain.Issue{Severity: domain.SeverityModerate, Description: "halo around edges"})

	first := policy.Decide(v, 1)
	for i := 0; i < 10; i++ {
		if got := policy.Decide(v, 1); got != first {
			t.Fatalf("Decide() not deterministic: got %s, then %s", first, got)
		}
	}
}
