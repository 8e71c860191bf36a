package stage

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
)

func TestDefaultRegistryHasAllStages(t *testing.T) {
	r := DefaultRegistry()

	for _, s := range domain.Stages() {
		if !r.Has(s) {
			t.Errorf("expected registry to have stage %s", s)
		}
		h, err := r.Get(s)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", s, err)
		}
		if h.Stage() != s {
			t.Errorf("handler for %s reports stage %s", s, h.Stage())
		}
	}
}

func TestBuildTagsRequestWithHandlerStage(t *testing.T) {
	run := domain.NewRun("photos/1.jpg", domain.ModeRestore, nil)
	payloads := []*domain.StepPayload{
		{Analysis: &domain.AnalysisResult{QualityScore: 45}},
		{Plan: &domain.EditPlan{Steps: []domain.PlanStep{{Number: 1, Instruction: "remove scratches"}}}},
		{Edit: &domain.EditResult{Success: true, ImageRef: "edited/1.jpg"}},
	}
	for i, p := range payloads {
		step := domain.NewRunStep(run.ID, i+1, domain.Stages()[i])
		step.MarkInProgress()
		step.MarkCompleted(p)
		run.AppendStep(*step)
	}

	r := DefaultRegistry()
	for _, s := range domain.Stages() {
		h, err := r.Get(s)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", s, err)
		}
		req, err := h.Build(run)
		if err != nil {
			t.Fatalf("Build for %s failed: %v", s, err)
		}
		if req.Stage != s {
			t.Errorf("expected request stage %s, got %s", s, req.Stage)
		}
	}
}

func TestRegistryGetUnknownStage(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(domain.StageEdit)
	if !errors.Is(err, ErrStageNotFound) {
		t.Errorf("expected ErrStageNotFound, got %v", err)
	}
}

func TestAnalyzeBuildRequiresPhoto(t *testing.T) {
	run := domain.NewRun("", domain.ModeRestore, nil)

	_, err := NewAnalyzeHandler().Build(run)
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput, got %v", err)
	}
}

func TestAnalyzeDecodeClampsAndCoerces(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"quality_score": 140,
		"defects": []map[string]any{
			{"kind": "tear", "severity": "catastrophic", "region": "top-left"},
		},
		"content": "family portrait",
		"era":     "1950s",
	})

	payload, err := NewAnalyzeHandler().Decode(&capability.Result{Data: data})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if payload.Analysis.QualityScore != 100 {
		t.Errorf("expected score clamped to 100, got %d", payload.Analysis.QualityScore)
	}
	if payload.Analysis.Defects[0].Severity != domain.SeverityMinor {
		t.Errorf("expected unknown severity coerced to minor, got %s", payload.Analysis.Defects[0].Severity)
	}
}

func TestPlanDecodeRejectsEmptyPlan(t *testing.T) {
	data, _ := json.Marshal(map[string]any{"steps": []any{}})

	_, err := NewPlanHandler().Decode(&capability.Result{Data: data})
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
}

func TestPlanDecodeRenumbersSteps(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"steps": []map[string]any{
			{"number": 7, "instruction": "remove scratches", "temperature": 0.4},
			{"number": 7, "instruction": "fix exposure", "temperature": 3.0},
		},
	})

	payload, err := NewPlanHandler().Decode(&capability.Result{Data: data})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	steps := payload.Plan.Steps
	if steps[0].Number != 1 || steps[1].Number != 2 {
		t.Errorf("expected steps renumbered 1..2, got %d and %d", steps[0].Number, steps[1].Number)
	}
	if steps[1].Temperature != defaultStepTemperature {
		t.Errorf("expected out-of-range temperature replaced, got %f", steps[1].Temperature)
	}
}

func TestEditBuildCarriesRetryHints(t *testing.T) {
	run := domain.NewRun("photos/1.jpg", domain.ModeRestore, nil)
	step := domain.NewRunStep(run.ID, 2, domain.StagePlan)
	step.MarkInProgress()
	step.MarkCompleted(&domain.StepPayload{Plan: &domain.EditPlan{
		Steps: []domain.PlanStep{{Number: 1, Instruction: "remove scratches"}},
	}})
	run.AppendStep(*step)
	run.ResetForRetry([]string{"faces look waxy"})

	req, err := NewEditHandler().Build(run)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	hints, ok := req.Context["retry_hints"].([]string)
	if !ok || len(hints) != 1 || hints[0] != "faces look waxy" {
		t.Errorf("expected retry hints in request context, got %v", req.Context["retry_hints"])
	}
}

func TestEditDecodeRequiresImage(t *testing.T) {
	_, err := NewEditHandler().Decode(&capability.Result{Data: json.RawMessage(`{}`)})
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
}

func TestValidateBuildRequiresEditResult(t *testing.T) {
	run := domain.NewRun("photos/1.jpg", domain.ModeRestore, nil)

	_, err := NewValidateHandler().Build(run)
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput, got %v", err)
	}
}

func TestValidateDecodeCoercesRecommendation(t *testing.T) {
	data, _ := json.Marshal(map[string]any{
		"overall_score": 82,
		"sub_scores":    map[string]int{"fidelity": 120},
		"issues": []map[string]any{
			{"severity": "moderate", "description": "slight colour shift"},
		},
		"recommendation": "ship it",
	})

	payload, err := NewValidateHandler().Decode(&capability.Result{Data: data})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	v := payload.Validation
	if v.Recommendation != domain.RecommendationRetry {
		t.Errorf("expected unknown recommendation coerced to retry, got %s", v.Recommendation)
	}
	if v.SubScores["fidelity"] != 100 {
		t.Errorf("expected sub-score clamped to 100, got %d", v.SubScores["fidelity"])
	}
}
