package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
)

// fakeStore records runs and steps in memory.
type fakeStore struct {
	mu    sync.Mutex
	runs  map[string]domain.Run
	steps []domain.RunStep
	fail  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: make(map[string]domain.Run)}
}

func (s *fakeStore) CreateRun(_ context.Context, run *domain.Run) error {
	return s.putRun(run)
}

func (s *fakeStore) UpdateRun(_ context.Context, run *domain.Run) error {
	return s.putRun(run)
}

func (s *fakeStore) putRun(run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("store unavailable")
	}
	s.runs[run.ID.String()] = *run
	return nil
}

func (s *fakeStore) CreateStep(_ context.Context, step *domain.RunStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("store unavailable")
	}
	s.steps = append(s.steps, *step)
	return nil
}

func (s *fakeStore) UpdateStep(_ context.Context, _ *domain.RunStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("store unavailable")
	}
	return nil
}

// fakeClient is a scripted capability: analysis, plan and edit succeed
// with canned payloads, validation scores are consumed from a queue.
type fakeClient struct {
	mu            sync.Mutex
	calls         []capability.Request
	validateQueue []*domain.ValidationResult
	failStage     domain.Stage
	failErr       error
	failTimesLeft int
	editCalls     int
	validateCalls int
}

func (c *fakeClient) Invoke(_ context.Context, req capability.Request) (*capability.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)

	if req.Stage == c.failStage && (c.failTimesLeft > 0 || c.failTimesLeft < 0) {
		if c.failTimesLeft > 0 {
			c.failTimesLeft--
		}
		return nil, c.failErr
	}

	switch req.Stage {
	case domain.StageAnalyze:
		data, _ := json.Marshal(domain.AnalysisResult{
			QualityScore: 45,
			Defects:      []domain.Defect{{Kind: "scratch", Severity: domain.SeverityModerate}},
			Content:      "street scene",
		})
		return &capability.Result{Data: data}, nil

	case domain.StagePlan:
		data, _ := json.Marshal(domain.EditPlan{
			Steps: []domain.PlanStep{{Number: 1, Instruction: "remove scratches", Temperature: 0.4}},
		})
		return &capability.Result{Data: data}, nil

	case domain.StageEdit:
		c.editCalls++
		return &capability.Result{ImageRef: fmt.Sprintf("edited/%d.jpg", c.editCalls)}, nil

	case domain.StageValidate:
		c.validateCalls++
		v := &domain.ValidationResult{OverallScore: 90, Recommendation: domain.RecommendationAccept}
		if len(c.validateQueue) > 0 {
			v = c.validateQueue[0]
			c.validateQueue = c.validateQueue[1:]
		}
		data, _ := json.Marshal(v)
		return &capability.Result{Data: data}, nil
	}

	return nil, fmt.Errorf("unexpected stage %q", req.Stage)
}

func (c *fakeClient) requests(stage domain.Stage) []capability.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []capability.Request
	for _, req := range c.calls {
		if req.Stage == stage {
			out = append(out, req)
		}
	}
	return out
}
