package stage

import (
	"encoding/json"
	"fmt"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
)

// Температура шагов плана по умолчанию, если модель её не задала.
const defaultStepTemperature = 0.7

// PlanHandler — этап PLAN: построение пошагового плана редактирования
// по результату анализа.
type PlanHandler struct{}

// NewPlanHandler создаёт обработчик этапа PLAN.
func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

// Stage возвращает domain.StagePlan.
func (h *PlanHandler) Stage() domain.Stage {
	return domain.StagePlan
}

// Build собирает запрос планирования. Требует завершённого этапа ANALYZE:
// отчёт анализа передаётся модели в контексте запроса.
func (h *PlanHandler) Build(run *domain.Run) (capability.Request, error) {
	prev := run.LastPayload(domain.StageAnalyze)
	if prev == nil || prev.Analysis == nil {
		return capability.Request{}, fmt.Errorf("%w: plan requires analysis", ErrMissingInput)
	}

	return capability.Request{
		Stage:    domain.StagePlan,
		Prompt:   planPrompt(run.Mode),
		ImageRef: run.PhotoRef,
		Context: map[string]any{
			"mode":     string(run.Mode),
			"analysis": prev.Analysis,
		},
	}, nil
}

// Decode разбирает план редактирования. Пустой план — ошибка этапа.
// Шаги перенумеровываются последовательно, температура вне диапазона
// [0, 1] заменяется значением по умолчанию.
func (h *PlanHandler) Decode(res *capability.Result) (*domain.StepPayload, error) {
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("%w: plan returned no data", ErrEmptyResult)
	}

	var plan domain.EditPlan
	if err := json.Unmarshal(res.Data, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("%w: plan has no steps", ErrEmptyResult)
	}

	for i := range plan.Steps {
		plan.Steps[i].Number = i + 1
		if plan.Steps[i].Temperature < 0 || plan.Steps[i].Temperature > 1 {
			plan.Steps[i].Temperature = defaultStepTemperature
		}
	}

	return &domain.StepPayload{Plan: &plan}, nil
}

func planPrompt(mode domain.Mode) string {
	switch mode {
	case domain.ModeEnhance:
		return "Using the analysis report, produce an ordered plan of enhancement steps: " +
			"each step has an instruction, a temperature and an expected outcome. " +
			"Respond with JSON matching the plan schema."
	case domain.ModeReimagine:
		return "Using the analysis report, produce an ordered plan for a creative remake " +
			"of the photograph: each step has an instruction, a temperature and an " +
			"expected outcome. Respond with JSON matching the plan schema."
	default:
		return "Using the analysis report, produce an ordered restoration plan addressing " +
			"every listed defect: each step has an instruction, a temperature and an " +
			"expected outcome. Respond with JSON matching the plan schema."
	}
}
