package stage

import (
	"encoding/json"
	"fmt"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
)

// ValidateHandler — этап VALIDATE: контроль качества отредактированного
// изображения. Модель сравнивает результат с оригиналом и возвращает
// итоговую оценку, подоценки, список проблем и рекомендацию.
type ValidateHandler struct{}

// NewValidateHandler создаёт обработчик этапа VALIDATE.
func NewValidateHandler() *ValidateHandler {
	return &ValidateHandler{}
}

// Stage возвращает domain.StageValidate.
func (h *ValidateHandler) Stage() domain.Stage {
	return domain.StageValidate
}

// Build собирает запрос валидации. Требует завершённого этапа EDIT:
// отредактированное изображение передаётся на проверку, ссылка на
// оригинал — в контексте для сравнения.
func (h *ValidateHandler) Build(run *domain.Run) (capability.Request, error) {
	prev := run.LastPayload(domain.StageEdit)
	if prev == nil || prev.Edit == nil {
		return capability.Request{}, fmt.Errorf("%w: validate requires edit result", ErrMissingInput)
	}

	return capability.Request{
		Stage:    domain.StageValidate,
		Prompt:   validatePrompt(run.Mode),
		Image:    prev.Edit.ImageBytes,
		ImageRef: prev.Edit.ImageRef,
		Context: map[string]any{
			"mode":         string(run.Mode),
			"original_ref": run.PhotoRef,
		},
	}, nil
}

// Decode разбирает отчёт валидации. Оценки ограничиваются диапазоном
// 0–100, серьёзность проблем и рекомендация коэрцируются к известным
// значениям.
func (h *ValidateHandler) Decode(res *capability.Result) (*domain.StepPayload, error) {
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("%w: validation returned no data", ErrEmptyResult)
	}

	var validation domain.ValidationResult
	if err := json.Unmarshal(res.Data, &validation); err != nil {
		return nil, fmt.Errorf("decode validation: %w", err)
	}

	validation.OverallScore = clampScore(validation.OverallScore)
	for name, score := range validation.SubScores {
		validation.SubScores[name] = clampScore(score)
	}
	for i := range validation.Issues {
		validation.Issues[i].Severity = domain.ParseSeverity(string(validation.Issues[i].Severity))
	}
	validation.Recommendation = domain.ParseRecommendation(string(validation.Recommendation))

	return &domain.StepPayload{Validation: &validation}, nil
}

func validatePrompt(mode domain.Mode) string {
	switch mode {
	case domain.ModeReimagine:
		return "Validate the remade image against the original: grade the overall " +
			"result 0-100 with sub-scores, list every issue with its severity and " +
			"recommend accept, retry or reject. Respond with JSON matching the " +
			"validation schema."
	default:
		return "Validate the edited image against the original: grade the overall " +
			"result 0-100 with sub-scores for fidelity, artifacts and completeness, " +
			"list every issue with its severity and recommend accept, retry or " +
			"reject. Respond with JSON matching the validation schema."
	}
}
