package stage

import (
	"fmt"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
)

// EditHandler — этап EDIT: применение плана к исходному изображению.
//
// При повторной попытке после вердикта RETRY в контекст запроса
// добавляются подсказки — описания проблем, найденных валидацией на
// предыдущей попытке.
type EditHandler struct{}

// NewEditHandler создаёт обработчик этапа EDIT.
func NewEditHandler() *EditHandler {
	return &EditHandler{}
}

// Stage возвращает domain.StageEdit.
func (h *EditHandler) Stage() domain.Stage {
	return domain.StageEdit
}

// Build собирает запрос редактирования. Требует завершённого этапа PLAN.
func (h *EditHandler) Build(run *domain.Run) (capability.Request, error) {
	prev := run.LastPayload(domain.StagePlan)
	if prev == nil || prev.Plan == nil {
		return capability.Request{}, fmt.Errorf("%w: edit requires plan", ErrMissingInput)
	}

	reqCtx := map[string]any{
		"mode": string(run.Mode),
		"plan": prev.Plan,
	}
	if len(run.RetryHints) > 0 {
		reqCtx["retry_hints"] = run.RetryHints
		reqCtx["retry_attempt"] = run.RetryAttempt
	}

	return capability.Request{
		Stage:    domain.StageEdit,
		Prompt:   editPrompt(run.Mode),
		ImageRef: run.PhotoRef,
		Context:  reqCtx,
	}, nil
}

// Decode разбирает результат редактирования. Ответ без изображения —
// ошибка этапа: редактирование, не вернувшее картинку, бессмысленно
// валидировать.
func (h *EditHandler) Decode(res *capability.Result) (*domain.StepPayload, error) {
	if len(res.Image) == 0 && res.ImageRef == "" {
		return nil, fmt.Errorf("%w: edit produced no image", ErrEmptyResult)
	}

	edit := domain.EditResult{
		Success:    true,
		ImageRef:   res.ImageRef,
		ImageBytes: res.Image,
	}
	if len(res.Data) > 0 {
		edit.Notes = string(res.Data)
	}

	return &domain.StepPayload{Edit: &edit}, nil
}

func editPrompt(mode domain.Mode) string {
	switch mode {
	case domain.ModeEnhance:
		return "Enhance the photograph by applying the plan steps in order. " +
			"Preserve the original content and composition. Return the edited image."
	case domain.ModeReimagine:
		return "Produce a creative remake of the photograph by applying the plan " +
			"steps in order. Return the resulting image."
	default:
		return "Restore the photograph by applying the plan steps in order. " +
			"Repair every listed defect while preserving the original content, " +
			"faces and composition. Return the restored image."
	}
}
