package stage

import (
	"encoding/json"
	"fmt"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
)

// AnalyzeHandler — этап ANALYZE: оценка состояния исходной фотографии.
//
// Модель получает исходное изображение и возвращает структурированный
// отчёт: оценку качества, список дефектов, описание содержимого и
// предполагаемую эпоху снимка.
type AnalyzeHandler struct{}

// NewAnalyzeHandler создаёт обработчик этапа ANALYZE.
func NewAnalyzeHandler() *AnalyzeHandler {
	return &AnalyzeHandler{}
}

// Stage возвращает domain.StageAnalyze.
func (h *AnalyzeHandler) Stage() domain.Stage {
	return domain.StageAnalyze
}

// Build собирает запрос анализа исходного изображения.
func (h *AnalyzeHandler) Build(run *domain.Run) (capability.Request, error) {
	if run.PhotoRef == "" {
		return capability.Request{}, fmt.Errorf("%w: run has no photo reference", ErrMissingInput)
	}

	return capability.Request{
		Stage:    domain.StageAnalyze,
		Prompt:   analyzePrompt(run.Mode),
		ImageRef: run.PhotoRef,
		Context: map[string]any{
			"mode": string(run.Mode),
		},
	}, nil
}

// Decode разбирает отчёт анализа. Оценка качества ограничивается
// диапазоном 0–100, серьёзность дефектов коэрцируется к известным
// значениям.
func (h *AnalyzeHandler) Decode(res *capability.Result) (*domain.StepPayload, error) {
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("%w: analysis returned no data", ErrEmptyResult)
	}

	var analysis domain.AnalysisResult
	if err := json.Unmarshal(res.Data, &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	analysis.QualityScore = clampScore(analysis.QualityScore)
	for i := range analysis.Defects {
		analysis.Defects[i].Severity = domain.ParseSeverity(string(analysis.Defects[i].Severity))
	}

	return &domain.StepPayload{Analysis: &analysis}, nil
}

func analyzePrompt(mode domain.Mode) string {
	switch mode {
	case domain.ModeEnhance:
		return "Assess the photograph for enhancement: grade overall quality 0-100, " +
			"list defects limiting sharpness, exposure and colour, describe the content " +
			"and estimate the era. Respond with JSON matching the analysis schema."
	case domain.ModeReimagine:
		return "Assess the photograph as source material for a creative remake: grade " +
			"overall quality 0-100, list defects, describe the content, composition and " +
			"estimate the era. Respond with JSON matching the analysis schema."
	default:
		return "Assess the damaged photograph for restoration: grade overall quality " +
			"0-100, list every defect with its severity and region, describe the content " +
			"and estimate the era. Respond with JSON matching the analysis schema."
	}
}
