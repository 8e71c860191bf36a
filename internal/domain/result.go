package domain

// Severity — серьёзность проблемы, найденной на этапе VALIDATE.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"

	// SeverityBlocker — проблема, исключающая принятие результата
	// и повторные попытки (например, изменено лицо человека).
	SeverityBlocker Severity = "blocker"
)

// ParseSeverity парсит строку в Severity.
// Неизвестное значение коэрцируется в minor.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityModerate, SeverityCritical, SeverityBlocker:
		return Severity(s)
	default:
		return SeverityMinor
	}
}

// Recommendation — рекомендация модели по итогам VALIDATE.
// Носит совещательный характер: окончательное решение принимает quality gate.
type Recommendation string

const (
	RecommendationAccept Recommendation = "accept"
	RecommendationRetry  Recommendation = "retry"
	RecommendationReject Recommendation = "reject"
)

// ParseRecommendation парсит строку в Recommendation.
// Неизвестное значение коэрцируется в retry.
func ParseRecommendation(s string) Recommendation {
	switch Recommendation(s) {
	case RecommendationAccept, RecommendationReject:
		return Recommendation(s)
	default:
		return RecommendationRetry
	}
}

// Defect — дефект, найденный на исходной фотографии.
type Defect struct {
	// Kind — тип дефекта: "scratch", "tear", "fading", "stain", и т.д.
	Kind string `json:"kind"`

	// Severity — серьёзность дефекта.
	Severity Severity `json:"severity"`

	// Region — текстовое описание области ("верхний левый угол").
	Region string `json:"region,omitempty"`
}

// AnalysisResult — результат этапа ANALYZE.
type AnalysisResult struct {
	// QualityScore — оценка качества исходника (0–100).
	QualityScore int `json:"quality_score"`

	// Defects — найденные дефекты.
	Defects []Defect `json:"defects,omitempty"`

	// Content — описание содержимого фотографии.
	Content string `json:"content,omitempty"`

	// Era — предполагаемый период съёмки.
	Era string `json:"era,omitempty"`
}

// PlanStep — один шаг плана редактирования.
type PlanStep struct {
	// Number — порядковый номер шага (1-based).
	Number int `json:"number"`

	// Instruction — инструкция для генеративной модели.
	Instruction string `json:"instruction"`

	// Temperature — температура генерации для этого шага.
	Temperature float64 `json:"temperature"`

	// ExpectedOutcome — ожидаемый результат шага.
	ExpectedOutcome string `json:"expected_outcome,omitempty"`
}

// EditPlan — результат этапа PLAN: упорядоченный список шагов редактирования.
type EditPlan struct {
	Steps []PlanStep `json:"steps"`
}

// EditResult — результат этапа EDIT.
type EditResult struct {
	// Success — сгенерировано ли изображение.
	Success bool `json:"success"`

	// ImageRef — ссылка на сгенерированное изображение во внешнем хранилище.
	ImageRef string `json:"image_ref,omitempty"`

	// ImageBytes — байты изображения для передачи следующему этапу.
	// В хранилище не сериализуются (изображения живут во внешнем storage).
	ImageBytes []byte `json:"-"`

	// Notes — комментарий модели к результату.
	Notes string `json:"notes,omitempty"`
}

// Issue — проблема, найденная на этапе VALIDATE.
type Issue struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// ValidationResult — результат этапа VALIDATE.
type ValidationResult struct {
	// OverallScore — общая оценка результата (0–100).
	OverallScore int `json:"overall_score"`

	// SubScores — оценки по категориям ("sharpness", "color", "fidelity", ...).
	SubScores map[string]int `json:"sub_scores,omitempty"`

	// Issues — найденные проблемы.
	Issues []Issue `json:"issues,omitempty"`

	// Recommendation — рекомендация модели.
	Recommendation Recommendation `json:"recommendation"`
}

// HasBlocker возвращает true, если среди проблем есть blocker.
func (v *ValidationResult) HasBlocker() bool {
	for _, issue := range v.Issues {
		if issue.Severity == SeverityBlocker {
			return true
		}
	}
	return false
}

// HasSevere возвращает true, если есть проблемы moderate или выше.
func (v *ValidationResult) HasSevere() bool {
	for _, issue := range v.Issues {
		switch issue.Severity {
		case SeverityModerate, SeverityCritical, SeverityBlocker:
			return true
		}
	}
	return false
}

// IssueHints возвращает описания проблем для подсказок следующему EDIT.
func (v *ValidationResult) IssueHints() []string {
	if len(v.Issues) == 0 {
		return nil
	}
	hints := make([]string, 0, len(v.Issues))
	for _, issue := range v.Issues {
		hints = append(hints, issue.Description)
	}
	return hints
}

// StepPayload — структурированный результат шага.
// Tagged union: заполнено ровно одно поле, соответствующее этапу шага.
type StepPayload struct {
	Analysis   *AnalysisResult   `json:"analysis,omitempty"`
	Plan       *EditPlan         `json:"plan,omitempty"`
	Edit       *EditResult       `json:"edit,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
}
