package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — реставрация одной фотографии.
//
// Run создаётся когда:
// - Пользователь запускает обработку одной фотографии (через API/CLI)
// - Batch manager доходит до очередного элемента batch job
//
// Run проходит этапы ANALYZE → PLAN → EDIT → VALIDATE, после чего
// quality gate решает: принять, повторить EDIT или отклонить.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// PhotoRef — ссылка на запись исходной фотографии во внешнем хранилище.
	PhotoRef string `json:"photo_ref"`

	// BatchID — ссылка на родительский batch job.
	// Nil для одиночных запусков.
	BatchID *uuid.UUID `json:"batch_id,omitempty"`

	// Mode — режим обработки.
	Mode Mode `json:"mode"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Steps — история выполненных шагов в порядке выполнения.
	// Завершённые шаги неизменяемы: retry создаёт новый RunStep.
	Steps []RunStep `json:"steps,omitempty"`

	// RetryAttempt — количество повторов EDIT по решению quality gate.
	// Не превышает настроенный максимум.
	RetryAttempt int `json:"retry_attempt"`

	// RetryHints — подсказки для следующего EDIT, собранные из
	// проблем последнего VALIDATE.
	RetryHints []string `json:"retry_hints,omitempty"`

	// QualityScore — итоговая оценка (0–100). Nil до первого VALIDATE.
	QualityScore *int `json:"quality_score,omitempty"`

	// Decision — решение quality gate.
	// Заполнено тогда и только тогда, когда Status достиг DECIDED.
	Decision QCDecision `json:"decision,omitempty"`

	// NeedsReview — результат требует проверки человеком.
	NeedsReview bool `json:"needs_review,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// StartedAt — время выхода из QUEUED.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения терминального статуса.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе QUEUED.
func NewRun(photoRef string, mode Mode, batchID *uuid.UUID) *Run {
	return &Run{
		ID:        uuid.New(),
		PhotoRef:  photoRef,
		BatchID:   batchID,
		Mode:      mode,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkStage переводит run в активный статус этапа.
// При первом переходе из QUEUED фиксирует StartedAt.
func (r *Run) MarkStage(stage Stage) {
	if r.StartedAt == nil {
		now := time.Now()
		r.StartedAt = &now
	}
	r.Status = StatusForStage(stage)
}

// MarkDecided фиксирует решение quality gate и итоговую оценку.
func (r *Run) MarkDecided(decision QCDecision, score int) {
	r.Status = RunStatusDecided
	r.Decision = decision
	r.QualityScore = &score
}

// MarkCompleted переводит run в COMPLETED.
// needsReview — флаг ручной проверки (решение MANUAL_REVIEW).
func (r *Run) MarkCompleted(needsReview bool) {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.NeedsReview = needsReview
	r.FinishedAt = &now
}

// MarkFailed переводит run в FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.Error = err
	r.FinishedAt = &now
}

// ResetForRetry возвращает run в EDITING по решению RETRY.
// Единственный немонотонный переход: инкрементирует RetryAttempt
// и сохраняет подсказки для следующей попытки.
func (r *Run) ResetForRetry(hints []string) {
	r.Status = RunStatusEditing
	r.RetryAttempt++
	r.RetryHints = hints
	r.Decision = ""
}

// CanRetry проверяет, остались ли попытки retry.
func (r *Run) CanRetry(maxRetries int) bool {
	return r.RetryAttempt < maxRetries
}

// AppendStep добавляет шаг в историю run.
func (r *Run) AppendStep(step RunStep) {
	r.Steps = append(r.Steps, step)
}

// LastPayload возвращает payload последнего завершённого шага этапа.
// Nil, если этап ещё не выполнялся успешно.
func (r *Run) LastPayload(stage Stage) *StepPayload {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		step := &r.Steps[i]
		if step.Stage == stage && step.Status == StepStatusCompleted {
			return step.Payload
		}
	}
	return nil
}

// NextStepNumber возвращает номер для следующего шага (1-based).
func (r *Run) NextStepNumber() int {
	return len(r.Steps) + 1
}
