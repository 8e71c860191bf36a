package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStep — одно выполнение одного этапа внутри run.
//
// RunStep создаётся когда run входит в соответствующий этап
// и принадлежит исключительно родительскому run.
// Завершённый (COMPLETED) шаг неизменяем: повтор этапа создаёт
// новый RunStep, сохраняя историю.
type RunStep struct {
	// ID — уникальный идентификатор шага.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// Number — порядковый номер шага в run (1-based).
	Number int `json:"number"`

	// Stage — этап, который выполняет шаг.
	Stage Stage `json:"stage"`

	// Status — текущий статус шага.
	Status StepStatus `json:"status"`

	// Success — успешно ли завершился шаг.
	Success bool `json:"success"`

	// Attempt — количество локальных попыток (retry транзиентных ошибок
	// внутри Step Executor, начиная с 1).
	Attempt int `json:"attempt"`

	// Payload — структурированный результат шага.
	// Заполняется при успешном завершении.
	Payload *StepPayload `json:"payload,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// StartedAt — время перехода в IN_PROGRESS.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания шага.
	CreatedAt time.Time `json:"created_at"`
}

// NewRunStep создаёт шаг в статусе PENDING.
func NewRunStep(runID uuid.UUID, number int, stage Stage) *RunStep {
	return &RunStep{
		ID:        uuid.New(),
		RunID:     runID,
		Number:    number,
		Stage:     stage,
		Status:    StepStatusPending,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения шага.
func (s *RunStep) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// MarkInProgress переводит шаг в IN_PROGRESS и инкрементирует Attempt.
func (s *RunStep) MarkInProgress() {
	now := time.Now()
	s.Status = StepStatusInProgress
	s.StartedAt = &now
	s.Attempt++
}

// MarkCompleted переводит шаг в COMPLETED с результатом.
func (s *RunStep) MarkCompleted(payload *StepPayload) {
	now := time.Now()
	s.Status = StepStatusCompleted
	s.Success = true
	s.Payload = payload
	s.FinishedAt = &now
}

// MarkFailed переводит шаг в FAILED с ошибкой.
func (s *RunStep) MarkFailed(err string) {
	now := time.Now()
	s.Status = StepStatusFailed
	s.Success = false
	s.Error = err
	s.FinishedAt = &now
}

// MarkSkipped переводит шаг в SKIPPED.
func (s *RunStep) MarkSkipped() {
	now := time.Now()
	s.Status = StepStatusSkipped
	s.FinishedAt = &now
}
