package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// Batch DTOs

// CreateBatchRequest — запрос на сабмит batch job.
type CreateBatchRequest struct {
	Items       []BatchItemRequest `json:"items"`
	DefaultMode string             `json:"default_mode,omitempty"`
	DelayMs     int64              `json:"delay_ms,omitempty"`
}

// BatchItemRequest — один элемент сабмита.
type BatchItemRequest struct {
	PhotoRef string `json:"photo_ref"`
	Mode     string `json:"mode,omitempty"`
}

// BatchResponse — ответ с batch job.
type BatchResponse struct {
	ID                 uuid.UUID            `json:"id"`
	Status             domain.BatchStatus   `json:"status"`
	DefaultMode        domain.Mode          `json:"default_mode"`
	Progress           domain.BatchProgress `json:"progress"`
	Errors             []domain.BatchError  `json:"errors,omitempty"`
	RunIDs             []uuid.UUID          `json:"run_ids,omitempty"`
	RetryCount         int                  `json:"retry_count"`
	EstimatedRemaining string               `json:"estimated_remaining,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	StartedAt          *time.Time           `json:"started_at,omitempty"`
	FinishedAt         *time.Time           `json:"finished_at,omitempty"`
}

// BatchFromDomain конвертирует domain.BatchJob в BatchResponse.
func BatchFromDomain(job *domain.BatchJob) BatchResponse {
	resp := BatchResponse{
		ID:          job.ID,
		Status:      job.Status,
		DefaultMode: job.DefaultMode,
		Progress:    job.Progress,
		Errors:      job.Errors,
		RunIDs:      job.RunIDs,
		RetryCount:  job.RetryCount,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
	}
	if job.EstimatedRemaining > 0 {
		resp.EstimatedRemaining = job.EstimatedRemaining.Round(time.Second).String()
	}
	return resp
}

// Run DTOs

// RunResponse — ответ с run.
type RunResponse struct {
	ID           uuid.UUID         `json:"id"`
	PhotoRef     string            `json:"photo_ref"`
	BatchID      *uuid.UUID        `json:"batch_id,omitempty"`
	Mode         domain.Mode       `json:"mode"`
	Status       domain.RunStatus  `json:"status"`
	RetryAttempt int               `json:"retry_attempt"`
	QualityScore *int              `json:"quality_score,omitempty"`
	Decision     domain.QCDecision `json:"decision,omitempty"`
	NeedsReview  bool              `json:"needs_review"`
	Error        string            `json:"error,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(run domain.Run) RunResponse {
	return RunResponse{
		ID:           run.ID,
		PhotoRef:     run.PhotoRef,
		BatchID:      run.BatchID,
		Mode:         run.Mode,
		Status:       run.Status,
		RetryAttempt: run.RetryAttempt,
		QualityScore: run.QualityScore,
		Decision:     run.Decision,
		NeedsReview:  run.NeedsReview,
		Error:        run.Error,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		CreatedAt:    run.CreatedAt,
	}
}

// Step DTOs

// StepResponse — ответ с одним step.
type StepResponse struct {
	ID         uuid.UUID           `json:"id"`
	Number     int                 `json:"number"`
	Stage      domain.Stage        `json:"stage"`
	Status     domain.StepStatus   `json:"status"`
	Success    bool                `json:"success"`
	Attempt    int                 `json:"attempt"`
	Payload    *domain.StepPayload `json:"payload,omitempty"`
	Error      string              `json:"error,omitempty"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// StepFromDomain конвертирует domain.RunStep в StepResponse.
func StepFromDomain(step domain.RunStep) StepResponse {
	return StepResponse{
		ID:         step.ID,
		Number:     step.Number,
		Stage:      step.Stage,
		Status:     step.Status,
		Success:    step.Success,
		Attempt:    step.Attempt,
		Payload:    step.Payload,
		Error:      step.Error,
		StartedAt:  step.StartedAt,
		FinishedAt: step.FinishedAt,
	}
}
