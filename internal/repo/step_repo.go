package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// StepRepo — репозиторий для работы с run_steps.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

// Create создаёт новый step.
func (r *StepRepo) Create(ctx context.Context, step *domain.RunStep) error {
	payloadJSON, err := marshalPayload(step.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO run_steps (id, run_id, number, stage, status, success,
		                       attempt, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		step.ID,
		step.RunID,
		step.Number,
		step.Stage,
		step.Status,
		step.Success,
		step.Attempt,
		payloadJSON,
		step.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// Update обновляет step.
func (r *StepRepo) Update(ctx context.Context, step *domain.RunStep) error {
	payloadJSON, err := marshalPayload(step.Payload)
	if err != nil {
		return err
	}

	query := `
		UPDATE run_steps
		SET status = $2, success = $3, attempt = $4, payload = $5,
		    error = $6, started_at = $7, finished_at = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		step.ID,
		step.Status,
		step.Success,
		step.Attempt,
		payloadJSON,
		nullString(step.Error),
		step.StartedAt,
		step.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByRun возвращает steps одного run в порядке выполнения.
func (r *StepRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunStep, error) {
	query := `
		SELECT id, run_id, number, stage, status, success, attempt,
		       payload, error, started_at, finished_at, created_at
		FROM run_steps
		WHERE run_id = $1
		ORDER BY number ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.RunStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// scanStep сканирует одну строку в RunStep.
func scanStep(row pgx.Row) (*domain.RunStep, error) {
	var step domain.RunStep
	var stage, status string
	var payloadJSON []byte
	var stepError *string

	err := row.Scan(
		&step.ID,
		&step.RunID,
		&step.Number,
		&stage,
		&status,
		&step.Success,
		&step.Attempt,
		&payloadJSON,
		&stepError,
		&step.StartedAt,
		&step.FinishedAt,
		&step.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}

	step.Stage = domain.ParseStage(stage)
	step.Status = domain.ParseStepStatus(status)

	if payloadJSON != nil {
		var payload domain.StepPayload
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		step.Payload = &payload
	}
	if stepError != nil {
		step.Error = *stepError
	}

	return &step, nil
}

// marshalPayload сериализует payload, nil остаётся NULL.
func marshalPayload(payload *domain.StepPayload) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
