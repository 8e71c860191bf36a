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

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	hintsJSON, err := json.Marshal(run.RetryHints)
	if err != nil {
		return fmt.Errorf("marshal retry hints: %w", err)
	}

	query := `
		INSERT INTO runs (id, photo_ref, batch_id, mode, status, retry_attempt,
		                  retry_hints, needs_review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.PhotoRef,
		run.BatchID,
		run.Mode,
		run.Status,
		run.RetryAttempt,
		hintsJSON,
		run.NeedsReview,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID. Steps не загружаются — за ними StepRepo.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, photo_ref, batch_id, mode, status, retry_attempt, retry_hints,
		       quality_score, decision, needs_review, error,
		       started_at, finished_at, created_at
		FROM runs
		WHERE id = $1
	`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := `
		SELECT id, photo_ref, batch_id, mode, status, retry_attempt, retry_hints,
		       quality_score, decision, needs_review, error,
		       started_at, finished_at, created_at
		FROM runs
		WHERE ($1::uuid IS NULL OR batch_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.BatchID),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Update обновляет изменяемые поля run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	hintsJSON, err := json.Marshal(run.RetryHints)
	if err != nil {
		return fmt.Errorf("marshal retry hints: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $2, retry_attempt = $3, retry_hints = $4, quality_score = $5,
		    decision = $6, needs_review = $7, error = $8,
		    started_at = $9, finished_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.RetryAttempt,
		hintsJSON,
		run.QualityScore,
		nullString(string(run.Decision)),
		run.NeedsReview,
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	BatchID *uuid.UUID
	Status  domain.RunStatus
	Limit   int
	Offset  int
}

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var hintsJSON []byte
	var mode, status string
	var decision, runError *string

	err := row.Scan(
		&run.ID,
		&run.PhotoRef,
		&run.BatchID,
		&mode,
		&status,
		&run.RetryAttempt,
		&hintsJSON,
		&run.QualityScore,
		&decision,
		&run.NeedsReview,
		&runError,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Mode = domain.ParseMode(mode)
	run.Status = domain.ParseRunStatus(status)

	if hintsJSON != nil {
		if err := json.Unmarshal(hintsJSON, &run.RetryHints); err != nil {
			return nil, fmt.Errorf("unmarshal retry hints: %w", err)
		}
	}
	if decision != nil && *decision != "" {
		run.Decision = domain.ParseQCDecision(*decision)
	}
	if runError != nil {
		run.Error = *runError
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для nil-указателя.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	return id
}
