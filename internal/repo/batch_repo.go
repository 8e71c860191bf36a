package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// BatchRepo — репозиторий для работы с batch_jobs.
//
// Элементы, ошибки и run_ids хранятся как jsonb: они читаются и пишутся
// только целиком, отдельные выборки по ним не нужны.
type BatchRepo struct {
	pool *pgxpool.Pool
}

// NewBatchRepo создаёт новый BatchRepo.
func NewBatchRepo(pool *pgxpool.Pool) *BatchRepo {
	return &BatchRepo{pool: pool}
}

// Create создаёт новый batch job.
func (r *BatchRepo) Create(ctx context.Context, job *domain.BatchJob) error {
	itemsJSON, err := json.Marshal(job.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	query := `
		INSERT INTO batch_jobs (id, items, default_mode, delay_ms, status,
		                        total, completed, failed, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		itemsJSON,
		job.DefaultMode,
		job.DelayBetweenItems.Milliseconds(),
		job.Status,
		job.Progress.Total,
		job.Progress.Completed,
		job.Progress.Failed,
		job.RetryCount,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch job: %w", err)
	}
	return nil
}

// Update обновляет batch job.
func (r *BatchRepo) Update(ctx context.Context, job *domain.BatchJob) error {
	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	runIDsJSON, err := json.Marshal(job.RunIDs)
	if err != nil {
		return fmt.Errorf("marshal run ids: %w", err)
	}

	query := `
		UPDATE batch_jobs
		SET status = $2, total = $3, completed = $4, failed = $5,
		    errors = $6, run_ids = $7, retry_count = $8,
		    started_at = $9, finished_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress.Total,
		job.Progress.Completed,
		job.Progress.Failed,
		errorsJSON,
		runIDsJSON,
		job.RetryCount,
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update batch job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает batch job по ID.
func (r *BatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	query := `
		SELECT id, items, default_mode, delay_ms, status, total, completed, failed,
		       errors, run_ids, retry_count, created_at, started_at, finished_at
		FROM batch_jobs
		WHERE id = $1
	`
	return scanBatchJob(r.pool.QueryRow(ctx, query, id))
}

// List возвращает batch jobs в порядке убывания времени сабмита.
func (r *BatchRepo) List(ctx context.Context, limit, offset int) ([]domain.BatchJob, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, items, default_mode, delay_ms, status, total, completed, failed,
		       errors, run_ids, retry_count, created_at, started_at, finished_at
		FROM batch_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list batch jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.BatchJob
	for rows.Next() {
		job, err := scanBatchJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// scanBatchJob сканирует одну строку в BatchJob.
func scanBatchJob(row pgx.Row) (*domain.BatchJob, error) {
	var job domain.BatchJob
	var itemsJSON, errorsJSON, runIDsJSON []byte
	var mode, status string
	var delayMs int64

	err := row.Scan(
		&job.ID,
		&itemsJSON,
		&mode,
		&delayMs,
		&status,
		&job.Progress.Total,
		&job.Progress.Completed,
		&job.Progress.Failed,
		&errorsJSON,
		&runIDsJSON,
		&job.RetryCount,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch job: %w", err)
	}

	job.DefaultMode = domain.ParseMode(mode)
	job.Status = domain.ParseBatchStatus(status)
	job.DelayBetweenItems = time.Duration(delayMs) * time.Millisecond

	if itemsJSON != nil {
		if err := json.Unmarshal(itemsJSON, &job.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if errorsJSON != nil {
		if err := json.Unmarshal(errorsJSON, &job.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	if runIDsJSON != nil {
		if err := json.Unmarshal(runIDsJSON, &job.RunIDs); err != nil {
			return nil, fmt.Errorf("unmarshal run ids: %w", err)
		}
	}

	if job.Progress.Total > 0 {
		job.Progress.Percent = float64(job.Progress.Processed()) / float64(job.Progress.Total) * 100
	}

	return &job, nil
}
