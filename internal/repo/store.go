package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// Store — композитное хранилище: единая точка доступа к репозиториям
// для пайплайна и batch manager'а.
type Store struct {
	Runs    *RunRepo
	Steps   *StepRepo
	Batches *BatchRepo
}

// NewStore создаёт Store поверх одного пула соединений.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Runs:    NewRunRepo(pool),
		Steps:   NewStepRepo(pool),
		Batches: NewBatchRepo(pool),
	}
}

// CreateRun создаёт run.
func (s *Store) CreateRun(ctx context.Context, run *domain.Run) error {
	return s.Runs.Create(ctx, run)
}

// UpdateRun обновляет run.
func (s *Store) UpdateRun(ctx context.Context, run *domain.Run) error {
	return s.Runs.Update(ctx, run)
}

// CreateStep создаёт step.
func (s *Store) CreateStep(ctx context.Context, step *domain.RunStep) error {
	return s.Steps.Create(ctx, step)
}

// UpdateStep обновляет step.
func (s *Store) UpdateStep(ctx context.Context, step *domain.RunStep) error {
	return s.Steps.Update(ctx, step)
}

// CreateBatch создаёт batch job.
func (s *Store) CreateBatch(ctx context.Context, job *domain.BatchJob) error {
	return s.Batches.Create(ctx, job)
}

// UpdateBatch обновляет batch job.
func (s *Store) UpdateBatch(ctx context.Context, job *domain.BatchJob) error {
	return s.Batches.Update(ctx, job)
}
