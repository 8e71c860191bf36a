package pipeline

import (
	"context"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// Store — хранилище run'ов и step'ов, используемое пайплайном.
//
// Реализуется композитным repo.Store; в тестах подменяется fake'ом.
type Store interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	UpdateRun(ctx context.Context, run *domain.Run) error
	CreateStep(ctx context.Context, step *domain.RunStep) error
	UpdateStep(ctx context.Context, step *domain.RunStep) error
}
