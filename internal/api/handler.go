package api

import (
	"log/slog"

	"github.com/fotoarhiv/restavrator/internal/batch"
	"github.com/fotoarhiv/restavrator/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	manager  *batch.Manager
	runRepo  *repo.RunRepo
	stepRepo *repo.StepRepo
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Manager  *batch.Manager
	RunRepo  *repo.RunRepo
	StepRepo *repo.StepRepo
	Logger   *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		manager:  cfg.Manager,
		runRepo:  cfg.RunRepo,
		stepRepo: cfg.StepRepo,
		logger:   cfg.Logger,
	}
}
