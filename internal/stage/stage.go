package stage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fotoarhiv/restavrator/internal/capability"
	"github.com/fotoarhiv/restavrator/internal/domain"
)

// Ошибки этапов.
var (
	// ErrStageNotFound — этап не найден в реестре.
	ErrStageNotFound = errors.New("stage not found")

	// ErrMissingInput — нет результата предыдущего этапа,
	// необходимого для построения запроса.
	ErrMissingInput = errors.New("missing input from previous stage")

	// ErrEmptyResult — модель вернула пустой или неполный результат.
	ErrEmptyResult = errors.New("empty stage result")
)

// Handler — обработчик одного этапа пайплайна.
//
// Handler знает, как собрать запрос к capability из текущего состояния
// run (включая результаты предыдущих этапов и подсказки retry) и как
// разобрать ответ модели в типизированный payload этапа.
type Handler interface {
	// Stage возвращает этап, который обрабатывает handler.
	Stage() domain.Stage

	// Build собирает запрос к capability по текущему состоянию run.
	Build(run *domain.Run) (capability.Request, error)

	// Decode разбирает ответ модели в payload этапа.
	// Значения enum-полей коэрцируются через domain.Parse*.
	Decode(res *capability.Result) (*domain.StepPayload, error)
}

// Registry — реестр обработчиков этапов. Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.Stage]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.Stage]Handler)}
}

// DefaultRegistry создаёт реестр со всеми четырьмя этапами пайплайна.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewAnalyzeHandler())
	r.Register(NewPlanHandler())
	r.Register(NewEditHandler())
	r.Register(NewValidateHandler())
	return r
}

// Register регистрирует handler. Существующий handler этапа перезаписывается.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Stage()] = h
}

// Get возвращает handler этапа.
func (r *Registry) Get(stage domain.Stage) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[stage]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, stage)
	}
	return h, nil
}

// Has проверяет, зарегистрирован ли handler этапа.
func (r *Registry) Has(stage domain.Stage) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[stage]
	return exists
}

// clampScore ограничивает оценку диапазоном 0–100.
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
