package batch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// EventType — тип события жизненного цикла batch-задания.
type EventType string

const (
	// EventQueued — задание поставлено в очередь.
	EventQueued EventType = "batch.queued"

	// EventStarted — задание допущено к обработке.
	EventStarted EventType = "batch.started"

	// EventProgress — обработан очередной элемент задания.
	EventProgress EventType = "batch.progress"

	// EventFinished — задание достигло терминального статуса
	// (completed, failed, partial_success, cancelled, timeout).
	EventFinished EventType = "batch.finished"

	// EventRetried — завершённое задание перезапущено целиком.
	EventRetried EventType = "batch.retried"
)

// Event — снимок состояния задания в момент события.
type Event struct {
	Type     EventType            `json:"type"`
	JobID    uuid.UUID            `json:"job_id"`
	Status   domain.BatchStatus   `json:"status"`
	Progress domain.BatchProgress `json:"progress"`
	At       time.Time            `json:"at"`
}

// Notifier — наблюдатель событий batch-заданий.
//
// Вызывается синхронно из менеджера; реализация не должна блокировать
// надолго. Ошибки доставки — забота реализации, менеджер их не видит.
type Notifier interface {
	NotifyBatch(ctx context.Context, event Event)
}

// NotifierFunc — адаптер функции к интерфейсу Notifier.
type NotifierFunc func(ctx context.Context, event Event)

// NotifyBatch вызывает функцию.
func (f NotifierFunc) NotifyBatch(ctx context.Context, event Event) {
	f(ctx, event)
}
