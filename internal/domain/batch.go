package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchItem — один элемент batch job: фотография и желаемый режим.
type BatchItem struct {
	// PhotoRef — ссылка на запись фотографии во внешнем хранилище.
	PhotoRef string `json:"photo_ref"`

	// Mode — режим обработки. Пустое значение означает
	// DefaultMode родительского batch job.
	Mode Mode `json:"mode,omitempty"`
}

// BatchProgress — счётчики прогресса batch job.
//
// Инвариант: Completed + Failed ≤ Total, равенство достигается
// в терминальном статусе.
type BatchProgress struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Percent   float64 `json:"percent"`
}

// Processed возвращает количество обработанных элементов.
func (p BatchProgress) Processed() int {
	return p.Completed + p.Failed
}

// BatchError — ошибка обработки одного элемента batch job.
type BatchError struct {
	// ItemIndex — индекс элемента в Items (0-based).
	ItemIndex int `json:"item_index"`

	// PhotoRef — ссылка на фотографию элемента.
	PhotoRef string `json:"photo_ref"`

	// RunID — run, в котором произошла ошибка (если run был создан).
	RunID *uuid.UUID `json:"run_id,omitempty"`

	// Message — текст ошибки.
	Message string `json:"message"`

	// Retryable — имеет ли смысл повтор.
	Retryable bool `json:"retryable"`
}

// BatchJob — пользовательская партия фотографий, обрабатываемая вместе.
//
// BatchJob создаётся при сабмите (статус queued), ставится в очередь
// batch manager'а и обрабатывается ровно одним воркером за раз.
// Элементы обрабатываются последовательно в порядке сабмита;
// ошибка элемента не прерывает обработку остальных.
type BatchJob struct {
	// ID — уникальный идентификатор batch job.
	ID uuid.UUID `json:"id"`

	// Items — упорядоченный список элементов.
	// Сохраняется неизменным на протяжении всей жизни job,
	// включая retry целиком.
	Items []BatchItem `json:"items"`

	// DefaultMode — режим для элементов без явного Mode.
	DefaultMode Mode `json:"default_mode"`

	// DelayBetweenItems — пауза между элементами
	// (rate limiting внешней capability).
	DelayBetweenItems time.Duration `json:"delay_between_items"`

	// Status — текущий статус job.
	Status BatchStatus `json:"status"`

	// Progress — счётчики прогресса.
	Progress BatchProgress `json:"progress"`

	// Errors — ошибки элементов текущего запуска.
	Errors []BatchError `json:"errors,omitempty"`

	// RunIDs — runs, созданные в текущем запуске, в порядке элементов.
	RunIDs []uuid.UUID `json:"run_ids,omitempty"`

	// RetryCount — количество перезапусков job целиком.
	RetryCount int `json:"retry_count"`

	// EstimatedRemaining — оценка оставшегося времени обработки.
	EstimatedRemaining time.Duration `json:"estimated_remaining"`

	// CreatedAt — время сабмита.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt — время начала обработки (статус running).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения терминального статуса.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewBatchJob создаёт batch job в статусе queued.
func NewBatchJob(items []BatchItem, defaultMode Mode, delay time.Duration) *BatchJob {
	return &BatchJob{
		ID:                uuid.New(),
		Items:             items,
		DefaultMode:       defaultMode,
		DelayBetweenItems: delay,
		Status:            BatchStatusQueued,
		Progress:          BatchProgress{Total: len(items)},
		CreatedAt:         time.Now(),
	}
}

// ItemMode возвращает эффективный режим элемента.
func (b *BatchJob) ItemMode(index int) Mode {
	if index < 0 || index >= len(b.Items) {
		return b.DefaultMode
	}
	if b.Items[index].Mode != "" {
		return b.Items[index].Mode
	}
	return b.DefaultMode
}

// RunningFor возвращает время с начала обработки.
// 0, если job ещё не стартовал.
func (b *BatchJob) RunningFor(now time.Time) time.Duration {
	if b.StartedAt == nil {
		return 0
	}
	return now.Sub(*b.StartedAt)
}

// IsFinished возвращает true, если job в терминальном статусе.
func (b *BatchJob) IsFinished() bool {
	return b.Status.IsTerminal()
}

// MarkRunning переводит job в running.
func (b *BatchJob) MarkRunning() {
	now := time.Now()
	b.Status = BatchStatusRunning
	b.StartedAt = &now
}

// MarkCancelled переводит job в cancelled.
func (b *BatchJob) MarkCancelled() {
	now := time.Now()
	b.Status = BatchStatusCancelled
	b.FinishedAt = &now
}

// MarkTimeout переводит job в timeout.
// Состояние незавершённых runs не откатывается — оно просто бросается.
func (b *BatchJob) MarkTimeout() {
	now := time.Now()
	b.Status = BatchStatusTimeout
	b.FinishedAt = &now
}

// RecordItem фиксирует результат обработки одного элемента
// и пересчитывает процент выполнения.
func (b *BatchJob) RecordItem(success bool) {
	if success {
		b.Progress.Completed++
	} else {
		b.Progress.Failed++
	}
	if b.Progress.Total > 0 {
		b.Progress.Percent = float64(b.Progress.Processed()) / float64(b.Progress.Total) * 100
	}
}

// Finalize выводит терминальный статус из счётчиков:
//
//	failed == 0            → completed
//	completed == 0         → failed
//	иначе                  → partial_success
func (b *BatchJob) Finalize() {
	now := time.Now()
	switch {
	case b.Progress.Failed == 0:
		b.Status = BatchStatusCompleted
	case b.Progress.Completed == 0:
		b.Status = BatchStatusFailed
	default:
		b.Status = BatchStatusPartialSuccess
	}
	b.EstimatedRemaining = 0
	b.FinishedAt = &now
}

// Requeue возвращает прерванный job в очередь: прогресс незаконченного
// прохода сбрасывается, элементы сохраняются. В отличие от
// ResetForRetry не расходует попытку — прерывание не ошибка задания.
func (b *BatchJob) Requeue() {
	b.Status = BatchStatusQueued
	b.Progress = BatchProgress{Total: len(b.Items)}
	b.Errors = nil
	b.RunIDs = nil
	b.EstimatedRemaining = 0
	b.StartedAt = nil
	b.FinishedAt = nil
}

// CanRetry проверяет, можно ли перезапустить job целиком.
func (b *BatchJob) CanRetry(maxRetries int) bool {
	return b.Status.IsRetryable() && b.RetryCount < maxRetries
}

// ResetForRetry подготавливает job к перезапуску целиком:
// сбрасывает счётчики, ошибки и runs прошлого запуска, сохраняет
// исходный список элементов, инкрементирует RetryCount.
func (b *BatchJob) ResetForRetry() {
	b.Status = BatchStatusQueued
	b.Progress = BatchProgress{Total: len(b.Items)}
	b.Errors = nil
	b.RunIDs = nil
	b.RetryCount++
	b.EstimatedRemaining = 0
	b.StartedAt = nil
	b.FinishedAt = nil
}
