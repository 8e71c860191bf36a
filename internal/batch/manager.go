package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/fotoarhiv/restavrator/internal/domain"
	"github.com/fotoarhiv/restavrator/internal/telemetry"
)

// cronParser — парсер cron-выражений расписания чистки.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Store — персистентность batch-заданий и создаваемых ими run'ов.
type Store interface {
	CreateBatch(ctx context.Context, job *domain.BatchJob) error
	UpdateBatch(ctx context.Context, job *domain.BatchJob) error
	CreateRun(ctx context.Context, run *domain.Run) error
}

// Runner — обработчик одного run. Реализуется pipeline.Runner.
type Runner interface {
	Process(ctx context.Context, run *domain.Run) error
}

// Config — конфигурация Manager.
type Config struct {
	// MaxConcurrentJobs — лимит одновременно обрабатываемых заданий
	// (default: 2).
	MaxConcurrentJobs int

	// BatchTimeout — максимальное время обработки одного задания;
	// превысившие снимаются sweep'ом со статусом timeout
	// (default: 30m).
	BatchTimeout time.Duration

	// TickInterval — период тика менеджера (default: 5s).
	TickInterval time.Duration

	// CleanupSchedule — cron-выражение расписания чистки завершённых
	// заданий из памяти (default: "0 * * * *" — раз в час).
	CleanupSchedule string

	// RetainFinished — сколько держать завершённое задание до чистки
	// (default: 24h).
	RetainFinished time.Duration

	// MaxJobRetries — лимит перезапусков задания целиком (default: 3).
	MaxJobRetries int

	// DefaultItemDelay — пауза между элементами, если при сабмите
	// не задана явная (default: 0 — без паузы).
	DefaultItemDelay time.Duration
}

// Manager — менеджер пакетной обработки.
//
// Держит очередь заданий, допускает их к обработке до лимита
// параллелизма и обрабатывает элементы каждого задания последовательно
// в отдельной горутине.
type Manager struct {
	store  Store
	runner Runner
	logger *slog.Logger
	cfg    Config

	cleanupSched cron.Schedule

	mu        sync.Mutex
	jobs      map[uuid.UUID]*domain.BatchJob
	queue     []uuid.UUID
	active    map[uuid.UUID]context.CancelFunc
	notifiers []Notifier

	nextCleanup time.Time

	// Счётчики за время жизни процесса.
	totalSubmitted int
	totalRetried   int

	wg sync.WaitGroup
}

// New создаёт менеджер.
//
// Невалидное cron-выражение чистки отключает чистку с warning'ом —
// менеджер работоспособен и без неё.
func New(store Store, runner Runner, cfg Config, logger *slog.Logger) *Manager {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 2
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 30 * time.Minute
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = "0 * * * *"
	}
	if cfg.RetainFinished <= 0 {
		cfg.RetainFinished = 24 * time.Hour
	}
	if cfg.MaxJobRetries <= 0 {
		cfg.MaxJobRetries = 3
	}

	m := &Manager{
		store:  store,
		runner: runner,
		logger: logger,
		cfg:    cfg,
		jobs:   make(map[uuid.UUID]*domain.BatchJob),
		active: make(map[uuid.UUID]context.CancelFunc),
	}

	sched, err := cronParser.Parse(cfg.CleanupSchedule)
	if err != nil {
		logger.Warn("invalid cleanup schedule, cleanup disabled",
			"schedule", cfg.CleanupSchedule,
			"error", err,
		)
	} else {
		m.cleanupSched = sched
		m.nextCleanup = sched.Next(time.Now())
	}

	return m
}

// Subscribe добавляет наблюдателя событий заданий.
func (m *Manager) Subscribe(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Start запускает цикл тиков менеджера. Возвращается сразу; цикл
// останавливается при отмене ctx.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		tk := time.NewTicker(m.cfg.TickInterval)
		defer tk.Stop()

		for {
			select {
			case t := <-tk.C:
				m.Tick(ctx, t)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop дожидается завершения цикла тиков и всех горутин заданий.
// Вызывается после отмены контекста, переданного в Start.
func (m *Manager) Stop() {
	m.wg.Wait()
}

// Tick выполняет один тик менеджера.
//
// 1. Sweep по таймаутам: активные задания, обрабатываемые дольше
// BatchTimeout, переводятся в timeout, их горутины отменяются,
// незавершённый элемент бросается.
// 2. Чистка: по cron-расписанию завершённые задания старше
// RetainFinished удаляются из памяти.
// 3. Допуск: задания из головы очереди стартуют, пока активных меньше
// MaxConcurrentJobs.
func (m *Manager) Tick(ctx context.Context, now time.Time) {
	var events []Event
	var saves []*domain.BatchJob

	m.mu.Lock()

	// 1. Sweep по таймаутам
	for id, cancel := range m.active {
		job := m.jobs[id]
		if job == nil || job.RunningFor(now) <= m.cfg.BatchTimeout {
			continue
		}

		job.MarkTimeout()
		cancel()
		delete(m.active, id)
		telemetry.BatchesFinished.WithLabelValues(string(job.Status)).Inc()

		m.logger.Warn("batch job timed out",
			"batch_id", id,
			"running_for", job.RunningFor(now),
			"processed", job.Progress.Processed(),
		)
		saves = append(saves, copyJob(job))
		events = append(events, snapshotEvent(EventFinished, job))
	}

	// 2. Чистка завершённых
	if m.cleanupSched != nil && !now.Before(m.nextCleanup) {
		m.cleanupLocked(now)
		m.nextCleanup = m.cleanupSched.Next(now)
	}

	// 3. Допуск из очереди
	for len(m.active) < m.cfg.MaxConcurrentJobs && len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]

		job := m.jobs[id]
		if job == nil || job.Status != domain.BatchStatusQueued {
			// Отменён или вычищен, пока стоял в очереди
			continue
		}

		job.MarkRunning()

		jobCtx, cancel := context.WithCancel(ctx)
		m.active[id] = cancel

		m.wg.Add(1)
		go m.processJob(jobCtx, job.ID)

		m.logger.Info("batch job started",
			"batch_id", id,
			"items", job.Progress.Total,
		)
		saves = append(saves, copyJob(job))
		events = append(events, snapshotEvent(EventStarted, job))
	}

	notifiers := m.notifiers
	m.mu.Unlock()

	for _, s := range saves {
		m.saveJob(ctx, s)
	}
	for _, e := range events {
		dispatch(ctx, notifiers, e)
	}
}

// Submit ставит новое задание в очередь.
func (m *Manager) Submit(ctx context.Context, items []domain.BatchItem, defaultMode domain.Mode, delay time.Duration) (*domain.BatchJob, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if delay <= 0 {
		delay = m.cfg.DefaultItemDelay
	}

	job := domain.NewBatchJob(items, defaultMode, delay)

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.queue = append(m.queue, job.ID)
	m.totalSubmitted++
	notifiers := m.notifiers
	snapshot := copyJob(job)
	m.mu.Unlock()

	if err := m.store.CreateBatch(ctx, snapshot); err != nil {
		m.logger.Warn("failed to persist batch job", "batch_id", job.ID, "error", err)
	}

	m.logger.Info("batch job submitted",
		"batch_id", job.ID,
		"items", len(items),
		"mode", defaultMode,
	)
	dispatch(ctx, notifiers, snapshotEvent(EventQueued, snapshot))

	return snapshot, nil
}

// Get возвращает снимок задания.
func (m *Manager) Get(id uuid.UUID) (*domain.BatchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return copyJob(job), nil
}

// List возвращает снимки всех заданий в памяти.
func (m *Manager) List() []*domain.BatchJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.BatchJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, copyJob(job))
	}
	return out
}

// Cancel отменяет задание.
//
// Задание в очереди отменяется немедленно. Обрабатываемое задание
// помечается cancelled, его горутина замечает отмену на границе
// текущего элемента; незавершённый элемент бросается.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()

	job, exists := m.jobs[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.IsFinished() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, id, job.Status)
	}

	job.MarkCancelled()

	if cancel, running := m.active[id]; running {
		cancel()
		delete(m.active, id)
	} else {
		m.dequeueLocked(id)
	}
	telemetry.BatchesFinished.WithLabelValues(string(job.Status)).Inc()

	notifiers := m.notifiers
	snapshot := copyJob(job)
	m.mu.Unlock()

	m.saveJob(ctx, snapshot)
	m.logger.Info("batch job cancelled",
		"batch_id", id,
		"processed", snapshot.Progress.Processed(),
	)
	dispatch(ctx, notifiers, snapshotEvent(EventFinished, snapshot))

	return nil
}

// Retry перезапускает завершённое задание целиком: прогресс, ошибки и
// привязанные run'ы сбрасываются, элементы сохраняются.
func (m *Manager) Retry(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()

	job, exists := m.jobs[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !job.CanRetry(m.cfg.MaxJobRetries) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s (status %s, retries %d)", ErrJobNotRetryable, id, job.Status, job.RetryCount)
	}

	job.ResetForRetry()
	m.queue = append(m.queue, id)
	m.totalRetried++

	notifiers := m.notifiers
	snapshot := copyJob(job)
	m.mu.Unlock()

	m.saveJob(ctx, snapshot)
	m.logger.Info("batch job requeued",
		"batch_id", id,
		"retry_count", snapshot.RetryCount,
	)
	dispatch(ctx, notifiers, snapshotEvent(EventRetried, snapshot))

	return nil
}

// Statistics — агрегированная сводка по менеджеру.
type Statistics struct {
	Queued         int                        `json:"queued"`
	Active         int                        `json:"active"`
	ByStatus       map[domain.BatchStatus]int `json:"by_status"`
	ItemsCompleted int                        `json:"items_completed"`
	ItemsFailed    int                        `json:"items_failed"`
	TotalSubmitted int                        `json:"total_submitted"`
	TotalRetried   int                        `json:"total_retried"`
}

// Stats возвращает сводку по текущему состоянию менеджера.
func (m *Manager) Stats() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{
		Queued:         len(m.queue),
		Active:         len(m.active),
		ByStatus:       make(map[domain.BatchStatus]int),
		TotalSubmitted: m.totalSubmitted,
		TotalRetried:   m.totalRetried,
	}
	for _, job := range m.jobs {
		stats.ByStatus[job.Status]++
		stats.ItemsCompleted += job.Progress.Completed
		stats.ItemsFailed += job.Progress.Failed
	}
	return stats
}

// processJob обрабатывает элементы задания последовательно.
//
// Ошибка элемента (включая панику) фиксируется и не прерывает
// обработку остальных. Отмена и таймаут наблюдаются на границах
// элементов.
func (m *Manager) processJob(ctx context.Context, id uuid.UUID) {
	defer m.wg.Done()

	telemetry.ActiveBatches.Inc()
	defer telemetry.ActiveBatches.Dec()

	logger := telemetry.WithBatchID(m.logger, id.String())

	m.mu.Lock()
	job := m.jobs[id]
	if job == nil {
		m.mu.Unlock()
		return
	}
	items := job.Items
	delay := job.DelayBetweenItems
	m.mu.Unlock()

	for i := range items {
		if ctx.Err() != nil {
			break
		}

		m.processItem(ctx, logger, id, i, items[i])

		// Пауза между элементами (rate limiting capability)
		if delay > 0 && i < len(items)-1 && ctx.Err() == nil {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}
	}

	m.finishJob(ctx, id, logger)
}

// processItem обрабатывает один элемент: создаёт run и проводит его
// через пайплайн. Паника внутри пайплайна фиксируется как ошибка
// элемента.
func (m *Manager) processItem(ctx context.Context, logger *slog.Logger, id uuid.UUID, index int, item domain.BatchItem) {
	m.mu.Lock()
	job := m.jobs[id]
	if job == nil {
		m.mu.Unlock()
		return
	}
	mode := job.ItemMode(index)
	jobID := job.ID
	m.mu.Unlock()

	started := time.Now()

	run := domain.NewRun(item.PhotoRef, mode, &jobID)
	if err := m.store.CreateRun(ctx, run); err != nil {
		logger.Warn("failed to persist run", "run_id", run.ID, "error", err)
	}

	var procErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				procErr = fmt.Errorf("panic processing item %d: %v", index, r)
				logger.Error("panic in item processing", "item_index", index, "panic", r)
			}
		}()
		procErr = m.runner.Process(ctx, run)
	}()

	if ctx.Err() != nil && run.Status != domain.RunStatusCompleted {
		// Отмена или таймаут в середине элемента — элемент бросается,
		// счётчики не трогаем
		return
	}

	success := procErr == nil && run.Status == domain.RunStatusCompleted

	var events []Event
	m.mu.Lock()
	job = m.jobs[id]
	if job == nil {
		m.mu.Unlock()
		return
	}

	job.RunIDs = append(job.RunIDs, run.ID)
	job.RecordItem(success)
	if !success {
		msg := run.Error
		if procErr != nil {
			msg = procErr.Error()
		}
		job.Errors = append(job.Errors, domain.BatchError{
			ItemIndex: index,
			PhotoRef:  item.PhotoRef,
			RunID:     &run.ID,
			Message:   msg,
			Retryable: procErr == nil,
		})
	}
	m.updateETALocked(job, time.Since(started))

	notifiers := m.notifiers
	snapshot := copyJob(job)
	events = append(events, snapshotEvent(EventProgress, job))
	m.mu.Unlock()

	m.saveJob(ctx, snapshot)
	logger.Debug("batch item processed",
		"item_index", index,
		"run_id", run.ID,
		"success", success,
	)
	for _, e := range events {
		dispatch(ctx, notifiers, e)
	}
}

// finishJob выводит терминальный статус задания, если оно ещё не
// завершено sweep'ом или отменой.
//
// Прерванное остановкой процесса задание (контекст отменён до
// обработки всех элементов) не финализируется по неполным счётчикам —
// оно возвращается в очередь целиком.
func (m *Manager) finishJob(ctx context.Context, id uuid.UUID, logger *slog.Logger) {
	interrupted := ctx.Err() != nil
	saveCtx := context.WithoutCancel(ctx)

	m.mu.Lock()

	job := m.jobs[id]
	if job == nil {
		m.mu.Unlock()
		return
	}

	if cancel, running := m.active[id]; running {
		cancel()
		delete(m.active, id)
	}

	var event EventType
	if !job.IsFinished() {
		if interrupted && job.Progress.Processed() < job.Progress.Total {
			job.Requeue()
			m.queue = append(m.queue, id)
			event = EventQueued
		} else {
			job.Finalize()
			telemetry.BatchesFinished.WithLabelValues(string(job.Status)).Inc()
			event = EventFinished
		}
	}

	notifiers := m.notifiers
	snapshot := copyJob(job)
	m.mu.Unlock()

	if event != "" {
		m.saveJob(saveCtx, snapshot)
	}

	switch event {
	case EventFinished:
		logger.Info("batch job finished",
			"status", snapshot.Status,
			"completed", snapshot.Progress.Completed,
			"failed", snapshot.Progress.Failed,
		)
	case EventQueued:
		logger.Info("batch job interrupted, requeued",
			"status", snapshot.Status,
		)
	default:
		return
	}
	dispatch(saveCtx, notifiers, snapshotEvent(event, snapshot))
}

// updateETALocked пересчитывает оценку оставшегося времени по среднему
// темпу текущего запуска. Вызывается под mutex.
func (m *Manager) updateETALocked(job *domain.BatchJob, _ time.Duration) {
	processed := job.Progress.Processed()
	if processed == 0 || job.StartedAt == nil {
		return
	}
	elapsed := time.Since(*job.StartedAt)
	avg := elapsed / time.Duration(processed)
	remaining := job.Progress.Total - processed
	job.EstimatedRemaining = avg * time.Duration(remaining)
}

// cleanupLocked удаляет из памяти завершённые задания старше
// RetainFinished. Вызывается под mutex.
func (m *Manager) cleanupLocked(now time.Time) {
	removed := 0
	for id, job := range m.jobs {
		if !job.IsFinished() || job.FinishedAt == nil {
			continue
		}
		if now.Sub(*job.FinishedAt) >= m.cfg.RetainFinished {
			delete(m.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("cleaned up finished batch jobs", "removed", removed)
	}
}

// dequeueLocked убирает задание из очереди. Вызывается под mutex.
func (m *Manager) dequeueLocked(id uuid.UUID) {
	for i, queued := range m.queue {
		if queued == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// saveJob пишет задание в хранилище. Ошибка записи не прерывает
// обработку. Вызывается после освобождения mutex со снимком задания,
// чтобы медленная база не блокировала тики и внешние операции.
func (m *Manager) saveJob(ctx context.Context, job *domain.BatchJob) {
	if err := m.store.UpdateBatch(ctx, job); err != nil {
		m.logger.Warn("failed to persist batch job",
			"batch_id", job.ID,
			"status", job.Status,
			"error", err,
		)
	}
}

// copyJob делает снимок задания: слайсы копируются, чтобы читатель
// не гонялся с горутиной обработки.
func copyJob(job *domain.BatchJob) *domain.BatchJob {
	out := *job
	out.Items = append([]domain.BatchItem(nil), job.Items...)
	out.Errors = append([]domain.BatchError(nil), job.Errors...)
	out.RunIDs = append([]uuid.UUID(nil), job.RunIDs...)
	return &out
}

// snapshotEvent строит событие по текущему состоянию задания.
func snapshotEvent(t EventType, job *domain.BatchJob) Event {
	return Event{
		Type:     t,
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		At:       time.Now(),
	}
}

// dispatch доставляет событие всем наблюдателям.
func dispatch(ctx context.Context, notifiers []Notifier, event Event) {
	for _, n := range notifiers {
		n.NotifyBatch(ctx, event)
	}
}
