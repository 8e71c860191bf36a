package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fotoarhiv/restavrator/internal/domain"
)

// fakeRunner completes or fails runs by photo ref.
type fakeRunner struct {
	mu        sync.Mutex
	failRefs  map[string]bool
	panicRefs map[string]bool
	perItem   time.Duration
	processed []string
}

func (r *fakeRunner) Process(ctx context.Context, run *domain.Run) error {
	r.mu.Lock()
	perItem := r.perItem
	r.mu.Unlock()

	if perItem > 0 {
		select {
		case <-time.After(perItem):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.processed = append(r.processed, run.PhotoRef)
	shouldPanic := r.panicRefs[run.PhotoRef]
	shouldFail := r.failRefs[run.PhotoRef]
	r.mu.Unlock()

	if shouldPanic {
		panic("runner exploded")
	}
	if shouldFail {
		run.MarkFailed("edit produced no image")
		return nil
	}
	run.MarkCompleted(false)
	return nil
}

func (r *fakeRunner) processedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

// fakeBatchStore is a no-op store recording persisted jobs.
type fakeBatchStore struct {
	mu   sync.Mutex
	runs int
}

func (s *fakeBatchStore) CreateBatch(context.Context, *domain.BatchJob) error { return nil }
func (s *fakeBatchStore) UpdateBatch(context.Context, *domain.BatchJob) error { return nil }

func (s *fakeBatchStore) CreateRun(context.Context, *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	return nil
}

func items(refs ...string) []domain.BatchItem {
	out := make([]domain.BatchItem, len(refs))
	for i, ref := range refs {
		out[i] = domain.BatchItem{PhotoRef: ref}
	}
	return out
}

func testManager(runner Runner, cfg Config) *Manager {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Hour // ticks driven manually in tests
	}
	return New(&fakeBatchStore{}, runner, cfg, slog.Default())
}

// waitStatus polls until the job reaches the wanted status.
func waitStatus(t *testing.T, m *Manager, id uuid.UUID, want domain.BatchStatus) *domain.BatchJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(time.Millisecond)
	}
	job, _ := m.Get(id)
	t.Fatalf("job never reached %s, stuck at %s", want, job.Status)
	return nil
}

// A job where one item fails ends partial_success with per-item errors
// recorded; the failure does not stop the remaining items.
func TestManagerPartialSuccess(t *testing.T) {
	runner := &fakeRunner{failRefs: map[string]bool{"photos/2.jpg": true}}
	m := testManager(runner, Config{})

	job, err := m.Submit(context.Background(), items("photos/1.jpg", "photos/2.jpg", "photos/3.jpg"), domain.ModeRestore, 0)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	m.Tick(context.Background(), time.Now())
	got := waitStatus(t, m, job.ID, domain.BatchStatusPartialSuccess)

	if got.Progress.Completed != 2 || got.Progress.Failed != 1 {
		t.Errorf("expected 2 completed / 1 failed, got %d / %d", got.Progress.Completed, got.Progress.Failed)
	}
	if got.Progress.Percent != 100 {
		t.Errorf("expected 100%%, got %f", got.Progress.Percent)
	}
	if len(got.Errors) != 1 || got.Errors[0].ItemIndex != 1 || got.Errors[0].PhotoRef != "photos/2.jpg" {
		t.Errorf("expected error for item 1, got %+v", got.Errors)
	}
	if len(got.RunIDs) != 3 {
		t.Errorf("expected 3 runs, got %d", len(got.RunIDs))
	}
	if runner.processedCount() != 3 {
		t.Errorf("expected all 3 items processed, got %d", runner.processedCount())
	}
}

func TestManagerAllFailedAndAllCompleted(t *testing.T) {
	tests := []struct {
		name     string
		failRefs map[string]bool
		want     domain.BatchStatus
	}{
		{"all completed", nil, domain.BatchStatusCompleted},
		{"all failed", map[string]bool{"a": true, "b": true}, domain.BatchStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testManager(&fakeRunner{failRefs: tt.failRefs}, Config{})

			job, err := m.Submit(context.Background(), items("a", "b"), domain.ModeRestore, 0)
			if err != nil {
				t.Fatalf("Submit failed: %v", err)
			}
			m.Tick(context.Background(), time.Now())
			waitStatus(t, m, job.ID, tt.want)
		})
	}
}

// Admission respects the concurrency cap: with a cap of 1, the second
// job stays queued until the first finishes.
func TestManagerConcurrencyCap(t *testing.T) {
	runner := &fakeRunner{perItem: 50 * time.Millisecond}
	m := testManager(runner, Config{MaxConcurrentJobs: 1})

	first, _ := m.Submit(context.Background(), items("a"), domain.ModeRestore, 0)
	second, _ := m.Submit(context.Background(), items("b"), domain.ModeRestore, 0)

	m.Tick(context.Background(), time.Now())

	got, _ := m.Get(second.ID)
	if got.Status != domain.BatchStatusQueued {
		t.Errorf("expected second job queued, got %s", got.Status)
	}

	waitStatus(t, m, first.ID, domain.BatchStatusCompleted)
	m.Tick(context.Background(), time.Now())
	waitStatus(t, m, second.ID, domain.BatchStatusCompleted)
}

// The timeout sweep marks long-running jobs timeout, frees their slot
// and abandons the in-flight item.
func TestManagerTimeoutSweep(t *testing.T) {
	runner := &fakeRunner{perItem: time.Hour}
	m := testManager(runner, Config{MaxConcurrentJobs: 1, BatchTimeout: time.Minute})

	stuck, _ := m.Submit(context.Background(), items("slow"), domain.ModeRestore, 0)
	m.Tick(context.Background(), time.Now())

	if _, err := m.Get(stuck.ID); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Sweep well past the batch timeout
	m.Tick(context.Background(), time.Now().Add(time.Hour))
	got := waitStatus(t, m, stuck.ID, domain.BatchStatusTimeout)

	if got.Progress.Processed() != 0 {
		t.Errorf("expected abandoned item not counted, got %d processed", got.Progress.Processed())
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at set")
	}

	// The slot is free again
	fast, _ := m.Submit(context.Background(), items("x"), domain.ModeRestore, 0)
	runner.mu.Lock()
	runner.perItem = 0
	runner.mu.Unlock()
	m.Tick(context.Background(), time.Now())
	waitStatus(t, m, fast.ID, domain.BatchStatusCompleted)
}

// blockingStore stalls every UpdateBatch until the gate is closed.
type blockingStore struct {
	entered chan struct{}
	gate    chan struct{}
}

func (s *blockingStore) CreateBatch(context.Context, *domain.BatchJob) error { return nil }
func (s *blockingStore) CreateRun(context.Context, *domain.Run) error        { return nil }

func (s *blockingStore) UpdateBatch(context.Context, *domain.BatchJob) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.gate
	return nil
}

// A slow database must not stall snapshot reads: persistence writes
// happen outside the manager mutex.
func TestManagerSlowStoreDoesNotBlockReads(t *testing.T) {
	store := &blockingStore{entered: make(chan struct{}, 1), gate: make(chan struct{})}
	m := New(store, &fakeRunner{}, Config{TickInterval: time.Hour}, slog.Default())

	job, err := m.Submit(context.Background(), items("a"), domain.ModeRestore, 0)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	go m.Tick(context.Background(), time.Now())

	// Wait until a store write is in flight and stuck
	select {
	case <-store.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("store write never started")
	}

	probed := make(chan struct{})
	go func() {
		if _, err := m.Get(job.ID); err != nil {
			t.Errorf("Get failed: %v", err)
		}
		m.Stats()
		close(probed)
	}()

	select {
	case <-probed:
	case <-time.After(time.Second):
		t.Fatal("reads blocked behind a slow store write")
	}

	close(store.gate)
	waitStatus(t, m, job.ID, domain.BatchStatusCompleted)
	m.Stop()
}

// A process shutdown in the middle of a job must not finalize it from
// incomplete counters: the job goes back to the queue instead.
func TestManagerShutdownRequeuesInterruptedJob(t *testing.T) {
	runner := &fakeRunner{perItem: time.Hour}
	m := testManager(runner, Config{MaxConcurrentJobs: 1})

	ctx, cancel := context.WithCancel(context.Background())
	job, _ := m.Submit(ctx, items("a", "b"), domain.ModeRestore, 0)
	m.Tick(ctx, time.Now())
	waitStatus(t, m, job.ID, domain.BatchStatusRunning)

	// Shutdown while item 1 is still in flight
	cancel()
	m.Stop()

	got, err := m.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.BatchStatusQueued {
		t.Fatalf("expected interrupted job requeued, got %s", got.Status)
	}
	if got.Progress.Processed() != 0 {
		t.Errorf("expected no items counted, got %d", got.Progress.Processed())
	}
	if got.RetryCount != 0 {
		t.Errorf("expected interruption to not consume a retry, got %d", got.RetryCount)
	}
	if len(got.RunIDs) != 0 || len(got.Errors) != 0 {
		t.Error("expected run ids and errors cleared")
	}

	stats := m.Stats()
	if stats.Queued != 1 {
		t.Errorf("expected 1 queued job, got %d", stats.Queued)
	}
	if stats.Active != 0 {
		t.Errorf("expected no active jobs, got %d", stats.Active)
	}
}

func TestManagerCancelQueuedJob(t *testing.T) {
	m := testManager(&fakeRunner{}, Config{})

	job, _ := m.Submit(context.Background(), items("a"), domain.ModeRestore, 0)
	if err := m.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	got, _ := m.Get(job.ID)
	if got.Status != domain.BatchStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	// A cancelled job must not be admitted
	m.Tick(context.Background(), time.Now())
	stats := m.Stats()
	if stats.Active != 0 {
		t.Errorf("expected no active jobs, got %d", stats.Active)
	}
}

// Cancelling a running job is observed at an item boundary: counters of
// processed items survive, the rest of the items are skipped.
func TestManagerCancelRunningJob(t *testing.T) {
	runner := &fakeRunner{perItem: 10 * time.Millisecond}
	m := testManager(runner, Config{})

	job, _ := m.Submit(context.Background(), items("a", "b", "c", "d", "e"), domain.ModeRestore, 0)
	m.Tick(context.Background(), time.Now())

	// Wait for at least one item, then cancel
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := m.Get(job.ID)
		if got.Progress.Processed() >= 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err := m.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	got := waitStatus(t, m, job.ID, domain.BatchStatusCancelled)
	if got.Progress.Processed() >= got.Progress.Total {
		t.Errorf("expected cancellation before all items, got %d of %d", got.Progress.Processed(), got.Progress.Total)
	}

	if err := m.Cancel(context.Background(), job.ID); !errors.Is(err, ErrJobFinished) {
		t.Errorf("expected ErrJobFinished for second cancel, got %v", err)
	}
}

// Whole-job retry resets progress, errors and runs but keeps the items.
func TestManagerRetryJob(t *testing.T) {
	runner := &fakeRunner{failRefs: map[string]bool{"a": true, "b": true}}
	m := testManager(runner, Config{})

	job, _ := m.Submit(context.Background(), items("a", "b"), domain.ModeRestore, 0)
	m.Tick(context.Background(), time.Now())
	waitStatus(t, m, job.ID, domain.BatchStatusFailed)

	if err := m.Retry(context.Background(), job.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	got, _ := m.Get(job.ID)
	if got.Status != domain.BatchStatusQueued {
		t.Errorf("expected queued after retry, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", got.RetryCount)
	}
	if got.Progress.Processed() != 0 || len(got.Errors) != 0 || len(got.RunIDs) != 0 {
		t.Errorf("expected progress reset, got %+v", got)
	}
	if len(got.Items) != 2 {
		t.Errorf("expected items preserved, got %d", len(got.Items))
	}

	// Second pass succeeds
	runner.mu.Lock()
	runner.failRefs = nil
	runner.mu.Unlock()
	m.Tick(context.Background(), time.Now())
	waitStatus(t, m, job.ID, domain.BatchStatusCompleted)
}

func TestManagerRetryRejectsCompletedJob(t *testing.T) {
	m := testManager(&fakeRunner{}, Config{})

	job, _ := m.Submit(context.Background(), items("a"), domain.ModeRestore, 0)
	m.Tick(context.Background(), time.Now())
	waitStatus(t, m, job.ID, domain.BatchStatusCompleted)

	if err := m.Retry(context.Background(), job.ID); !errors.Is(err, ErrJobNotRetryable) {
		t.Errorf("expected ErrJobNotRetryable, got %v", err)
	}
}

// A panic while processing one item is recorded as that item's failure
// and does not kill the job goroutine.
func TestManagerItemPanicContained(t *testing.T) {
	runner := &fakeRunner{panicRefs: map[string]bool{"b": true}}
	m := testManager(runner, Config{})

	job, _ := m.Submit(context.Background(), items("a", "b", "c"), domain.ModeRestore, 0)
	m.Tick(context.Background(), time.Now())

	got := waitStatus(t, m, job.ID, domain.BatchStatusPartialSuccess)
	if got.Progress.Completed != 2 || got.Progress.Failed != 1 {
		t.Errorf("expected 2 completed / 1 failed, got %d / %d", got.Progress.Completed, got.Progress.Failed)
	}
}

func TestManagerSubmitRejectsEmptyJob(t *testing.T) {
	m := testManager(&fakeRunner{}, Config{})

	if _, err := m.Submit(context.Background(), nil, domain.ModeRestore, 0); !errors.Is(err, ErrNoItems) {
		t.Errorf("expected ErrNoItems, got %v", err)
	}
}

func TestManagerGetUnknownJob(t *testing.T) {
	m := testManager(&fakeRunner{}, Config{})

	if _, err := m.Get(uuid.New()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

// Observers see the lifecycle in order: queued, started, one progress
// event per item, finished.
func TestManagerEvents(t *testing.T) {
	m := testManager(&fakeRunner{}, Config{})

	var mu sync.Mutex
	var seen []EventType
	m.Subscribe(NotifierFunc(func(_ context.Context, e Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	}))

	job, _ := m.Submit(context.Background(), items("a", "b"), domain.ModeRestore, 0)
	m.Tick(context.Background(), time.Now())
	waitStatus(t, m, job.ID, domain.BatchStatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	want := []EventType{EventQueued, EventStarted, EventProgress, EventProgress, EventFinished}
	if len(seen) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(seen), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

// Cleanup removes finished jobs past the retention window, on the cron
// schedule only.
func TestManagerCleanup(t *testing.T) {
	m := testManager(&fakeRunner{}, Config{})

	job, _ := m.Submit(context.Background(), items("a"), domain.ModeRestore, 0)
	m.Tick(context.Background(), time.Now())
	waitStatus(t, m, job.ID, domain.BatchStatusCompleted)

	// Inside the 24h retention window — survives a scheduled cleanup
	m.Tick(context.Background(), time.Now().Add(2*time.Hour))
	if _, err := m.Get(job.ID); err != nil {
		t.Fatalf("job cleaned up inside retention window: %v", err)
	}

	// Past retention — removed on the next scheduled cleanup
	m.Tick(context.Background(), time.Now().Add(25*time.Hour))
	if _, err := m.Get(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected job cleaned up, got %v", err)
	}
}

func TestManagerStats(t *testing.T) {
	runner := &fakeRunner{failRefs: map[string]bool{"b": true}}
	m := testManager(runner, Config{})

	job, _ := m.Submit(context.Background(), items("a", "b"), domain.ModeRestore, 0)
	m.Tick(context.Background(), time.Now())
	waitStatus(t, m, job.ID, domain.BatchStatusPartialSuccess)

	stats := m.Stats()
	if stats.TotalSubmitted != 1 {
		t.Errorf("expected 1 submitted, got %d", stats.TotalSubmitted)
	}
	if stats.ItemsCompleted != 1 || stats.ItemsFailed != 1 {
		t.Errorf("expected 1 completed / 1 failed item, got %d / %d", stats.ItemsCompleted, stats.ItemsFailed)
	}
	if stats.ByStatus[domain.BatchStatusPartialSuccess] != 1 {
		t.Errorf("expected 1 partial_success job, got %d", stats.ByStatus[domain.BatchStatusPartialSuccess])
	}
}
