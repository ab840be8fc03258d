package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediacopier/internal/config"
	"mediacopier/internal/fileutil"
	"mediacopier/internal/logging"
	"mediacopier/internal/queue"
	"mediacopier/internal/state"
	"mediacopier/internal/usb"
)

const subscriberBuffer = 128

// Manager dispatches jobs to runners. It bounds global concurrency, ensures
// at most one runner writes to a given destination root at a time, reconciles
// runner outcomes into the queue, records run summaries, and fans events out
// to subscribers.
type Manager struct {
	queue    *queue.Queue
	stats    *state.StatsStore
	logger   *slog.Logger
	copyFile func(src, dst string) error
	free     func(path string) (usb.Space, error)

	slots chan struct{}

	mu          sync.Mutex
	destLocks   map[string]*sync.Mutex
	active      map[string]*activeRun
	subscribers map[int]chan Event
	nextSubID   int
	onTerminal  func(job queue.Job)

	wg sync.WaitGroup
}

type activeRun struct {
	runner *Runner
	cancel context.CancelFunc
}

// ManagerOption customizes manager construction.
type ManagerOption func(*Manager)

// WithManagerCopyFunc overrides the copy primitive used by dispatched
// runners.
func WithManagerCopyFunc(copy func(src, dst string) error) ManagerOption {
	return func(m *Manager) {
		if copy != nil {
			m.copyFile = copy
		}
	}
}

// WithFreeSpaceFunc overrides the destination free-space probe.
func WithFreeSpaceFunc(free func(path string) (usb.Space, error)) ManagerOption {
	return func(m *Manager) {
		if free != nil {
			m.free = free
		}
	}
}

// NewManager creates a manager over q.
func NewManager(q *queue.Queue, stats *state.StatsStore, cfg *config.Config, logger *slog.Logger, opts ...ManagerOption) *Manager {
	limit := cfg.Runner.MaxConcurrentJobs
	if limit < 1 {
		limit = 1
	}
	copyFn := fileutil.CopyFile
	if cfg.Runner.VerifyCopies {
		copyFn = fileutil.CopyFileVerified
	}
	m := &Manager{
		queue:       q,
		stats:       stats,
		logger:      logging.NewComponentLogger(logger, "runner-manager"),
		copyFile:    copyFn,
		free:        usb.FreeSpace,
		slots:       make(chan struct{}, limit),
		destLocks:   make(map[string]*sync.Mutex),
		active:      make(map[string]*activeRun),
		subscribers: make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetOnTerminal registers a callback invoked with the final job state after
// every run. The processor uses it to acknowledge orders remotely.
func (m *Manager) SetOnTerminal(fn func(job queue.Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTerminal = fn
}

// Subscribe returns a channel carrying every runner event and a cancel
// function. Slow subscribers drop events rather than stalling runners.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	m.subscribers[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(existing)
		}
	}
}

// Dispatch schedules a pending job for execution. It returns once the job is
// accepted; the run itself proceeds asynchronously under the concurrency
// limit and the destination-root lock.
func (m *Manager) Dispatch(ctx context.Context, jobID string) error {
	job, ok := m.queue.Job(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, jobID)
	}
	if job.Status != queue.StatusPending {
		return fmt.Errorf("%w: dispatch of %s job %s", queue.ErrInvalidTransition, job.Status, jobID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	emit := func(ev Event) {
		m.broadcast(ev)
		if ev.Type == EventProgress {
			_ = m.queue.UpdateProgress(context.Background(), ev.JobID, ev.Progress.Percent)
		}
	}
	r := New(job, m.logger, emit, WithCopyFunc(m.copyFile))

	m.mu.Lock()
	if _, exists := m.active[jobID]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("job %s already dispatched", jobID)
	}
	m.active[jobID] = &activeRun{runner: r, cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx, cancel, r, job)
	return nil
}

// Cancel requests cooperative cancellation of a dispatched job.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.active[jobID]
	if !ok {
		return false
	}
	run.cancel()
	run.runner.Resume() // unblock a paused runner so it can observe the cancel
	return true
}

// Pause suspends a dispatched job before its next file.
func (m *Manager) Pause(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.active[jobID]
	if !ok {
		return false
	}
	run.runner.Pause()
	return true
}

// Resume releases a paused job.
func (m *Manager) Resume(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.active[jobID]
	if !ok {
		return false
	}
	run.runner.Resume()
	return true
}

// Wait blocks until all dispatched jobs have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, r *Runner, job queue.Job) {
	defer m.wg.Done()
	defer cancel()
	defer func() {
		m.mu.Lock()
		delete(m.active, job.ID)
		m.mu.Unlock()
	}()

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		m.finish(job, Outcome{Status: queue.StatusCancelled}, time.Now())
		return
	}

	destLock := m.lockFor(job.DestDir)
	destLock.Lock()
	defer destLock.Unlock()

	started := time.Now()

	if err := m.queue.UpdateStatus(ctx, job.ID, queue.StatusRunning); err != nil {
		m.logger.Error("mark job running", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		return
	}

	if err := m.preflight(job); err != nil {
		m.logger.Warn("preflight failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		m.broadcast(Event{Type: EventFailed, JobID: job.ID, JobName: job.Name, Reason: err.Error()})
		m.finish(job, Outcome{Status: queue.StatusFailed, Reason: err.Error()}, started)
		return
	}

	m.finish(job, r.Run(ctx), started)
}

// finish reconciles the outcome into the queue, records stats, and notifies
// the terminal callback.
func (m *Manager) finish(job queue.Job, outcome Outcome, started time.Time) {
	ctx := context.Background()
	switch outcome.Status {
	case queue.StatusFailed:
		if err := m.queue.MarkFailed(ctx, job.ID, outcome.Reason); err != nil {
			m.logger.Error("mark job failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		}
	default:
		if err := m.queue.UpdateStatus(ctx, job.ID, outcome.Status); err != nil {
			m.logger.Error("record job outcome", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}

	if m.stats != nil {
		err := m.stats.Append(state.RunSummary{
			JobID:       job.ID,
			JobName:     job.Name,
			OrderID:     job.OrderID,
			FilesCopied: outcome.FilesCopied,
			FilesFailed: outcome.FilesFailed,
			BytesCopied: outcome.BytesCopied,
			Succeeded:   outcome.Status == queue.StatusCompleted,
			StartedAt:   started.UTC(),
			FinishedAt:  time.Now().UTC(),
		})
		if err != nil {
			m.logger.Error("record run summary", logging.Error(err))
		}
	}

	m.mu.Lock()
	onTerminal := m.onTerminal
	m.mu.Unlock()
	if onTerminal != nil {
		if final, ok := m.queue.Job(job.ID); ok {
			onTerminal(final)
		}
	}
}

// preflight verifies the destination can hold the job's planned bytes.
func (m *Manager) preflight(job queue.Job) error {
	if job.DestDir == "" || job.Rules.DryRun || job.NoMatches {
		return nil
	}
	total := job.TotalBytes()
	if total == 0 {
		return nil
	}
	space, err := m.free(job.DestDir)
	if err != nil {
		// Destination may not exist yet; the copy itself will surface that.
		return nil
	}
	if space.Free < uint64(total) {
		return fmt.Errorf("insufficient space on %s: need %d bytes, have %d", job.DestDir, total, space.Free)
	}
	return nil
}

func (m *Manager) lockFor(dest string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.destLocks[dest]
	if !ok {
		lock = &sync.Mutex{}
		m.destLocks[dest] = lock
	}
	return lock
}

func (m *Manager) broadcast(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- ev:
		default: // drop rather than stall the runner
		}
	}
}
