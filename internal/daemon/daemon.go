// Package daemon assembles the pipeline: it wires the queue, store, catalog,
// order client, processor, runner manager, and USB monitor into a single
// lifecycle with flock-based locking to prevent multiple instances.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mediacopier/internal/config"
	"mediacopier/internal/logging"
	"mediacopier/internal/media"
	"mediacopier/internal/notifications"
	"mediacopier/internal/orders"
	"mediacopier/internal/processor"
	"mediacopier/internal/queue"
	"mediacopier/internal/runner"
	"mediacopier/internal/state"
	"mediacopier/internal/usb"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	queue     *queue.Queue
	catalog   *media.Catalog
	client    *orders.Client
	manager   *runner.Manager
	processor *processor.Processor
	notifier  notifications.Service
	stats     *state.StatsStore
	uiState   *state.UIStateStore
	monitor   *usb.Monitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc

	drainMu        sync.Mutex
	batchStart     time.Time
	batchCompleted int
	batchFailed    int
}

// New constructs a daemon with all dependencies wired from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store, err := queue.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	catalog, err := media.Scan(cfg.ContentRoots(), logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("scan media catalog: %w", err)
	}

	q := queue.New(store, logger)
	stats := state.NewStatsStore(filepath.Join(cfg.Paths.StateDir, "stats.json"), logger)
	uiState := state.NewUIStateStore(filepath.Join(cfg.Paths.StateDir, "ui_state.json"), logger)
	notifier := notifications.NewService(cfg)
	client := orders.NewClient(cfg, logger)
	manager := runner.NewManager(q, stats, cfg, logger)
	proc := processor.New(client, q, catalog, manager, notifier, cfg, logger)

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		queue:     q,
		catalog:   catalog,
		client:    client,
		manager:   manager,
		processor: proc,
		notifier:  notifier,
		stats:     stats,
		uiState:   uiState,
		lockPath:  filepath.Join(cfg.Paths.StateDir, "mediacopier.lock"),
	}
	d.lock = flock.New(d.lockPath)

	// Terminal jobs are acknowledged remotely and pushed to notifications.
	manager.SetOnTerminal(func(job queue.Job) {
		ctx := context.Background()
		proc.Report(ctx, job)
		switch job.Status {
		case queue.StatusCompleted:
			var bytes int64
			for _, item := range job.Items {
				bytes += item.Bytes
			}
			_ = notifier.NotifyJobCompleted(ctx, job.Name, len(job.Items), bytes)
		case queue.StatusFailed:
			_ = notifier.NotifyJobFailed(ctx, job.Name, job.ErrorDetail)
		}
		d.recordTerminal(ctx, job)
	})

	d.monitor = usb.NewMonitor(logger, func(ctx context.Context, event usb.HotplugEvent) {
		if event.Action == "add" {
			d.logger.Info("usb destination candidate attached", logging.String("device", event.Device))
		}
	})

	return d, nil
}

// recordTerminal tracks batch counters and fires the queue-drained
// notification once no pending or running jobs remain.
func (d *Daemon) recordTerminal(ctx context.Context, job queue.Job) {
	d.drainMu.Lock()
	defer d.drainMu.Unlock()

	if d.batchStart.IsZero() {
		d.batchStart = job.CreatedAt
	}
	switch job.Status {
	case queue.StatusCompleted:
		d.batchCompleted++
	default:
		d.batchFailed++
	}

	for _, j := range d.queue.Jobs() {
		if j.Status == queue.StatusPending || j.Status == queue.StatusRunning {
			return
		}
	}

	completed, failed := d.batchCompleted, d.batchFailed
	elapsed := time.Since(d.batchStart)
	d.batchStart = time.Time{}
	d.batchCompleted, d.batchFailed = 0, 0
	if err := d.notifier.NotifyQueueDrained(ctx, completed, failed, elapsed); err != nil {
		d.logger.Debug("queue-drained notification failed", logging.Error(err))
	}
}

// Start acquires the instance lock, restores persisted jobs, and launches
// the polling loop and hotplug monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediacopier instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	restored := d.queue.Restore(runCtx)
	if restored > 0 {
		d.logger.Info("queue restored", logging.Int("jobs", restored))
	}

	if err := d.monitor.Start(runCtx); err != nil {
		d.logger.Warn("usb monitor unavailable", logging.Error(err))
	}
	d.processor.Start(runCtx)

	d.running.Store(true)
	d.logger.Info("mediacopier daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts polling, waits for active runners, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.processor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Wait()
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediacopier daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Queue exposes the job queue for presentation layers.
func (d *Daemon) Queue() *queue.Queue {
	return d.queue
}

// Manager exposes the runner manager for event subscriptions and control.
func (d *Daemon) Manager() *runner.Manager {
	return d.manager
}

// Processor exposes the order processor for manual poll triggers.
func (d *Daemon) Processor() *processor.Processor {
	return d.processor
}

// Stats exposes the run-summary history store.
func (d *Daemon) Stats() *state.StatsStore {
	return d.stats
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
