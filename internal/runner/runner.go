// Package runner executes jobs: it copies each matched file to its computed
// destination, emits an ordered event timeline, and supports cooperative
// cancellation and pause between files. The manager layers concurrency
// bounds, per-destination serialization, and queue reconciliation on top.
package runner

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"mediacopier/internal/fileutil"
	"mediacopier/internal/logging"
	"mediacopier/internal/organizer"
	"mediacopier/internal/queue"
)

// Outcome summarizes one finished run.
type Outcome struct {
	Status      queue.Status
	FilesCopied int
	FilesFailed int
	BytesCopied int64
	Reason      string
}

// Runner executes a single job. Create one per run; not reusable.
type Runner struct {
	job    queue.Job
	logger *slog.Logger
	copy   func(src, dst string) error
	emit   func(Event)

	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// Option customizes runner construction.
type Option func(*Runner)

// WithCopyFunc overrides the file copy primitive (used in tests and for
// verified copies).
func WithCopyFunc(copy func(src, dst string) error) Option {
	return func(r *Runner) {
		if copy != nil {
			r.copy = copy
		}
	}
}

// New creates a runner for job. emit receives the event timeline; it is
// called synchronously from the run goroutine and must not block.
func New(job queue.Job, logger *slog.Logger, emit func(Event), opts ...Option) *Runner {
	r := &Runner{
		job:    job,
		logger: logging.NewComponentLogger(logger, "runner").With(logging.String(logging.FieldJobID, job.ID)),
		copy:   fileutil.CopyFile,
		emit:   emit,
	}
	if emit == nil {
		r.emit = func(Event) {}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pause stops the runner before the next file. Copies already in flight
// finish first.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		r.paused = true
		r.resume = make(chan struct{})
	}
}

// Resume releases a paused runner.
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		r.paused = false
		close(r.resume)
		r.resume = nil
	}
}

// Run executes the job to a terminal outcome. Cancellation is cooperative:
// ctx is checked between files, never mid-copy, and partially copied files
// are left in place.
func (r *Runner) Run(ctx context.Context) Outcome {
	job := r.job
	r.event(Event{Type: EventStarted, JobID: job.ID, JobName: job.Name})

	if job.NoMatches || len(job.Items) == 0 {
		reason := "no matching media found for requested items"
		r.logger.Warn("job has no matched files, failing", logging.String("reason", reason))
		r.event(Event{Type: EventFailed, JobID: job.ID, JobName: job.Name, Reason: reason})
		return Outcome{Status: queue.StatusFailed, Reason: reason}
	}

	progress := Progress{
		TotalFiles: len(job.Items),
		TotalBytes: job.TotalBytes(),
	}

	for _, item := range job.Items {
		if err := r.gate(ctx); err != nil {
			r.logger.Info("job cancelled", logging.Int("files_done", progress.FilesDone))
			r.event(Event{Type: EventCancelled, JobID: job.ID, JobName: job.Name})
			return Outcome{
				Status:      queue.StatusCancelled,
				FilesCopied: progress.FilesDone,
				FilesFailed: progress.FilesFailed,
				BytesCopied: progress.BytesDone,
			}
		}

		dst := organizer.DestinationPath(job.DestDir, job.Mode, item, job.Name)
		skipped := false

		switch {
		case job.Rules.DryRun:
			// Match set is real, bytes are not written.
		case job.Rules.SkipDuplicates && fileExists(dst):
			r.logger.Debug("destination exists, skipping", logging.String("dest", dst))
			skipped = true
		default:
			dst = organizer.EnsureUnique(dst)
			if err := r.copy(item.Source, dst); err != nil {
				progress.FilesFailed++
				r.logger.Warn("file copy failed",
					logging.String("source", item.Source),
					logging.Error(err))
				r.event(Event{
					Type:   EventFileError,
					JobID:  job.ID,
					Path:   item.Source,
					Reason: err.Error(),
				})
				if job.Rules.FailFast {
					reason := "copy failed: " + err.Error()
					r.event(Event{Type: EventFailed, JobID: job.ID, JobName: job.Name, Reason: reason})
					return Outcome{
						Status:      queue.StatusFailed,
						FilesCopied: progress.FilesDone,
						FilesFailed: progress.FilesFailed,
						BytesCopied: progress.BytesDone,
						Reason:      reason,
					}
				}
				continue
			}
		}

		progress.FilesDone++
		if !skipped && !job.Rules.DryRun {
			progress.BytesDone += item.Bytes
		}
		progress.CurrentFile = item.Source
		progress.Percent = percent(progress)
		r.event(Event{Type: EventProgress, JobID: job.ID, JobName: job.Name, Progress: progress})
	}

	if progress.FilesDone == 0 && progress.FilesFailed > 0 {
		reason := "all files failed to copy"
		r.event(Event{Type: EventFailed, JobID: job.ID, JobName: job.Name, Reason: reason})
		return Outcome{
			Status:      queue.StatusFailed,
			FilesFailed: progress.FilesFailed,
			Reason:      reason,
		}
	}

	r.event(Event{Type: EventCompleted, JobID: job.ID, JobName: job.Name})
	return Outcome{
		Status:      queue.StatusCompleted,
		FilesCopied: progress.FilesDone,
		FilesFailed: progress.FilesFailed,
		BytesCopied: progress.BytesDone,
	}
}

// gate blocks while paused and reports cancellation.
func (r *Runner) gate(ctx context.Context) error {
	for {
		r.mu.Lock()
		resume := r.resume
		paused := r.paused
		r.mu.Unlock()

		if !paused {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}

func (r *Runner) event(ev Event) {
	r.emit(ev)
}

// percent favors byte-accurate progress when sizes are known, falling back
// to file counts. Whole percentages only; fractions truncate.
func percent(p Progress) int {
	processed := p.FilesDone + p.FilesFailed
	if p.TotalBytes > 0 && p.BytesDone > 0 && processed < p.TotalFiles {
		return int(100 * p.BytesDone / p.TotalBytes)
	}
	if p.TotalFiles == 0 {
		return 100
	}
	return 100 * processed / p.TotalFiles
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
