// Package queue holds the in-memory job queue and its SQLite persistence.
// The in-memory state is authoritative for the running process; every
// mutation writes the full snapshot through the storage collaborator before
// returning, so a restart resumes from the last durable state.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediacopier/internal/logging"
	"mediacopier/internal/matching"
)

// Storage persists the full job list. A missing or corrupt store loads as an
// empty list; load never fails.
type Storage interface {
	SaveJobs(ctx context.Context, jobs []Job) error
	LoadJobs(ctx context.Context) []Job
	ClearJobs(ctx context.Context) error
}

// Queue is an ordered collection of jobs keyed by id. Insertion order is
// preserved for display and dispatch fairness. Safe for concurrent use: one
// lock guards mutate-plus-persist so concurrent updates cannot interleave a
// stale snapshot.
type Queue struct {
	mu     sync.Mutex
	jobs   []*Job
	byID   map[string]*Job
	store  Storage
	logger *slog.Logger
}

// New creates an empty queue backed by store.
func New(store Storage, logger *slog.Logger) *Queue {
	return &Queue{
		byID:   make(map[string]*Job),
		store:  store,
		logger: logging.NewComponentLogger(logger, "queue"),
	}
}

// JobOption customizes job creation.
type JobOption func(*Job)

// WithOrderID links the job to a remote order.
func WithOrderID(orderID string) JobOption {
	return func(j *Job) { j.OrderID = orderID }
}

// WithDestination sets the destination root the job copies into.
func WithDestination(dir string) JobOption {
	return func(j *Job) { j.DestDir = dir }
}

// WithNoMatchTag marks a job whose requested items yielded no files. The
// runner fails such jobs with a diagnostic instead of silently succeeding.
func WithNoMatchTag() JobOption {
	return func(j *Job) { j.NoMatches = true }
}

// AddJob creates a pending job and persists the new snapshot. The rules are
// snapshotted so later mutation of the caller's value has no effect. A
// persistence failure is returned alongside the created job; the in-memory
// add stands.
func (q *Queue) AddJob(ctx context.Context, name string, items []JobItem, rules matching.CopyRules, mode OrganizationMode, opts ...JobOption) (Job, error) {
	if !mode.Valid() {
		return Job{}, fmt.Errorf("unknown organization mode %q", mode)
	}
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Items:     append([]JobItem(nil), items...),
		Status:    StatusPending,
		Rules:     rules.Clone(),
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(job)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	q.byID[job.ID] = job
	q.logger.Info("job added",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("name", job.Name),
		logging.Int("items", len(job.Items)))
	return job.Clone(), q.persistLocked(ctx)
}

// UpdateStatus applies a status transition. Illegal transitions, including
// any transition out of a terminal status, return ErrInvalidTransition and
// leave the job untouched.
func (q *Queue) UpdateStatus(ctx context.Context, id string, status Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !job.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s (job %s)", ErrInvalidTransition, job.Status, status, id)
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if status == StatusCompleted {
		job.Progress = 100
	}
	return q.persistLocked(ctx)
}

// UpdateProgress records copy progress for a running job. Percent is a whole
// percentage clamped to 0-100.
func (q *Queue) UpdateProgress(ctx context.Context, id string, percent int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status != StatusRunning {
		return fmt.Errorf("%w: progress update on %s job %s", ErrInvalidTransition, job.Status, id)
	}
	job.Progress = min(100, max(0, percent))
	job.UpdatedAt = time.Now().UTC()
	return q.persistLocked(ctx)
}

// MarkFailed moves a job to failed with a diagnostic detail.
func (q *Queue) MarkFailed(ctx context.Context, id, detail string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !job.Status.CanTransitionTo(StatusFailed) {
		return fmt.Errorf("%w: %s -> %s (job %s)", ErrInvalidTransition, job.Status, StatusFailed, id)
	}
	job.Status = StatusFailed
	job.ErrorDetail = detail
	job.UpdatedAt = time.Now().UTC()
	return q.persistLocked(ctx)
}

// Job returns a copy of the job with the given id.
func (q *Queue) Job(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.byID[id]
	if !ok {
		return Job{}, false
	}
	return job.Clone(), true
}

// Jobs returns copies of all jobs in insertion order.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, job.Clone())
	}
	return out
}

// HasJobForOrder reports whether an order id already has a non-cancelled job.
// Used by the processor to dedupe poll cycles.
func (q *Queue) HasJobForOrder(orderID string) bool {
	if orderID == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.OrderID == orderID && job.Status != StatusCancelled {
			return true
		}
	}
	return false
}

// Clear removes all jobs and clears the store.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
	q.byID = make(map[string]*Job)
	if err := q.store.ClearJobs(ctx); err != nil {
		q.logger.Error("clear persisted jobs", logging.Error(err))
		return err
	}
	return nil
}

// Restore replaces the in-memory state with the last persisted snapshot.
// Called once on daemon boot. Jobs persisted mid-run are demoted to failed so
// the remote side gets a definitive answer instead of a stuck "running".
func (q *Queue) Restore(ctx context.Context) int {
	loaded := q.store.LoadJobs(ctx)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
	q.byID = make(map[string]*Job)
	for i := range loaded {
		job := loaded[i]
		if job.Status == StatusRunning {
			job.Status = StatusFailed
			job.ErrorDetail = "interrupted by process restart"
		}
		j := job
		q.jobs = append(q.jobs, &j)
		q.byID[j.ID] = &j
	}
	if len(q.jobs) > 0 {
		q.logger.Info("restored jobs from storage", logging.Int("count", len(q.jobs)))
	}
	return len(q.jobs)
}

// persistLocked writes the full snapshot. Callers hold q.mu. A failure is
// logged and returned, but the in-memory mutation is not rolled back.
func (q *Queue) persistLocked(ctx context.Context) error {
	snapshot := make([]Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		snapshot = append(snapshot, job.Clone())
	}
	if err := q.store.SaveJobs(ctx, snapshot); err != nil {
		q.logger.Error("persist job snapshot", logging.Error(err))
		return fmt.Errorf("persist jobs: %w", err)
	}
	return nil
}
