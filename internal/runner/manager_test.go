package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediacopier/internal/config"
	"mediacopier/internal/logging"
	"mediacopier/internal/matching"
	"mediacopier/internal/queue"
	"mediacopier/internal/state"
	"mediacopier/internal/usb"
)

// nullStore satisfies queue.Storage without touching disk.
type nullStore struct{}

func (nullStore) SaveJobs(context.Context, []queue.Job) error { return nil }
func (nullStore) LoadJobs(context.Context) []queue.Job        { return nil }
func (nullStore) ClearJobs(context.Context) error             { return nil }

func testManager(t *testing.T, q *queue.Queue, opts ...ManagerOption) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Runner.MaxConcurrentJobs = 2
	stats := state.NewStatsStore(filepath.Join(t.TempDir(), "stats.json"), logging.NewNop())
	return NewManager(q, stats, &cfg, logging.NewNop(), opts...)
}

func addJob(t *testing.T, q *queue.Queue, dir string, files int, opts ...queue.JobOption) queue.Job {
	t.Helper()
	var items []queue.JobItem
	for i := 0; i < files; i++ {
		src := filepath.Join(dir, "src", "f"+string(rune('a'+i))+".mp3")
		if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(src, []byte("teniente"), 0o644); err != nil {
			t.Fatal(err)
		}
		items = append(items, queue.JobItem{Source: src, Bytes: 8})
	}
	opts = append(opts, queue.WithDestination(filepath.Join(dir, "dest")))
	job, err := q.AddJob(context.Background(), "order", items, matching.CopyRules{}, queue.SingleFolder, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return job
}

func waitTerminal(t *testing.T, q *queue.Queue, id string) queue.Job {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		job, ok := q.Job(id)
		if ok && job.Status.IsTerminal() {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal state (now %s)", id, job.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDispatchRunsJobToCompletion(t *testing.T) {
	q := queue.New(nullStore{}, logging.NewNop())
	m := testManager(t, q)
	dir := t.TempDir()
	job := addJob(t, q, dir, 2)

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	if err := m.Dispatch(context.Background(), job.ID); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	final := waitTerminal(t, q, job.ID)
	m.Wait()

	if final.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}

	var sawStarted, sawCompleted bool
	for {
		select {
		case ev := <-events:
			switch ev.Type {
			case EventStarted:
				sawStarted = true
			case EventCompleted:
				sawCompleted = true
			}
			continue
		default:
		}
		break
	}
	if !sawStarted || !sawCompleted {
		t.Errorf("subscriber missed events: started=%v completed=%v", sawStarted, sawCompleted)
	}
}

func TestDispatchRejectsNonPending(t *testing.T) {
	q := queue.New(nullStore{}, logging.NewNop())
	m := testManager(t, q)
	job := addJob(t, q, t.TempDir(), 1)
	if err := q.UpdateStatus(context.Background(), job.ID, queue.StatusRunning); err != nil {
		t.Fatal(err)
	}
	if err := m.Dispatch(context.Background(), job.ID); err == nil {
		t.Fatal("dispatch of running job accepted")
	}
}

func TestManagerCancellation(t *testing.T) {
	q := queue.New(nullStore{}, logging.NewNop())

	release := make(chan struct{})
	var copies atomic.Int32
	copyFn := func(src, dst string) error {
		if copies.Add(1) == 1 {
			<-release
		}
		return nil
	}
	m := testManager(t, q, WithManagerCopyFunc(copyFn))
	job := addJob(t, q, t.TempDir(), 5)

	if err := m.Dispatch(context.Background(), job.ID); err != nil {
		t.Fatal(err)
	}
	for copies.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if !m.Cancel(job.ID) {
		t.Fatal("Cancel returned false for active job")
	}
	close(release)

	final := waitTerminal(t, q, job.ID)
	m.Wait()
	if final.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", final.Status)
	}
}

func TestSameDestinationSerialized(t *testing.T) {
	q := queue.New(nullStore{}, logging.NewNop())

	var mu sync.Mutex
	var running, maxRunning int
	copyFn := func(src, dst string) error {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}
	m := testManager(t, q, WithManagerCopyFunc(copyFn))

	dir := t.TempDir()
	shared := filepath.Join(dir, "shared-dest")
	j1 := addSharedJob(t, q, filepath.Join(dir, "s1"), shared)
	j2 := addSharedJob(t, q, filepath.Join(dir, "s2"), shared)

	ctx := context.Background()
	if err := m.Dispatch(ctx, j1.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Dispatch(ctx, j2.ID); err != nil {
		t.Fatal(err)
	}
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxRunning > 1 {
		t.Errorf("max concurrent copies to one destination = %d, want 1", maxRunning)
	}
}

func addSharedJob(t *testing.T, q *queue.Queue, srcDir, dest string) queue.Job {
	t.Helper()
	var items []queue.JobItem
	for i := 0; i < 3; i++ {
		src := filepath.Join(srcDir, "f"+string(rune('a'+i))+".mp3")
		if err := os.MkdirAll(srcDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		items = append(items, queue.JobItem{Source: src, Bytes: 1})
	}
	job, err := q.AddJob(context.Background(), "order", items, matching.CopyRules{}, queue.SingleFolder, queue.WithDestination(dest))
	if err != nil {
		t.Fatal(err)
	}
	return job
}

func TestPreflightFailsJobWithoutSpace(t *testing.T) {
	q := queue.New(nullStore{}, logging.NewNop())
	m := testManager(t, q, WithFreeSpaceFunc(func(string) (usb.Space, error) {
		return usb.Space{Free: 1, Total: 1}, nil
	}))
	job := addJob(t, q, t.TempDir(), 2)

	if err := m.Dispatch(context.Background(), job.ID); err != nil {
		t.Fatal(err)
	}
	final := waitTerminal(t, q, job.ID)
	m.Wait()
	if final.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed on insufficient space", final.Status)
	}
	if final.ErrorDetail == "" {
		t.Error("no diagnostic recorded for space failure")
	}
}

func TestOnTerminalCallback(t *testing.T) {
	q := queue.New(nullStore{}, logging.NewNop())
	m := testManager(t, q)

	var mu sync.Mutex
	var terminal []queue.Job
	m.SetOnTerminal(func(job queue.Job) {
		mu.Lock()
		defer mu.Unlock()
		terminal = append(terminal, job)
	})

	job := addJob(t, q, t.TempDir(), 1, queue.WithOrderID("ord-1"))
	if err := m.Dispatch(context.Background(), job.ID); err != nil {
		t.Fatal(err)
	}
	waitTerminal(t, q, job.ID)
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(terminal) != 1 {
		t.Fatalf("terminal callback ran %d times, want 1", len(terminal))
	}
	if terminal[0].OrderID != "ord-1" || terminal[0].Status != queue.StatusCompleted {
		t.Errorf("callback job = %+v", terminal[0])
	}
}

func TestStatsRecorded(t *testing.T) {
	q := queue.New(nullStore{}, logging.NewNop())
	statsPath := filepath.Join(t.TempDir(), "stats.json")
	stats := state.NewStatsStore(statsPath, logging.NewNop())
	cfg := config.Default()
	m := NewManager(q, stats, &cfg, logging.NewNop())

	job := addJob(t, q, t.TempDir(), 2)
	if err := m.Dispatch(context.Background(), job.ID); err != nil {
		t.Fatal(err)
	}
	waitTerminal(t, q, job.ID)
	m.Wait()

	history := stats.History()
	if len(history) != 1 {
		t.Fatalf("stats history = %d entries, want 1", len(history))
	}
	if history[0].FilesCopied != 2 || !history[0].Succeeded {
		t.Errorf("summary = %+v", history[0])
	}
}
