package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediacopier/internal/logging"
	"mediacopier/internal/matching"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"), logging.NewNop())
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleJob(id string) Job {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return Job{
		ID:      id,
		Name:    "order-" + id,
		OrderID: "ord-" + id,
		Items: []JobItem{
			{Source: "/m/salsa/a.mp3", Label: "a", Bytes: 1024, Artist: "Marc Anthony", Genre: "Salsa", RelPath: "salsa/a.mp3"},
			{Source: "/m/salsa/b.flac", Label: "b", Bytes: 2048},
		},
		Status:   StatusPending,
		Progress: 0,
		Rules: matching.CopyRules{
			AllowedExtensions: []string{".mp3", ".flac"},
			MinSizeMB:         0.5,
			FilterBySize:      true,
			FuzzyEnabled:      true,
			FuzzyThreshold:    70,
			SkipDuplicates:    true,
			FailFast:          true,
		},
		Mode:      ScatterByArtist,
		DestDir:   "/mnt/usb",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	want := []Job{sampleJob("1"), sampleJob("2")}
	want[1].Status = StatusFailed
	want[1].ErrorDetail = "no matching media"
	want[1].NoMatches = true
	want[1].Progress = 37

	if err := store.SaveJobs(ctx, want); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}

	got := store.LoadJobs(ctx)
	if len(got) != 2 {
		t.Fatalf("loaded %d jobs, want 2", len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID || g.Name != w.Name || g.OrderID != w.OrderID {
			t.Errorf("job %d identity mismatch: %+v vs %+v", i, g, w)
		}
		if g.Status != w.Status || g.Progress != w.Progress || g.Mode != w.Mode {
			t.Errorf("job %d state mismatch: %+v vs %+v", i, g, w)
		}
		if g.NoMatches != w.NoMatches || g.ErrorDetail != w.ErrorDetail || g.DestDir != w.DestDir {
			t.Errorf("job %d detail mismatch", i)
		}
		if len(g.Items) != len(w.Items) {
			t.Fatalf("job %d items = %d, want %d", i, len(g.Items), len(w.Items))
		}
		for j := range w.Items {
			if g.Items[j] != w.Items[j] {
				t.Errorf("job %d item %d = %+v, want %+v", i, j, g.Items[j], w.Items[j])
			}
		}
		if g.Rules.FuzzyThreshold != w.Rules.FuzzyThreshold ||
			g.Rules.MinSizeMB != w.Rules.MinSizeMB ||
			g.Rules.FilterBySize != w.Rules.FilterBySize ||
			g.Rules.SkipDuplicates != w.Rules.SkipDuplicates ||
			g.Rules.FailFast != w.Rules.FailFast ||
			len(g.Rules.AllowedExtensions) != len(w.Rules.AllowedExtensions) {
			t.Errorf("job %d rules mismatch: %+v vs %+v", i, g.Rules, w.Rules)
		}
		if !g.CreatedAt.Equal(w.CreatedAt) || !g.UpdatedAt.Equal(w.UpdatedAt) {
			t.Errorf("job %d timestamps mismatch", i)
		}
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.SaveJobs(ctx, []Job{sampleJob("1"), sampleJob("2")}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveJobs(ctx, []Job{sampleJob("3")}); err != nil {
		t.Fatal(err)
	}
	got := store.LoadJobs(ctx)
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("snapshot not replaced: %+v", got)
	}
}

func TestLoadEmptyDatabase(t *testing.T) {
	store := openTestStore(t)
	if got := store.LoadJobs(context.Background()); len(got) != 0 {
		t.Errorf("fresh store loaded %d jobs, want 0", len(got))
	}
}

func TestClearJobs(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if err := store.SaveJobs(ctx, []Job{sampleJob("1")}); err != nil {
		t.Fatal(err)
	}
	if err := store.ClearJobs(ctx); err != nil {
		t.Fatalf("ClearJobs: %v", err)
	}
	if got := store.LoadJobs(ctx); len(got) != 0 {
		t.Errorf("loaded %d jobs after clear, want 0", len(got))
	}
}

func TestSchemaMismatchRejected(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "jobs.db")
	store, err := OpenPath(dbPath, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := OpenPath(dbPath, logging.NewNop()); err == nil {
		t.Fatal("mismatched schema version accepted")
	}
}

func TestCorruptRowSkipped(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if err := store.SaveJobs(ctx, []Job{sampleJob("1")}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec("UPDATE jobs SET rules_json = 'not json' WHERE id = '1'"); err != nil {
		t.Fatal(err)
	}
	if got := store.LoadJobs(ctx); len(got) != 0 {
		t.Errorf("corrupt row not skipped: %+v", got)
	}
}

func TestCorruptDatabaseFileQuarantined(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "jobs.db")
	if err := os.WriteFile(dbPath, []byte("this is not a sqlite database"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := OpenPath(dbPath, logging.NewNop())
	if err != nil {
		t.Fatalf("corrupt store should load as empty, got open error: %v", err)
	}
	defer store.Close()

	if got := store.LoadJobs(context.Background()); len(got) != 0 {
		t.Errorf("loaded %d jobs from recreated store, want 0", len(got))
	}
	if _, err := os.Stat(dbPath + ".corrupt"); err != nil {
		t.Errorf("corrupt file not moved aside: %v", err)
	}
	if err := store.SaveJobs(context.Background(), []Job{sampleJob("1")}); err != nil {
		t.Errorf("recreated store not writable: %v", err)
	}
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "jobs.db")
	store, err := OpenPath(dbPath, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}
