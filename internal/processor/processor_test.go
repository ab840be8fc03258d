package processor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mediacopier/internal/config"
	"mediacopier/internal/logging"
	"mediacopier/internal/matching"
	"mediacopier/internal/media"
	"mediacopier/internal/orders"
	"mediacopier/internal/queue"
)

type fakeClient struct {
	mu        sync.Mutex
	pending   []orders.Order
	fetchErr  error
	started   []string
	completed []string
	failed    map[string]string
	ackErr    error
}

func (f *fakeClient) PendingOrders(context.Context) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]orders.Order(nil), f.pending...), nil
}

func (f *fakeClient) StartBurning(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, orderID)
	return f.ackErr
}

func (f *fakeClient) CompleteBurning(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.completed = append(f.completed, orderID)
	return nil
}

func (f *fakeClient) ReportError(_ context.Context, orderID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	if f.failed == nil {
		f.failed = make(map[string]string)
	}
	f.failed[orderID] = message
	return nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, jobID)
	return nil
}

type nullStore struct{}

func (nullStore) SaveJobs(context.Context, []queue.Job) error { return nil }
func (nullStore) LoadJobs(context.Context) []queue.Job        { return nil }
func (nullStore) ClearJobs(context.Context) error             { return nil }

func testCatalog() *media.Catalog {
	return media.NewCatalog(map[string][]media.File{
		"music": {
			{Path: "/m/Salsa/Marc Anthony/Vivir Mi Vida.mp3", Name: "Vivir Mi Vida", Ext: ".mp3", Size: 5 << 20, Artist: "Marc Anthony", Genre: "Salsa", Title: "Vivir Mi Vida"},
			{Path: "/m/Salsa/Marc Anthony/Valio La Pena.mp3", Name: "Valio La Pena", Ext: ".mp3", Size: 4 << 20, Artist: "Marc Anthony", Genre: "Salsa", Title: "Valio La Pena"},
			{Path: "/m/Bachata/Juan Luis Guerra/Burbujas.mp3", Name: "Burbujas", Ext: ".mp3", Size: 6 << 20, Artist: "Juan Luis Guerra", Genre: "Bachata", Title: "Burbujas"},
		},
		"movies": {
			{Path: "/v/Inception.mkv", Name: "Inception", Ext: ".mkv", Size: 700 << 20, Title: "Inception"},
		},
	})
}

func newProcessor(t *testing.T, client *fakeClient, dispatcher Dispatcher) (*Processor, *queue.Queue) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DestinationDir = t.TempDir()
	q := queue.New(nullStore{}, logging.NewNop())
	p := New(client, q, testCatalog(), dispatcher, nil, &cfg, logging.NewNop())
	return p, q
}

func musicOrder(id string, artists ...string) orders.Order {
	return orders.Order{
		OrderID:     id,
		OrderNumber: "NUM-" + id,
		ProductType: "music",
		Artists:     artists,
	}
}

func TestPollCreatesJobs(t *testing.T) {
	client := &fakeClient{pending: []orders.Order{musicOrder("o1", "Marc Anthony")}}
	dispatcher := &fakeDispatcher{}
	p, q := newProcessor(t, client, dispatcher)

	created, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	jobs := q.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("queue has %d jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if job.OrderID != "o1" || job.Name != "NUM-o1" {
		t.Errorf("job identity = %+v", job)
	}
	if len(job.Items) != 2 {
		t.Errorf("matched %d files for Marc Anthony, want 2", len(job.Items))
	}
	if job.Status != queue.StatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}

	if len(client.started) != 1 || client.started[0] != "o1" {
		t.Errorf("start-burning acks = %v, want [o1]", client.started)
	}
	if len(dispatcher.dispatched) != 1 {
		t.Errorf("dispatched %d jobs, want 1 (auto-start)", len(dispatcher.dispatched))
	}
}

func TestPollDedupesByOrderID(t *testing.T) {
	client := &fakeClient{pending: []orders.Order{musicOrder("o1", "Marc Anthony")}}
	p, q := newProcessor(t, client, nil)

	ctx := context.Background()
	if _, err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if jobs := q.Jobs(); len(jobs) != 1 {
		t.Fatalf("queue has %d jobs after re-poll, want 1", len(jobs))
	}
}

func TestPollZeroMatchesTagsJob(t *testing.T) {
	client := &fakeClient{pending: []orders.Order{musicOrder("o2", "Celia Cruz")}}
	p, q := newProcessor(t, client, nil)

	if _, err := p.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	jobs := q.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("zero-match order produced %d jobs, want 1", len(jobs))
	}
	if !jobs[0].NoMatches {
		t.Error("zero-match job not tagged")
	}
	if len(jobs[0].Items) != 0 {
		t.Errorf("zero-match job has %d items", len(jobs[0].Items))
	}
}

func TestPollIsolatesBadOrders(t *testing.T) {
	client := &fakeClient{pending: []orders.Order{
		{OrderNumber: "broken"}, // no order id
		musicOrder("o3", "Juan Luis Guerra"),
	}}
	p, q := newProcessor(t, client, nil)

	created, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1 (bad order skipped)", created)
	}
	if jobs := q.Jobs(); len(jobs) != 1 || jobs[0].OrderID != "o3" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestPollFetchFailure(t *testing.T) {
	client := &fakeClient{fetchErr: errors.New("network down")}
	p, _ := newProcessor(t, client, nil)
	if _, err := p.Poll(context.Background()); err == nil {
		t.Fatal("fetch failure not surfaced")
	}
}

func TestReportCompleted(t *testing.T) {
	client := &fakeClient{}
	p, _ := newProcessor(t, client, nil)

	p.Report(context.Background(), queue.Job{
		ID: "j", OrderID: "o1", Status: queue.StatusCompleted,
	})
	if len(client.completed) != 1 || client.completed[0] != "o1" {
		t.Errorf("completed acks = %v", client.completed)
	}
}

func TestReportFailedCarriesDetail(t *testing.T) {
	client := &fakeClient{}
	p, _ := newProcessor(t, client, nil)

	p.Report(context.Background(), queue.Job{
		ID: "j", OrderID: "o2", Status: queue.StatusFailed, ErrorDetail: "no matching media",
	})
	if client.failed["o2"] != "no matching media" {
		t.Errorf("failed acks = %v", client.failed)
	}
}

func TestReportSkipsNonTerminalAndOrphanJobs(t *testing.T) {
	client := &fakeClient{}
	p, _ := newProcessor(t, client, nil)
	ctx := context.Background()

	p.Report(ctx, queue.Job{ID: "j", OrderID: "o1", Status: queue.StatusRunning})
	p.Report(ctx, queue.Job{ID: "j2", Status: queue.StatusCompleted}) // no order id
	if len(client.completed) != 0 || len(client.failed) != 0 {
		t.Error("non-terminal or orphan job acknowledged")
	}
}

func TestRequestedItemsMapping(t *testing.T) {
	order := orders.Order{
		Genres:  []string{"Salsa", " "},
		Artists: []string{"Marc Anthony"},
		Videos:  []string{"Concert 2019"},
		Movies:  []string{"Inception"},
	}
	items := RequestedItems(order)
	want := []matching.RequestedItem{
		{Type: matching.ItemGenre, Text: "Salsa"},
		{Type: matching.ItemArtist, Text: "Marc Anthony"},
		{Type: matching.ItemVideo, Text: "Concert 2019"},
		{Type: matching.ItemMovie, Text: "Inception"},
	}
	if len(items) != len(want) {
		t.Fatalf("items = %+v, want %+v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}
