// Package processor converts remote orders into copy jobs. A polling loop
// fetches pending orders on its own schedule, dedupes against the queue,
// matches requested items against the local catalog, and enqueues jobs; once
// a job reaches a terminal state the outcome is acknowledged back to the
// order service.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mediacopier/internal/config"
	"mediacopier/internal/logging"
	"mediacopier/internal/matching"
	"mediacopier/internal/media"
	"mediacopier/internal/notifications"
	"mediacopier/internal/orders"
	"mediacopier/internal/queue"
)

// OrdersClient is the remote surface the processor needs.
type OrdersClient interface {
	PendingOrders(ctx context.Context) ([]orders.Order, error)
	StartBurning(ctx context.Context, orderID string) error
	CompleteBurning(ctx context.Context, orderID string) error
	ReportError(ctx context.Context, orderID, message string) error
}

// Dispatcher schedules a pending job for execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Processor drives the order-to-job pipeline.
type Processor struct {
	client     OrdersClient
	queue      *queue.Queue
	catalog    *media.Catalog
	dispatcher Dispatcher
	notifier   notifications.Service
	cfg        *config.Config
	logger     *slog.Logger
	interval   time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	stopped sync.WaitGroup
}

// New creates a processor. dispatcher and notifier may be nil (jobs are then
// only enqueued).
func New(client OrdersClient, q *queue.Queue, catalog *media.Catalog, dispatcher Dispatcher, notifier notifications.Service, cfg *config.Config, logger *slog.Logger) *Processor {
	interval := time.Duration(cfg.API.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Processor{
		client:     client,
		queue:      q,
		catalog:    catalog,
		dispatcher: dispatcher,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "order-processor"),
		interval:   interval,
	}
}

// Start launches the polling loop. Stop (or ctx cancellation) ends it.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	stop := p.stop

	p.stopped.Add(1)
	go func() {
		defer p.stopped.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Warn("poll cycle failed", logging.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the polling loop and waits for it to exit.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.mu.Unlock()
	p.stopped.Wait()
}

// Poll fetches pending orders and enqueues a job for each order not already
// represented in the queue. A failure converting one order never aborts the
// rest of the cycle. Returns the number of jobs created.
func (p *Processor) Poll(ctx context.Context) (int, error) {
	pending, err := p.client.PendingOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch pending orders: %w", err)
	}

	created := 0
	for _, order := range pending {
		if order.OrderID == "" {
			p.logger.Warn("skipping order without id", logging.String("number", order.OrderNumber))
			continue
		}
		if p.queue.HasJobForOrder(order.OrderID) {
			continue
		}
		if err := p.convert(ctx, order); err != nil {
			p.logger.Error("order conversion failed, continuing",
				logging.String(logging.FieldOrderID, order.OrderID),
				logging.Error(err))
			continue
		}
		created++
	}
	return created, nil
}

// convert builds and enqueues a job for one order.
func (p *Processor) convert(ctx context.Context, order orders.Order) error {
	items := RequestedItems(order)
	product := normalizeProduct(order.ProductType)
	rules := matching.RulesForProduct(p.cfg, product)
	files := p.catalog.FilesFor(product)
	matched := matching.MatchItems(items, files, rules)

	name := order.OrderNumber
	if name == "" {
		name = order.OrderID
	}

	opts := []queue.JobOption{
		queue.WithOrderID(order.OrderID),
		queue.WithDestination(p.cfg.Paths.DestinationDir),
	}
	if len(matched) == 0 {
		opts = append(opts, queue.WithNoMatchTag())
		p.logger.Warn("order yielded no matching media",
			logging.String(logging.FieldOrderID, order.OrderID),
			logging.Int("requested_items", len(items)))
	}

	job, err := p.queue.AddJob(ctx, name, jobItems(matched), rules, queue.FolderPerRequest, opts...)
	if err != nil {
		// Persistence failures are logged by the queue; the in-memory job
		// stands, so continue with it.
		if job.ID == "" {
			return err
		}
	}

	p.logger.Info("job created for order",
		logging.String(logging.FieldOrderID, order.OrderID),
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("matched_files", len(job.Items)))

	if err := p.client.StartBurning(ctx, order.OrderID); err != nil {
		p.logger.Warn("start-burning acknowledgment failed",
			logging.String(logging.FieldOrderID, order.OrderID),
			logging.Error(err))
	}
	if p.notifier != nil {
		if err := p.notifier.NotifyOrderReceived(ctx, order.OrderNumber, order.CustomerName, len(items)); err != nil {
			p.logger.Debug("order notification failed", logging.Error(err))
		}
	}
	if p.dispatcher != nil && p.cfg.Runner.AutoStart {
		if err := p.dispatcher.Dispatch(ctx, job.ID); err != nil {
			p.logger.Error("dispatch failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}
	return nil
}

// Report acknowledges a terminal job to the order service. Acknowledgment
// failures are logged, never rolled back into the job's local status.
func (p *Processor) Report(ctx context.Context, job queue.Job) {
	if job.OrderID == "" || !job.Status.IsTerminal() {
		return
	}
	var err error
	switch job.Status {
	case queue.StatusCompleted:
		err = p.client.CompleteBurning(ctx, job.OrderID)
	default:
		detail := job.ErrorDetail
		if detail == "" {
			detail = string(job.Status)
		}
		err = p.client.ReportError(ctx, job.OrderID, detail)
	}
	if err != nil {
		p.logger.Error("order acknowledgment failed",
			logging.String(logging.FieldOrderID, job.OrderID),
			logging.String("status", string(job.Status)),
			logging.Error(err))
		return
	}
	p.logger.Info("order acknowledged",
		logging.String(logging.FieldOrderID, job.OrderID),
		logging.String("status", string(job.Status)))
}

// RequestedItems maps an order's requested lists onto typed match requests.
func RequestedItems(order orders.Order) []matching.RequestedItem {
	var items []matching.RequestedItem
	add := func(texts []string, typ matching.RequestedItemType) {
		for _, text := range texts {
			if text = strings.TrimSpace(text); text != "" {
				items = append(items, matching.RequestedItem{Type: typ, Text: text})
			}
		}
	}
	add(order.Genres, matching.ItemGenre)
	add(order.Artists, matching.ItemArtist)
	add(order.Videos, matching.ItemVideo)
	add(order.Movies, matching.ItemMovie)
	return items
}

func jobItems(files []media.File) []queue.JobItem {
	items := make([]queue.JobItem, 0, len(files))
	for _, f := range files {
		items = append(items, queue.JobItem{
			Source: f.Path,
			Label:  f.Title,
			Bytes:  f.Size,
			Artist: f.Artist,
			Genre:  f.Genre,
		})
	}
	return items
}

func normalizeProduct(productType string) string {
	switch strings.ToLower(strings.TrimSpace(productType)) {
	case "videos", "video":
		return "videos"
	case "movies", "movie":
		return "movies"
	default:
		return "music"
	}
}
