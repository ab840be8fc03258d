package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mediacopier/internal/config"
)

const userAgent = "MediaCopier/1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyOrderReceived(ctx context.Context, orderNumber, customerName string, itemCount int) error
	NotifyJobCompleted(ctx context.Context, jobName string, filesCopied int, bytesCopied int64) error
	NotifyJobFailed(ctx context.Context, jobName, reason string) error
	NotifyQueueDrained(ctx context.Context, completed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyOrderReceived(ctx context.Context, orderNumber, customerName string, itemCount int) error {
	orderNumber = strings.TrimSpace(orderNumber)
	customerName = strings.TrimSpace(customerName)
	message := fmt.Sprintf("New order %s: %d requested items", orderNumber, itemCount)
	if customerName != "" {
		message = fmt.Sprintf("New order %s from %s: %d requested items", orderNumber, customerName, itemCount)
	}
	return n.send(ctx, payload{
		title:   "MediaCopier - Order Received",
		message: message,
		tags:    []string{"mediacopier", "order", "received"},
	})
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobName string, filesCopied int, bytesCopied int64) error {
	jobName = strings.TrimSpace(jobName)
	return n.send(ctx, payload{
		title: "MediaCopier - Job Complete",
		message: fmt.Sprintf("%s: copied %d files (%s)",
			jobName, filesCopied, humanize.Bytes(uint64(bytesCopied))),
		tags:     []string{"mediacopier", "job", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobName, reason string) error {
	jobName = strings.TrimSpace(jobName)
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unknown"
	}
	return n.send(ctx, payload{
		title:    "MediaCopier - Job Failed",
		message:  fmt.Sprintf("%s failed: %s", jobName, reason),
		tags:     []string{"mediacopier", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context, completed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "MediaCopier - Queue Complete"
		message = fmt.Sprintf("Queue drained: %d jobs completed in %s", completed, duration)
	} else {
		title = "MediaCopier - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue drained: %d completed, %d failed in %s", completed, failed, duration)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"mediacopier", "queue", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "MediaCopier - Test",
		message:  "Notification system test",
		tags:     []string{"mediacopier", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyOrderReceived(context.Context, string, string, int) error    { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, int, int64) error      { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error             { return nil }
func (noopService) NotifyQueueDrained(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
