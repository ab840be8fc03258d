package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mediacopier/internal/backoff"
	"mediacopier/internal/breaker"
	"mediacopier/internal/config"
	"mediacopier/internal/logging"
)

// HTTPDoer describes the HTTP client used by the order service client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the remote order service. All calls share one circuit
// breaker; a call made while the breaker is open returns breaker.ErrOpen
// without any I/O.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	breaker    *breaker.Breaker
	timeout    time.Duration
	maxRetries int
	retryDelay backoff.Config
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP transport (used in tests).
func WithHTTPClient(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

// WithBreaker injects a shared breaker instance.
func WithBreaker(b *breaker.Breaker) ClientOption {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// WithSleep overrides the inter-retry wait (used in tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient constructs a client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.API.APIKey),
		httpClient: http.DefaultClient,
		breaker: breaker.New(breaker.Config{
			Threshold: cfg.API.BreakerThreshold,
			Cooldown:  time.Duration(cfg.API.BreakerCooldownSeconds) * time.Second,
		}),
		timeout:    time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		maxRetries: cfg.API.MaxRetries,
		retryDelay: backoff.Config{
			Initial: time.Duration(cfg.API.RetryDelayMillis) * time.Millisecond,
		},
		logger: logging.NewComponentLogger(logger, "orders-client"),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breaker exposes the underlying circuit breaker for observation.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// PendingOrders fetches orders awaiting burning.
func (c *Client) PendingOrders(ctx context.Context) ([]Order, error) {
	var payload pendingOrdersResponse
	if err := c.call(ctx, http.MethodGet, "/api/orders/pending", nil, &payload); err != nil {
		return nil, err
	}
	if payload.Orders == nil {
		return nil, fmt.Errorf("%w: missing orders field", ErrInvalidResponse)
	}
	c.logger.Debug("fetched pending orders", logging.Int("count", len(*payload.Orders)))
	return *payload.Orders, nil
}

// StartBurning marks an order as in progress on the remote service.
func (c *Client) StartBurning(ctx context.Context, orderID string) error {
	return c.acknowledge(ctx, orderID, "start-burning", nil)
}

// CompleteBurning marks an order as completed on the remote service.
func (c *Client) CompleteBurning(ctx context.Context, orderID string) error {
	return c.acknowledge(ctx, orderID, "complete-burning", nil)
}

// ReportError reports a failed burn for an order.
func (c *Client) ReportError(ctx context.Context, orderID, message string) error {
	return c.acknowledge(ctx, orderID, "report-error", errorReport{ErrorMessage: message})
}

// CheckConnection reports whether the order service responds at all. Bypasses
// retries and the breaker; intended for diagnostics.
func (c *Client) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/orders/pending", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *Client) acknowledge(ctx context.Context, orderID, action string, body any) error {
	path := fmt.Sprintf("/api/orders/%s/%s", orderID, action)
	var payload ackResponse
	if err := c.call(ctx, http.MethodPost, path, body, &payload); err != nil {
		return err
	}
	if payload.Success == nil {
		return fmt.Errorf("%w: missing success field", ErrInvalidResponse)
	}
	if !*payload.Success {
		return fmt.Errorf("%w: order %s %s", ErrRejected, orderID, action)
	}
	return nil
}

// call routes one logical API call through the breaker. The retry loop runs
// inside the breaker so an exhausted retry sequence counts as a single
// failure event.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	return c.breaker.Execute(func() error {
		return c.callWithRetry(ctx, method, path, body, out)
	})
}

func (c *Client) callWithRetry(ctx context.Context, method, path string, body, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}
		delay := backoff.Exponential(attempt, &c.retryDelay)
		c.logger.Warn("api call failed, retrying",
			logging.String("path", path),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s %s failed after %d attempts: %w", method, path, c.maxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: server returned %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: server returned %d", ErrInvalidResponse, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransient, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
