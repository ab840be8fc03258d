package orders

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mediacopier/internal/breaker"
	"mediacopier/internal/config"
	"mediacopier/internal/logging"
)

func newTestClient(t *testing.T, serverURL string, opts ...ClientOption) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = serverURL
	cfg.API.APIKey = "test-key"
	cfg.API.MaxRetries = 3
	cfg.API.RetryDelayMillis = 1
	base := []ClientOption{
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
	}
	return NewClient(&cfg, logging.NewNop(), append(base, opts...)...)
}

func TestPendingOrders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/orders/pending" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"orders":[{"order_id":"ord-1","product_type":"music","artists":["Celia Cruz"]}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	orders, err := client.PendingOrders(context.Background())
	if err != nil {
		t.Fatalf("PendingOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].OrderID != "ord-1" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestPendingOrdersMissingField(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.PendingOrders(context.Background())
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (contract violations are not retried)", got)
	}
}

func TestRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"orders":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	orders, err := client.PendingOrders(context.Background())
	if err != nil {
		t.Fatalf("PendingOrders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("unexpected orders: %+v", orders)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.PendingOrders(context.Background())
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestBreakerOpenFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := breaker.New(breaker.Config{Threshold: 2, Cooldown: time.Hour})
	client := newTestClient(t, srv.URL, WithBreaker(b))

	for i := 0; i < 2; i++ {
		if _, err := client.PendingOrders(context.Background()); err == nil {
			t.Fatal("expected failure")
		}
	}
	if b.State() != breaker.Open {
		t.Fatalf("breaker state = %v, want Open", b.State())
	}

	before := calls.Load()
	_, err := client.PendingOrders(context.Background())
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("err = %v, want breaker.ErrOpen", err)
	}
	if calls.Load() != before {
		t.Error("open breaker still reached the server")
	}
}

func TestStartBurning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/orders/ord-7/start-burning" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.StartBurning(context.Background(), "ord-7"); err != nil {
		t.Fatalf("StartBurning: %v", err)
	}
}

func TestAcknowledgeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.CompleteBurning(context.Background(), "ord-7")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
}

func TestReportErrorBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.ReportError(context.Background(), "ord-7", "destination full"); err != nil {
		t.Fatalf("ReportError: %v", err)
	}
	want := `{"error_message":"destination full"}`
	if gotBody != want {
		t.Errorf("body = %s, want %s", gotBody, want)
	}
}

func TestCheckConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orders":[]}`))
	}))
	client := newTestClient(t, srv.URL)
	if !client.CheckConnection(context.Background()) {
		t.Error("CheckConnection = false for healthy server")
	}
	srv.Close()
	if client.CheckConnection(context.Background()) {
		t.Error("CheckConnection = true for closed server")
	}
}
