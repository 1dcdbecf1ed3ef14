package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/webhook"
)

// mockRecords implements session.Store; the dispatcher only reads via Find.
type mockRecords struct {
	FindFunc func(ctx context.Context, tenantID string) (*session.Record, error)
}

func (m *mockRecords) Find(ctx context.Context, tenantID string) (*session.Record, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, tenantID)
	}
	return nil, session.ErrRecordNotFound
}

func (m *mockRecords) Ensure(ctx context.Context, tenantID string) (*session.Record, error) {
	return nil, nil
}
func (m *mockRecords) SetWebhookURL(ctx context.Context, tenantID, url string) error { return nil }
func (m *mockRecords) SetToken(ctx context.Context, tenantID, token string) error { return nil }
func (m *mockRecords) MarkPairing(ctx context.Context, tenantID, payload string) error {
	return nil
}
func (m *mockRecords) MarkConnected(ctx context.Context, tenantID, identity string) error {
	return nil
}
func (m *mockRecords) MarkReconnecting(ctx context.Context, tenantID string, attempt int) error {
	return nil
}
func (m *mockRecords) MarkDisconnected(ctx context.Context, tenantID string) error { return nil }
func (m *mockRecords) ListResumable(ctx context.Context) ([]*session.Record, error) {
	return nil, nil
}

type capturedRequest struct {
	body    map[string]any
	headers http.Header
}

func TestDispatcherDeliverEnvelope(t *testing.T) {
	received := make(chan capturedRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		received <- capturedRequest{body: body, headers: r.Header}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	records := &mockRecords{
		FindFunc: func(ctx context.Context, tenantID string) (*session.Record, error) {
			return &session.Record{TenantID: tenantID, Status: session.StatusConnected, WebhookURL: server.URL}, nil
		},
	}
	d := webhook.NewDispatcher(records, time.Second, zerolog.Nop())

	d.Deliver(context.Background(), "tenant-a", "connected", map[string]any{"identity": "15551234567"})

	select {
	case got := <-received:
		if got.body["event"] != "connected" {
			t.Errorf("envelope event = %v, want connected", got.body["event"])
		}
		if got.body["tenant"] != "tenant-a" {
			t.Errorf("envelope tenant = %v, want tenant-a", got.body["tenant"])
		}
		if got.body["identity"] != "15551234567" {
			t.Errorf("envelope identity = %v, want 15551234567", got.body["identity"])
		}
		if got.headers.Get("X-Wahub-Event") != "connected" {
			t.Errorf("X-Wahub-Event header = %q, want connected", got.headers.Get("X-Wahub-Event"))
		}
		if ct := got.headers.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if ua := got.headers.Get("User-Agent"); !strings.HasPrefix(ua, "wahub-whatsapp-api/") {
			t.Errorf("User-Agent = %q, want wahub-whatsapp-api prefix", ua)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for webhook delivery")
	}
}

func TestDispatcherNoWebhookURL(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	records := &mockRecords{
		FindFunc: func(ctx context.Context, tenantID string) (*session.Record, error) {
			return &session.Record{TenantID: tenantID, Status: session.StatusConnected}, nil
		},
	}
	d := webhook.NewDispatcher(records, time.Second, zerolog.Nop())

	d.Deliver(context.Background(), "tenant-a", "connected", map[string]any{"identity": "15551234567"})

	time.Sleep(100 * time.Millisecond)
	if got := requests.Load(); got != 0 {
		t.Errorf("requests = %d, want 0 when no webhook URL is configured", got)
	}
}

func TestDispatcherRecordNotFound(t *testing.T) {
	records := &mockRecords{
		FindFunc: func(ctx context.Context, tenantID string) (*session.Record, error) {
			return nil, session.ErrRecordNotFound
		},
	}
	d := webhook.NewDispatcher(records, time.Second, zerolog.Nop())

	// Must drop the event without panicking.
	d.Deliver(context.Background(), "nobody", "connected", nil)
}

func TestDispatcherSingleAttempt(t *testing.T) {
	var requests atomic.Int32
	first := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			first <- struct{}{}
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	records := &mockRecords{
		FindFunc: func(ctx context.Context, tenantID string) (*session.Record, error) {
			return &session.Record{TenantID: tenantID, Status: session.StatusConnected, WebhookURL: server.URL}, nil
		},
	}
	d := webhook.NewDispatcher(records, time.Second, zerolog.Nop())

	d.Deliver(context.Background(), "tenant-a", "disconnected", map[string]any{"reason": "logged_out"})

	select {
	case <-first:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for webhook attempt")
	}

	// A rejected delivery is dropped, never retried.
	time.Sleep(150 * time.Millisecond)
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want exactly 1", got)
	}
}

func TestDispatcherReReadsURL(t *testing.T) {
	received := make(chan string, 2)
	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- "a"
	}))
	defer serverA.Close()
	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- "b"
	}))
	defer serverB.Close()

	url := serverA.URL
	records := &mockRecords{
		FindFunc: func(ctx context.Context, tenantID string) (*session.Record, error) {
			return &session.Record{TenantID: tenantID, Status: session.StatusConnected, WebhookURL: url}, nil
		},
	}
	d := webhook.NewDispatcher(records, time.Second, zerolog.Nop())

	d.Deliver(context.Background(), "tenant-a", "pairing", map[string]any{"payload": "qr-1"})
	waitTarget(t, received, "a")

	// The tenant re-registers a new URL mid-session; the next event follows it.
	url = serverB.URL
	d.Deliver(context.Background(), "tenant-a", "pairing", map[string]any{"payload": "qr-2"})
	waitTarget(t, received, "b")
}

func waitTarget(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("delivery hit server %q, want %q", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for delivery to server %q", want)
	}
}
