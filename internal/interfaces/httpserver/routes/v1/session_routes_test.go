package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wahub/services/whatsapp-api/internal/domain/session"
	"wahub/services/whatsapp-api/internal/domain/transport"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver/handlers"
	"wahub/services/whatsapp-api/internal/interfaces/httpserver/routes"
)

const adminSecret = "test-admin-secret"

// mockSessionService implements session.Service with per-test overrides.
type mockSessionService struct {
	StartSessionFunc func(ctx context.Context, tenantID, webhookURL string) (*session.Record, error)
	StopSessionFunc  func(ctx context.Context, tenantID string) error
	GetStatusFunc    func(ctx context.Context, tenantID string) (*session.Record, error)
	GetHandleFunc    func(tenantID string) (transport.Handle, bool)
}

func (m *mockSessionService) StartSession(ctx context.Context, tenantID, webhookURL string) (*session.Record, error) {
	if m.StartSessionFunc != nil {
		return m.StartSessionFunc(ctx, tenantID, webhookURL)
	}
	return &session.Record{TenantID: tenantID, Status: session.StatusUninitialized}, nil
}

func (m *mockSessionService) StopSession(ctx context.Context, tenantID string) error {
	if m.StopSessionFunc != nil {
		return m.StopSessionFunc(ctx, tenantID)
	}
	return nil
}

func (m *mockSessionService) GetStatus(ctx context.Context, tenantID string) (*session.Record, error) {
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, tenantID)
	}
	return &session.Record{TenantID: tenantID, Status: session.StatusUninitialized}, nil
}

func (m *mockSessionService) GetHandle(tenantID string) (transport.Handle, bool) {
	if m.GetHandleFunc != nil {
		return m.GetHandleFunc(tenantID)
	}
	return nil, false
}

// mockHandle implements transport.Handle for message dispatch tests.
type mockHandle struct {
	SendFunc func(ctx context.Context, to string, content transport.Content) (transport.SendReceipt, error)
}

func (m *mockHandle) Events() <-chan transport.Event { return nil }

func (m *mockHandle) Send(ctx context.Context, to string, content transport.Content) (transport.SendReceipt, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, content)
	}
	return transport.SendReceipt{}, nil
}

func (m *mockHandle) Terminate(ctx context.Context) error { return nil }
func (m *mockHandle) Detach()                             {}

// stubRecords is a minimal in-memory session.Store for auth and token tests.
type stubRecords struct {
	mu   sync.Mutex
	recs map[string]*session.Record
}

func newStubRecords() *stubRecords {
	return &stubRecords{recs: make(map[string]*session.Record)}
}

func (s *stubRecords) seed(rec session.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.TenantID] = &rec
}

func (s *stubRecords) token(tenantID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[tenantID]; ok {
		return rec.Token
	}
	return ""
}

func (s *stubRecords) Ensure(ctx context.Context, tenantID string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[tenantID]; ok {
		cp := *rec
		return &cp, nil
	}
	rec := &session.Record{TenantID: tenantID, Status: session.StatusUninitialized}
	s.recs[tenantID] = rec
	cp := *rec
	return &cp, nil
}

func (s *stubRecords) Find(ctx context.Context, tenantID string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[tenantID]
	if !ok {
		return nil, session.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *stubRecords) SetWebhookURL(ctx context.Context, tenantID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[tenantID]; ok {
		rec.WebhookURL = url
		return nil
	}
	return session.ErrRecordNotFound
}

func (s *stubRecords) SetToken(ctx context.Context, tenantID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[tenantID]; ok {
		rec.Token = token
		return nil
	}
	return session.ErrRecordNotFound
}

func (s *stubRecords) MarkPairing(ctx context.Context, tenantID, payload string) error { return nil }
func (s *stubRecords) MarkConnected(ctx context.Context, tenantID, identity string) error { return nil }
func (s *stubRecords) MarkReconnecting(ctx context.Context, tenantID string, attempt int) error {
	return nil
}
func (s *stubRecords) MarkDisconnected(ctx context.Context, tenantID string) error { return nil }
func (s *stubRecords) ListResumable(ctx context.Context) ([]*session.Record, error) {
	return nil, nil
}

func newTestEngine(svc session.Service, records *stubRecords) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	provider := routes.NewProvider(handlers.NewProvider(svc, records), records, adminSecret, zerolog.Nop())
	provider.Register(engine)
	return engine
}

func doRequest(engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestProvisionToken(t *testing.T) {
	records := newStubRecords()
	engine := newTestEngine(&mockSessionService{}, records)

	w := doRequest(engine, http.MethodPost, "/v1/admin/tokens", adminSecret, map[string]any{
		"tenant_id":   "tenant-a",
		"webhook_url": "https://hooks.example.com/wa",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp struct {
		Tenant string `json:"tenant"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tenant != "tenant-a" {
		t.Errorf("tenant = %q, want tenant-a", resp.Tenant)
	}
	if !strings.HasPrefix(resp.Token, "wat_") {
		t.Errorf("token = %q, want wat_ prefix", resp.Token)
	}
	if records.token("tenant-a") != resp.Token {
		t.Errorf("stored token %q does not match issued token %q", records.token("tenant-a"), resp.Token)
	}

	rec, err := records.Find(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("tenant record not created: %v", err)
	}
	if rec.WebhookURL != "https://hooks.example.com/wa" {
		t.Errorf("webhook URL = %q, not persisted", rec.WebhookURL)
	}
}

func TestProvisionTokenRejections(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "wrong admin secret",
			secret:     "not-the-secret",
			body:       map[string]any{"tenant_id": "tenant-a"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing admin secret",
			secret:     "",
			body:       map[string]any{"tenant_id": "tenant-a"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing tenant id",
			secret:     adminSecret,
			body:       map[string]any{"webhook_url": "https://hooks.example.com/wa"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(&mockSessionService{}, newStubRecords())

			w := doRequest(engine, http.MethodPost, "/v1/admin/tokens", tt.secret, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestTenantAuth(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusConnected, Token: "wat_goodtoken"})
	records.seed(session.Record{TenantID: "tenant-b", Status: session.StatusUninitialized})

	engine := newTestEngine(&mockSessionService{}, records)

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid token",
			path:       "/v1/sessions/tenant-a/status",
			authHeader: "Bearer wat_goodtoken",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			path:       "/v1/sessions/tenant-a/status",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			path:       "/v1/sessions/tenant-a/status",
			authHeader: "Token wat_goodtoken",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong token",
			path:       "/v1/sessions/tenant-a/status",
			authHeader: "Bearer wat_badtoken",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "tenant without provisioned token",
			path:       "/v1/sessions/tenant-b/status",
			authHeader: "Bearer wat_goodtoken",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown tenant",
			path:       "/v1/sessions/nobody/status",
			authHeader: "Bearer wat_goodtoken",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized && tt.authHeader != "" {
				// The response must not reveal whether the tenant exists.
				if !strings.Contains(w.Body.String(), "invalid tenant credentials") &&
					!strings.Contains(w.Body.String(), "missing bearer token") {
					t.Errorf("unexpected 401 body: %s", w.Body.String())
				}
			}
		})
	}
}

func TestStartSessionRoute(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusUninitialized, Token: "wat_goodtoken"})

	var gotWebhook string
	svc := &mockSessionService{
		StartSessionFunc: func(ctx context.Context, tenantID, webhookURL string) (*session.Record, error) {
			gotWebhook = webhookURL
			return &session.Record{TenantID: tenantID, Status: session.StatusQRReady, PairingPayload: "qr-data", UpdatedAt: time.Now()}, nil
		},
	}
	engine := newTestEngine(svc, records)

	w := doRequest(engine, http.MethodPost, "/v1/sessions/tenant-a/start", "wat_goodtoken", map[string]any{
		"webhook_url": "https://hooks.example.com/wa",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotWebhook != "https://hooks.example.com/wa" {
		t.Errorf("webhook passed to service = %q, want request body value", gotWebhook)
	}

	var resp struct {
		Tenant         string `json:"tenant"`
		Status         string `json:"status"`
		PairingPayload string `json:"pairing_payload"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tenant != "tenant-a" || resp.Status != string(session.StatusQRReady) || resp.PairingPayload != "qr-data" {
		t.Errorf("response = %+v, want tenant-a QR_READY with payload", resp)
	}
}

func TestStartSessionRouteEmptyBody(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusUninitialized, Token: "wat_goodtoken"})

	var gotWebhook string
	svc := &mockSessionService{
		StartSessionFunc: func(ctx context.Context, tenantID, webhookURL string) (*session.Record, error) {
			gotWebhook = webhookURL
			return &session.Record{TenantID: tenantID, Status: session.StatusUninitialized}, nil
		},
	}
	engine := newTestEngine(svc, records)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/tenant-a/start", nil)
	req.Header.Set("Authorization", "Bearer wat_goodtoken")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotWebhook != "" {
		t.Errorf("webhook passed to service = %q, want empty for bodyless start", gotWebhook)
	}
}

func TestStopSessionRoute(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusConnected, Token: "wat_goodtoken"})

	stopped := false
	svc := &mockSessionService{
		StopSessionFunc: func(ctx context.Context, tenantID string) error {
			stopped = tenantID == "tenant-a"
			return nil
		},
	}
	engine := newTestEngine(svc, records)

	w := doRequest(engine, http.MethodPost, "/v1/sessions/tenant-a/stop", "wat_goodtoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !stopped {
		t.Errorf("service StopSession was not called for tenant-a")
	}

	var resp struct {
		Tenant  string `json:"tenant"`
		Stopped bool   `json:"stopped"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tenant != "tenant-a" || !resp.Stopped {
		t.Errorf("response = %+v, want tenant-a stopped", resp)
	}
}

func TestGetStatusRoute(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusConnected, Token: "wat_goodtoken"})

	svc := &mockSessionService{
		GetStatusFunc: func(ctx context.Context, tenantID string) (*session.Record, error) {
			return &session.Record{
				TenantID:   tenantID,
				Status:     session.StatusConnected,
				Identity:   "15551234567",
				RetryCount: 0,
				UpdatedAt:  time.Now(),
			}, nil
		},
	}
	engine := newTestEngine(svc, records)

	w := doRequest(engine, http.MethodGet, "/v1/sessions/tenant-a/status", "wat_goodtoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Status   string `json:"status"`
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(session.StatusConnected) || resp.Identity != "15551234567" {
		t.Errorf("response = %+v, want CONNECTED with identity", resp)
	}
}

func TestGetStatusRouteQRImage(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusQRReady, Token: "wat_goodtoken"})

	payload := "qr-data"
	svc := &mockSessionService{
		GetStatusFunc: func(ctx context.Context, tenantID string) (*session.Record, error) {
			return &session.Record{TenantID: tenantID, Status: session.StatusQRReady, PairingPayload: payload}, nil
		},
	}
	engine := newTestEngine(svc, records)

	w := doRequest(engine, http.MethodGet, "/v1/sessions/tenant-a/status?format=image", "wat_goodtoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Errorf("body does not start with PNG magic bytes")
	}

	// Without a pending pairing payload there is nothing to render.
	payload = ""
	w = doRequest(engine, http.MethodGet, "/v1/sessions/tenant-a/status?format=image", "wat_goodtoken", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status without payload = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSendMessageRoute(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusConnected, Token: "wat_goodtoken"})

	handle := &mockHandle{
		SendFunc: func(ctx context.Context, to string, content transport.Content) (transport.SendReceipt, error) {
			if to != "15557654321" {
				t.Errorf("to = %q, want 15557654321", to)
			}
			return transport.SendReceipt{MessageID: "3EB0TESTID", Timestamp: time.Unix(1700000000, 0)}, nil
		},
	}
	svc := &mockSessionService{
		GetHandleFunc: func(tenantID string) (transport.Handle, bool) {
			return handle, true
		},
	}
	engine := newTestEngine(svc, records)

	w := doRequest(engine, http.MethodPost, "/v1/sessions/tenant-a/messages", "wat_goodtoken", map[string]any{
		"to":   "15557654321",
		"type": "text",
		"text": "hello",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		MessageID string `json:"message_id"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MessageID != "3EB0TESTID" || resp.Timestamp != 1700000000 {
		t.Errorf("response = %+v, want receipt fields echoed", resp)
	}
}

func TestSendMessageRouteContactAndSticker(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusConnected, Token: "wat_goodtoken"})

	var got transport.Content
	handle := &mockHandle{
		SendFunc: func(ctx context.Context, to string, content transport.Content) (transport.SendReceipt, error) {
			got = content
			return transport.SendReceipt{MessageID: "3EB0TESTID", Timestamp: time.Unix(1700000000, 0)}, nil
		},
	}
	engine := newTestEngine(&mockSessionService{
		GetHandleFunc: func(tenantID string) (transport.Handle, bool) {
			return handle, true
		},
	}, records)

	w := doRequest(engine, http.MethodPost, "/v1/sessions/tenant-a/messages", "wat_goodtoken", map[string]any{
		"to":            "15557654321",
		"type":          "contact",
		"contact_name":  "Alice",
		"contact_phone": "+15557654321",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("contact status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got.Type != transport.ContentContact || got.ContactName != "Alice" || got.ContactPhone != "+15557654321" {
		t.Errorf("contact content = %+v, want name and phone forwarded", got)
	}

	w = doRequest(engine, http.MethodPost, "/v1/sessions/tenant-a/messages", "wat_goodtoken", map[string]any{
		"to":   "15557654321",
		"type": "sticker",
		"url":  "https://cdn.example.com/wave.webp",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sticker status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got.Type != transport.ContentSticker || got.URL != "https://cdn.example.com/wave.webp" {
		t.Errorf("sticker content = %+v, want the media url forwarded", got)
	}
}

func TestSendMessageRouteValidation(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusConnected, Token: "wat_goodtoken"})

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "text without text field",
			body:       map[string]any{"to": "15557654321", "type": "text"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "image without url",
			body:       map[string]any{"to": "15557654321", "type": "image"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "sticker without url",
			body:       map[string]any{"to": "15557654321", "type": "sticker"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "contact without phone",
			body:       map[string]any{"to": "15557654321", "type": "contact", "contact_name": "Alice"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported type",
			body:       map[string]any{"to": "15557654321", "type": "poll"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing recipient",
			body:       map[string]any{"type": "text", "text": "hello"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(&mockSessionService{
				GetHandleFunc: func(tenantID string) (transport.Handle, bool) {
					return &mockHandle{}, true
				},
			}, records)

			w := doRequest(engine, http.MethodPost, "/v1/sessions/tenant-a/messages", "wat_goodtoken", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestSendMessageRouteNoActiveSession(t *testing.T) {
	records := newStubRecords()
	records.seed(session.Record{TenantID: "tenant-a", Status: session.StatusDisconnected, Token: "wat_goodtoken"})

	engine := newTestEngine(&mockSessionService{
		GetHandleFunc: func(tenantID string) (transport.Handle, bool) {
			return nil, false
		},
	}, records)

	w := doRequest(engine, http.MethodPost, "/v1/sessions/tenant-a/messages", "wat_goodtoken", map[string]any{
		"to":   "15557654321",
		"type": "text",
		"text": "hello",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d, body %s", w.Code, http.StatusServiceUnavailable, w.Body.String())
	}
}
