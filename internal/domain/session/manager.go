package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wahub/services/whatsapp-api/internal/domain/credential"
	"wahub/services/whatsapp-api/internal/domain/transport"
	"wahub/services/whatsapp-api/internal/infrastructure/metrics"
)

// Notifier delivers typed events to the tenant's configured webhook URL.
// Delivery is best-effort, at-most-once; implementations must never return
// delivery failures to the caller.
type Notifier interface {
	Deliver(ctx context.Context, tenantID, event string, payload map[string]any)
}

// Service defines the control surface consumed by the HTTP route layer.
type Service interface {
	StartSession(ctx context.Context, tenantID, webhookURL string) (*Record, error)
	StopSession(ctx context.Context, tenantID string) error
	GetStatus(ctx context.Context, tenantID string) (*Record, error)
	GetHandle(tenantID string) (transport.Handle, bool)
}

// Config tunes the lifecycle policy.
type Config struct {
	// MaxReconnectAttempts bounds transient-retry handling; once the counter
	// reaches this value, the next transient close is escalated to terminal.
	MaxReconnectAttempts int
	// ReconnectDelay is the fixed delay before a scheduled reconnection.
	ReconnectDelay time.Duration
	// RestoreInterval paces sequential session restoration on boot.
	RestoreInterval time.Duration
}

// DefaultConfig mirrors the canonical policy: 30 attempts, one minute apart,
// one-second restore pacing.
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: 30,
		ReconnectDelay:       time.Minute,
		RestoreInterval:      time.Second,
	}
}

// Manager owns the lifecycle of every tenant session: it creates, tracks,
// reconnects and tears down transport handles, keeps the durable record in
// step with transport events, and pushes lifecycle/message events to the
// webhook notifier.
type Manager struct {
	cfg      Config
	records  Store
	creds    credential.Store
	dialer   transport.Dialer
	notifier Notifier
	registry *Registry
	log      zerolog.Logger

	mu       sync.Mutex
	retries  map[string]int
	timers   map[string]*time.Timer
	closing  map[string]struct{}
	episodes map[string]*sync.Mutex
}

var _ Service = (*Manager)(nil)

// NewManager wires the lifecycle manager.
func NewManager(
	cfg Config,
	records Store,
	creds credential.Store,
	dialer transport.Dialer,
	notifier Notifier,
	log zerolog.Logger,
) *Manager {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultConfig().MaxReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if cfg.RestoreInterval <= 0 {
		cfg.RestoreInterval = DefaultConfig().RestoreInterval
	}
	return &Manager{
		cfg:      cfg,
		records:  records,
		creds:    creds,
		dialer:   dialer,
		notifier: notifier,
		registry: NewRegistry(),
		log:      log.With().Str("component", "session-manager").Logger(),
		retries:  make(map[string]int),
		timers:   make(map[string]*time.Timer),
		closing:  make(map[string]struct{}),
		episodes: make(map[string]*sync.Mutex),
	}
}

// Registry exposes the registry for introspection in tests.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// episode returns the tenant's close/teardown mutex, creating it on first
// use. Start, close handling, reconnection and teardown all run under it,
// so lifecycle transitions for one tenant never interleave. The map only
// grows with the number of tenants ever seen.
func (m *Manager) episode(tenantID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	mu, ok := m.episodes[tenantID]
	if !ok {
		mu = &sync.Mutex{}
		m.episodes[tenantID] = mu
	}
	return mu
}

// StartSession ensures a record exists, optionally updates the webhook URL,
// and builds a transport handle unless one is already active or being
// constructed. It returns the current record snapshot either way.
func (m *Manager) StartSession(ctx context.Context, tenantID, webhookURL string) (*Record, error) {
	if _, err := m.records.Ensure(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("ensure session record: %w", err)
	}
	if webhookURL != "" {
		if err := m.records.SetWebhookURL(ctx, tenantID, webhookURL); err != nil {
			return nil, fmt.Errorf("set webhook url: %w", err)
		}
	}

	mu := m.episode(tenantID)
	mu.Lock()
	defer mu.Unlock()

	acq := m.registry.Acquire(tenantID)
	if !acq.Proceed {
		// Already active or boot in progress; the caller observes the
		// current state.
		return m.records.Find(ctx, tenantID)
	}

	m.clearClosing(tenantID)
	if err := m.connect(ctx, tenantID); err != nil {
		return nil, err
	}
	metrics.RecordSessionStarted()
	return m.records.Find(ctx, tenantID)
}

// connect dials the transport for a tenant whose pending mark the caller
// holds. On dial failure the pending mark is released so the caller may
// retry; on success the handle is committed and its event stream consumed.
func (m *Manager) connect(ctx context.Context, tenantID string) error {
	handle, err := m.dialer.Dial(ctx, tenantID, credential.NewScope(m.creds, tenantID))
	if err != nil {
		m.registry.Release(tenantID)
		return fmt.Errorf("dial transport: %w", err)
	}

	if !m.registry.Commit(tenantID, handle) {
		// Torn down while the dial was in flight; do not resurrect.
		m.log.Warn().Str("tenant_id", tenantID).Msg("discarding handle committed after teardown")
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = handle.Terminate(termCtx)
		return nil
	}

	go m.consume(tenantID, handle)
	return nil
}

// consume drives the lifecycle state machine from one handle's ordered
// event stream. It is the only goroutine that processes events for the
// tenant, so per-tenant ordering is strict while tenants stay independent.
func (m *Manager) consume(tenantID string, handle transport.Handle) {
	ctx := context.Background()
	sawClose := false

	for ev := range handle.Events() {
		switch e := ev.(type) {
		case transport.Pairing:
			if err := m.records.MarkPairing(ctx, tenantID, e.Payload); err != nil {
				m.log.Error().Err(err).Str("tenant_id", tenantID).Msg("persist pairing payload")
				continue
			}
			m.log.Info().Str("tenant_id", tenantID).Msg("pairing payload received")
			m.notifier.Deliver(ctx, tenantID, "pairing", map[string]any{"payload": e.Payload})

		case transport.Connected:
			if err := m.records.MarkConnected(ctx, tenantID, e.Identity); err != nil {
				m.log.Error().Err(err).Str("tenant_id", tenantID).Msg("persist connected state")
				continue
			}
			m.resetRetries(tenantID)
			metrics.RecordSessionConnected()
			m.log.Info().Str("tenant_id", tenantID).Str("identity", e.Identity).Msg("session connected")
			m.notifier.Deliver(ctx, tenantID, "connected", map[string]any{"identity": e.Identity})

		case transport.Credentials:
			m.persistCredentials(ctx, tenantID, e.Blobs)

		case transport.Message:
			m.notifier.Deliver(ctx, tenantID, "message", map[string]any{
				"message_id": e.Envelope.MessageID,
				"from":       e.Envelope.From,
				"push_name":  e.Envelope.PushName,
				"type":       e.Envelope.Type,
				"text":       e.Envelope.Text,
				"timestamp":  e.Envelope.Timestamp.Unix(),
			})

		case transport.ContactsSync:
			contacts := make([]map[string]any, 0, len(e.Contacts))
			for _, c := range e.Contacts {
				contacts = append(contacts, map[string]any{"id": c.ID, "name": c.Name})
			}
			m.notifier.Deliver(ctx, tenantID, "contacts.sync", map[string]any{"contacts": contacts})

		case transport.ChatsSync:
			chats := make([]map[string]any, 0, len(e.Chats))
			for _, c := range e.Chats {
				chats = append(chats, map[string]any{"id": c.ID, "name": c.Name, "unread_count": c.UnreadCount})
			}
			m.notifier.Deliver(ctx, tenantID, "chats.sync", map[string]any{"chats": chats})

		case transport.Closed:
			sawClose = true
			m.handleClose(ctx, tenantID, handle, e)
		}
	}

	if !sawClose {
		// Stream ended without a close event; treat it as a plain drop.
		m.handleClose(ctx, tenantID, handle, transport.Closed{Code: transport.CodeConnectionLost})
	}
}

// handleClose serializes a connection close against any concurrent start,
// stop or reconnection for the same tenant, then classifies it.
func (m *Manager) handleClose(ctx context.Context, tenantID string, handle transport.Handle, e transport.Closed) {
	mu := m.episode(tenantID)
	mu.Lock()
	defer mu.Unlock()
	m.closeEpisode(ctx, tenantID, handle, e)
}

// closeEpisode classifies a connection close. The caller holds the tenant's
// episode mutex. The classification relies exclusively on the transport's
// explicit terminal signal: a terminal close (or an exhausted retry budget)
// wipes the tenant's credentials, while any other close schedules a bounded
// reconnection. A nil handle marks a close synthesized from a failed dial.
func (m *Manager) closeEpisode(ctx context.Context, tenantID string, handle transport.Handle, e transport.Closed) {
	m.mu.Lock()
	_, closing := m.closing[tenantID]
	m.mu.Unlock()
	if closing {
		// Teardown already owns this episode; the drained event stream is
		// expected fallout, not a new close.
		return
	}

	if handle != nil {
		if !m.registry.Evict(tenantID, handle) {
			// The close belongs to a handle that was already replaced; the
			// live session keeps its registration and its credentials.
			m.log.Debug().Str("tenant_id", tenantID).Str("code", string(e.Code)).Msg("stale close from a replaced handle, ignoring")
			return
		}
	} else if m.registry.Contains(tenantID) {
		// A newer start won the tenant after the failed dial released it.
		return
	}

	rec, err := m.records.Find(ctx, tenantID)
	if err != nil {
		m.log.Error().Err(err).Str("tenant_id", tenantID).Msg("load record on close")
		return
	}
	if rec.Status == StatusDisconnected {
		// Already torn down (explicit stop raced the close event).
		return
	}

	if e.Terminal {
		m.finalize(ctx, tenantID, string(e.Code))
		return
	}

	attempt, exhausted := m.bumpRetries(tenantID)
	if exhausted {
		m.log.Warn().Str("tenant_id", tenantID).Int("attempts", attempt).Msg("retry budget exhausted")
		m.finalize(ctx, tenantID, "retry_exhausted")
		return
	}

	if err := m.records.MarkReconnecting(ctx, tenantID, attempt); err != nil {
		m.log.Error().Err(err).Str("tenant_id", tenantID).Msg("persist reconnecting state")
	}
	metrics.RecordReconnectScheduled()
	m.log.Warn().
		Str("tenant_id", tenantID).
		Str("code", string(e.Code)).
		Int("attempt", attempt).
		Dur("delay", m.cfg.ReconnectDelay).
		Msg("transient close, reconnection scheduled")
	m.notifier.Deliver(ctx, tenantID, "reconnecting", map[string]any{
		"attempt": attempt,
		"code":    string(e.Code),
	})
	m.scheduleReconnect(tenantID)
}

// scheduleReconnect arms (or re-arms) the tenant's reconnection timer.
func (m *Manager) scheduleReconnect(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[tenantID]; ok {
		t.Stop()
	}
	m.timers[tenantID] = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.reconnect(tenantID)
	})
}

// reconnect runs when a reconnection timer fires. The fired callback takes
// the episode mutex and re-checks under it: a teardown that completed while
// the timer was in flight leaves the closing mark or a DISCONNECTED record,
// and either one makes the fire a no-op.
func (m *Manager) reconnect(tenantID string) {
	ctx := context.Background()

	mu := m.episode(tenantID)
	mu.Lock()
	defer mu.Unlock()

	m.mu.Lock()
	delete(m.timers, tenantID)
	_, closing := m.closing[tenantID]
	m.mu.Unlock()
	if closing {
		m.log.Debug().Str("tenant_id", tenantID).Msg("reconnect superseded by teardown, skipping")
		return
	}

	rec, err := m.records.Find(ctx, tenantID)
	if err != nil {
		m.log.Error().Err(err).Str("tenant_id", tenantID).Msg("load record for reconnect")
		return
	}
	if rec.Status != StatusReconnecting {
		m.log.Debug().Str("tenant_id", tenantID).Str("status", string(rec.Status)).Msg("reconnect superseded, skipping")
		return
	}

	acq := m.registry.Acquire(tenantID)
	if !acq.Proceed {
		return
	}

	if err := m.connect(ctx, tenantID); err != nil {
		m.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("reconnect dial failed")
		// A failed dial counts as another transient close so the budget
		// still bounds it.
		m.closeEpisode(ctx, tenantID, nil, transport.Closed{Code: transport.CodeConnectFailure})
	}
}

// StopSession is the explicit teardown path. All five steps (terminate the
// handle, clear the registry, cancel the reconnection timer, wipe
// credentials, notify) run even when a reconnection attempt is mid-flight.
func (m *Manager) StopSession(ctx context.Context, tenantID string) error {
	if _, err := m.records.Find(ctx, tenantID); err != nil {
		return err
	}
	m.teardown(ctx, tenantID, "logged_out")
	return nil
}

// teardown runs terminal cleanup under the tenant's episode mutex.
func (m *Manager) teardown(ctx context.Context, tenantID, reason string) {
	mu := m.episode(tenantID)
	mu.Lock()
	defer mu.Unlock()
	m.finalize(ctx, tenantID, reason)
}

// finalize performs terminal cleanup exactly once per closing episode. The
// caller holds the tenant's episode mutex.
func (m *Manager) finalize(ctx context.Context, tenantID, reason string) {
	m.mu.Lock()
	if _, ok := m.closing[tenantID]; ok {
		m.mu.Unlock()
		return
	}
	m.closing[tenantID] = struct{}{}
	delete(m.retries, tenantID)
	if t, ok := m.timers[tenantID]; ok {
		t.Stop()
		delete(m.timers, tenantID)
	}
	m.mu.Unlock()

	if h, ok := m.registry.Lookup(tenantID); ok {
		// Errors from the remote termination request are swallowed; the
		// local cleanup must happen regardless.
		if err := h.Terminate(ctx); err != nil {
			m.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("transport terminate failed")
		}
	}
	m.registry.Release(tenantID)

	if err := m.creds.PurgeAll(ctx, tenantID); err != nil {
		m.log.Error().Err(err).Str("tenant_id", tenantID).Msg("purge credentials")
	}
	if err := m.records.MarkDisconnected(ctx, tenantID); err != nil {
		m.log.Error().Err(err).Str("tenant_id", tenantID).Msg("persist disconnected state")
	}

	metrics.RecordSessionTeardown(reason)
	m.log.Info().Str("tenant_id", tenantID).Str("reason", reason).Msg("session torn down")
	m.notifier.Deliver(ctx, tenantID, "disconnected", map[string]any{"reason": reason})
}

// GetStatus returns the tenant's record snapshot.
func (m *Manager) GetStatus(ctx context.Context, tenantID string) (*Record, error) {
	return m.records.Find(ctx, tenantID)
}

// GetHandle returns the tenant's active transport handle, if any. Used by
// the message-sending route layer.
func (m *Manager) GetHandle(tenantID string) (transport.Handle, bool) {
	return m.registry.Lookup(tenantID)
}

// Restore rebuilds every resumable session after a process restart,
// sequentially with pacing so the upstream service is not flooded with
// simultaneous handshakes. A failure for one tenant is logged and skipped.
func (m *Manager) Restore(ctx context.Context) error {
	records, err := m.records.ListResumable(ctx)
	if err != nil {
		return fmt.Errorf("list resumable sessions: %w", err)
	}
	if len(records) == 0 {
		m.log.Info().Msg("no sessions to restore")
		return nil
	}

	m.log.Info().Int("count", len(records)).Msg("restoring sessions")
	for i, rec := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := m.StartSession(ctx, rec.TenantID, ""); err != nil {
			m.log.Warn().Err(err).Str("tenant_id", rec.TenantID).Msg("restore failed, skipping")
		}
		if i < len(records)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.cfg.RestoreInterval):
			}
		}
	}
	return nil
}

// Shutdown quiesces the manager without touching durable state, so that the
// next process start can restore these sessions. Timers are cancelled and
// handles disconnected.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	for tenantID, t := range m.timers {
		t.Stop()
		delete(m.timers, tenantID)
	}
	m.mu.Unlock()

	for _, tenantID := range m.registry.ActiveTenants() {
		mu := m.episode(tenantID)
		mu.Lock()
		m.mu.Lock()
		m.closing[tenantID] = struct{}{}
		m.mu.Unlock()
		if h, ok := m.registry.Lookup(tenantID); ok {
			h.Detach()
		}
		m.registry.Release(tenantID)
		mu.Unlock()
	}
	m.log.Info().Msg("session manager stopped")
}

// persistCredentials applies a credential update signal. A nil blob removes
// the key; anything else is upserted.
func (m *Manager) persistCredentials(ctx context.Context, tenantID string, blobs map[string][]byte) {
	for key, blob := range blobs {
		var err error
		if blob == nil {
			err = m.creds.Remove(ctx, tenantID, key)
		} else {
			err = m.creds.Write(ctx, tenantID, key, blob)
		}
		if err != nil {
			m.log.Error().Err(err).Str("tenant_id", tenantID).Str("key", key).Msg("persist credential")
		}
	}
}

func (m *Manager) resetRetries(tenantID string) {
	m.mu.Lock()
	delete(m.retries, tenantID)
	m.mu.Unlock()
}

// bumpRetries advances the tenant's in-memory attempt counter. When the
// counter has already reached the budget, exhausted is true and the counter
// is left untouched.
func (m *Manager) bumpRetries(tenantID string) (attempt int, exhausted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retries[tenantID] >= m.cfg.MaxReconnectAttempts {
		return m.retries[tenantID], true
	}
	m.retries[tenantID]++
	return m.retries[tenantID], false
}

// clearClosing re-arms teardown for a tenant that is being started again.
func (m *Manager) clearClosing(tenantID string) {
	m.mu.Lock()
	delete(m.closing, tenantID)
	m.mu.Unlock()
}
