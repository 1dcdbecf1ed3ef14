// Package wameow implements the transport boundary on top of the whatsmeow
// multi-device WhatsApp library. Each tenant gets its own whatsmeow client
// backed by a shared device datastore; the tenant-to-device association is
// kept in the credential store so a restarted process can find its device
// again.
package wameow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	"wahub/services/whatsapp-api/internal/domain/credential"
	"wahub/services/whatsapp-api/internal/domain/transport"
)

// deviceKey is the credential key holding the tenant's device JID. It is
// written when a pairing completes and deleted on terminal teardown; the
// device's cryptographic state lives in the whatsmeow datastore keyed by
// that JID.
const deviceKey = "device"

const qrChannelWaitTimeout = 2 * time.Minute

// Dialer builds whatsmeow-backed transport handles.
type Dialer struct {
	container *sqlstore.Container
	log       zerolog.Logger
}

var _ transport.Dialer = (*Dialer)(nil)

// NewDialer opens the shared whatsmeow device datastore on the given
// PostgreSQL DSN and upgrades its schema.
func NewDialer(ctx context.Context, dsn string, log zerolog.Logger) (*Dialer, error) {
	componentLog := log.With().Str("component", "wameow").Logger()

	container, err := sqlstore.New(ctx, "postgres", dsn, newWALogger(componentLog.With().Str("wa_module", "datastore").Logger()))
	if err != nil {
		return nil, fmt.Errorf("open device datastore: %w", err)
	}
	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("upgrade device datastore schema: %w", err)
	}

	return &Dialer{
		container: container,
		log:       componentLog,
	}, nil
}

// Dial loads (or creates) the tenant's device and connects a client for it.
// A tenant with a stored device JID resumes its existing pairing; anything
// else gets a fresh device and a QR pairing flow.
func (d *Dialer) Dial(ctx context.Context, tenantID string, creds credential.Scope) (transport.Handle, error) {
	device, err := d.loadDevice(ctx, creds)
	if err != nil {
		return nil, err
	}

	clientLog := d.log.With().Str("tenant_id", tenantID).Logger()
	client := whatsmeow.NewClient(device, newWALogger(clientLog))

	// The lifecycle manager owns reconnection policy.
	client.EnableAutoReconnect = false
	client.AutoTrustIdentity = true

	h := newHandle(tenantID, client, clientLog)
	client.AddEventHandler(h.route)

	if client.Store.ID == nil {
		qrCtx, cancel := context.WithTimeout(context.Background(), qrChannelWaitTimeout)
		qrChan, err := client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open qr channel: %w", err)
		}
		go h.pumpQR(qrCtx, cancel, qrChan)
	}

	if err := client.Connect(); err != nil {
		h.shut()
		return nil, fmt.Errorf("connect client: %w", err)
	}

	return h, nil
}

// loadDevice resolves the tenant's device from the routing credential, or
// provisions a blank one. A routing entry pointing at a device the
// datastore no longer knows falls back to a fresh device so the tenant can
// re-pair instead of being stuck.
func (d *Dialer) loadDevice(ctx context.Context, creds credential.Scope) (*store.Device, error) {
	blob, err := creds.Read(ctx, deviceKey)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return d.container.NewDevice(), nil
		}
		return nil, fmt.Errorf("read device routing: %w", err)
	}

	jid, err := types.ParseJID(string(blob))
	if err != nil {
		d.log.Warn().Err(err).Msg("stored device routing is not a valid JID, provisioning fresh device")
		return d.container.NewDevice(), nil
	}

	device, err := d.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("load device from datastore: %w", err)
	}
	if device == nil {
		d.log.Warn().Str("device_jid", jid.String()).Msg("routed device missing from datastore, provisioning fresh device")
		return d.container.NewDevice(), nil
	}
	return device, nil
}
