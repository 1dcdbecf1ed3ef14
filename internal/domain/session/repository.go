package session

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned when no record exists for a tenant.
var ErrRecordNotFound = errors.New("session record not found")

// Store defines durable persistence for session records. Transition
// mutators are granular so that the record invariants (pairing payload only
// in QR_READY, identity only while connected/reconnecting) are enforced in
// one place.
type Store interface {
	// Ensure returns the tenant's record, creating it as UNINITIALIZED if
	// missing.
	Ensure(ctx context.Context, tenantID string) (*Record, error)

	// Find returns the tenant's record, or ErrRecordNotFound.
	Find(ctx context.Context, tenantID string) (*Record, error)

	// SetWebhookURL updates the callback target. Allowed in any state.
	SetWebhookURL(ctx context.Context, tenantID, url string) error

	// SetToken updates the tenant's API token.
	SetToken(ctx context.Context, tenantID, token string) error

	// MarkPairing stores a fresh pairing payload and moves to QR_READY.
	MarkPairing(ctx context.Context, tenantID, payload string) error

	// MarkConnected records the assigned identity, clears the pairing
	// payload, zeroes the retry counter and moves to CONNECTED.
	MarkConnected(ctx context.Context, tenantID, identity string) error

	// MarkReconnecting moves to RECONNECTING, keeping the identity, clearing
	// the pairing payload and mirroring the attempt counter.
	MarkReconnecting(ctx context.Context, tenantID string, attempt int) error

	// MarkDisconnected is the terminal transition: clears pairing payload,
	// identity and retry counter.
	MarkDisconnected(ctx context.Context, tenantID string) error

	// ListResumable returns all records whose sessions were alive before the
	// process stopped (CONNECTED or RECONNECTING).
	ListResumable(ctx context.Context) ([]*Record, error)
}
