// Package credential defines the durable key/value persistence contract for
// per-tenant transport credentials.
package credential

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a credential blob does not exist.
var ErrNotFound = errors.New("credential not found")

// Store persists opaque credential blobs keyed by (tenant, key).
// One row holds the root identity credential; additional rows hold the
// transport's cryptographic sub-keys. Blobs are written whenever the
// transport signals updated credentials and purged in bulk on terminal
// teardown.
type Store interface {
	// Write upserts a blob. Idempotent, last-write-wins.
	Write(ctx context.Context, tenantID, key string, blob []byte) error

	// Read retrieves a single blob, or ErrNotFound.
	Read(ctx context.Context, tenantID, key string) ([]byte, error)

	// ReadMany retrieves several blobs at once. Absent keys are omitted from
	// the result rather than reported as errors. Implementations must allow
	// the reads to fan out concurrently; transports commonly request dozens
	// of sub-keys at connection time.
	ReadMany(ctx context.Context, tenantID string, keys []string) (map[string][]byte, error)

	// Remove deletes a single key. Removing an absent key is not an error.
	Remove(ctx context.Context, tenantID, key string) error

	// PurgeAll deletes every blob for the tenant. Only terminal teardown may
	// call this, after the tenant's transport handle has been removed from
	// the registry, so no write can race it.
	PurgeAll(ctx context.Context, tenantID string) error
}

// Scope is a tenant-scoped view over a Store, handed to transport dialers so
// they can load and maintain their credentials without seeing other tenants.
type Scope struct {
	tenantID string
	store    Store
}

// NewScope binds a store to a single tenant.
func NewScope(store Store, tenantID string) Scope {
	return Scope{tenantID: tenantID, store: store}
}

// TenantID returns the tenant this scope is bound to.
func (s Scope) TenantID() string {
	return s.tenantID
}

// Read retrieves a single blob for the scoped tenant.
func (s Scope) Read(ctx context.Context, key string) ([]byte, error) {
	return s.store.Read(ctx, s.tenantID, key)
}

// ReadMany retrieves several blobs for the scoped tenant.
func (s Scope) ReadMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	return s.store.ReadMany(ctx, s.tenantID, keys)
}

// Write upserts a blob for the scoped tenant.
func (s Scope) Write(ctx context.Context, key string, blob []byte) error {
	return s.store.Write(ctx, s.tenantID, key, blob)
}

// Remove deletes a single key for the scoped tenant.
func (s Scope) Remove(ctx context.Context, key string) error {
	return s.store.Remove(ctx, s.tenantID, key)
}
