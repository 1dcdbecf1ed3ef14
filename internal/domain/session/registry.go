package session

import (
	"sync"

	"wahub/services/whatsapp-api/internal/domain/transport"
)

// Acquisition is the outcome of Registry.Acquire.
type Acquisition struct {
	// Proceed is true when the caller won the right to construct a handle
	// and must eventually call Commit or Release.
	Proceed bool
	// Pending is true when another construction for the tenant is already
	// in flight.
	Pending bool
	// Handle is the already-active handle, if any.
	Handle transport.Handle
}

// Registry is the process-wide map of tenant to active transport handle,
// plus the set of tenants whose handles are still being constructed. It is
// the only structure shared across tenant event streams; its check-and-set
// semantics uphold the single-handle-per-tenant invariant under concurrent
// start requests.
type Registry struct {
	mu      sync.Mutex
	active  map[string]transport.Handle
	pending map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active:  make(map[string]transport.Handle),
		pending: make(map[string]struct{}),
	}
}

// Acquire atomically checks the active map and the pending set. If either
// holds the tenant, the existing handle (or a pending signal) is returned
// and the caller must not construct a second connection. Otherwise the
// tenant is marked pending and the caller proceeds.
func (r *Registry) Acquire(tenantID string) Acquisition {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.active[tenantID]; ok {
		return Acquisition{Handle: h}
	}
	if _, ok := r.pending[tenantID]; ok {
		return Acquisition{Pending: true}
	}
	r.pending[tenantID] = struct{}{}
	return Acquisition{Proceed: true}
}

// Commit installs the constructed handle and clears the pending mark. It
// returns false if the pending mark was released in the meantime (the tenant
// was torn down mid-construction); the caller must then discard the handle.
func (r *Registry) Commit(tenantID string, h transport.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[tenantID]; !ok {
		return false
	}
	delete(r.pending, tenantID)
	r.active[tenantID] = h
	return true
}

// Release removes the tenant from both the active map and the pending set.
// Used on teardown and on failed construction.
func (r *Registry) Release(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, tenantID)
	delete(r.pending, tenantID)
}

// Evict removes the tenant's active entry only when it still maps to h. A
// close event from a handle that was already replaced must not unregister
// its successor; the false return tells the caller the close is stale.
func (r *Registry) Evict(tenantID string, h transport.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.active[tenantID]; !ok || cur != h {
		return false
	}
	delete(r.active, tenantID)
	return true
}

// Contains reports whether the tenant has an active handle or a
// construction in flight.
func (r *Registry) Contains(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[tenantID]; ok {
		return true
	}
	_, ok := r.pending[tenantID]
	return ok
}

// Lookup is a non-blocking read of the active map.
func (r *Registry) Lookup(tenantID string) (transport.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.active[tenantID]
	return h, ok
}

// ActiveTenants snapshots the tenant IDs with an active handle.
func (r *Registry) ActiveTenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.active))
	for tenantID := range r.active {
		out = append(out, tenantID)
	}
	return out
}

// Len returns the number of active handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
