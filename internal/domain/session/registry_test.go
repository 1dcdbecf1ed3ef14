package session_test

import (
	"sync"
	"testing"

	"wahub/services/whatsapp-api/internal/domain/session"
)

func TestRegistryAcquireLifecycle(t *testing.T) {
	r := session.NewRegistry()

	acq := r.Acquire("tenant-a")
	if !acq.Proceed {
		t.Fatalf("first Acquire: Proceed = false, want true")
	}

	acq = r.Acquire("tenant-a")
	if acq.Proceed || !acq.Pending {
		t.Errorf("Acquire while pending: Proceed = %v, Pending = %v, want false/true", acq.Proceed, acq.Pending)
	}

	h := newFakeHandle()
	if !r.Commit("tenant-a", h) {
		t.Fatalf("Commit returned false, want true")
	}

	acq = r.Acquire("tenant-a")
	if acq.Proceed || acq.Handle == nil {
		t.Errorf("Acquire while active: Proceed = %v, Handle = %v, want false/non-nil", acq.Proceed, acq.Handle)
	}

	got, ok := r.Lookup("tenant-a")
	if !ok || got != h {
		t.Errorf("Lookup = %v, %v, want the committed handle", got, ok)
	}

	r.Release("tenant-a")
	if _, ok := r.Lookup("tenant-a"); ok {
		t.Errorf("Lookup after Release: found handle, want none")
	}
	if r.Len() != 0 {
		t.Errorf("Len after Release = %d, want 0", r.Len())
	}
}

func TestRegistryConcurrentAcquire(t *testing.T) {
	const workers = 32
	r := session.NewRegistry()

	var wg sync.WaitGroup
	results := make(chan session.Acquisition, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Acquire("tenant-a")
		}()
	}
	wg.Wait()
	close(results)

	proceeds, pendings := 0, 0
	for acq := range results {
		if acq.Proceed {
			proceeds++
		}
		if acq.Pending {
			pendings++
		}
	}
	if proceeds != 1 {
		t.Errorf("Proceed winners = %d, want exactly 1", proceeds)
	}
	if pendings != workers-1 {
		t.Errorf("Pending observers = %d, want %d", pendings, workers-1)
	}
}

func TestRegistryEvictRequiresOwnership(t *testing.T) {
	r := session.NewRegistry()

	h1 := newFakeHandle()
	h2 := newFakeHandle()
	r.Acquire("tenant-a")
	r.Commit("tenant-a", h1)

	if r.Evict("tenant-a", h2) {
		t.Errorf("Evict with a foreign handle = true, want false")
	}
	if got, ok := r.Lookup("tenant-a"); !ok || got != h1 {
		t.Errorf("Lookup after foreign Evict = %v, %v, want h1 still registered", got, ok)
	}

	if !r.Evict("tenant-a", h1) {
		t.Errorf("Evict with the registered handle = false, want true")
	}
	if _, ok := r.Lookup("tenant-a"); ok {
		t.Errorf("Lookup after Evict: found handle, want none")
	}
	if r.Evict("tenant-a", h1) {
		t.Errorf("second Evict = true, want false for an empty entry")
	}
}

func TestRegistryContains(t *testing.T) {
	r := session.NewRegistry()

	if r.Contains("tenant-a") {
		t.Errorf("Contains on empty registry = true, want false")
	}

	r.Acquire("tenant-a")
	if !r.Contains("tenant-a") {
		t.Errorf("Contains while pending = false, want true")
	}

	r.Commit("tenant-a", newFakeHandle())
	if !r.Contains("tenant-a") {
		t.Errorf("Contains while active = false, want true")
	}

	r.Release("tenant-a")
	if r.Contains("tenant-a") {
		t.Errorf("Contains after Release = true, want false")
	}
}

func TestRegistryCommitAfterRelease(t *testing.T) {
	r := session.NewRegistry()

	acq := r.Acquire("tenant-a")
	if !acq.Proceed {
		t.Fatalf("Acquire: Proceed = false, want true")
	}

	// Teardown clears the pending mark while the dial is still in flight.
	r.Release("tenant-a")

	if r.Commit("tenant-a", newFakeHandle()) {
		t.Errorf("Commit after Release = true, want false")
	}
	if _, ok := r.Lookup("tenant-a"); ok {
		t.Errorf("Lookup after rejected Commit: found handle, want none")
	}
}

func TestRegistryActiveTenants(t *testing.T) {
	r := session.NewRegistry()
	for _, tenant := range []string{"tenant-a", "tenant-b"} {
		if acq := r.Acquire(tenant); !acq.Proceed {
			t.Fatalf("Acquire(%q): Proceed = false, want true", tenant)
		}
		if !r.Commit(tenant, newFakeHandle()) {
			t.Fatalf("Commit(%q) returned false, want true", tenant)
		}
	}

	got := r.ActiveTenants()
	if len(got) != 2 {
		t.Fatalf("ActiveTenants = %v, want 2 entries", got)
	}
	seen := map[string]bool{}
	for _, tenant := range got {
		seen[tenant] = true
	}
	if !seen["tenant-a"] || !seen["tenant-b"] {
		t.Errorf("ActiveTenants = %v, want tenant-a and tenant-b", got)
	}
}
