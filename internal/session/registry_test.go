package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	s1, created := r.GetOrCreate("CA1", func() *Session { return New(Config{CallID: "CA1"}) })
	if !created || s1 == nil {
		t.Fatalf("first GetOrCreate: created=%v session=%v", created, s1)
	}

	s2, created := r.GetOrCreate("CA1", func() *Session { return New(Config{CallID: "CA1"}) })
	if created {
		t.Errorf("second GetOrCreate reported created=true")
	}
	if s2 != s1 {
		t.Errorf("second GetOrCreate returned a different session")
	}

	if got, ok := r.Get("CA1"); !ok || got != s1 {
		t.Errorf("Get returned %v, %v", got, ok)
	}
	if _, ok := r.Get("CA2"); ok {
		t.Errorf("Get of unknown call succeeded")
	}
	if n := r.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount = %d, want 1", n)
	}
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	r := NewRegistry()

	const goroutines = 64
	var createdCount atomic.Int32
	sessions := make([]*Session, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, created := r.GetOrCreate("CA1", func() *Session {
				return New(Config{CallID: "CA1"})
			})
			if created {
				createdCount.Add(1)
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	if n := createdCount.Load(); n != 1 {
		t.Errorf("created %d sessions for one call, want exactly 1", n)
	}
	for i := 1; i < goroutines; i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("goroutine %d saw a different session", i)
		}
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("CA1", func() *Session { return New(Config{CallID: "CA1"}) })

	r.Remove("CA1")
	r.Remove("CA1")
	r.Remove("never-registered")

	if n := r.ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d, want 0", n)
	}

	// After removal the call ID is free again.
	_, created := r.GetOrCreate("CA1", func() *Session { return New(Config{CallID: "CA1"}) })
	if !created {
		t.Errorf("re-registration after Remove did not create")
	}
}

func TestRegistryDraining(t *testing.T) {
	r := NewRegistry()
	s1, _ := r.GetOrCreate("CA1", func() *Session { return New(Config{CallID: "CA1"}) })

	r.StartDraining()
	if !r.IsDraining() {
		t.Fatalf("IsDraining = false after StartDraining")
	}

	if s, created := r.GetOrCreate("CA2", func() *Session { return New(Config{CallID: "CA2"}) }); s != nil || created {
		t.Errorf("draining registry admitted a new session: %v, %v", s, created)
	}

	// Existing sessions remain reachable while draining.
	if s, created := r.GetOrCreate("CA1", nil); s != s1 || created {
		t.Errorf("existing session lookup during drain: %v, %v", s, created)
	}

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Wait returned while a session was still registered")
	default:
	}

	r.Remove("CA1")
	<-done
}

func TestRegistryWaitManySessions(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("CA%d", i)
		r.GetOrCreate(id, func() *Session { return New(Config{CallID: id}) })
	}
	r.StartDraining()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Remove(fmt.Sprintf("CA%d", i))
		}(i)
	}
	wg.Wait()
	r.Wait()

	if n := r.ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d after drain, want 0", n)
	}
}
