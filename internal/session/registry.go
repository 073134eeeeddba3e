package session

import "sync"

// Registry tracks the live session for each call. Lookup, creation and
// removal are atomic with respect to each other, so concurrent media
// connections for the same call ID always converge on one session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	draining bool
	wg       sync.WaitGroup
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session registered for callID, creating it with
// create when absent. The second return reports whether a new session was
// created. While the registry is draining no new sessions are admitted and
// (nil, false) is returned for unknown call IDs.
func (r *Registry) GetOrCreate(callID string, create func() *Session) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[callID]; ok {
		return s, false
	}
	if r.draining {
		return nil, false
	}

	s := create()
	r.sessions[callID] = s
	r.wg.Add(1)
	return s, true
}

// Get returns the registered session for callID, if any.
func (r *Registry) Get(callID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	return s, ok
}

// Remove unregisters callID. Removing an absent or already removed call is a
// no-op, so teardown paths may race freely.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[callID]; !ok {
		return
	}
	delete(r.sessions, callID)
	r.wg.Done()
}

// ActiveCount returns the number of registered sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartDraining stops admission of new sessions. Existing sessions continue
// until they are removed.
func (r *Registry) StartDraining() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draining = true
}

func (r *Registry) IsDraining() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draining
}

// Wait blocks until every registered session has been removed.
func (r *Registry) Wait() {
	r.wg.Wait()
}
