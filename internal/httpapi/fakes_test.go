package httpapi

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/rsahay/prescreen/internal/store"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	mu         sync.Mutex
	candidates map[string]*store.Candidate
	jobs       map[string]*store.Job
	calls      map[string]store.Call // by provider call ID
	reports    []store.Report
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		candidates: make(map[string]*store.Candidate),
		jobs:       make(map[string]*store.Job),
		calls:      make(map[string]store.Call),
	}
}

func (f *fakeStore) GetCandidate(_ context.Context, id string) (*store.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) UpdateCandidateStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.candidates[id]; ok {
		c.Status = status
	}
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, id string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	jp := *j
	return &jp, nil
}

func (f *fakeStore) UpsertCall(_ context.Context, c store.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[c.ProviderCallID] = c
	return nil
}

func (f *fakeStore) GetCallByProviderID(_ context.Context, providerCallID string) (*store.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[providerCallID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (f *fakeStore) UpdateCallStatus(_ context.Context, providerCallID, status string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[providerCallID]
	if !ok {
		c = store.Call{ProviderCallID: providerCallID}
	}
	c.Status = status
	f.calls[providerCallID] = c
	return nil
}

func (f *fakeStore) InsertReport(_ context.Context, r store.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeStore) ListReports(_ context.Context, candidateID string, limit int) ([]store.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Report
	for _, r := range f.reports {
		if candidateID == "" || r.CandidateID == candidateID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) callStatus(providerCallID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[providerCallID].Status
}

func (f *fakeStore) candidateStatus(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.candidates[id]; ok {
		return c.Status
	}
	return ""
}

func (f *fakeStore) reportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

func (f *fakeStore) firstReport() (store.Report, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reports) == 0 {
		return store.Report{}, false
	}
	return f.reports[0], true
}
