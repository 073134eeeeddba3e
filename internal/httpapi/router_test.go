package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rsahay/prescreen/internal/eventlog"
	"github.com/rsahay/prescreen/internal/session"
)

func testRouter(t *testing.T, cfg RouterConfig) (*Router, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	r := newRouter(cfg, testLogger(), st, eventlog.New(nil), session.NewRegistry(), nil)
	return r, st
}

func TestHealthz(t *testing.T) {
	r, _ := testRouter(t, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := testRouter(t, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "prescreen_") {
		t.Errorf("metrics body missing prescreen collectors")
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := testRouter(t, RouterConfig{})
	h := withCORS(r.mux)

	req := httptest.NewRequest(http.MethodOptions, "/api/reports", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestWsURLFromPublicBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com", "wss://example.com"},
		{"http://localhost:8080", "ws://localhost:8080"},
		{"example.com", "wss://example.com"},
	}
	for _, tt := range tests {
		if got := wsURLFromPublicBase(tt.in); got != tt.want {
			t.Errorf("wsURLFromPublicBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
