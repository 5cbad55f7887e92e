package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	s := NewServer(":0")

	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestServer_ReadyzNoChecks(t *testing.T) {
	s := NewServer(":0")

	rec := get(t, s, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with no checks, got %d", rec.Code)
	}
}

func TestServer_ReadyzFailingCheck(t *testing.T) {
	s := NewServer(":0",
		ReadyCheck{Name: "passing", Check: func() error { return nil }},
		ReadyCheck{Name: "upload-dir", Check: func() error { return errors.New("missing") }},
	)

	rec := get(t, s, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with a failing check, got %d", rec.Code)
	}
	if body := rec.Body.String(); body == "" || body == "ready" {
		t.Errorf("expected failure detail in body, got %q", body)
	}
}

func TestServer_ReadyzRecovers(t *testing.T) {
	healthy := false
	s := NewServer(":0", ReadyCheck{Name: "dep", Check: func() error {
		if !healthy {
			return errors.New("starting")
		}
		return nil
	}})

	if rec := get(t, s, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before dependency is up, got %d", rec.Code)
	}
	healthy = true
	if rec := get(t, s, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 after dependency recovers, got %d", rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(":0")

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
