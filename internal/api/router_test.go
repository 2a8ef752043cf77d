package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mkoziy/ga4mirror/internal/models"
	"github.com/mkoziy/ga4mirror/internal/reconcile"
	"github.com/mkoziy/ga4mirror/internal/repositories"
)

type fakeService struct {
	pingErr  error
	syncErr  error
	lastID   string
	lastMode [2]bool
}

func (f *fakeService) Ping(context.Context) error { return f.pingErr }

func (f *fakeService) Summary(context.Context) (repositories.SyncSummary, error) {
	return repositories.SyncSummary{TotalProperties: 2, TotalWebsites: 1}, nil
}

func (f *fakeService) ReconcileAll(_ context.Context, fetch, update bool) (reconcile.SyncResult, error) {
	f.lastMode = [2]bool{fetch, update}
	res := reconcile.SyncResult{RunID: "run-1", Errors: []string{}}
	res.PropertiesCreated = 2
	return res, f.syncErr
}

func (f *fakeService) ReconcileOne(_ context.Context, id string, fetch, update bool) (reconcile.SyncResult, error) {
	f.lastID = id
	f.lastMode = [2]bool{fetch, update}
	return reconcile.SyncResult{RunID: "run-2", Errors: []string{"property properties/9 not found"}}, nil
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, SyncDefaults{}, zerolog.Nop())

	if rec := do(t, h, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	svc.pingErr = errors.New("closed")
	if rec := do(t, h, http.MethodGet, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(&fakeService{}, SyncDefaults{}, zerolog.Nop())
	rec := do(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics response %d", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	h := NewRouter(&fakeService{}, SyncDefaults{}, zerolog.Nop())
	rec := do(t, h, http.MethodGet, "/summary")
	var got repositories.SyncSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalProperties != 2 || got.TotalWebsites != 1 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestSyncUsesDefaultsAndQueryFlags(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, SyncDefaults{FetchWebsites: true}, zerolog.Nop())

	rec := do(t, h, http.MethodPost, "/sync")
	if rec.Code != http.StatusOK || svc.lastMode != [2]bool{true, false} {
		t.Fatalf("unexpected defaults: code=%d mode=%v", rec.Code, svc.lastMode)
	}
	var res reconcile.SyncResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.RunID != "run-1" || res.PropertiesCreated != 2 {
		t.Fatalf("unexpected body %+v", res)
	}

	do(t, h, http.MethodPost, "/sync?websites=false&update=true")
	if svc.lastMode != [2]bool{false, true} {
		t.Fatalf("query flags not applied: %v", svc.lastMode)
	}

	if rec := do(t, h, http.MethodPost, "/sync?update=maybe"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad flag, got %d", rec.Code)
	}
}

func TestSyncHardFailure(t *testing.T) {
	svc := &fakeService{syncErr: models.ErrRemoteUnavailable}
	h := NewRouter(svc, SyncDefaults{}, zerolog.Nop())
	if rec := do(t, h, http.MethodPost, "/sync"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestSyncOneProperty(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, SyncDefaults{}, zerolog.Nop())

	rec := do(t, h, http.MethodPost, "/properties/9/sync")
	if rec.Code != http.StatusOK || svc.lastID != "9" {
		t.Fatalf("unexpected response code=%d id=%q", rec.Code, svc.lastID)
	}
	if !strings.Contains(rec.Body.String(), "not found") {
		t.Fatalf("expected error list in body: %s", rec.Body.String())
	}
}
