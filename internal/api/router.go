// Package api serves the operational HTTP endpoints of the watch command.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mkoziy/ga4mirror/internal/reconcile"
	"github.com/mkoziy/ga4mirror/internal/repositories"
)

// Service is the part of the app the endpoints call.
type Service interface {
	Ping(ctx context.Context) error
	Summary(ctx context.Context) (repositories.SyncSummary, error)
	ReconcileAll(ctx context.Context, fetchWebsites, updateExisting bool) (reconcile.SyncResult, error)
	ReconcileOne(ctx context.Context, remoteID string, fetchWebsites, updateExisting bool) (reconcile.SyncResult, error)
}

// SyncDefaults apply when a sync request does not set websites or update.
type SyncDefaults struct {
	FetchWebsites  bool
	UpdateExisting bool
}

type server struct {
	svc      Service
	defaults SyncDefaults
	logger   zerolog.Logger
}

// NewRouter returns the handler for /healthz, /metrics, /summary and the sync triggers.
func NewRouter(svc Service, defaults SyncDefaults, logger zerolog.Logger) http.Handler {
	s := &server{svc: svc, defaults: defaults, logger: logger.With().Str("component", "api").Logger()}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/summary", s.handleSummary)

	// Sync runs synchronously; the response carries the SyncResult.
	r.Post("/sync", s.handleSyncAll)
	r.Post("/properties/{propertyID}/sync", s.handleSyncOne)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Summary(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("summary failed")
		writeError(w, http.StatusInternalServerError, "summary: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	fetch, update, err := s.syncFlags(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	res, err := s.svc.ReconcileAll(r.Context(), fetch, update)
	s.writeSync(w, res, err)
}

func (s *server) handleSyncOne(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "propertyID"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "property id is required")
		return
	}
	fetch, update, err := s.syncFlags(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	res, err := s.svc.ReconcileOne(r.Context(), id, fetch, update)
	s.writeSync(w, res, err)
}

func (s *server) syncFlags(r *http.Request) (fetch, update bool, err error) {
	fetch, update = s.defaults.FetchWebsites, s.defaults.UpdateExisting
	q := r.URL.Query()
	if v := q.Get("websites"); v != "" {
		if fetch, err = strconv.ParseBool(v); err != nil {
			return false, false, fmt.Errorf("invalid websites flag %q", v)
		}
	}
	if v := q.Get("update"); v != "" {
		if update, err = strconv.ParseBool(v); err != nil {
			return false, false, fmt.Errorf("invalid update flag %q", v)
		}
	}
	return fetch, update, nil
}

func (s *server) writeSync(w http.ResponseWriter, res reconcile.SyncResult, err error) {
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"error":  map[string]any{"message": err.Error(), "status": status},
			"result": res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": strings.TrimSpace(fmt.Sprintf(format, args...)),
			"status":  status,
		},
	})
}
