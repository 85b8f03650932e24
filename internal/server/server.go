// Package server exposes the local HTTP presence endpoint: a JSON view of
// the currently resolved presence payload plus a liveness probe. The
// endpoint authenticates with the same API key the daemon uses against
// Jellyfin, carried in a header or query parameter.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/presence"
)

// shutdownTimeout bounds graceful shutdown on daemon exit.
const shutdownTimeout = 3 * time.Second

// PresenceResolver is the resolution capability the server exposes over
// HTTP. *presence.Resolver satisfies it.
type PresenceResolver interface {
	Resolve(ctx context.Context, cfg *config.Config) (*presence.Payload, error)
}

// ///////////////////////////////////////////////
// Server
// ///////////////////////////////////////////////

// Server serves the presence HTTP API.
type Server struct {
	store    *config.Store
	resolver PresenceResolver
	httpSrv  *http.Server
}

// New creates a Server over a config store and a resolver. The config is
// snapshotted per request so reloads apply without restarting the server.
func New(store *config.Store, resolver PresenceResolver) *Server {
	return &Server{store: store, resolver: resolver}
}

// Handler builds the chi router for the presence API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/presence", s.handlePresence)
	r.Get("/presence/ping", s.handlePing)
	return r
}

// ListenAndServe blocks serving the API on addr until Shutdown is called
// or the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// ///////////////////////////////////////////////
// Handlers
// ///////////////////////////////////////////////

// handlePresence resolves and returns the current presence payload.
// 401 when the caller's token doesn't match or the principal cannot be
// resolved upstream; 500 when the session query fails; 200 {active:false}
// when no eligible session exists.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Snapshot()

	if !authorized(r, cfg.Jellyfin.APIKey) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	payload, err := s.resolver.Resolve(r.Context(), cfg)
	switch {
	case errors.Is(err, presence.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	case err != nil:
		slog.Warn("presence resolution failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// handlePing is the liveness probe; it always answers 200.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// authorized checks the request's token against the configured API key.
// The token may arrive as X-Emby-Token, a bearer Authorization header, or
// an api_key query parameter. An empty configured key disables the check
// (local-only default bind).
func authorized(r *http.Request, apiKey string) bool {
	if apiKey == "" {
		return true
	}
	if r.Header.Get("X-Emby-Token") == apiKey {
		return true
	}
	if auth := r.Header.Get("Authorization"); strings.TrimPrefix(auth, "Bearer ") == apiKey {
		return true
	}
	return r.URL.Query().Get("api_key") == apiKey
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response failed", "error", err)
	}
}
