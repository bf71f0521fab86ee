// Package mgmt exposes the control surface over HTTP/JSON.
package mgmt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/gen"
	"github.com/vepnet/tgen/registry"
	"github.com/vepnet/tgen/rfc2544"
	"github.com/vepnet/tgen/runner"
	"go.uber.org/zap"
)

var logger = logging.New("mgmt")

// CommandDeadline bounds one control command.
const CommandDeadline = 5 * time.Second

// Server is the HTTP control adapter. Every route maps one-to-one onto a
// registry mutation, a runner lifecycle event, or a snapshot read; the
// persisted configuration is rewritten after each successful mutation.
type Server struct {
	g    *gen.Gen
	mux  *http.ServeMux
	http *http.Server
}

// NewServer creates a Server for the core.
func NewServer(g *gen.Gen) *Server {
	s := &Server{g: g, mux: http.NewServeMux()}
	s.routes()
	s.http = &http.Server{Handler: s}
	return s
}

// ServeHTTP implements http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), CommandDeadline)
	defer cancel()
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

// ListenAndServe binds addr and serves until Close.
func (s *Server) ListenAndServe(addr string) error {
	lis, e := net.Listen("tcp", addr)
	if e != nil {
		return e
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener until Close.
func (s *Server) Serve(lis net.Listener) error {
	logger.Info("control surface listening", zap.String("addr", lis.Addr().String()))
	e := s.http.Serve(lis)
	if errors.Is(e, http.ErrServerClosed) {
		return nil
	}
	return e
}

// Close shuts the HTTP server down gracefully.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), CommandDeadline)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/interfaces", s.handleListPorts)
	s.mux.HandleFunc("GET /api/traffic-profiles", s.handleListProfiles)
	s.mux.HandleFunc("POST /api/traffic-profiles", s.handleCreateProfile)
	s.mux.HandleFunc("PUT /api/traffic-profiles/{name}", s.handleUpdateProfile)
	s.mux.HandleFunc("DELETE /api/traffic-profiles/{name}", s.handleDeleteProfile)
	s.mux.HandleFunc("POST /api/traffic-profiles/{name}/enable", s.handleEnableProfile)
	s.mux.HandleFunc("POST /api/traffic-profiles/{name}/disable", s.handleDisableProfile)
	s.mux.HandleFunc("POST /api/traffic/start", s.handleStartAll)
	s.mux.HandleFunc("POST /api/traffic/stop", s.handleStopAll)
	s.mux.HandleFunc("GET /api/traffic/stats", s.handleStats)
	s.mux.HandleFunc("POST /api/stats/reset", s.handleStatsReset)
	s.mux.HandleFunc("GET /api/stats/export", s.handleStatsExport)
	s.mux.HandleFunc("POST /api/neighbors/discover", s.handleDiscover)
	s.mux.HandleFunc("POST /api/rfc2544/start", s.handleBenchStart)
	s.mux.HandleFunc("GET /api/rfc2544/results/{profile}", s.handleBenchResults)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, e error) {
	writeJSON(w, statusOf(e), errorBody{Error: e.Error()})
}

// statusOf maps core errors onto HTTP status codes.
func statusOf(e error) int {
	switch {
	case errors.Is(e, registry.ErrNotFound), errors.Is(e, rfc2544.ErrNoResults):
		return http.StatusNotFound
	case errors.Is(e, registry.ErrExists), errors.Is(e, registry.ErrFrozen),
		errors.Is(e, registry.ErrActive), errors.Is(e, rfc2544.ErrRunning),
		errors.Is(e, runner.ErrState):
		return http.StatusConflict
	case errors.Is(e, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusConflict
}

// saved persists the configuration after a successful mutation.
func (s *Server) saved() {
	if e := s.g.SaveConfig(); e != nil {
		logger.Error("config save failed", zap.Error(e))
	}
}
