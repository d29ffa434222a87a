// Package api serves the gateway's HTTP surface: tool discovery, tool
// invocation, stored events, and aggregated metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/masumi-network/masumi-gateway/engine"
	"github.com/masumi-network/masumi-gateway/guard"
	"github.com/masumi-network/masumi-gateway/observe/store"
	"github.com/masumi-network/masumi-gateway/remote"
	"github.com/masumi-network/masumi-gateway/tools"
)

const maxToolBodyBytes = 1 << 20

type Config struct {
	Addr  string
	Tools *tools.Registry
	// EventStore is optional; without it the events and metrics endpoints
	// return empty payloads.
	EventStore store.Store
	// APIToken protects every endpoint except health when set.
	APIToken string
	// AllowLocalNoAuth lets loopback clients skip the token, matching how
	// the gateway is run next to its conversational client in development.
	AllowLocalNoAuth bool
}

type Server struct {
	cfg  Config
	mux  *http.ServeMux
	http *http.Server
	once sync.Once
}

func NewServer(cfg Config) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:7171"
	}
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	s.http = &http.Server{Addr: cfg.Addr, Handler: s.mux}
	return s
}

func (s *Server) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/tools", s.require(s.handleTools))
	s.mux.HandleFunc("/api/tools/", s.require(s.handleToolCall))
	s.mux.HandleFunc("/api/events", s.require(s.handleEvents))
	s.mux.HandleFunc("/api/metrics", s.require(s.handleMetrics))
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server is nil")
	}
	errCh := make(chan error, 1)
	go func() {
		err := s.http.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received, stopping gateway API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	var outErr error
	s.once.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		outErr = s.http.Shutdown(shutdownCtx)
	})
	return outErr
}

func (s *Server) require(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.authenticate(r); err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		h(w, r)
	}
}

func (s *Server) authenticate(r *http.Request) error {
	if s.cfg.APIToken == "" {
		return nil
	}
	if token := extractToken(r); token != "" {
		if token == s.cfg.APIToken {
			return nil
		}
		return fmt.Errorf("invalid API token")
	}
	if s.cfg.AllowLocalNoAuth && isLocalRequest(r.RemoteAddr) {
		return nil
	}
	return fmt.Errorf("missing API token")
}

func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("token")); token != "" {
		return token
	}
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

func isLocalRequest(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	if ip != nil {
		return ip.IsLoopback()
	}
	return host == "localhost"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"network": guard.AllowedNetwork,
		"tools":   len(s.cfg.Tools.Names()),
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":   s.cfg.Tools.Catalog(),
		"bundles": s.cfg.Tools.BundleCatalog(),
	})
}

func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/tools/")
	name = strings.Trim(name, "/")
	if name == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("tool name is required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		schema, ok := s.cfg.Tools.Schema(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown tool %q", name))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"name": name, "jsonSchema": schema})
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxToolBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("reading request body: %w", err))
			return
		}
		result, err := s.cfg.Tools.Execute(r.Context(), name, body)
		if err != nil {
			s.writeToolError(w, name, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tool": name, "result": result})
	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

// writeToolError maps the error taxonomy onto HTTP statuses. Caller mistakes
// are 4xx; anything that went wrong on a remote service is 502 so the client
// knows the gateway itself is fine.
func (s *Server) writeToolError(w http.ResponseWriter, name string, err error) {
	if strings.Contains(err.Error(), fmt.Sprintf("unknown tool %q", name)) {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var partial *engine.PartialHireError
	if errors.As(err, &partial) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":           partial.Error(),
			"jobId":           partial.JobID,
			"agentIdentifier": partial.AgentIdentifier,
			"partialHire":     true,
		})
		return
	}
	if errors.Is(err, engine.ErrResultNotReady) {
		writeError(w, http.StatusConflict, err)
		return
	}

	var incomplete *engine.IncompleteInputError
	var network *guard.NetworkError
	var prefix *guard.NamePrefixError
	if errors.As(err, &incomplete) || errors.As(err, &network) || errors.As(err, &prefix) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if _, ok := remote.AsService(err); ok || remote.IsTransport(err) || remote.IsDecode(err) {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeError(w, http.StatusBadRequest, err)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.cfg.EventStore == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []any{}})
		return
	}

	query := store.ListQuery{
		Limit:  parseInt(r.URL.Query().Get("limit"), 100),
		Offset: parseInt(r.URL.Query().Get("offset"), 0),
	}
	agentID := strings.TrimSpace(r.URL.Query().Get("agent_id"))
	jobID := strings.TrimSpace(r.URL.Query().Get("job_id"))

	switch {
	case jobID != "":
		events, err := s.cfg.EventStore.ListEventsByJob(r.Context(), jobID, query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	case agentID != "":
		events, err := s.cfg.EventStore.ListEventsByAgent(r.Context(), agentID, query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("agent_id or job_id query parameter is required"))
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.cfg.EventStore == nil {
		writeJSON(w, http.StatusOK, store.MetricsSummary{})
		return
	}
	metrics, err := s.cfg.EventStore.AggregateMetrics(r.Context(), store.MetricsQuery{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func parseInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]any{"error": msg})
}
