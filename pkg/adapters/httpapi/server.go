// Package httpapi exposes the tool catalog over plain HTTP for debugging
// and non-MCP clients: tool listing, tool invocation, health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/usdatahub/usdata-mcp/pkg/catalog"
	"github.com/usdatahub/usdata-mcp/pkg/schema"
)

// Server serves the catalog over HTTP.
type Server struct {
	registry *catalog.Registry
	logger   *slog.Logger
	version  string
	gatherer prometheus.Gatherer
}

// NewServer creates the HTTP surface. The gatherer may be nil if metrics
// are not exposed.
func NewServer(registry *catalog.Registry, version string, logger *slog.Logger, gatherer prometheus.Gatherer) *Server {
	return &Server{
		registry: registry,
		logger:   logger,
		version:  version,
		gatherer: gatherer,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/tools", s.listTools)
	r.Post("/tools/{name}", s.callTool)
	r.Get("/health", s.health)
	r.Get("/info", s.info)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

// Serve runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, stopping server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Source      string         `json:"source"`
	InputSchema map[string]any `json:"input_schema"`
}

// listTools handles GET /tools.
func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	descriptors := s.registry.List()
	tools := make([]toolInfo, 0, len(descriptors))
	for _, desc := range descriptors {
		tools = append(tools, toolInfo{
			Name:        desc.Name,
			Description: desc.Description,
			Source:      desc.Source,
			InputSchema: schema.JSONSchema(desc.Schema),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"tools": tools}); err != nil {
		s.logger.Error("tool list encode failed", "err", err)
	}
}

// callTool handles POST /tools/{name}. The body is the argument object;
// an empty body means no arguments. The response is always an envelope,
// HTTP 200 regardless of tool outcome.
func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("tool call body rejected", "tool", name, "err", err)
		return
	}

	env := s.registry.Call(r.Context(), name, args)

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(env.JSON())); err != nil {
		s.logger.Error("tool call response write failed", "tool", name, "err", err)
	}
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// info handles GET /info.
func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"app":     "usdata-mcp",
		"version": s.version,
		"tools":   len(s.registry.List()),
	})
}
