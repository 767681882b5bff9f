// Package mcpserver exposes the tool catalog over the Model Context
// Protocol, on stdio or SSE.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/usdatahub/usdata-mcp/pkg/catalog"
	"github.com/usdatahub/usdata-mcp/pkg/schema"
)

// Server wraps the tool registry and exposes it as an MCP server.
type Server struct {
	registry  *catalog.Registry
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server publishing every registered tool.
func NewServer(name, version string, registry *catalog.Registry, logger *slog.Logger) *Server {
	s := &Server{
		registry:  registry,
		logger:    logger,
		mcpServer: server.NewMCPServer(name, version),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
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

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// registerTools translates each catalog descriptor into an MCP tool whose
// input schema is the descriptor's own JSON Schema. Every call resolves to
// a text result carrying the response envelope; transport-level errors are
// reserved for protocol failures.
func (s *Server) registerTools() {
	for _, desc := range s.registry.List() {
		desc := desc
		rawSchema, err := json.Marshal(schema.JSONSchema(desc.Schema))
		if err != nil {
			s.logger.Error("tool schema marshal failed", "tool", desc.Name, "err", err)
			continue
		}

		tool := mcp.NewToolWithRawSchema(desc.Name, desc.Description, rawSchema)
		s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			env := s.registry.Call(ctx, desc.Name, request.GetArguments())
			return mcp.NewToolResultText(env.JSON()), nil
		})
	}
}
