package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	usdata "github.com/usdatahub/usdata-mcp"
	"github.com/usdatahub/usdata-mcp/pkg/adapters/httpapi"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the plain HTTP API server",
	Long: `Starts the tool catalog as an HTTP server.

Endpoints:
- GET  /tools          List tools with their input schemas
- POST /tools/{name}   Invoke a tool; the body is the argument object
- GET  /health         Liveness probe
- GET  /metrics        Prometheus metrics`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		system, _, logger, err := setup(cmd)
		if err != nil {
			log.Fatalf("Error initializing: %v", err)
		}

		srv := httpapi.NewServer(system.Registry, usdata.Version, logger, system.Prometheus)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Serve(ctx, port); err != nil {
			if err != http.ErrServerClosed {
				slog.Error("HTTP server execution failed", "err", err)
				os.Exit(1)
			}
		}
		slog.Info("HTTP server stopped gracefully")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
}
