package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	usdata "github.com/usdatahub/usdata-mcp"
	"github.com/usdatahub/usdata-mcp/internal/logging"
	"github.com/usdatahub/usdata-mcp/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "usdata-mcp",
	Short: "usdata-mcp exposes US government data APIs as tools",
	Long: `usdata-mcp is a resilient dispatch server for US government data
sources (Census, BLS, EPA AQS, openFDA, SEC EDGAR). It exposes each source
as a set of tools over MCP or plain HTTP, with shared retry, rate-limit
and credential handling.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "usdata.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// setup loads the configuration, installs the logger and assembles the
// system. Shared by every serving command.
func setup(cmd *cobra.Command) (*usdata.System, config.Config, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cfg, nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	system, err := usdata.New(cfg, usdata.WithLogger(logger))
	if err != nil {
		return nil, cfg, logger, err
	}
	return system, cfg, logger, nil
}
