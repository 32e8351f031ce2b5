package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/tierfs/internal/logger"
	"github.com/marmos91/tierfs/pkg/config"
	"github.com/marmos91/tierfs/pkg/orchestrator"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the TierFS orchestrator",
	Long: `Start the TierFS orchestrator with the specified configuration.

The orchestrator mounts both tiers, serves the merged namespace, runs the
migration scheduler on its cron schedule, and exposes the operations API.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/tierfs/config.yaml.

Examples:
  # Start with default config location
  tierfs start

  # Start with custom config file
  tierfs start --config /etc/tierfs/config.yaml

  # Start with environment variable overrides
  TIERFS_LOGGING_LEVEL=DEBUG tierfs start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("TierFS - Tiered storage orchestrator")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	orc, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	// Start orchestrator in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- orc.Serve(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for the orchestrator to shut down gracefully
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
