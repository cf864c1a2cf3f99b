package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sidrapanel/internal/app"
	"sidrapanel/internal/config"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/pkg/contracts"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sidrapanel",
	Short:         "Build the state-year panel of working-age population per active business",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML config file (defaults to $SIDRAPANEL_CONFIG or sidrapanel.yaml)")
}

// bootstrap loads the configuration and builds the application with logging
// and telemetry initialized
func bootstrap() (*app.Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return app.NewApplication(cfg, logger, providers)
}
