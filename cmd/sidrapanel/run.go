package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sidrapanel/internal/infrastructure"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and write the panel, charts and diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		application, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() {
			if err := application.OTelProviders.Shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("OpenTelemetry shutdown failed", slog.String("error", err.Error()))
			}
			infrastructure.CloseLogFile()
		}()

		state, err := application.RunPipeline(ctx)
		application.PrintSummary(cmd.OutOrStdout(), state)
		if err != nil {
			return err
		}

		for _, name := range state.ArtifactNames() {
			path, _ := state.Artifact(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", name, path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
