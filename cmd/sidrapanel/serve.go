package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"sidrapanel/internal/infrastructure"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline once and serve the results over HTTP",
	Long: `Run the pipeline once, publish the result and serve the read-only API
until interrupted. A failed run is still published; /api/health then reports
"degraded" and the panel endpoints answer 404.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		application, err := bootstrap()
		if err != nil {
			return err
		}
		defer infrastructure.CloseLogFile()

		if _, err := application.RunPipeline(ctx); err != nil {
			application.Logger.ErrorContext(ctx, "Initial pipeline run failed, serving degraded",
				slog.String("error", err.Error()))
		}

		return application.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
