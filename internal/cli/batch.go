package cli

import (
	"github.com/spf13/cobra"

	"github.com/seismic-fusion/quakefusion/internal/batch"
	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/source"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Fetch every enabled source once and run a single clustering pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger := logging.New(cfg.Log.Level, cfg.Log.Format)
		logger.SetDefault()

		ctx, cancel := signalContext()
		defer cancel()

		store, closeStore, err := buildSink(ctx, cfg, logger)
		if err != nil {
			return fatalf("building sink: %w", err)
		}
		defer closeStore()

		registry := source.DefaultRegistry()
		publishers := buildPublishers(ctx, cfg, logger)
		limiter := buildLimiter(ctx, cfg, logger)
		result, err := batch.Run(ctx, cfg, registry, store, logger, limiter, publishers...)
		if err != nil {
			return fatalf("batch run: %w", err)
		}

		logger.InfoContext(ctx, "batch run complete",
			"raw_events", result.ClusterRun.RawEventsCount,
			"unified_events", result.ClusterRun.UnifiedEventsCount,
			"dead_letters", result.ClusterRun.DeadLetterCount,
			"status", string(result.ClusterRun.Status),
		)
		return nil
	},
}
