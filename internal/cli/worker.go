package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seismic-fusion/quakefusion/adapters/postgres"
	"github.com/seismic-fusion/quakefusion/internal/config"
	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/sink"
	"github.com/seismic-fusion/quakefusion/internal/sink/memsink"
	"github.com/seismic-fusion/quakefusion/internal/source"
	"github.com/seismic-fusion/quakefusion/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the long-lived poller + clustering process",
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
		w := worker.New(cfg, registry, store, logger, limiter, publishers...)

		logger.InfoContext(ctx, "worker starting", "sources", cfg.SourcesEnabled)
		w.Run(ctx)
		return nil
	},
}

// buildSink wires the configured sink implementation. A non-empty
// postgres.dsn selects the Postgres adapter; otherwise an in-memory sink is
// used, suitable for local runs and dry-run batch invocations.
func buildSink(ctx context.Context, cfg *config.Config, logger *logging.Logger) (sink.Sink, func(), error) {
	if cfg.Postgres.DSN == "" {
		logger.WarnContext(ctx, "postgres.dsn not set, using in-memory sink")
		return memsink.New(), func() {}, nil
	}

	if err := postgres.Migrate("adapters/postgres/migrations", cfg.Postgres.DSN); err != nil {
		return nil, nil, fmt.Errorf("applying migrations: %w", err)
	}

	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return store, store.Close, nil
}
