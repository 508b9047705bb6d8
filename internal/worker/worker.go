// Package worker is the long-lived process mode of spec.md §5: one
// independent poller goroutine per enabled source on its own cadence, plus
// the clustering-and-unification pass on its own (default 5-minute)
// cadence, all sharing one injected rate limiter. Grounded on
// query/internal/scheduler's Start/Stop/WaitGroup lifecycle.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/cluster"
	"github.com/seismic-fusion/quakefusion/internal/config"
	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/parser"
	"github.com/seismic-fusion/quakefusion/internal/pipeline"
	"github.com/seismic-fusion/quakefusion/internal/poller"
	"github.com/seismic-fusion/quakefusion/internal/ratelimit"
	"github.com/seismic-fusion/quakefusion/internal/score"
	"github.com/seismic-fusion/quakefusion/internal/sink"
	"github.com/seismic-fusion/quakefusion/internal/source"
	"github.com/seismic-fusion/quakefusion/internal/transport"
	"github.com/seismic-fusion/quakefusion/internal/validator"
)

func scoreWeightsFrom(cfg *config.Config) score.Weights {
	return score.Weights{
		Time:      cfg.ScoringWeights.Time,
		Distance:  cfg.ScoringWeights.Distance,
		Magnitude: cfg.ScoringWeights.Magnitude,
	}
}

// Worker owns every poller and the clustering pipeline and runs them
// concurrently until its context is canceled.
type Worker struct {
	cfg      *config.Config
	registry *source.Registry
	store    sink.Sink
	logger   *logging.Logger

	limiter ratelimit.ConfigurableLimiter
	client  *transport.Client
	pollers []*poller.Poller
	pl      *pipeline.Pipeline

	wg sync.WaitGroup
}

// New wires the shared rate limiter, transport client, per-source pollers,
// and the clustering pipeline from cfg. The limiter is constructed here and
// injected everywhere it's needed, per spec.md §9's resource policy — it is
// never a package-level singleton. A nil limiter builds the default
// in-process TokenBucket; pass adapters/redisrate.Limiter instead for a
// multi-replica deployment sharing one rate budget per source. publishers
// are optional secondary fan-out targets (OpenSearch, NATS) for every
// unified event produced.
func New(cfg *config.Config, registry *source.Registry, store sink.Sink, logger *logging.Logger, limiter ratelimit.ConfigurableLimiter, publishers ...pipeline.Publisher) *Worker {
	if limiter == nil {
		limiter = ratelimit.NewTokenBucket()
	}

	descriptors := cfg.ApplyPollIntervalOverrides(registry.Enabled(cfg.SourcesEnabled))
	for _, d := range descriptors {
		limiter.Configure(d.Tag, d.MinPollInterval)
	}

	client := transport.New(limiter, logger)
	parsers := parser.NewTable()
	validators := validator.NewChain(validator.NewBoundsValidator())

	w := &Worker{
		cfg:      cfg,
		registry: registry,
		store:    store,
		logger:   logger,
		limiter:  limiter,
		client:   client,
	}

	for _, d := range descriptors {
		policy := poller.RetryPolicyFor(d, cfg.RetryBase(), cfg.RetryCap(), cfg.Timeout())
		w.pollers = append(w.pollers, poller.New(d, client, policy, parsers, validators, store, logger))
	}

	weights := scoreWeightsFrom(cfg)
	w.pl = pipeline.New(store, cluster.Params{
		EpsKM:          cfg.Cluster.EpsKM,
		DtSeconds:      cfg.Cluster.DtSeconds,
		DMag:           cfg.Cluster.DMag,
		MatchThreshold: cfg.Cluster.MatchThreshold,
		Weights:        weights,
	}, weights, cfg.WindowDuration(), logger).WithPublishers(publishers...)

	return w
}

// Run starts every poller and the clustering loop, blocking until ctx is
// canceled and every goroutine has exited.
func (w *Worker) Run(ctx context.Context) {
	for _, p := range w.pollers {
		w.wg.Add(1)
		go func(p *poller.Poller) {
			defer w.wg.Done()
			p.Run(ctx)
		}(p)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runClustering(ctx)
	}()

	w.wg.Wait()
	w.logger.InfoContext(ctx, "worker stopped")
}

func (w *Worker) runClustering(ctx context.Context) {
	interval := w.cfg.ClusterInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.pl.Run(ctx); err != nil {
				w.logger.ErrorContext(ctx, "clustering pass error", "error", err)
			}
		}
	}
}

// PollerStats returns a snapshot of every poller's cumulative counters, for
// health/metrics endpoints.
func (w *Worker) PollerStats() []poller.Stats {
	out := make([]poller.Stats, 0, len(w.pollers))
	for _, p := range w.pollers {
		out = append(out, p.Stats())
	}
	return out
}
