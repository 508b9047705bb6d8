// Package batch is the bounded, one-shot process mode of spec.md §5: fetch
// every enabled source concurrently (capped concurrency, per-source
// deadline), run a single clustering-and-unification pass, then return.
// Grounded on the same poller/pipeline components internal/worker uses,
// restructured from perpetual ticking to a single bounded fan-out.
package batch

import (
	"context"
	"sync"

	"github.com/seismic-fusion/quakefusion/internal/cluster"
	"github.com/seismic-fusion/quakefusion/internal/config"
	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/model"
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

// maxConcurrentFetches bounds how many sources are fetched at once, so a
// batch run over every agency never opens more than this many outbound
// connections simultaneously.
const maxConcurrentFetches = 4

// Result summarizes one batch invocation.
type Result struct {
	PollerStats []poller.Stats
	ClusterRun  model.PipelineRun
}

// Run fetches every enabled source once (bounded concurrency), then runs a
// single clustering-and-unification pass, then returns. A nil limiter
// builds the default in-process TokenBucket. publishers are optional
// secondary fan-out targets for every unified event produced.
func Run(ctx context.Context, cfg *config.Config, registry *source.Registry, store sink.Sink, logger *logging.Logger, limiter ratelimit.ConfigurableLimiter, publishers ...pipeline.Publisher) (Result, error) {
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

	pollers := make([]*poller.Poller, 0, len(descriptors))
	for _, d := range descriptors {
		policy := poller.RetryPolicyFor(d, cfg.RetryBase(), cfg.RetryCap(), cfg.Timeout())
		pollers = append(pollers, poller.New(d, client, policy, parsers, validators, store, logger))
	}

	fetchOnceAll(ctx, pollers)

	weights := score.Weights{
		Time:      cfg.ScoringWeights.Time,
		Distance:  cfg.ScoringWeights.Distance,
		Magnitude: cfg.ScoringWeights.Magnitude,
	}
	pl := pipeline.New(store, cluster.Params{
		EpsKM:          cfg.Cluster.EpsKM,
		DtSeconds:      cfg.Cluster.DtSeconds,
		DMag:           cfg.Cluster.DMag,
		MatchThreshold: cfg.Cluster.MatchThreshold,
		Weights:        weights,
	}, weights, cfg.WindowDuration(), logger).WithPublishers(publishers...)

	run, err := pl.Run(ctx)

	stats := make([]poller.Stats, 0, len(pollers))
	for _, p := range pollers {
		stats = append(stats, p.Stats())
	}

	return Result{PollerStats: stats, ClusterRun: run}, err
}

// fetchOnceAll runs each poller's PollOnce with bounded concurrency via a
// semaphore channel.
func fetchOnceAll(ctx context.Context, pollers []*poller.Poller) {
	sem := make(chan struct{}, maxConcurrentFetches)
	var wg sync.WaitGroup

	for _, p := range pollers {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *poller.Poller) {
			defer wg.Done()
			defer func() { <-sem }()
			p.PollOnce(ctx)
		}(p)
	}

	wg.Wait()
}
