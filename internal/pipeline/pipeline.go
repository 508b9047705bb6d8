// Package pipeline orchestrates the clustering-and-unification pass
// (components G and H) over a sliding window of normalized events,
// producing unified events and crosswalk rows and recording run
// telemetry. Grounded on core/internal/pipeline/pipeline.go's
// New/Process orchestration shape, generalized from a single-event
// normalize-then-validate call into a whole-window cluster-then-unify
// pass.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/cluster"
	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/metrics"
	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/score"
	"github.com/seismic-fusion/quakefusion/internal/sink"
	"github.com/seismic-fusion/quakefusion/internal/unify"
)

// Publisher fans a freshly unified event out to a secondary system (search
// index, message bus). Optional: a nil Publishers slice means the pipeline
// only writes through sink.Sink.
type Publisher interface {
	PublishUnified(ctx context.Context, u model.UnifiedEvent) error
}

// Pipeline ties together window reads, clustering, and unification.
type Pipeline struct {
	store          sink.Sink
	clusterParams  cluster.Params
	scoreWeights   score.Weights
	windowDuration time.Duration
	logger         *logging.Logger
	now            func() time.Time
	publishers     []Publisher
}

// New builds a Pipeline. now is injectable for deterministic tests.
func New(store sink.Sink, clusterParams cluster.Params, weights score.Weights, windowDuration time.Duration, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		store:          store,
		clusterParams:  clusterParams,
		scoreWeights:   weights,
		windowDuration: windowDuration,
		logger:         logger,
		now:            time.Now,
	}
}

// WithPublishers attaches secondary fan-out targets (OpenSearch, NATS) that
// every upserted unified event is also published to, best-effort: a
// publish failure is logged but never fails the pass.
func (p *Pipeline) WithPublishers(publishers ...Publisher) *Pipeline {
	p.publishers = publishers
	return p
}

// crosswalkIdentitySource adapts sink.CrosswalkReader to unify.IdentitySource
// for one run, caching the batch lookup made up front.
type crosswalkIdentitySource struct {
	existing map[string]model.ExistingUnification
}

func (c crosswalkIdentitySource) Lookup(eventUID string) (model.ExistingUnification, bool) {
	ex, ok := c.existing[eventUID]
	return ex, ok
}

// Run executes one clustering-and-unification pass and persists a
// PipelineRun telemetry record regardless of outcome.
func (p *Pipeline) Run(ctx context.Context) (model.PipelineRun, error) {
	runID := fmt.Sprintf("cluster-%d", p.now().UnixNano())
	ctx = logging.WithRunID(ctx, runID)

	started := p.now()
	run := model.PipelineRun{
		RunID:     runID,
		StartedAt: started,
	}

	// The window slides by the latest observed origin_time_utc, not
	// wall-clock time, so a poller outage or a backfill of old events
	// doesn't leave the clustering pass perpetually anchored to "now"
	// (spec.md §9's Open Question resolution). An empty store (first run,
	// nothing ingested yet) falls back to wall-clock.
	anchor := started
	if maxOrigin, ok, err := p.store.MaxOriginTimeUTC(ctx); err != nil {
		return p.finalizeFailed(ctx, run, fmt.Errorf("read max origin time: %w", err))
	} else if ok {
		anchor = maxOrigin
	}

	events, err := p.store.ReadWindow(ctx, anchor.Add(-p.windowDuration))
	if err != nil {
		return p.finalizeFailed(ctx, run, fmt.Errorf("read window: %w", err))
	}
	run.RawEventsCount = len(events)
	metrics.WindowSizeGauge.Set(float64(len(events)))

	clusters := cluster.Assign(events, p.clusterParams)
	metrics.ClustersFormedTotal.Add(float64(len(clusters)))

	eventUIDs := make([]string, 0, len(events))
	for _, e := range events {
		eventUIDs = append(eventUIDs, e.EventUID)
	}
	existing, err := p.store.ReadExistingCrosswalk(ctx, eventUIDs)
	if err != nil {
		return p.finalizeFailed(ctx, run, fmt.Errorf("read existing crosswalk: %w", err))
	}
	identity := crosswalkIdentitySource{existing: existing}

	results := unify.Unify(clusters, identity, p.scoreWeights, p.now())

	for _, r := range results {
		if err := p.store.UpsertUnified(ctx, r.Unified); err != nil {
			return p.finalizeFailed(ctx, run, fmt.Errorf("upsert unified %s: %w", r.Unified.UnifiedEventID, err))
		}
		for _, pub := range p.publishers {
			if err := pub.PublishUnified(ctx, r.Unified); err != nil {
				p.logger.WarnContext(ctx, "publish unified event failed", "unified_event_id", r.Unified.UnifiedEventID, "error", err)
			}
		}
		for _, row := range r.Crosswalk {
			if err := p.store.UpsertCrosswalk(ctx, row); err != nil {
				return p.finalizeFailed(ctx, run, fmt.Errorf("upsert crosswalk %s: %w", row.EventUID, err))
			}
		}
	}
	metrics.UnifiedEventsTotal.Add(float64(len(results)))
	run.UnifiedEventsCount = len(results)

	run.Status = model.RunStatusOK
	run.FinishedAt = p.now()
	run.DurationSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	metrics.ClusterRunDuration.Observe(run.DurationSeconds)

	if err := p.store.AppendRun(ctx, run); err != nil {
		p.logger.ErrorContext(ctx, "append run failed", "run_id", runID, "error", err)
	}

	p.logger.InfoContext(ctx, "clustering pass complete",
		"run_id", runID, "events", run.RawEventsCount, "clusters", len(clusters), "unified", run.UnifiedEventsCount)

	return run, nil
}

func (p *Pipeline) finalizeFailed(ctx context.Context, run model.PipelineRun, err error) (model.PipelineRun, error) {
	run.Status = model.RunStatusFailed
	run.ErrorMessage = err.Error()
	run.FinishedAt = p.now()
	run.DurationSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()

	p.logger.ErrorContext(ctx, "clustering pass failed", "run_id", run.RunID, "error", err)

	if appendErr := p.store.AppendRun(ctx, run); appendErr != nil {
		p.logger.ErrorContext(ctx, "append failed run failed", "run_id", run.RunID, "error", appendErr)
	}
	return run, err
}
