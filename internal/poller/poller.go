// Package poller runs component E: one independent fetch-parse-validate
// loop per configured seismic agency, on its own ticker. Grounded on
// query/internal/scheduler's per-item ticker/goroutine lifecycle, adapted
// from per-alert scheduling to per-source polling.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/metrics"
	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/parser"
	"github.com/seismic-fusion/quakefusion/internal/sink"
	"github.com/seismic-fusion/quakefusion/internal/source"
	"github.com/seismic-fusion/quakefusion/internal/transport"
	"github.com/seismic-fusion/quakefusion/internal/validator"
)

// Fetcher is the subset of transport.Client the poller needs, so tests can
// supply a stub instead of performing real HTTP calls.
type Fetcher interface {
	Fetch(ctx context.Context, sourceTag, url string, policy transport.RetryPolicy) ([]byte, error)
}

// RetryPolicyFor derives a transport.RetryPolicy from a source descriptor
// and the global retry defaults. The per-attempt timeout comes from the
// descriptor itself (each agency's feed has its own expected latency);
// base/cap/totalDeadline come from the shared retry config.
func RetryPolicyFor(d source.Descriptor, base, cap, totalDeadline time.Duration) transport.RetryPolicy {
	return transport.RetryPolicy{
		MaxAttempts:       d.MaxRetries,
		BaseDelay:         base,
		MaxDelay:          cap,
		PerAttemptTimeout: d.Timeout,
		TotalDeadline:     totalDeadline,
	}
}

// Stats is a per-source snapshot of one poller's cumulative counters.
type Stats struct {
	Source          string
	FetchAttempts   int64
	FetchFailures   int64
	EventsParsed    int64
	EventsValidated int64
	DeadLettered    int64
	LastRunAt       time.Time
	LastError       string
}

// Poller polls a single configured source on its own ticker and pushes
// successfully validated events to the sink's raw/normalized log, routing
// failures to the dead-letter sink.
type Poller struct {
	descriptor source.Descriptor
	fetcher    Fetcher
	policy     transport.RetryPolicy
	parsers    *parser.Table
	validators *validator.Chain
	store      sink.Sink
	logger     *logging.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds a Poller for one source descriptor.
func New(d source.Descriptor, fetcher Fetcher, policy transport.RetryPolicy, parsers *parser.Table, validators *validator.Chain, store sink.Sink, logger *logging.Logger) *Poller {
	return &Poller{
		descriptor: d,
		fetcher:    fetcher,
		policy:     policy,
		parsers:    parsers,
		validators: validators,
		store:      store,
		logger:     logger,
		stats:      Stats{Source: d.Tag},
	}
}

// Run blocks, polling on d's MinPollInterval ticker until ctx is canceled.
// An initial poll fires immediately, matching query/internal/scheduler's
// "sync before the first tick" behavior.
func (p *Poller) Run(ctx context.Context) {
	p.PollOnce(ctx)

	ticker := time.NewTicker(p.descriptor.MinPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce performs a single fetch-parse-validate cycle for this source,
// recording a pipeline_run telemetry entry regardless of outcome (spec.md
// line 87: "on end-to-end failure, records a pipeline_run entry with
// status failed and the error; partial success... is status ok with
// counters").
func (p *Poller) PollOnce(ctx context.Context) {
	runID := fmt.Sprintf("%s-%d", p.descriptor.Tag, time.Now().UnixNano())
	ctx = logging.WithRunID(ctx, runID)
	started := time.Now().UTC()

	run := model.PipelineRun{
		RunID:          runID,
		StartedAt:      started,
		SourcesFetched: []string{p.descriptor.Tag},
	}

	p.recordAttempt()
	metrics.FetchAttemptsTotal.WithLabelValues(p.descriptor.Tag).Inc()

	fetchStart := time.Now()
	raw, err := p.fetcher.Fetch(ctx, p.descriptor.Tag, p.descriptor.BaseURL, p.policy)
	metrics.FetchLatency.WithLabelValues(p.descriptor.Tag).Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		p.logger.WarnContext(ctx, "poll fetch failed", "source", p.descriptor.Tag, "error", err)
		p.recordFetchFailure(err)
		metrics.FetchFailuresTotal.WithLabelValues(p.descriptor.Tag, fetchErrorKind(err)).Inc()
		p.finalizeRun(ctx, run, started, fmt.Errorf("fetch: %w", err))
		return
	}

	fetchedAt := time.Now().UTC()
	events, parseErrs := p.parsers.Parse(p.descriptor.Format, raw, p.descriptor.Tag, fetchedAt)

	for _, pe := range parseErrs {
		p.logger.WarnContext(ctx, "parse error", "source", p.descriptor.Tag, "kind", pe.Kind, "detail", pe.Detail)
		p.deadLetter(ctx, p.descriptor.Tag, "", pe.RawSub, []string{pe.Error()})
		metrics.DeadLettersTotal.WithLabelValues(p.descriptor.Tag, string(pe.Kind)).Inc()
	}
	p.addParsed(int64(len(events)))
	metrics.EventsParsedTotal.WithLabelValues(p.descriptor.Tag).Add(float64(len(events)))

	var validCount int64
	var validationDeadLetters int
	for _, e := range events {
		if verr := p.validators.Validate(ctx, &e); verr != nil {
			p.logger.WarnContext(ctx, "validation failed", "source", p.descriptor.Tag, "event_uid", e.EventUID, "error", verr)
			p.deadLetter(ctx, e.Source, e.SourceEventID, e.RawPayload, []string{verr.Error()})
			metrics.DeadLettersTotal.WithLabelValues(p.descriptor.Tag, "validation").Inc()
			validationDeadLetters++
			continue
		}
		e.IngestedAt = time.Now().UTC()
		if err := p.store.AppendRaw(ctx, e); err != nil {
			p.logger.ErrorContext(ctx, "append raw failed", "source", p.descriptor.Tag, "event_uid", e.EventUID, "error", err)
			continue
		}
		validCount++
	}

	p.recordSuccess(validCount)
	metrics.EventsValidatedTotal.WithLabelValues(p.descriptor.Tag).Add(float64(validCount))

	run.RawEventsCount = int(validCount)
	run.DeadLetterCount = len(parseErrs) + validationDeadLetters
	p.finalizeRun(ctx, run, started, nil)
}

// finalizeRun fills in the terminal fields of run and persists it,
// logging (but not propagating) a store failure — PollOnce has no error
// return, matching query/internal/scheduler's fire-and-log ticker loop.
func (p *Poller) finalizeRun(ctx context.Context, run model.PipelineRun, started time.Time, err error) {
	run.FinishedAt = time.Now().UTC()
	run.DurationSeconds = run.FinishedAt.Sub(started).Seconds()
	if err != nil {
		run.Status = model.RunStatusFailed
		run.ErrorMessage = err.Error()
	} else {
		run.Status = model.RunStatusOK
	}
	if appendErr := p.store.AppendRun(ctx, run); appendErr != nil {
		p.logger.ErrorContext(ctx, "append poll run failed", "run_id", run.RunID, "error", appendErr)
	}
}

// fetchErrorKind extracts the FetchKind label for FetchFailuresTotal, or
// "unknown" for an error that didn't originate from internal/transport.
func fetchErrorKind(err error) string {
	var ferr *model.FetchError
	if errors.As(err, &ferr) {
		return string(ferr.Kind)
	}
	return "unknown"
}

func (p *Poller) deadLetter(ctx context.Context, sourceTag, sourceEventID string, raw []byte, messages []string) {
	entry := model.DeadLetterEntry{
		Source:        sourceTag,
		SourceEventID: sourceEventID,
		RawPayload:    raw,
		ErrorMessages: messages,
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.store.AppendDeadLetter(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "append dead letter failed", "source", sourceTag, "error", err)
	}
	p.mu.Lock()
	p.stats.DeadLettered++
	p.mu.Unlock()
}

func (p *Poller) recordAttempt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.FetchAttempts++
	p.stats.LastRunAt = time.Now().UTC()
}

func (p *Poller) recordFetchFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.FetchFailures++
	p.stats.LastError = err.Error()
}

func (p *Poller) addParsed(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.EventsParsed += n
}

func (p *Poller) recordSuccess(validCount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.EventsValidated += validCount
	p.stats.LastError = ""
}

// Stats returns a snapshot of this poller's cumulative counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
