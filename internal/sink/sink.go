// Package sink declares the injected-abstraction boundary of spec.md §6:
// every persistent store the pipeline touches is reached only through
// these interfaces. Concrete storage lives in adapters/postgres or
// internal/sink/memsink (in-process, used by tests and the batch entry
// point's dry-run mode); adapters/nats and adapters/opensearch are fan-out
// targets reached through pipeline.Publisher instead. The core packages
// depend on nothing but these interfaces; the only internal/ package that
// imports adapters/ is the internal/cli composition root.
package sink

import (
	"context"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// RawAppender persists the append-only raw/normalized log: one row per
// successfully parsed-and-validated NormalizedEvent, provenance preserved
// via its RawPayload field. This is the backing store WindowReader reads
// from.
type RawAppender interface {
	AppendRaw(ctx context.Context, event model.NormalizedEvent) error
}

// UnifiedUpserter persists fused UnifiedEvents, overwriting an existing row
// with the same UnifiedEventID.
type UnifiedUpserter interface {
	UpsertUnified(ctx context.Context, event model.UnifiedEvent) error
}

// CrosswalkUpserter persists the many-to-one join between source events and
// unified events.
type CrosswalkUpserter interface {
	UpsertCrosswalk(ctx context.Context, row model.CrosswalkRow) error
}

// DeadLetterAppender persists events or payloads the pipeline could not
// convert or validate.
type DeadLetterAppender interface {
	AppendDeadLetter(ctx context.Context, entry model.DeadLetterEntry) error
}

// RunAppender persists pipeline-run telemetry.
type RunAppender interface {
	AppendRun(ctx context.Context, run model.PipelineRun) error
}

// WindowReader reads back NormalizedEvents fetched within a sliding time
// window, the input to the clustering engine.
type WindowReader interface {
	ReadWindow(ctx context.Context, since time.Time) ([]model.NormalizedEvent, error)

	// MaxOriginTimeUTC reports the latest origin_time_utc across every
	// stored raw event, ok=false if the store holds none yet. The
	// clustering pass anchors its sliding window to this value rather
	// than wall-clock time (spec.md §9's Open Question resolution).
	MaxOriginTimeUTC(ctx context.Context) (t time.Time, ok bool, err error)
}

// CrosswalkReader reads existing crosswalk rows, the basis for identity
// mint-or-reuse in internal/unify.
type CrosswalkReader interface {
	ReadExistingCrosswalk(ctx context.Context, eventUIDs []string) (map[string]model.ExistingUnification, error)
}

// Sink is the full set of storage capabilities the pipeline needs,
// satisfied by adapters/postgres's Store (optionally paired with
// adapters/nats and adapters/opensearch for streaming/analytical fanout)
// or by memsink.Store in tests and dry runs.
type Sink interface {
	RawAppender
	UnifiedUpserter
	CrosswalkUpserter
	DeadLetterAppender
	RunAppender
	WindowReader
	CrosswalkReader
}
