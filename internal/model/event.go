// Package model defines the canonical record shapes that flow through the
// fusion pipeline: normalized events, unified events, crosswalk rows, dead
// letters, and pipeline-run telemetry.
package model

import "time"

// Status is the review status of a seismic event report.
type Status string

const (
	StatusAutomatic Status = "automatic"
	StatusReviewed  Status = "reviewed"
	StatusManual    Status = "manual"
)

// NormalizedEvent is the canonical record produced by a format parser.
//
// event_uid = "{Source}:{SourceEventID}" and is globally unique across the
// system. Fields are immutable once validated, except that re-ingestion of
// the same event_uid updates only the fields whose source UpdatedAt is
// newer (see Merge).
type NormalizedEvent struct {
	EventUID      string
	Source        string
	SourceEventID string

	OriginTimeUTC time.Time
	Latitude      float64
	Longitude     float64
	DepthKM       float64

	MagnitudeValue float64
	MagnitudeType  string

	Place  string
	Region string

	LatErrorKM   *float64
	LonErrorKM   *float64
	DepthErrorKM *float64
	MagError     *float64
	TimeErrorSec *float64

	Status      Status
	NumPhases   *int
	AzimuthalGap *float64

	Author string
	URL    string

	FetchedAt  time.Time
	UpdatedAt  *time.Time
	IngestedAt time.Time
	RawPayload []byte
}

// Merge applies a re-ingested NormalizedEvent onto the receiver, updating
// only fields whose incoming UpdatedAt is strictly newer than the
// receiver's. Per spec.md §5 "Ordering": later updated_at for the same
// event_uid wins on field merge.
func (e *NormalizedEvent) Merge(incoming NormalizedEvent) {
	if incoming.UpdatedAt == nil {
		return
	}
	if e.UpdatedAt != nil && !incoming.UpdatedAt.After(*e.UpdatedAt) {
		return
	}
	*e = incoming
}

// UnifiedEvent is the deduplicated best-estimate record for one physical
// earthquake, fused from 1..N source reports.
type UnifiedEvent struct {
	UnifiedEventID string

	OriginTimeUTC time.Time
	Latitude      float64
	Longitude     float64
	DepthKM       float64

	MagnitudeValue float64
	MagnitudeType  string

	Place  string
	Region string
	Status Status

	NumSources        int
	PreferredSource   string
	PreferredEventUID string
	SourceEventUIDs   []string

	MagnitudeStd         float64
	LocationSpreadKM     float64
	SourceAgreementScore float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExistingUnification is what ReadExistingCrosswalk reports for an
// event_uid that is already linked to a prior unified event: its id, plus
// the region and preferred_source that unified event carried at last
// write. internal/unify compares these against the current run's
// computation to decide whether reuse of the id is still valid, per
// spec.md §4.H.2's "region/priority still agrees" qualifier.
type ExistingUnification struct {
	UnifiedEventID  string
	Region          string
	PreferredSource string
}

// CrosswalkRow is the many-to-one join between a source-level event and a
// unified event. Primary key is (EventUID, UnifiedEventID).
type CrosswalkRow struct {
	EventUID       string
	UnifiedEventID string
	MatchScore     float64
	IsPreferred    bool
	CreatedAt      time.Time
}

// DeadLetterEntry is a record the pipeline could not convert or validate.
type DeadLetterEntry struct {
	Source        string
	SourceEventID string
	RawPayload    []byte
	ErrorMessages []string
	CreatedAt     time.Time
}

// RunStatus is the terminal status of one pipeline invocation.
type RunStatus string

const (
	RunStatusOK     RunStatus = "ok"
	RunStatusFailed RunStatus = "failed"
)

// PipelineRun is telemetry for a single fetch-normalize-validate (poller)
// or cluster-unify (clustering) invocation.
type PipelineRun struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        time.Time
	Status            RunStatus
	SourcesFetched    []string
	RawEventsCount    int
	UnifiedEventsCount int
	DeadLetterCount   int
	ErrorMessage      string
	DurationSeconds   float64
}
