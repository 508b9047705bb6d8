// Package memsink is an in-process implementation of internal/sink's
// interfaces, used by package tests and the batch entry point's dry-run
// mode. Grounded on core/internal/dlq/dlq.go's mutex-guarded bookkeeping
// style, adapted to hold every record in memory rather than on disk.
package memsink

import (
	"context"
	"sync"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// Store holds every record the pipeline writes, guarded by a single mutex.
// Not intended for production scale — adapters/postgres is the durable
// implementation.
type Store struct {
	mu sync.Mutex

	raw        []model.NormalizedEvent
	unified    map[string]model.UnifiedEvent
	crosswalk  map[string]model.CrosswalkRow // key: EventUID
	deadLetter []model.DeadLetterEntry
	runs       []model.PipelineRun
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		unified:   make(map[string]model.UnifiedEvent),
		crosswalk: make(map[string]model.CrosswalkRow),
	}
}

func (s *Store) AppendRaw(ctx context.Context, event model.NormalizedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = append(s.raw, event)
	return nil
}

func (s *Store) UpsertUnified(ctx context.Context, event model.UnifiedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unified[event.UnifiedEventID] = event
	return nil
}

func (s *Store) UpsertCrosswalk(ctx context.Context, row model.CrosswalkRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crosswalk[row.EventUID] = row
	return nil
}

func (s *Store) AppendDeadLetter(ctx context.Context, entry model.DeadLetterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLetter = append(s.deadLetter, entry)
	return nil
}

func (s *Store) AppendRun(ctx context.Context, run model.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *Store) ReadWindow(ctx context.Context, since time.Time) ([]model.NormalizedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.NormalizedEvent, 0, len(s.raw))
	for _, e := range s.raw {
		if !e.FetchedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ReadExistingCrosswalk(ctx context.Context, eventUIDs []string) (map[string]model.ExistingUnification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.ExistingUnification)
	for _, uid := range eventUIDs {
		row, ok := s.crosswalk[uid]
		if !ok {
			continue
		}
		u := s.unified[row.UnifiedEventID]
		out[uid] = model.ExistingUnification{
			UnifiedEventID:  row.UnifiedEventID,
			Region:          u.Region,
			PreferredSource: u.PreferredSource,
		}
	}
	return out, nil
}

// MaxOriginTimeUTC returns the latest OriginTimeUTC among every appended
// raw event, ok=false if none have been appended yet.
func (s *Store) MaxOriginTimeUTC(ctx context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max time.Time
	var ok bool
	for _, e := range s.raw {
		if !ok || e.OriginTimeUTC.After(max) {
			max = e.OriginTimeUTC
			ok = true
		}
	}
	return max, ok, nil
}

// Snapshot returns copies of every stored collection, for assertions in
// tests.
func (s *Store) Snapshot() (unified []model.UnifiedEvent, crosswalk []model.CrosswalkRow, deadLetter []model.DeadLetterEntry, runs []model.PipelineRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.unified {
		unified = append(unified, u)
	}
	for _, c := range s.crosswalk {
		crosswalk = append(crosswalk, c)
	}
	deadLetter = append(deadLetter, s.deadLetter...)
	runs = append(runs, s.runs...)
	return
}

// CrosswalkLookup adapts Store to unify.IdentitySource.
type CrosswalkLookup struct {
	Store *Store
}

func (c CrosswalkLookup) Lookup(eventUID string) (model.ExistingUnification, bool) {
	c.Store.mu.Lock()
	defer c.Store.mu.Unlock()
	row, ok := c.Store.crosswalk[eventUID]
	if !ok {
		return model.ExistingUnification{}, false
	}
	u := c.Store.unified[row.UnifiedEventID]
	return model.ExistingUnification{
		UnifiedEventID:  row.UnifiedEventID,
		Region:          u.Region,
		PreferredSource: u.PreferredSource,
	}, true
}
