// Package postgres implements internal/sink.Sink against a real Postgres
// database via pgx/pgxpool. Grounded on
// alerting/internal/repository/postgres.go's pool-construction and
// query/scan shape, generalized from the case-management schema to the
// five tables spec.md §6 names: raw_events, unified_events, crosswalk,
// dead_letters, pipeline_runs.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// Store implements internal/sink.Sink against Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Config configures the connection pool.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// New opens a connection pool and verifies connectivity with a ping,
// matching alerting/internal/repository.NewPostgresRepository's startup
// check.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pgCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		pgCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pgCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) AppendRaw(ctx context.Context, e model.NormalizedEvent) error {
	query := `
		INSERT INTO raw_events (
			event_uid, source, source_event_id, origin_time_utc,
			latitude, longitude, depth_km, magnitude_value, magnitude_type,
			place, region, status,
			lat_error_km, lon_error_km, depth_error_km, mag_error, time_error_sec,
			num_phases, azimuthal_gap,
			author, url, fetched_at, updated_at, ingested_at, raw_payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (event_uid) DO UPDATE SET
			origin_time_utc = EXCLUDED.origin_time_utc,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			depth_km = EXCLUDED.depth_km,
			magnitude_value = EXCLUDED.magnitude_value,
			magnitude_type = EXCLUDED.magnitude_type,
			place = EXCLUDED.place,
			region = EXCLUDED.region,
			status = EXCLUDED.status,
			lat_error_km = EXCLUDED.lat_error_km,
			lon_error_km = EXCLUDED.lon_error_km,
			depth_error_km = EXCLUDED.depth_error_km,
			mag_error = EXCLUDED.mag_error,
			time_error_sec = EXCLUDED.time_error_sec,
			num_phases = EXCLUDED.num_phases,
			azimuthal_gap = EXCLUDED.azimuthal_gap,
			updated_at = EXCLUDED.updated_at,
			ingested_at = EXCLUDED.ingested_at
		WHERE EXCLUDED.updated_at IS NOT NULL
		  AND (raw_events.updated_at IS NULL OR EXCLUDED.updated_at > raw_events.updated_at)
	`
	_, err := s.pool.Exec(ctx, query,
		e.EventUID, e.Source, e.SourceEventID, e.OriginTimeUTC,
		e.Latitude, e.Longitude, e.DepthKM, e.MagnitudeValue, e.MagnitudeType,
		e.Place, e.Region, string(e.Status),
		e.LatErrorKM, e.LonErrorKM, e.DepthErrorKM, e.MagError, e.TimeErrorSec,
		e.NumPhases, e.AzimuthalGap,
		e.Author, e.URL, e.FetchedAt, e.UpdatedAt, e.IngestedAt, e.RawPayload,
	)
	if err != nil {
		return fmt.Errorf("append raw event %s: %w", e.EventUID, err)
	}
	return nil
}

func (s *Store) UpsertUnified(ctx context.Context, u model.UnifiedEvent) error {
	sourceEventUIDs, err := json.Marshal(u.SourceEventUIDs)
	if err != nil {
		return fmt.Errorf("marshal source_event_uids: %w", err)
	}

	query := `
		INSERT INTO unified_events (
			unified_event_id, origin_time_utc, latitude, longitude, depth_km,
			magnitude_value, magnitude_type, place, region, status,
			num_sources, preferred_source, preferred_event_uid, source_event_uids,
			magnitude_std, location_spread_km, source_agreement_score,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (unified_event_id) DO UPDATE SET
			origin_time_utc = EXCLUDED.origin_time_utc,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			depth_km = EXCLUDED.depth_km,
			magnitude_value = EXCLUDED.magnitude_value,
			magnitude_type = EXCLUDED.magnitude_type,
			place = EXCLUDED.place,
			region = EXCLUDED.region,
			status = EXCLUDED.status,
			num_sources = EXCLUDED.num_sources,
			preferred_source = EXCLUDED.preferred_source,
			preferred_event_uid = EXCLUDED.preferred_event_uid,
			source_event_uids = EXCLUDED.source_event_uids,
			magnitude_std = EXCLUDED.magnitude_std,
			location_spread_km = EXCLUDED.location_spread_km,
			source_agreement_score = EXCLUDED.source_agreement_score,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query,
		u.UnifiedEventID, u.OriginTimeUTC, u.Latitude, u.Longitude, u.DepthKM,
		u.MagnitudeValue, u.MagnitudeType, u.Place, u.Region, string(u.Status),
		u.NumSources, u.PreferredSource, u.PreferredEventUID, sourceEventUIDs,
		u.MagnitudeStd, u.LocationSpreadKM, u.SourceAgreementScore,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert unified event %s: %w", u.UnifiedEventID, err)
	}
	return nil
}

func (s *Store) UpsertCrosswalk(ctx context.Context, row model.CrosswalkRow) error {
	query := `
		INSERT INTO crosswalk (event_uid, unified_event_id, match_score, is_preferred, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_uid, unified_event_id) DO UPDATE SET
			match_score = EXCLUDED.match_score,
			is_preferred = EXCLUDED.is_preferred
	`
	_, err := s.pool.Exec(ctx, query, row.EventUID, row.UnifiedEventID, row.MatchScore, row.IsPreferred, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert crosswalk row %s/%s: %w", row.EventUID, row.UnifiedEventID, err)
	}
	return nil
}

func (s *Store) AppendDeadLetter(ctx context.Context, d model.DeadLetterEntry) error {
	messages, err := json.Marshal(d.ErrorMessages)
	if err != nil {
		return fmt.Errorf("marshal error_messages: %w", err)
	}
	query := `
		INSERT INTO dead_letters (source, source_event_id, raw_payload, error_messages, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.pool.Exec(ctx, query, d.Source, d.SourceEventID, d.RawPayload, messages, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}
	return nil
}

func (s *Store) AppendRun(ctx context.Context, r model.PipelineRun) error {
	sourcesFetched, err := json.Marshal(r.SourcesFetched)
	if err != nil {
		return fmt.Errorf("marshal sources_fetched: %w", err)
	}
	query := `
		INSERT INTO pipeline_runs (
			run_id, started_at, finished_at, status, sources_fetched,
			raw_events_count, unified_events_count, dead_letter_count,
			error_message, duration_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.StartedAt, r.FinishedAt, string(r.Status), sourcesFetched,
		r.RawEventsCount, r.UnifiedEventsCount, r.DeadLetterCount,
		r.ErrorMessage, r.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("append pipeline run %s: %w", r.RunID, err)
	}
	return nil
}

func (s *Store) ReadWindow(ctx context.Context, since time.Time) ([]model.NormalizedEvent, error) {
	query := `
		SELECT event_uid, source, source_event_id, origin_time_utc,
			latitude, longitude, depth_km, magnitude_value, magnitude_type,
			place, region, status,
			lat_error_km, lon_error_km, depth_error_km, mag_error, time_error_sec,
			num_phases, azimuthal_gap,
			author, url, fetched_at, updated_at, ingested_at, raw_payload
		FROM raw_events
		WHERE fetched_at >= $1
		ORDER BY origin_time_utc ASC
	`
	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("read window: %w", err)
	}
	defer rows.Close()

	var events []model.NormalizedEvent
	for rows.Next() {
		var e model.NormalizedEvent
		var status string
		if err := rows.Scan(
			&e.EventUID, &e.Source, &e.SourceEventID, &e.OriginTimeUTC,
			&e.Latitude, &e.Longitude, &e.DepthKM, &e.MagnitudeValue, &e.MagnitudeType,
			&e.Place, &e.Region, &status,
			&e.LatErrorKM, &e.LonErrorKM, &e.DepthErrorKM, &e.MagError, &e.TimeErrorSec,
			&e.NumPhases, &e.AzimuthalGap,
			&e.Author, &e.URL, &e.FetchedAt, &e.UpdatedAt, &e.IngestedAt, &e.RawPayload,
		); err != nil {
			return nil, fmt.Errorf("scan raw event: %w", err)
		}
		e.Status = model.Status(status)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// MaxOriginTimeUTC returns the latest origin_time_utc stored in raw_events,
// ok=false if the table is empty.
func (s *Store) MaxOriginTimeUTC(ctx context.Context) (time.Time, bool, error) {
	var max *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(origin_time_utc) FROM raw_events`).Scan(&max); err != nil {
		return time.Time{}, false, fmt.Errorf("max origin time: %w", err)
	}
	if max == nil {
		return time.Time{}, false, nil
	}
	return *max, true, nil
}

func (s *Store) ReadExistingCrosswalk(ctx context.Context, eventUIDs []string) (map[string]model.ExistingUnification, error) {
	if len(eventUIDs) == 0 {
		return map[string]model.ExistingUnification{}, nil
	}
	query := `
		SELECT c.event_uid, c.unified_event_id, u.region, u.preferred_source
		FROM crosswalk c
		JOIN unified_events u ON u.unified_event_id = c.unified_event_id
		WHERE c.event_uid = ANY($1)
	`
	rows, err := s.pool.Query(ctx, query, eventUIDs)
	if err != nil {
		return nil, fmt.Errorf("read existing crosswalk: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.ExistingUnification)
	for rows.Next() {
		var eventUID string
		var ex model.ExistingUnification
		if err := rows.Scan(&eventUID, &ex.UnifiedEventID, &ex.Region, &ex.PreferredSource); err != nil {
			return nil, fmt.Errorf("scan crosswalk row: %w", err)
		}
		out[eventUID] = ex
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
