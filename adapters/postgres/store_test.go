package postgres_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/seismic-fusion/quakefusion/adapters/postgres"
	"github.com/seismic-fusion/quakefusion/internal/model"
)

// setupTestDatabase starts a Postgres testcontainer, runs migrations, and
// returns a connected Store plus a cleanup func. Grounded on
// authenticate/internal/repository/postgres_test.go's
// setupTestDatabase shape.
func setupTestDatabase(t *testing.T) (*postgres.Store, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("quakefusion_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("migrations")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(migrationsPath, connStr))

	store, err := postgres.New(ctx, postgres.Config{DSN: connStr})
	require.NoError(t, err)

	cleanup := func() {
		store.Close()
		require.NoError(t, container.Terminate(ctx))
	}
	return store, cleanup
}

func TestStoreAppendRawAndReadWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("requires Docker; skipped in -short mode")
	}
	store, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	horizErr, magErr := 1.5, 0.1
	e := model.NormalizedEvent{
		EventUID: "usgs:us1", Source: "usgs", SourceEventID: "us1",
		OriginTimeUTC: now, Latitude: 35.0, Longitude: 25.0, DepthKM: 10,
		MagnitudeValue: 5.2, MagnitudeType: "mw", Status: model.StatusReviewed,
		LatErrorKM: &horizErr, LonErrorKM: &horizErr, MagError: &magErr,
		FetchedAt: now, IngestedAt: now,
	}
	require.NoError(t, store.AppendRaw(ctx, e))

	events, err := store.ReadWindow(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "usgs:us1", events[0].EventUID)
	require.Equal(t, "mw", events[0].MagnitudeType)
	require.NotNil(t, events[0].MagError)
	require.InDelta(t, magErr, *events[0].MagError, 1e-9)
	require.True(t, events[0].IngestedAt.Equal(now))
}

func TestStoreUpsertUnifiedAndCrosswalkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("requires Docker; skipped in -short mode")
	}
	store, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := model.UnifiedEvent{
		UnifiedEventID: "11111111-1111-1111-1111-111111111111",
		OriginTimeUTC:  now, Latitude: 35.0, Longitude: 25.0, DepthKM: 10,
		MagnitudeValue: 5.2, MagnitudeType: "mw", Status: model.StatusReviewed,
		NumSources: 1, PreferredSource: "usgs", PreferredEventUID: "usgs:us1",
		SourceEventUIDs: []string{"usgs:us1"}, SourceAgreementScore: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.UpsertUnified(ctx, u))
	require.NoError(t, store.UpsertCrosswalk(ctx, model.CrosswalkRow{
		EventUID: "usgs:us1", UnifiedEventID: u.UnifiedEventID,
		MatchScore: 1.0, IsPreferred: true, CreatedAt: now,
	}))

	existing, err := store.ReadExistingCrosswalk(ctx, []string{"usgs:us1"})
	require.NoError(t, err)
	require.Equal(t, u.UnifiedEventID, existing["usgs:us1"].UnifiedEventID)
	require.Equal(t, u.PreferredSource, existing["usgs:us1"].PreferredSource)

	// Upsert with an updated field to confirm ON CONFLICT replaces in place.
	u.MagnitudeValue = 5.3
	u.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.UpsertUnified(ctx, u))
}

func TestStoreAppendDeadLetterAndRun(t *testing.T) {
	if testing.Short() {
		t.Skip("requires Docker; skipped in -short mode")
	}
	store, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.AppendDeadLetter(ctx, model.DeadLetterEntry{
		Source: "usgs", SourceEventID: "us2",
		RawPayload: []byte(`{"bad":true}`), ErrorMessages: []string{"magnitude_type is empty"},
		CreatedAt: now,
	}))

	require.NoError(t, store.AppendRun(ctx, model.PipelineRun{
		RunID: "run-1", StartedAt: now, FinishedAt: now.Add(time.Second),
		Status: model.RunStatusOK, SourcesFetched: []string{"usgs"},
		RawEventsCount: 1, UnifiedEventsCount: 1, DeadLetterCount: 1,
		DurationSeconds: 1,
	}))
}
