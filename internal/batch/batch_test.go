package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismic-fusion/quakefusion/internal/batch"
	"github.com/seismic-fusion/quakefusion/internal/config"
	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/sink/memsink"
	"github.com/seismic-fusion/quakefusion/internal/source"
)

type fakeLimiter struct{}

func (fakeLimiter) Wait(ctx context.Context, key string) error          { return nil }
func (fakeLimiter) Configure(key string, interval time.Duration) {}

func testConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	cfg.SourcesEnabled = nil // no real sources: keeps the test network-free
	return cfg
}

func TestRunWithNoEnabledSourcesStillClusters(t *testing.T) {
	cfg := testConfig()
	registry := source.DefaultRegistry()
	store := memsink.New()
	logger := logging.New("error", "json")

	now := time.Now().UTC()
	require.NoError(t, store.AppendRaw(context.Background(), model.NormalizedEvent{
		EventUID: "usgs-1", Source: "usgs", SourceEventID: "1",
		OriginTimeUTC: now.Add(-time.Minute), Latitude: 35.0, Longitude: 139.0,
		MagnitudeValue: 5.0, Status: model.StatusAutomatic, FetchedAt: now.Add(-time.Minute),
	}))

	result, err := batch.Run(context.Background(), cfg, registry, store, logger, fakeLimiter{})
	require.NoError(t, err)
	assert.Empty(t, result.PollerStats)
	assert.Equal(t, model.RunStatusOK, result.ClusterRun.Status)
	assert.Equal(t, 1, result.ClusterRun.RawEventsCount)
	assert.Equal(t, 1, result.ClusterRun.UnifiedEventsCount)
}

func TestRunDefaultsToInProcessLimiterWhenNilGiven(t *testing.T) {
	cfg := testConfig()
	registry := source.DefaultRegistry()
	store := memsink.New()
	logger := logging.New("error", "json")

	result, err := batch.Run(context.Background(), cfg, registry, store, logger, nil)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusOK, result.ClusterRun.Status)
}
