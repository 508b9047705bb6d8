package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismic-fusion/quakefusion/internal/config"
	"github.com/seismic-fusion/quakefusion/internal/source"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"usgs", "emsc", "gfz", "isc", "ipgp", "geonet"}, cfg.SourcesEnabled)
	assert.Equal(t, 24, cfg.WindowHours)
	assert.Equal(t, 24*time.Hour, cfg.WindowDuration())
	assert.Equal(t, 300*time.Second, cfg.ClusterInterval())
	assert.Equal(t, 100.0, cfg.Cluster.EpsKM)
	assert.Equal(t, 0.6, cfg.Cluster.MatchThreshold)
	assert.Equal(t, "quakefusion-unified-events", cfg.OpenSearch.Index)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
sources_enabled:
  - usgs
window_hours: 6
cluster:
  eps_km: 50
scoring_weights:
  time: 0.5
  distance: 0.3
  magnitude: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"usgs"}, cfg.SourcesEnabled)
	assert.Equal(t, 6, cfg.WindowHours)
	assert.Equal(t, 50.0, cfg.Cluster.EpsKM)
	// unset fields keep viper's registered defaults
	assert.Equal(t, 0.6, cfg.Cluster.MatchThreshold)
}

func TestLoadRejectsWeightsNotSummingToOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
scoring_weights:
  time: 0.5
  distance: 0.5
  magnitude: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("QUAKEFUSION_WINDOW_HOURS", "48")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.WindowHours)
}

func TestRetryDurationHelpers(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.RetryBase())
	assert.Equal(t, 30*time.Second, cfg.RetryCap())
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestApplyPollIntervalOverridesReplacesMatchingTagsOnly(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.PollIntervalSec = map[string]int{"usgs": 30}

	descriptors := []source.Descriptor{
		{Tag: "usgs", MinPollInterval: 5 * time.Minute},
		{Tag: "emsc", MinPollInterval: 2 * time.Minute},
	}

	out := cfg.ApplyPollIntervalOverrides(descriptors)
	require.Len(t, out, 2)
	assert.Equal(t, 30*time.Second, out[0].MinPollInterval, "usgs has a poll_interval_sec override")
	assert.Equal(t, 2*time.Minute, out[1].MinPollInterval, "emsc keeps its descriptor default")
}

func TestApplyPollIntervalOverridesNoopWhenUnset(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	descriptors := []source.Descriptor{{Tag: "usgs", MinPollInterval: 5 * time.Minute}}
	out := cfg.ApplyPollIntervalOverrides(descriptors)
	assert.Equal(t, descriptors, out)
}
