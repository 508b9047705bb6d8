package region_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/region"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     region.Region
	}{
		{"americas interior", 10, -90, region.Americas},
		{"americas west edge", 0, -170, region.Americas},
		{"europe", 48, 10, region.Europe},
		{"africa", -10, 20, region.Africa},
		{"asia pacific east of europe box", 40, 100, region.AsiaPacific},
		{"asia pacific antimeridian wrap", -20, 175, region.AsiaPacific},
		{"asia pacific antimeridian negative wrap", -20, -175, region.AsiaPacific},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, region.Classify(tc.lat, tc.lon))
		})
	}
}

func TestPriorityRank(t *testing.T) {
	t.Run("first entry in table ranks 0", func(t *testing.T) {
		assert.Equal(t, 0, region.PriorityRank(region.Americas, "usgs"))
	})

	t.Run("ordering differs per region", func(t *testing.T) {
		assert.True(t, region.PriorityRank(region.Americas, "usgs") < region.PriorityRank(region.Americas, "emsc"))
		assert.True(t, region.PriorityRank(region.Europe, "emsc") < region.PriorityRank(region.Europe, "usgs"))
	})

	t.Run("unknown source ranks last", func(t *testing.T) {
		known := region.PriorityRank(region.Americas, "usgs")
		unknown := region.PriorityRank(region.Americas, "some_new_network")
		assert.True(t, unknown > known)
		assert.Equal(t, 6, unknown)
	})
}

func TestSelectPreferred(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := now.Add(-time.Hour)

	t.Run("reviewed beats automatic regardless of region rank", func(t *testing.T) {
		automaticTopRank := model.NormalizedEvent{
			EventUID: "usgs-1", Source: "usgs", Status: model.StatusAutomatic, FetchedAt: now,
		}
		reviewedLowRank := model.NormalizedEvent{
			EventUID: "geonet-1", Source: "geonet", Status: model.StatusReviewed, FetchedAt: now,
		}
		got := region.SelectPreferred(region.Americas, []model.NormalizedEvent{automaticTopRank, reviewedLowRank})
		assert.Equal(t, "geonet-1", got.EventUID)
	})

	t.Run("region priority rank breaks ties among equal status", func(t *testing.T) {
		usgs := model.NormalizedEvent{EventUID: "usgs-1", Source: "usgs", Status: model.StatusAutomatic, FetchedAt: now}
		emsc := model.NormalizedEvent{EventUID: "emsc-1", Source: "emsc", Status: model.StatusAutomatic, FetchedAt: now}
		got := region.SelectPreferred(region.Americas, []model.NormalizedEvent{emsc, usgs})
		assert.Equal(t, "usgs-1", got.EventUID)
	})

	t.Run("more recently updated wins among equal status and rank", func(t *testing.T) {
		stale := model.NormalizedEvent{EventUID: "usgs-1", Source: "usgs", Status: model.StatusAutomatic, FetchedAt: older, UpdatedAt: &older}
		fresh := model.NormalizedEvent{EventUID: "usgs-2", Source: "usgs", Status: model.StatusAutomatic, FetchedAt: now, UpdatedAt: &now}
		got := region.SelectPreferred(region.Americas, []model.NormalizedEvent{stale, fresh})
		assert.Equal(t, "usgs-2", got.EventUID)
	})

	t.Run("falls back to fetched_at when updated_at is nil", func(t *testing.T) {
		a := model.NormalizedEvent{EventUID: "usgs-1", Source: "usgs", Status: model.StatusAutomatic, FetchedAt: older}
		b := model.NormalizedEvent{EventUID: "usgs-2", Source: "usgs", Status: model.StatusAutomatic, FetchedAt: now}
		got := region.SelectPreferred(region.Americas, []model.NormalizedEvent{a, b})
		assert.Equal(t, "usgs-2", got.EventUID)
	})

	t.Run("event_uid is the final tiebreaker", func(t *testing.T) {
		a := model.NormalizedEvent{EventUID: "usgs-b", Source: "usgs", Status: model.StatusAutomatic, FetchedAt: now}
		b := model.NormalizedEvent{EventUID: "usgs-a", Source: "usgs", Status: model.StatusAutomatic, FetchedAt: now}
		got := region.SelectPreferred(region.Americas, []model.NormalizedEvent{a, b})
		assert.Equal(t, "usgs-a", got.EventUID)
	})
}
