package parser_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismic-fusion/quakefusion/internal/parser"
)

// syntheticUSGSFeature builds a random-but-valid USGS GeoJSON feature using
// gofakeit, mirroring cli/internal/seeder's use of gofakeit for synthetic
// fixture generation.
func syntheticUSGSFeature() map[string]any {
	return map[string]any{
		"id": "us" + gofakeit.UUID()[:8],
		"properties": map[string]any{
			"mag":     gofakeit.Float64Range(-2, 11),
			"magType": gofakeit.RandomString([]string{"mw", "mww", "mb", "ml", "md"}),
			"place":   gofakeit.City() + ", " + gofakeit.Country(),
			"time":    gofakeit.DateRange(time.Now().Add(-72*time.Hour), time.Now()).UnixMilli(),
			"status":  gofakeit.RandomString([]string{"automatic", "reviewed"}),
			"net":     gofakeit.RandomString([]string{"us", "nc", "ci"}),
			"url":     gofakeit.URL(),
		},
		"geometry": map[string]any{
			"coordinates": []float64{
				gofakeit.Float64Range(-180, 180),
				gofakeit.Float64Range(-90, 90),
				gofakeit.Float64Range(0, 700),
			},
		},
	}
}

// TestUSGSGeoJSONParserIsPureAcrossRandomFixtures covers spec.md P1 (parse_F
// is total and deterministic): parsing the same randomly generated payload
// twice must yield byte-identical canonical records.
func TestUSGSGeoJSONParserIsPureAcrossRandomFixtures(t *testing.T) {
	gofakeit.Seed(42)
	fetchedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		payload, err := json.Marshal(map[string]any{
			"features": []map[string]any{syntheticUSGSFeature()},
		})
		require.NoError(t, err)

		first, errs1 := parser.USGSGeoJSONParser{}.Parse(payload, "usgs", fetchedAt)
		second, errs2 := parser.USGSGeoJSONParser{}.Parse(payload, "usgs", fetchedAt)

		require.Empty(t, errs1)
		require.Empty(t, errs2)
		require.Len(t, first, 1)
		require.Len(t, second, 1)
		assert.Equal(t, first[0], second[0], "parse must be pure: identical input yields identical output")

		assert.GreaterOrEqual(t, first[0].Latitude, -90.0)
		assert.LessOrEqual(t, first[0].Latitude, 90.0)
		assert.GreaterOrEqual(t, first[0].Longitude, -180.0)
		assert.LessOrEqual(t, first[0].Longitude, 180.0)
	}
}
