package parser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/parser"
)

func TestEMSCGeoJSONParserISO8601Time(t *testing.T) {
	fixture := `{"features": [{
		"id": "fallback-id",
		"properties": {
			"unid": "20260101_0000001",
			"time": "2026-01-01T00:00:00Z",
			"lastupdate": "2026-01-01T00:05:00Z",
			"mag": 4.2,
			"magtype": "ML",
			"flynn_region": "SOUTHERN CALIFORNIA",
			"status": "manual",
			"auth": "EMSC"
		},
		"geometry": {"coordinates": [-118.0, 34.0, 12.0]}
	}]}`

	events, errs := parser.EMSCGeoJSONParser{}.Parse([]byte(fixture), "emsc", time.Now())
	require.Empty(t, errs)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "emsc:20260101_0000001", e.EventUID)
	assert.Equal(t, "ml", e.MagnitudeType)
	assert.Equal(t, "SOUTHERN CALIFORNIA", e.Region)
	assert.Equal(t, model.StatusManual, e.Status)
	assert.Equal(t, "EMSC", e.Author)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), e.OriginTimeUTC)
	require.NotNil(t, e.UpdatedAt)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC), *e.UpdatedAt)
}

func TestEMSCGeoJSONParserEpochMillisTime(t *testing.T) {
	fixture := `{"features": [{
		"id": "fallback-id",
		"properties": {
			"source_id": "abc123",
			"time": 1700000000000,
			"mag": 3.0
		},
		"geometry": {"coordinates": [10.0, 20.0, 5.0]}
	}]}`

	events, errs := parser.EMSCGeoJSONParser{}.Parse([]byte(fixture), "emsc", time.Now())
	require.Empty(t, errs)
	require.Len(t, events, 1)
	assert.Equal(t, "emsc:abc123", events[0].EventUID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), events[0].OriginTimeUTC)
}

func TestEMSCGeoJSONParserFallsBackToFeatureID(t *testing.T) {
	fixture := `{"features": [{
		"id": "feature-id-only",
		"properties": {"time": 1700000000000, "mag": 3.0},
		"geometry": {"coordinates": [10.0, 20.0, 5.0]}
	}]}`
	events, errs := parser.EMSCGeoJSONParser{}.Parse([]byte(fixture), "emsc", time.Now())
	require.Empty(t, errs)
	require.Len(t, events, 1)
	assert.Equal(t, "emsc:feature-id-only", events[0].EventUID)
}

func TestEMSCGeoJSONParserMissingIdentifierIsPerEventError(t *testing.T) {
	fixture := `{"features": [{
		"id": "",
		"properties": {"time": 1700000000000, "mag": 3.0},
		"geometry": {"coordinates": [10.0, 20.0, 5.0]}
	}]}`
	events, errs := parser.EMSCGeoJSONParser{}.Parse([]byte(fixture), "emsc", time.Now())
	assert.Empty(t, events)
	require.Len(t, errs, 1)
	assert.Equal(t, model.ParseMalformedEvent, errs[0].Kind)
}
