package parser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/parser"
)

const usgsFixture = `{
	"features": [
		{
			"id": "us7000abcd",
			"properties": {
				"mag": 5.6,
				"magType": "mww",
				"place": "10km SW of Example Town, Nowhere",
				"time": 1700000000000,
				"updated": 1700000100000,
				"status": "reviewed",
				"net": "us",
				"url": "https://example.test/us7000abcd"
			},
			"geometry": {"coordinates": [182.5, 35.5, 10.0]}
		},
		{
			"id": "us7000broken",
			"properties": {"mag": 4.0, "time": 1700000000000},
			"geometry": {"coordinates": [1.0]}
		}
	]
}`

func TestUSGSGeoJSONParserHappyPath(t *testing.T) {
	fetchedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events, errs := parser.USGSGeoJSONParser{}.Parse([]byte(usgsFixture), "usgs", fetchedAt)

	require.Len(t, errs, 1, "the malformed second feature should be reported, not abort the whole payload")
	assert.Equal(t, model.ParseMalformedEvent, errs[0].Kind)

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "usgs:us7000abcd", e.EventUID)
	assert.Equal(t, "us7000abcd", e.SourceEventID)
	assert.Equal(t, 5.6, e.MagnitudeValue)
	assert.Equal(t, "mww", e.MagnitudeType)
	assert.Equal(t, model.StatusReviewed, e.Status)
	assert.Equal(t, "Nowhere", e.Region)
	assert.Equal(t, 35.5, e.Latitude)
	assert.Equal(t, -177.5, e.Longitude, "longitude > 180 must wrap into [-180, 180]")
	assert.Equal(t, 10.0, e.DepthKM)
	assert.Equal(t, fetchedAt, e.FetchedAt)
	require.NotNil(t, e.UpdatedAt)
	assert.Equal(t, time.UnixMilli(1700000100000).UTC(), *e.UpdatedAt)
}

func TestUSGSGeoJSONParserMalformedPayload(t *testing.T) {
	events, errs := parser.USGSGeoJSONParser{}.Parse([]byte("not json"), "usgs", time.Now())
	assert.Nil(t, events)
	require.Len(t, errs, 1)
	assert.Equal(t, model.ParseMalformedPayload, errs[0].Kind)
}

func TestUSGSGeoJSONParserDefaultsStatusAndMagType(t *testing.T) {
	fixture := `{"features": [{
		"id": "us1",
		"properties": {"mag": 3.0, "time": 1700000000000},
		"geometry": {"coordinates": [10.0, 20.0, 5.0]}
	}]}`
	events, errs := parser.USGSGeoJSONParser{}.Parse([]byte(fixture), "usgs", time.Now())
	require.Empty(t, errs)
	require.Len(t, events, 1)
	assert.Equal(t, model.StatusAutomatic, events[0].Status)
	assert.Equal(t, "ml", events[0].MagnitudeType)
}

func TestTableDispatchesByFormat(t *testing.T) {
	table := parser.NewTable()
	events, errs := table.Parse("unknown-format", []byte("{}"), "mystery", time.Now())
	assert.Nil(t, events)
	require.Len(t, errs, 1)
	assert.Equal(t, model.ParseUnsupportedFormat, errs[0].Kind)
}
