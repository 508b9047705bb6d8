package parser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/parser"
)

const fdsnFixture = "EventID|Time|Latitude|Longitude|Depth/km|Author|Catalog|Contributor|ContributorID|MagType|Magnitude|MagAuthor|EventLocationName\n" +
	"# a comment line should be skipped\n" +
	"gfz2026abcd|2026-01-01T00:00:00.000000Z|35.5|185.0|10.0|GFZ|GFZ|GFZ|gfz2026abcd|Mw|5.5|GFZ|OFF COAST OF EXAMPLE\n" +
	"\n" +
	"too|few|columns\n"

func TestFDSNTextParserHappyPath(t *testing.T) {
	fetchedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events, errs := parser.FDSNTextParser{}.Parse([]byte(fdsnFixture), "gfz", fetchedAt)

	require.Len(t, errs, 1, "the short line should be reported, not abort the whole payload")
	assert.Equal(t, model.ParseMalformedEvent, errs[0].Kind)

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "gfz:gfz2026abcd", e.EventUID)
	assert.Equal(t, 35.5, e.Latitude)
	assert.Equal(t, -175.0, e.Longitude, "longitude > 180 must wrap into [-180, 180]")
	assert.Equal(t, 10.0, e.DepthKM)
	assert.Equal(t, "mw", e.MagnitudeType)
	assert.Equal(t, 5.5, e.MagnitudeValue)
	assert.Equal(t, "OFF COAST OF EXAMPLE", e.Place)
	assert.Equal(t, model.StatusAutomatic, e.Status)
	assert.Equal(t, fetchedAt, e.FetchedAt)
}

func TestFDSNTextParserEmptyPayload(t *testing.T) {
	events, errs := parser.FDSNTextParser{}.Parse([]byte("   \n  "), "gfz", time.Now())
	assert.Nil(t, events)
	require.Len(t, errs, 1)
	assert.Equal(t, model.ParseMalformedPayload, errs[0].Kind)
}

func TestFDSNTextParserDefaultsMagTypeWhenBlank(t *testing.T) {
	line := "gfz2026wxyz|2026-01-01T00:00:00Z|10.0|20.0|5.0|GFZ|GFZ|GFZ|gfz2026wxyz||4.0|GFZ|SOMEWHERE\n"
	events, errs := parser.FDSNTextParser{}.Parse([]byte(line), "gfz", time.Now())
	require.Empty(t, errs)
	require.Len(t, events, 1)
	assert.Equal(t, "ml", events[0].MagnitudeType)
}
