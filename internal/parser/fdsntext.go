package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// FDSN text columns (pipe-delimited), per spec.md §4.C:
// EventID|Time|Latitude|Longitude|Depth/km|Author|Catalog|Contributor|
// ContributorID|MagType|Magnitude|MagAuthor|EventLocationName
const (
	colEventID = 0
	colTime    = 1
	colLat     = 2
	colLon     = 3
	colDepth   = 4
	colAuthor  = 5
	colMagType = 9
	colMag     = 10
	colPlace   = 12
	minFDSNCols = 13
)

// FDSNTextParser parses the FDSN-compliant pipe-delimited text format
// shared by GFZ GEOFON, ISC, and GeoNet. Grounded on
// original_source/src/quake_stream/parsers/fdsn_text.py's column layout
// and header/comment skipping.
type FDSNTextParser struct{}

func (FDSNTextParser) Parse(raw []byte, sourceTag string, fetchedAt time.Time) ([]model.NormalizedEvent, []model.ParseError) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, []model.ParseError{{
			Kind:   model.ParseMalformedPayload,
			Source: sourceTag,
			Detail: "empty payload",
		}}
	}

	lines := strings.Split(text, "\n")
	var events []model.NormalizedEvent
	var errs []model.ParseError

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "EventID") {
			continue
		}

		e, err := parseFDSNLine(line, sourceTag, fetchedAt)
		if err != nil {
			errs = append(errs, model.ParseError{
				Kind:   model.ParseMalformedEvent,
				Source: sourceTag,
				Detail: err.Error(),
				RawSub: []byte(line),
				Err:    err,
			})
			continue
		}
		events = append(events, e)
	}

	return events, errs
}

func parseFDSNLine(line, sourceTag string, fetchedAt time.Time) (model.NormalizedEvent, error) {
	cols := strings.Split(line, "|")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	if len(cols) < minFDSNCols {
		return model.NormalizedEvent{}, fmt.Errorf("expected %d pipe-delimited columns, got %d", minFDSNCols, len(cols))
	}

	sourceEventID := cols[colEventID]
	if sourceEventID == "" {
		return model.NormalizedEvent{}, fmt.Errorf("EventID column is empty")
	}

	originTime, err := time.Parse(time.RFC3339Nano, cols[colTime])
	if err != nil {
		originTime, err = time.Parse(time.RFC3339, cols[colTime])
		if err != nil {
			return model.NormalizedEvent{}, fmt.Errorf("Time column %q: %w", cols[colTime], err)
		}
	}
	originTime = originTime.UTC()

	lat, err := strconv.ParseFloat(cols[colLat], 64)
	if err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("Latitude column %q: %w", cols[colLat], err)
	}

	lon, err := strconv.ParseFloat(cols[colLon], 64)
	if err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("Longitude column %q: %w", cols[colLon], err)
	}
	lon = normalizeLongitude(lon)

	var depth float64
	if cols[colDepth] != "" {
		depth, err = strconv.ParseFloat(cols[colDepth], 64)
		if err != nil {
			return model.NormalizedEvent{}, fmt.Errorf("Depth/km column %q: %w", cols[colDepth], err)
		}
	}

	var mag float64
	if cols[colMag] != "" {
		mag, err = strconv.ParseFloat(cols[colMag], 64)
		if err != nil {
			return model.NormalizedEvent{}, fmt.Errorf("Magnitude column %q: %w", cols[colMag], err)
		}
	}

	magType := strings.ToLower(cols[colMagType])
	if magType == "" {
		magType = "ml"
	}

	return model.NormalizedEvent{
		EventUID:       fmt.Sprintf("%s:%s", sourceTag, sourceEventID),
		Source:         sourceTag,
		SourceEventID:  sourceEventID,
		OriginTimeUTC:  originTime,
		Latitude:       lat,
		Longitude:      lon,
		DepthKM:        depth,
		MagnitudeValue: mag,
		MagnitudeType:  magType,
		Place:          cols[colPlace],
		Region:         cols[colPlace],
		Status:         model.StatusAutomatic,
		Author:         cols[colAuthor],
		FetchedAt:      fetchedAt,
	}, nil
}
