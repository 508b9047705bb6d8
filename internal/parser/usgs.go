package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// USGSGeoJSONParser parses the USGS FDSN-event GeoJSON feed. Field mapping
// grounded on original_source/src/quake_stream/parsers/usgs_geojson.py:
// properties.time is epoch milliseconds, coordinates are [lon, lat, depth]
// with depth already in km.
type USGSGeoJSONParser struct{}

type geoJSONFeatureCollection struct {
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	ID         string          `json:"id"`
	Properties json.RawMessage `json:"properties"`
	Geometry   struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

type usgsProperties struct {
	Mag             *float64 `json:"mag"`
	MagType         string   `json:"magType"`
	Place           string   `json:"place"`
	Time            *int64   `json:"time"`
	Updated         *int64   `json:"updated"`
	Status          string   `json:"status"`
	HorizontalError *float64 `json:"horizontalError"`
	DepthError      *float64 `json:"depthError"`
	MagError        *float64 `json:"magError"`
	TimeError       *float64 `json:"timeError"`
	NPH             *int     `json:"nph"`
	Gap             *float64 `json:"gap"`
	Net             string   `json:"net"`
	URL             string   `json:"url"`
}

func (USGSGeoJSONParser) Parse(raw []byte, sourceTag string, fetchedAt time.Time) ([]model.NormalizedEvent, []model.ParseError) {
	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, []model.ParseError{{
			Kind:   model.ParseMalformedPayload,
			Source: sourceTag,
			Detail: "invalid JSON",
			Err:    err,
		}}
	}

	var events []model.NormalizedEvent
	var errs []model.ParseError

	for _, f := range fc.Features {
		e, err := parseUSGSFeature(f, sourceTag, fetchedAt)
		if err != nil {
			sub, _ := json.Marshal(f)
			errs = append(errs, model.ParseError{
				Kind:   model.ParseMalformedEvent,
				Source: sourceTag,
				Detail: err.Error(),
				RawSub: sub,
				Err:    err,
			})
			continue
		}
		events = append(events, e)
	}

	return events, errs
}

func parseUSGSFeature(f geoJSONFeature, sourceTag string, fetchedAt time.Time) (model.NormalizedEvent, error) {
	var props usgsProperties
	if err := json.Unmarshal(f.Properties, &props); err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("properties: %w", err)
	}

	if len(f.Geometry.Coordinates) < 3 {
		return model.NormalizedEvent{}, fmt.Errorf("coordinates: expected [lon, lat, depth], got %v", f.Geometry.Coordinates)
	}
	if props.Time == nil {
		return model.NormalizedEvent{}, fmt.Errorf("properties.time is required")
	}
	if props.Mag == nil {
		return model.NormalizedEvent{}, fmt.Errorf("properties.mag is required")
	}

	originTime := time.UnixMilli(*props.Time).UTC()

	var updatedAt *time.Time
	if props.Updated != nil {
		t := time.UnixMilli(*props.Updated).UTC()
		updatedAt = &t
	}

	status := model.StatusAutomatic
	switch strings.ToLower(props.Status) {
	case "reviewed":
		status = model.StatusReviewed
	case "automatic", "":
		status = model.StatusAutomatic
	}

	magType := strings.ToLower(props.MagType)
	if magType == "" {
		magType = "ml"
	}

	lon := normalizeLongitude(f.Geometry.Coordinates[0])

	return model.NormalizedEvent{
		EventUID:       fmt.Sprintf("%s:%s", sourceTag, f.ID),
		Source:         sourceTag,
		SourceEventID:  f.ID,
		OriginTimeUTC:  originTime,
		Latitude:       f.Geometry.Coordinates[1],
		Longitude:      lon,
		DepthKM:        f.Geometry.Coordinates[2],
		MagnitudeValue: *props.Mag,
		MagnitudeType:  magType,
		Place:          props.Place,
		Region:         extractRegion(props.Place),
		LatErrorKM:     props.HorizontalError,
		LonErrorKM:     props.HorizontalError,
		DepthErrorKM:   props.DepthError,
		MagError:       props.MagError,
		TimeErrorSec:   props.TimeError,
		Status:         status,
		NumPhases:      props.NPH,
		AzimuthalGap:   props.Gap,
		Author:         props.Net,
		URL:            props.URL,
		FetchedAt:      fetchedAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// extractRegion takes the last comma-separated segment of a USGS "place"
// string, mirroring the original source's _extract_region helper.
func extractRegion(place string) string {
	if place == "" {
		return ""
	}
	parts := strings.Split(place, ", ")
	if len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return place
}
