package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// EMSCGeoJSONParser parses the EMSC/SeismicPortal GeoJSON feed. Grounded on
// original_source/src/quake_stream/parsers/emsc_geojson.py: the event id
// lives in properties.unid, time may be an ISO-8601 string or epoch
// milliseconds, and the region name is properties.flynn_region.
type EMSCGeoJSONParser struct{}

type emscProperties struct {
	Unid            string          `json:"unid"`
	SourceID        string          `json:"source_id"`
	Time            json.RawMessage `json:"time"`
	Mag             *float64        `json:"mag"`
	MagType         string          `json:"magtype"`
	FlynnRegion     string          `json:"flynn_region"`
	Place           string          `json:"place"`
	LastUpdate      json.RawMessage `json:"lastupdate"`
	Status          string          `json:"status"`
	HorizontalError *float64        `json:"horizontalError"`
	DepthError      *float64        `json:"depthError"`
	MagError        *float64        `json:"magError"`
	TimeError       *float64        `json:"timeError"`
	NPH             *int            `json:"nph"`
	Gap             *float64        `json:"gap"`
	Auth            string          `json:"auth"`
	Net             string          `json:"net"`
	URL             string          `json:"url"`
}

func (EMSCGeoJSONParser) Parse(raw []byte, sourceTag string, fetchedAt time.Time) ([]model.NormalizedEvent, []model.ParseError) {
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
		e, err := parseEMSCFeature(f, sourceTag, fetchedAt)
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

func parseEMSCFeature(f geoJSONFeature, sourceTag string, fetchedAt time.Time) (model.NormalizedEvent, error) {
	var props emscProperties
	if err := json.Unmarshal(f.Properties, &props); err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("properties: %w", err)
	}

	if len(f.Geometry.Coordinates) < 3 {
		return model.NormalizedEvent{}, fmt.Errorf("coordinates: expected [lon, lat, depth], got %v", f.Geometry.Coordinates)
	}

	sourceEventID := props.Unid
	if sourceEventID == "" {
		sourceEventID = props.SourceID
	}
	if sourceEventID == "" {
		sourceEventID = f.ID
	}
	if sourceEventID == "" {
		return model.NormalizedEvent{}, fmt.Errorf("no event identifier (unid/source_id/id) present")
	}

	originTime, err := parseFlexibleTime(props.Time)
	if err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("properties.time: %w", err)
	}

	var updatedAt *time.Time
	if len(props.LastUpdate) > 0 && string(props.LastUpdate) != "null" {
		t, err := parseFlexibleTime(props.LastUpdate)
		if err == nil {
			updatedAt = &t
		}
	}

	if props.Mag == nil {
		return model.NormalizedEvent{}, fmt.Errorf("properties.mag is required")
	}

	magType := strings.ToLower(props.MagType)
	if magType == "" {
		magType = "ml"
	}

	place := props.FlynnRegion
	if place == "" {
		place = props.Place
	}

	status := model.StatusAutomatic
	switch strings.ToLower(props.Status) {
	case "reviewed":
		status = model.StatusReviewed
	case "manual":
		status = model.StatusManual
	}

	author := props.Auth
	if author == "" {
		author = props.Net
	}

	lon := normalizeLongitude(f.Geometry.Coordinates[0])

	return model.NormalizedEvent{
		EventUID:       fmt.Sprintf("%s:%s", sourceTag, sourceEventID),
		Source:         sourceTag,
		SourceEventID:  sourceEventID,
		OriginTimeUTC:  originTime,
		Latitude:       f.Geometry.Coordinates[1],
		Longitude:      lon,
		DepthKM:        f.Geometry.Coordinates[2],
		MagnitudeValue: *props.Mag,
		MagnitudeType:  magType,
		Place:          place,
		Region:         props.FlynnRegion,
		LatErrorKM:     props.HorizontalError,
		LonErrorKM:     props.HorizontalError,
		DepthErrorKM:   props.DepthError,
		MagError:       props.MagError,
		TimeErrorSec:   props.TimeError,
		Status:         status,
		NumPhases:      props.NPH,
		AzimuthalGap:   props.Gap,
		Author:         author,
		URL:            props.URL,
		FetchedAt:      fetchedAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// parseFlexibleTime accepts either a quoted ISO-8601 string or a bare
// epoch-milliseconds number, matching the two shapes EMSC's feed has used.
func parseFlexibleTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("time value is missing")
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		t, err := time.Parse(time.RFC3339, asString)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}

	var asMillis int64
	if err := json.Unmarshal(raw, &asMillis); err == nil {
		return time.UnixMilli(asMillis).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time encoding: %s", string(raw))
}
