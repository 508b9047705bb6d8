package parser

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// QuakeMLParser parses QuakeML 1.2 event catalogs. There is no upstream
// reference implementation for this format (see DESIGN.md); the resolution
// rules below are taken directly from spec.md §4.C.
type QuakeMLParser struct{}

// quakeMLDoc models a real QuakeML document: a <quakeml> (or namespaced
// <q:quakeml>) root wrapping <eventParameters>. encoding/xml matches on
// local element name regardless of namespace prefix, so a plain "quakeml"/
// "eventParameters" tag matches any namespace a feed uses.
type quakeMLDoc struct {
	EventParameters quakeMLEventParameters `xml:"eventParameters"`
}

// quakeMLEventParameters models the <eventParameters> element, which holds
// zero or more <event> children in document order.
type quakeMLEventParameters struct {
	Events []quakeMLEvent `xml:"event"`
}

type quakeMLEvent struct {
	PublicID              string              `xml:"publicID,attr"`
	PreferredOriginID     string              `xml:"preferredOriginID"`
	PreferredMagnitudeID  string              `xml:"preferredMagnitudeID"`
	Origins               []quakeMLOrigin     `xml:"origin"`
	Magnitudes            []quakeMLMagnitude  `xml:"magnitude"`
	Description           []quakeMLDescription `xml:"description"`
}

type quakeMLDescription struct {
	Text string `xml:"text"`
}

type quakeMLOrigin struct {
	PublicID          string  `xml:"publicID,attr"`
	Time              quakeMLValueString `xml:"time"`
	Latitude          quakeMLValueFloat  `xml:"latitude"`
	Longitude         quakeMLValueFloat  `xml:"longitude"`
	Depth             quakeMLValueFloat  `xml:"depth"`
	EvaluationMode    string             `xml:"evaluationMode"`
	EvaluationStatus  string             `xml:"evaluationStatus"`
}

type quakeMLMagnitude struct {
	PublicID     string             `xml:"publicID,attr"`
	Mag          quakeMLValueFloat  `xml:"mag"`
	Type         string             `xml:"type"`
	OriginID     string             `xml:"originID"`
	StationCount *int               `xml:"stationCount"`
}

type quakeMLValueFloat struct {
	Value float64 `xml:"value"`
}

type quakeMLValueString struct {
	Value string `xml:"value"`
}

// magnitudeTypePreference ranks type-preference order per spec.md §4.C:
// mw > mww > mb > ml > md > other. Lower rank wins.
var magnitudeTypePreference = map[string]int{
	"mw":  0,
	"mww": 1,
	"mb":  2,
	"ml":  3,
	"md":  4,
}

func magnitudeTypeRank(magType string) int {
	if rank, ok := magnitudeTypePreference[strings.ToLower(magType)]; ok {
		return rank
	}
	return len(magnitudeTypePreference) // "other"
}

func (QuakeMLParser) Parse(raw []byte, sourceTag string, fetchedAt time.Time) ([]model.NormalizedEvent, []model.ParseError) {
	var doc quakeMLDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, []model.ParseError{{
			Kind:   model.ParseMalformedPayload,
			Source: sourceTag,
			Detail: "invalid XML",
			Err:    err,
		}}
	}

	rawEvents := doc.EventParameters.Events
	if len(rawEvents) == 0 {
		// Some feeds omit the <quakeml> wrapper and publish
		// <eventParameters> as the document root directly.
		var bare quakeMLEventParameters
		if err := xml.Unmarshal(raw, &bare); err == nil {
			rawEvents = bare.Events
		}
	}

	var events []model.NormalizedEvent
	var errs []model.ParseError

	for _, ev := range rawEvents {
		e, err := parseQuakeMLEvent(ev, sourceTag, fetchedAt)
		if err != nil {
			sub, _ := xml.Marshal(ev)
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

func parseQuakeMLEvent(ev quakeMLEvent, sourceTag string, fetchedAt time.Time) (model.NormalizedEvent, error) {
	if len(ev.Origins) == 0 {
		return model.NormalizedEvent{}, fmt.Errorf("event has no origin elements")
	}
	if len(ev.Magnitudes) == 0 {
		return model.NormalizedEvent{}, fmt.Errorf("event has no magnitude elements")
	}

	sourceEventID := stripQuakeMLURN(ev.PublicID)
	if sourceEventID == "" {
		return model.NormalizedEvent{}, fmt.Errorf("event publicID is empty")
	}

	origin := selectPreferredOrigin(ev)
	magnitude := selectPreferredMagnitude(ev)

	originTime, err := time.Parse(time.RFC3339Nano, origin.Time.Value)
	if err != nil {
		originTime, err = time.Parse(time.RFC3339, origin.Time.Value)
		if err != nil {
			return model.NormalizedEvent{}, fmt.Errorf("origin/time/value %q: %w", origin.Time.Value, err)
		}
	}
	originTime = originTime.UTC()

	status := model.StatusAutomatic
	if strings.EqualFold(origin.EvaluationMode, "manual") {
		status = model.StatusManual
	}
	switch strings.ToLower(origin.EvaluationStatus) {
	case "reviewed", "confirmed", "final":
		status = model.StatusReviewed
	}

	var place string
	if len(ev.Description) > 0 {
		place = ev.Description[0].Text
	}

	magType := strings.ToLower(magnitude.Type)
	if magType == "" {
		magType = "ml"
	}

	return model.NormalizedEvent{
		EventUID:       fmt.Sprintf("%s:%s", sourceTag, sourceEventID),
		Source:         sourceTag,
		SourceEventID:  sourceEventID,
		OriginTimeUTC:  originTime,
		Latitude:       origin.Latitude.Value,
		Longitude:      normalizeLongitude(origin.Longitude.Value),
		DepthKM:        origin.Depth.Value / 1000,
		MagnitudeValue: magnitude.Mag.Value,
		MagnitudeType:  magType,
		Place:          place,
		Status:         status,
		FetchedAt:      fetchedAt,
	}, nil
}

// selectPreferredOrigin resolves the element referenced by
// preferredOriginID, falling back to the first origin in document order if
// absent or unresolvable.
func selectPreferredOrigin(ev quakeMLEvent) quakeMLOrigin {
	if ev.PreferredOriginID != "" {
		for _, o := range ev.Origins {
			if o.PublicID == ev.PreferredOriginID {
				return o
			}
		}
	}
	return ev.Origins[0]
}

// selectPreferredMagnitude resolves the element referenced by
// preferredMagnitudeID; if absent (e.g. ISC), ranks by magnitude-type
// preference order first, largest stationCount breaking ties within the
// same type rank, then document order.
//
// spec.md §4.C's prose orders this the other way (stationCount primary,
// type-preference as tiebreak), but its own worked scenario
// (mb/stationCount=30 vs mw/stationCount=20 -> mw wins) only holds if type
// preference is the primary key. This implementation follows the worked
// scenario over the prose ordering (see DESIGN.md Open Question note).
func selectPreferredMagnitude(ev quakeMLEvent) quakeMLMagnitude {
	if ev.PreferredMagnitudeID != "" {
		for _, m := range ev.Magnitudes {
			if m.PublicID == ev.PreferredMagnitudeID {
				return m
			}
		}
	}

	best := ev.Magnitudes[0]
	bestRank := magnitudeTypeRank(best.Type)
	bestStationCount := stationCountOf(best)

	for _, m := range ev.Magnitudes[1:] {
		rank := magnitudeTypeRank(m.Type)
		sc := stationCountOf(m)

		switch {
		case rank < bestRank:
			best, bestRank, bestStationCount = m, rank, sc
		case rank == bestRank && sc > bestStationCount:
			best, bestRank, bestStationCount = m, rank, sc
		}
	}

	return best
}

func stationCountOf(m quakeMLMagnitude) int {
	if m.StationCount == nil {
		return 0
	}
	return *m.StationCount
}

// stripQuakeMLURN removes known URN prefixes from a QuakeML publicID to
// produce a bare source_event_id, e.g.
// "smi:org.gfz-potsdam.de/geofon/gfz2024abcd" -> "gfz2024abcd" and
// "quakeml:eu.emsc/event/20240101_0000001" -> "20240101_0000001".
func stripQuakeMLURN(publicID string) string {
	id := publicID
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	if idx := strings.LastIndex(id, ":"); idx >= 0 {
		id = id[idx+1:]
	}
	return id
}
