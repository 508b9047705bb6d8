// Package parser converts raw agency payloads into canonical
// NormalizedEvents, one implementation per wire format (spec.md §4.C).
// Parsers are pure: no I/O, deterministic, and total over malformed input
// (a whole-payload failure yields zero events and one error; a malformed
// sub-document yields a per-event error alongside whatever other events in
// the same payload did parse).
//
// Dispatch uses a tagged variant (source.Format) plus a parser function
// table keyed by tag, per spec.md §9's design note — no open-ended
// polymorphism, structurally similar to core/internal/normalizer's
// Registry/Find first-match pattern but keyed rather than scanned, since
// formats are mutually exclusive per source rather than overlapping.
package parser

import (
	"fmt"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/source"
)

// Parser parses one wire format's raw bytes into normalized events.
type Parser interface {
	Parse(raw []byte, sourceTag string, fetchedAt time.Time) ([]model.NormalizedEvent, []model.ParseError)
}

// Table dispatches by source.Format.
type Table struct {
	parsers map[source.Format]Parser
}

// NewTable builds the default parser table covering every format spec.md
// §4.C names.
func NewTable() *Table {
	return &Table{
		parsers: map[source.Format]Parser{
			source.FormatGeoJSONUSGS: USGSGeoJSONParser{},
			source.FormatGeoJSONEMSC: EMSCGeoJSONParser{},
			source.FormatFDSNText:    FDSNTextParser{},
			source.FormatQuakeML:     QuakeMLParser{},
		},
	}
}

// Parse dispatches raw to the parser registered for format, or returns a
// single unsupported_format ParseError if none is registered.
func (t *Table) Parse(format source.Format, raw []byte, sourceTag string, fetchedAt time.Time) ([]model.NormalizedEvent, []model.ParseError) {
	p, ok := t.parsers[format]
	if !ok {
		return nil, []model.ParseError{{
			Kind:   model.ParseUnsupportedFormat,
			Source: sourceTag,
			Detail: fmt.Sprintf("no parser registered for format %q", format),
		}}
	}
	return p.Parse(raw, sourceTag, fetchedAt)
}

// normalizeLongitude wraps a longitude value into [-180, 180], matching
// the wrap rule every GeoJSON/FDSN parser in the original source applies.
func normalizeLongitude(lon float64) float64 {
	switch {
	case lon > 180:
		return lon - 360
	case lon < -180:
		return lon + 360
	default:
		return lon
	}
}
