// Package region classifies seismic events by geographic region and orders
// candidate sources by per-region priority, per spec.md §4.F.
package region

import (
	"sort"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// Region is one of the four fixed geographic buckets used for source
// priority ordering.
type Region string

const (
	Americas    Region = "americas"
	Europe      Region = "europe"
	Africa      Region = "africa"
	AsiaPacific Region = "asia_pacific"
)

// Classify maps (lat, lon) to a Region using the boxed ranges in spec.md
// §4.F. Checked in order: americas, europe, africa, asia_pacific (the
// asia_pacific box wraps across the antimeridian).
func Classify(lat, lon float64) Region {
	switch {
	case lon >= -170 && lon <= -30:
		return Americas
	case lon >= -30 && lon <= 45 && lat >= 30:
		return Europe
	case lon >= -20 && lon <= 55 && lat < 30:
		return Africa
	default:
		// lon > 45, or lon < -170 (antimeridian wrap).
		return AsiaPacific
	}
}

// priorityTables holds the fixed per-region source-priority order (see
// spec.md's Glossary "Region priority table"). Index in the slice is the
// region_priority_rank used by SelectPreferred.
var priorityTables = map[Region][]string{
	Americas:    {"usgs", "emsc", "gfz", "isc", "ipgp", "geonet"},
	Europe:      {"emsc", "gfz", "usgs", "isc", "ipgp", "geonet"},
	Africa:      {"isc", "emsc", "ipgp", "usgs", "gfz", "geonet"},
	AsiaPacific: {"isc", "usgs", "geonet", "emsc", "gfz", "ipgp"},
}

// PriorityRank returns the source's rank within r's priority table. Sources
// not present in the table rank last (len(table)), so unknown/new sources
// never beat a known one.
func PriorityRank(r Region, source string) int {
	table := priorityTables[r]
	for i, s := range table {
		if s == source {
			return i
		}
	}
	return len(table)
}

// SelectPreferred orders candidates by
// (status=='reviewed' desc, region_priority_rank asc, updated_at desc,
// event_uid asc) and returns the first element — reviewed beats automatic
// regardless of region, per spec.md §4.F.
func SelectPreferred(r Region, candidates []model.NormalizedEvent) model.NormalizedEvent {
	sorted := make([]model.NormalizedEvent, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]

		aReviewed := a.Status == model.StatusReviewed
		bReviewed := b.Status == model.StatusReviewed
		if aReviewed != bReviewed {
			return aReviewed
		}

		aRank := PriorityRank(r, a.Source)
		bRank := PriorityRank(r, b.Source)
		if aRank != bRank {
			return aRank < bRank
		}

		aUpdated := effectiveUpdatedAt(a)
		bUpdated := effectiveUpdatedAt(b)
		if !aUpdated.Equal(bUpdated) {
			return aUpdated.After(bUpdated)
		}

		return a.EventUID < b.EventUID
	})

	return sorted[0]
}

func effectiveUpdatedAt(e model.NormalizedEvent) time.Time {
	if e.UpdatedAt != nil {
		return *e.UpdatedAt
	}
	return e.FetchedAt
}
