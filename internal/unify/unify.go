// Package unify implements component H: turning a cluster of
// NormalizedEvents into a single UnifiedEvent with a stable identity,
// verbatim best-estimate fields copied from the preferred representative,
// and aggregate quality metrics.
//
// Grounded on original_source/src/quake_stream/deduplicator.py's
// _select_preferred/_compute_unified_id/_weighted_mean shape, generalized
// per spec.md and SPEC_FULL.md's Open Question decisions: identity is a
// minted UUID reused via crosswalk lookup (not a content hash), and
// best-estimate fields are a verbatim copy of the preferred representative
// (not a source-priority-weighted mean).
package unify

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/seismic-fusion/quakefusion/internal/cluster"
	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/region"
	"github.com/seismic-fusion/quakefusion/internal/score"
)

// IdentitySource resolves an existing unified_event_id for an event_uid, if
// one was already assigned in a previous run (the crosswalk lookup side of
// "mint-or-reuse" identity, per spec.md §4.H).
type IdentitySource interface {
	Lookup(eventUID string) (existing model.ExistingUnification, ok bool)
}

// Result is the output of unifying one cluster: the fused event plus the
// crosswalk rows linking every member event_uid to it.
type Result struct {
	Unified    model.UnifiedEvent
	Crosswalk  []model.CrosswalkRow
}

// Unify fuses every cluster into a UnifiedEvent and its crosswalk rows.
// now is injectable for deterministic tests.
func Unify(clusters []cluster.Cluster, identity IdentitySource, weights score.Weights, now time.Time) []Result {
	results := make([]Result, 0, len(clusters))
	for _, c := range clusters {
		results = append(results, unifyOne(c, identity, weights, now))
	}
	return results
}

func unifyOne(c cluster.Cluster, identity IdentitySource, weights score.Weights, now time.Time) Result {
	members := c.Members

	centroidLat, centroidLon := centroid(members)
	r := region.Classify(centroidLat, centroidLon)
	preferred := region.SelectPreferred(r, members)

	unifiedID := resolveIdentity(members, identity, string(r), preferred.Source)

	sourceEventUIDs := make([]string, 0, len(members))
	for _, m := range members {
		sourceEventUIDs = append(sourceEventUIDs, m.EventUID)
	}
	sort.Strings(sourceEventUIDs)

	unified := model.UnifiedEvent{
		UnifiedEventID: unifiedID,

		OriginTimeUTC:  preferred.OriginTimeUTC,
		Latitude:       preferred.Latitude,
		Longitude:      preferred.Longitude,
		DepthKM:        preferred.DepthKM,
		MagnitudeValue: preferred.MagnitudeValue,
		MagnitudeType:  preferred.MagnitudeType,
		Place:          preferred.Place,
		Region:         string(r),
		Status:         preferred.Status,

		NumSources:        distinctSourceCount(members),
		PreferredSource:   preferred.Source,
		PreferredEventUID: preferred.EventUID,
		SourceEventUIDs:   sourceEventUIDs,

		MagnitudeStd:         magnitudeStdDev(members),
		LocationSpreadKM:     locationSpreadKM(members),
		SourceAgreementScore: sourceAgreementScore(members),

		CreatedAt: now,
		UpdatedAt: now,
	}

	crosswalk := make([]model.CrosswalkRow, 0, len(members))
	for _, m := range members {
		s := score.Score(toScoreEvent(m), toScoreEvent(preferred), weights)
		crosswalk = append(crosswalk, model.CrosswalkRow{
			EventUID:       m.EventUID,
			UnifiedEventID: unifiedID,
			MatchScore:     s,
			IsPreferred:    m.EventUID == preferred.EventUID,
			CreatedAt:      now,
		})
	}

	return Result{Unified: unified, Crosswalk: crosswalk}
}

// resolveIdentity mints a fresh UUID for a cluster unless one or more of
// its members already has a unified_event_id on record in the crosswalk
// *and* that prior unified event's region/preferred_source still agrees
// with this run's computation, in which case the (lowest, for
// determinism) agreeing id is reused. A member whose prior unified event
// now disagrees — a different region classification or a different
// preferred source won out this time — does not count as a match,
// per spec.md §4.H.2.
func resolveIdentity(members []model.NormalizedEvent, identity IdentitySource, newRegion, newPreferredSource string) string {
	var agreeing []string
	if identity != nil {
		for _, m := range members {
			ex, ok := identity.Lookup(m.EventUID)
			if !ok {
				continue
			}
			if ex.Region == newRegion && ex.PreferredSource == newPreferredSource {
				agreeing = append(agreeing, ex.UnifiedEventID)
			}
		}
	}
	if len(agreeing) > 0 {
		sort.Strings(agreeing)
		return agreeing[0]
	}
	return uuid.NewString()
}

func magnitudeStdDev(members []model.NormalizedEvent) float64 {
	if len(members) < 2 {
		return 0
	}
	var mean float64
	for _, m := range members {
		mean += m.MagnitudeValue
	}
	mean /= float64(len(members))

	var variance float64
	for _, m := range members {
		d := m.MagnitudeValue - mean
		variance += d * d
	}
	variance /= float64(len(members))

	return math.Sqrt(variance)
}

// locationSpreadKM is the maximum pairwise great-circle distance between any
// two member locations, per spec.md §4.H.5; 0 for a singleton cluster.
func locationSpreadKM(members []model.NormalizedEvent) float64 {
	if len(members) < 2 {
		return 0
	}
	var max float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			d := score.HaversineKM(members[i].Latitude, members[i].Longitude, members[j].Latitude, members[j].Longitude)
			if d > max {
				max = d
			}
		}
	}
	return max
}

// sourceAgreementScore is distinct_sources / cluster_size, per spec.md
// §4.H.5.
func sourceAgreementScore(members []model.NormalizedEvent) float64 {
	if len(members) == 0 {
		return 0
	}
	return float64(distinctSourceCount(members)) / float64(len(members))
}

// distinctSourceCount counts the distinct Source values among members, per
// spec.md §4.H.4's num_sources definition.
func distinctSourceCount(members []model.NormalizedEvent) int {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		seen[m.Source] = struct{}{}
	}
	return len(seen)
}

// centroid is the arithmetic mean lat/lon of a cluster's members, used to
// classify the cluster's region for preferred-representative selection per
// spec.md §4.H.1.
func centroid(members []model.NormalizedEvent) (lat, lon float64) {
	for _, m := range members {
		lat += m.Latitude
		lon += m.Longitude
	}
	n := float64(len(members))
	return lat / n, lon / n
}

func toScoreEvent(e model.NormalizedEvent) score.Event {
	return score.Event{
		Latitude:          e.Latitude,
		Longitude:         e.Longitude,
		MagnitudeValue:    e.MagnitudeValue,
		OriginTimeUnixSec: float64(e.OriginTimeUTC.Unix()),
	}
}
