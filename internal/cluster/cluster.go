// Package cluster implements the density-based spatial-temporal clustering
// engine of spec.md §4.G: spatial grouping by great-circle distance, then
// time/magnitude sub-partitioning, then a consistency filter that ejects
// inconsistent members into singleton clusters.
//
// Grounded structurally on
// original_source/src/quake_stream/deduplicator.py's cluster_events (the
// general "accumulate clusters, compare against an anchor/centroid" shape)
// generalized to spec.md's richer three-step algorithm — the original's
// simpler greedy-chronological version does not implement spatial density
// grouping or the consistency filter and is not a sufficient model on its
// own.
package cluster

import (
	"fmt"
	"sort"

	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/score"
)

// Params configures the clustering thresholds, sourced from
// internal/config's ClusterConfig.
type Params struct {
	EpsKM          float64
	DtSeconds      float64
	DMag           float64
	MatchThreshold float64
	Weights        score.Weights
}

// DefaultParams matches spec.md §6's configuration defaults.
var DefaultParams = Params{
	EpsKM:          100,
	DtSeconds:      30,
	DMag:           0.5,
	MatchThreshold: 0.6,
	Weights:        score.DefaultWeights,
}

// Cluster is one group of NormalizedEvents judged to represent the same
// physical earthquake.
type Cluster struct {
	Key     string
	Members []model.NormalizedEvent
}

// Assign runs the full three-step algorithm over events and returns the
// resulting clusters, which together form a total function over events
// (every event appears in exactly one cluster, possibly a singleton).
func Assign(events []model.NormalizedEvent, p Params) []Cluster {
	if len(events) == 0 {
		return nil
	}

	spatial := spatialGroup(events, p.EpsKM)

	var subClusters [][]model.NormalizedEvent
	for _, group := range spatial {
		subClusters = append(subClusters, timeMagnitudeSubPartition(group, p.DtSeconds, p.DMag)...)
	}

	var clusters []Cluster
	counter := 0
	for _, sub := range subClusters {
		for _, c := range consistencyFilter(sub, p) {
			clusters = append(clusters, Cluster{
				Key:     fmt.Sprintf("c%d", counter),
				Members: c,
			})
			counter++
		}
	}

	return clusters
}

// spatialGroup performs density-based (DBSCAN-style, minPts=1) clustering
// on great-circle distance: two events within EpsKM of each other are
// joined, and joins chain transitively through intermediate members
// (spec.md B2: "density-based chaining is allowed"). Implemented as
// union-find over a pairwise distance check — acceptable for |S| <= ~5000
// per spec.md §4.G's note that a naive pairwise algorithm is fine at that
// scale.
func spatialGroup(events []model.NormalizedEvent, epsKM float64) [][]model.NormalizedEvent {
	n := len(events)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := score.HaversineKM(events[i].Latitude, events[i].Longitude, events[j].Latitude, events[j].Longitude)
			if d <= epsKM {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]model.NormalizedEvent)
	for i, e := range events {
		root := find(i)
		groups[root] = append(groups[root], e)
	}

	out := make([][]model.NormalizedEvent, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}

// timeMagnitudeSubPartition splits a spatial cluster so that any two
// members in the same final sub-cluster satisfy |Δtime| <= dtSeconds AND
// |Δmagnitude| <= dmag, per spec.md §4.G step 2: sort by origin time, start
// a new sub-cluster whenever the next event violates either bound against
// the running median of the current sub-cluster.
func timeMagnitudeSubPartition(group []model.NormalizedEvent, dtSeconds, dmag float64) [][]model.NormalizedEvent {
	sorted := make([]model.NormalizedEvent, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OriginTimeUTC.Before(sorted[j].OriginTimeUTC)
	})

	var result [][]model.NormalizedEvent
	var current []model.NormalizedEvent

	for _, e := range sorted {
		if len(current) == 0 {
			current = append(current, e)
			continue
		}

		medianTime := medianUnixSeconds(current)
		medianMag := medianMagnitude(current)

		dt := absFloat(float64(e.OriginTimeUTC.UnixMilli())/1000 - medianTime)
		dm := absFloat(e.MagnitudeValue - medianMag)

		if dt > dtSeconds || dm > dmag {
			result = append(result, current)
			current = []model.NormalizedEvent{e}
			continue
		}
		current = append(current, e)
	}
	if len(current) > 0 {
		result = append(result, current)
	}

	return result
}

// consistencyFilter requires, for clusters of size >= 2, that every
// member's match score against the cluster centroid is >= threshold; any
// member failing is ejected into its own singleton cluster (spec.md §4.G
// step 3).
func consistencyFilter(members []model.NormalizedEvent, p Params) [][]model.NormalizedEvent {
	if len(members) < 2 {
		return [][]model.NormalizedEvent{members}
	}

	centroid := centroidEvent(members)

	var kept []model.NormalizedEvent
	var ejected [][]model.NormalizedEvent

	for _, m := range members {
		s := score.Score(toScoreEvent(m), centroid, p.Weights)
		if s >= p.MatchThreshold {
			kept = append(kept, m)
		} else {
			ejected = append(ejected, []model.NormalizedEvent{m})
		}
	}

	out := make([][]model.NormalizedEvent, 0, 1+len(ejected))
	if len(kept) > 0 {
		out = append(out, kept)
	}
	out = append(out, ejected...)
	return out
}

func centroidEvent(members []model.NormalizedEvent) score.Event {
	var lat, lon, mag, t float64
	for _, m := range members {
		lat += m.Latitude
		lon += m.Longitude
		mag += m.MagnitudeValue
		t += float64(m.OriginTimeUTC.Unix())
	}
	n := float64(len(members))
	return score.Event{
		Latitude:          lat / n,
		Longitude:         lon / n,
		MagnitudeValue:    mag / n,
		OriginTimeUnixSec: t / n,
	}
}

func toScoreEvent(e model.NormalizedEvent) score.Event {
	return score.Event{
		Latitude:          e.Latitude,
		Longitude:         e.Longitude,
		MagnitudeValue:    e.MagnitudeValue,
		OriginTimeUnixSec: float64(e.OriginTimeUTC.Unix()),
	}
}

func medianUnixSeconds(events []model.NormalizedEvent) float64 {
	vals := make([]float64, len(events))
	for i, e := range events {
		vals[i] = float64(e.OriginTimeUTC.UnixMilli()) / 1000
	}
	return median(vals)
}

func medianMagnitude(events []model.NormalizedEvent) float64 {
	vals := make([]float64, len(events))
	for i, e := range events {
		vals[i] = e.MagnitudeValue
	}
	return median(vals)
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// AssignmentMap flattens clusters into a total event_uid -> cluster_key
// function, per spec.md §4.G's output contract.
func AssignmentMap(clusters []Cluster) map[string]string {
	out := make(map[string]string)
	for _, c := range clusters {
		for _, m := range c.Members {
			out[m.EventUID] = c.Key
		}
	}
	return out
}
