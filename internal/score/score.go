// Package score computes pairwise similarity between normalized events,
// used for crosswalk match scores and cluster-consistency filtering
// (spec.md §4.I).
package score

import "math"

// EarthRadiusKM is the mean Earth radius used for the haversine formula.
const EarthRadiusKM = 6371.0088

// HaversineKM returns the great-circle distance in kilometers between two
// WGS84 decimal-degree coordinates.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1, rlon1 := degToRad(lat1), degToRad(lon1)
	rlat2, rlon2 := degToRad(lat2), degToRad(lon2)

	dlat := rlat2 - rlat1
	dlon := rlon2 - rlon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKM * c
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

// Weights are the three term weights used by Score. They must sum to 1;
// callers validate this at config load time (internal/config).
type Weights struct {
	Time      float64
	Distance  float64
	Magnitude float64
}

// DefaultWeights matches spec.md §4.I's fixed formula (0.4/0.4/0.2).
var DefaultWeights = Weights{Time: 0.4, Distance: 0.4, Magnitude: 0.2}

// Event is the minimal shape Score needs from a normalized event.
type Event struct {
	OriginTimeUnixSec float64
	Latitude          float64
	Longitude         float64
	MagnitudeValue    float64
}

// Score computes the weighted similarity in [0,1] between a and b per
// spec.md §4.I:
//
//	score = w.Time*t_sim + w.Distance*d_sim + w.Magnitude*m_sim
//	t_sim = max(0, 1 - |Δtime_seconds| / 60)
//	d_sim = max(0, 1 - haversine_km(a,b) / 100)
//	m_sim = max(0, 1 - |Δmagnitude| / 2)
//
// Each term is independently floored at 0 by its own max(0, ...); there is
// no additional all-or-nothing short-circuit (see SPEC_FULL.md's "Match-score
// short-circuit" decision — the clustering engine's own spatial/time/
// magnitude partitioning already keeps unrelated pairs from ever being
// scored together). Symmetric: Score(a,b) == Score(b,a), and Score(a,a) ==
// 1.0.
func Score(a, b Event, w Weights) float64 {
	dt := math.Abs(a.OriginTimeUnixSec - b.OriginTimeUnixSec)
	tSim := math.Max(0, 1-dt/60)

	dist := HaversineKM(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	dSim := math.Max(0, 1-dist/100)

	dmag := math.Abs(a.MagnitudeValue - b.MagnitudeValue)
	mSim := math.Max(0, 1-dmag/2)

	return w.Time*tSim + w.Distance*dSim + w.Magnitude*mSim
}
