package score_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seismic-fusion/quakefusion/internal/score"
)

func TestHaversineKM(t *testing.T) {
	t.Run("same point is zero distance", func(t *testing.T) {
		d := score.HaversineKM(35.0, 139.0, 35.0, 139.0)
		assert.InDelta(t, 0, d, 1e-6)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := score.HaversineKM(10, 20, 30, 40)
		b := score.HaversineKM(30, 40, 10, 20)
		assert.InDelta(t, a, b, 1e-9)
	})

	t.Run("one degree of latitude is about 111km", func(t *testing.T) {
		d := score.HaversineKM(0, 0, 1, 0)
		assert.InDelta(t, 111.19, d, 0.5)
	})
}

func TestScore(t *testing.T) {
	w := score.DefaultWeights

	t.Run("identical events score 1.0", func(t *testing.T) {
		e := score.Event{OriginTimeUnixSec: 1000, Latitude: 10, Longitude: 20, MagnitudeValue: 5.0}
		assert.InDelta(t, 1.0, score.Score(e, e, w), 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := score.Event{OriginTimeUnixSec: 1000, Latitude: 10, Longitude: 20, MagnitudeValue: 5.0}
		b := score.Event{OriginTimeUnixSec: 1010, Latitude: 10.1, Longitude: 20.1, MagnitudeValue: 5.2}
		assert.InDelta(t, score.Score(a, b, w), score.Score(b, a, w), 1e-9)
	})

	t.Run("each term floors independently at zero", func(t *testing.T) {
		a := score.Event{OriginTimeUnixSec: 0, Latitude: 0, Longitude: 0, MagnitudeValue: 0}
		// 10 minutes apart, about 8900km away, 5 magnitude units apart: every
		// term should floor to 0, so the total score is 0 regardless of
		// weighting.
		b := score.Event{OriginTimeUnixSec: 600, Latitude: 80, Longitude: 0, MagnitudeValue: 5}
		assert.Equal(t, 0.0, score.Score(a, b, w))
	})

	t.Run("weights scale each term", func(t *testing.T) {
		a := score.Event{OriginTimeUnixSec: 0, Latitude: 0, Longitude: 0, MagnitudeValue: 0}
		b := score.Event{OriginTimeUnixSec: 30, Latitude: 0, Longitude: 0, MagnitudeValue: 0}
		// Only the time term differs from 1; 30s of 60s max window -> 0.5
		// similarity, weighted by w.Time.
		got := score.Score(a, b, w)
		want := w.Time*0.5 + w.Distance*1.0 + w.Magnitude*1.0
		assert.InDelta(t, want, got, 1e-9)
	})
}
