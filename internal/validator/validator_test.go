package validator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismic-fusion/quakefusion/internal/model"
	"github.com/seismic-fusion/quakefusion/internal/validator"
)

func validEvent(now time.Time) model.NormalizedEvent {
	return model.NormalizedEvent{
		EventUID:       "usgs:us1",
		Source:         "usgs",
		SourceEventID:  "us1",
		OriginTimeUTC:  now.Add(-time.Hour),
		Latitude:       35.0,
		Longitude:      139.0,
		DepthKM:        10.0,
		MagnitudeValue: 5.0,
		MagnitudeType:  "mw",
		Status:         model.StatusAutomatic,
		FetchedAt:      now,
	}
}

func TestBoundsValidatorAcceptsValidEvent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &validator.BoundsValidator{Now: func() time.Time { return now }}
	e := validEvent(now)

	errs := v.Validate(context.Background(), &e)
	assert.Empty(t, errs)
}

func TestBoundsValidatorRejectsOutOfRangeFields(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &validator.BoundsValidator{Now: func() time.Time { return now }}

	cases := []struct {
		name   string
		mutate func(*model.NormalizedEvent)
	}{
		{"latitude too high", func(e *model.NormalizedEvent) { e.Latitude = 91 }},
		{"latitude too low", func(e *model.NormalizedEvent) { e.Latitude = -91 }},
		{"longitude too high", func(e *model.NormalizedEvent) { e.Longitude = 181 }},
		{"depth too deep", func(e *model.NormalizedEvent) { e.DepthKM = 1001 }},
		{"magnitude too high", func(e *model.NormalizedEvent) { e.MagnitudeValue = 11.1 }},
		{"magnitude type missing", func(e *model.NormalizedEvent) { e.MagnitudeType = "" }},
		{"event_uid missing", func(e *model.NormalizedEvent) { e.EventUID = "" }},
		{"source missing", func(e *model.NormalizedEvent) { e.Source = "" }},
		{"source_event_id missing", func(e *model.NormalizedEvent) { e.SourceEventID = "" }},
		{"status unrecognized", func(e *model.NormalizedEvent) { e.Status = model.Status("bogus") }},
		{"origin time far future", func(e *model.NormalizedEvent) { e.OriginTimeUTC = now.Add(48 * time.Hour) }},
		{"origin time far past", func(e *model.NormalizedEvent) { e.OriginTimeUTC = now.AddDate(-201, 0, 0) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validEvent(now)
			tc.mutate(&e)
			errs := v.Validate(context.Background(), &e)
			assert.NotEmpty(t, errs)
		})
	}
}

func TestBoundsValidatorAllowsOneDayFutureGrace(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &validator.BoundsValidator{Now: func() time.Time { return now }}
	e := validEvent(now)
	e.OriginTimeUTC = now.Add(23 * time.Hour)

	errs := v.Validate(context.Background(), &e)
	assert.Empty(t, errs)
}

func TestChainAggregatesAcrossValidators(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bounds := &validator.BoundsValidator{Now: func() time.Time { return now }}
	chain := validator.NewChain(bounds)

	e := validEvent(now)
	e.Latitude = 999

	err := chain.Validate(context.Background(), &e)
	require.Error(t, err)

	var valErr *model.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, model.ValidationOutOfRange, valErr.Kind)
}

func TestChainPassesValidEvent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bounds := &validator.BoundsValidator{Now: func() time.Time { return now }}
	chain := validator.NewChain(bounds)

	e := validEvent(now)
	err := chain.Validate(context.Background(), &e)
	assert.NoError(t, err)
}
