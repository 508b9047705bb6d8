// Package validator enforces bounds, required-field, and sanity checks on
// normalized events before they are allowed to flow onward (spec.md §4.D).
package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// Validator checks a NormalizedEvent and returns zero or more human
// readable error messages (empty = valid). Modeled on
// core/internal/validator's chain-of-validators shape.
type Validator interface {
	Validate(ctx context.Context, e *model.NormalizedEvent) []string
}

// Chain runs every registered Validator and concatenates their errors.
type Chain struct {
	validators []Validator
}

// NewChain builds a Chain from the given validators, run in order.
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// Validate returns a ValidationError wrapping every message produced by the
// chain, or nil if every validator passed.
func (c *Chain) Validate(ctx context.Context, e *model.NormalizedEvent) error {
	var messages []string
	for _, v := range c.validators {
		messages = append(messages, v.Validate(ctx, e)...)
	}
	if len(messages) == 0 {
		return nil
	}
	return &model.ValidationError{
		Kind:    classify(messages),
		Field:   "multiple",
		Message: joinMessages(messages),
	}
}

func classify(messages []string) model.ValidationKind {
	// Best-effort single-kind classification for callers that branch on
	// kind; the full message list is preserved in Message regardless.
	for _, m := range messages {
		switch {
		case strings.Contains(m, "out of range"), strings.Contains(m, "exceeds"):
			return model.ValidationOutOfRange
		case strings.Contains(m, "is empty"), strings.Contains(m, "missing"):
			return model.ValidationMissingField
		case strings.Contains(m, "timestamp"), strings.Contains(m, "future"), strings.Contains(m, "past"):
			return model.ValidationBadTimestamp
		}
	}
	return model.ValidationOutOfRange
}

func joinMessages(messages []string) string {
	return strings.Join(messages, "; ")
}

// BoundsValidator enforces the explicit numeric ranges and enum values of
// spec.md §3/§4.D. These bounds differ from the upstream Python reference
// implementation's (see SPEC_FULL.md, "Validation bounds and status enum");
// spec.md's text governs since it is explicit, not silent.
type BoundsValidator struct {
	// Now is injectable for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

// NewBoundsValidator builds a BoundsValidator using the real clock.
func NewBoundsValidator() *BoundsValidator {
	return &BoundsValidator{Now: time.Now}
}

func (v *BoundsValidator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v *BoundsValidator) Validate(_ context.Context, e *model.NormalizedEvent) []string {
	var errs []string

	if e.Latitude < -90 || e.Latitude > 90 {
		errs = append(errs, fmt.Sprintf("latitude %g out of range [-90, 90]", e.Latitude))
	}
	if e.Longitude < -180 || e.Longitude > 180 {
		errs = append(errs, fmt.Sprintf("longitude %g out of range [-180, 180]", e.Longitude))
	}
	if e.DepthKM < -5 || e.DepthKM > 1000 {
		errs = append(errs, fmt.Sprintf("depth_km %g out of range [-5, 1000]", e.DepthKM))
	}
	if e.MagnitudeValue < -2 || e.MagnitudeValue > 11 {
		errs = append(errs, fmt.Sprintf("magnitude_value %g out of range [-2, 11]", e.MagnitudeValue))
	}
	if e.MagnitudeType == "" {
		errs = append(errs, "magnitude_type is empty")
	}

	now := v.now()
	if e.OriginTimeUTC.After(now.Add(24 * time.Hour)) {
		errs = append(errs, fmt.Sprintf("origin_time_utc %s is more than 1 day in the future", e.OriginTimeUTC))
	}
	if e.OriginTimeUTC.Before(now.AddDate(-200, 0, 0)) {
		errs = append(errs, fmt.Sprintf("origin_time_utc %s is more than 200 years in the past", e.OriginTimeUTC))
	}

	switch e.Status {
	case model.StatusAutomatic, model.StatusReviewed, model.StatusManual:
	default:
		errs = append(errs, fmt.Sprintf("status %q not in (automatic, reviewed, manual)", e.Status))
	}

	if e.EventUID == "" {
		errs = append(errs, "event_uid is empty")
	}
	if e.Source == "" {
		errs = append(errs, "source is empty")
	}
	if e.SourceEventID == "" {
		errs = append(errs, "source_event_id is empty")
	}

	return errs
}
