package admission

import (
	"fmt"
	"time"
)

// CutoffHorizon closes ordinary cancellation and swap-out this long before a lesson starts.
const CutoffHorizon = 24 * time.Hour

// IsInPast reports whether ref is at or before now.
func IsInPast(ref, now time.Time) bool {
	return !ref.After(now)
}

// IsWithinCutoff reports whether ref is less than CutoffHorizon away from now.
// Times already in the past are within the cutoff.
func IsWithinCutoff(ref, now time.Time) bool {
	return ref.Sub(now) < CutoffHorizon
}

func ValidateRange(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	return nil
}

// ValidateBoundedRange is ValidateRange plus an upper limit on the span. A non-positive maxSpan disables the limit.
func ValidateBoundedRange(start, end time.Time, maxSpan time.Duration) error {
	if err := ValidateRange(start, end); err != nil {
		return err
	}
	if maxSpan > 0 && end.Sub(start) > maxSpan {
		return &Error{
			Kind:    KindInvalidRange,
			Message: fmt.Sprintf("time range must not exceed %s", maxSpan),
		}
	}
	return nil
}
