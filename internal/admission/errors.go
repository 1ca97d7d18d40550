package admission

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable reason an admission check failed.
type Kind string

const (
	KindLessonInPast             Kind = "LESSON_IN_PAST"
	KindScheduleConflict         Kind = "SCHEDULE_CONFLICT"
	KindInsufficientCredits      Kind = "INSUFFICIENT_CREDITS"
	KindBookingNotActive         Kind = "BOOKING_NOT_ACTIVE"
	KindCannotCancelWithinCutoff Kind = "CANNOT_CANCEL_WITHIN_CUTOFF"
	KindNoActiveBooking          Kind = "NO_ACTIVE_BOOKING"
	KindNewLessonNotAvailable    Kind = "NEW_LESSON_NOT_AVAILABLE"
	KindSwapScheduleConflict     Kind = "SWAP_SCHEDULE_CONFLICT"
	KindSwapTooLate              Kind = "SWAP_TOO_LATE"
	KindSwapLessonInPast         Kind = "SWAP_LESSON_IN_PAST"
	KindInvalidRange             Kind = "INVALID_RANGE"
	KindLookupFailed             Kind = "LOOKUP_FAILED"
)

// Error is returned by every validator. Two Errors match under errors.Is when their kinds are equal,
// so callers compare against the sentinels below rather than messages.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrLessonInPast             = &Error{Kind: KindLessonInPast, Message: "lesson has already taken place"}
	ErrScheduleConflict         = &Error{Kind: KindScheduleConflict, Message: "student already has a reservation at this time"}
	ErrInsufficientCredits      = &Error{Kind: KindInsufficientCredits, Message: "not enough credits to reserve this lesson"}
	ErrBookingNotActive         = &Error{Kind: KindBookingNotActive, Message: "reservation is not active"}
	ErrCannotCancelWithinCutoff = &Error{Kind: KindCannotCancelWithinCutoff, Message: "reservations cannot be cancelled less than 24 hours before the lesson"}
	ErrNoActiveBooking          = &Error{Kind: KindNoActiveBooking, Message: "no active reservation for this lesson"}
	ErrNewLessonNotAvailable    = &Error{Kind: KindNewLessonNotAvailable, Message: "target lesson has no free seats"}
	ErrSwapScheduleConflict     = &Error{Kind: KindSwapScheduleConflict, Message: "target lesson overlaps another reservation"}
	ErrSwapTooLate              = &Error{Kind: KindSwapTooLate, Message: "swaps are closed less than 24 hours before either lesson"}
	ErrSwapLessonInPast         = &Error{Kind: KindSwapLessonInPast, Message: "target lesson has already taken place"}
	ErrInvalidRange             = &Error{Kind: KindInvalidRange, Message: "end time must be after start time"}
	ErrLookupFailed             = &Error{Kind: KindLookupFailed, Message: "lookup failed"}
)

// ErrNotFound is what lookups return when the requested record does not exist.
var ErrNotFound = errors.New("not found")

func lookupFailed(what string, err error) error {
	return &Error{Kind: KindLookupFailed, Message: what, Err: err}
}

// KindOf returns the admission kind carried by err, or "" when err is not an admission error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
