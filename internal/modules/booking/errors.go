package booking

import (
	"errors"
	"net/http"

	"lessonbook/internal/admission"
)

var (
	ErrLessonFull          = errors.New("lesson is full")
	ErrAlreadyBooked       = errors.New("student already holds a seat in this lesson")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidSwap         = errors.New("old and new lesson must differ")
)

var admissionStatus = map[admission.Kind]int{
	admission.KindLessonInPast:             http.StatusUnprocessableEntity,
	admission.KindScheduleConflict:         http.StatusConflict,
	admission.KindInsufficientCredits:      http.StatusPaymentRequired,
	admission.KindBookingNotActive:         http.StatusConflict,
	admission.KindCannotCancelWithinCutoff: http.StatusUnprocessableEntity,
	admission.KindNoActiveBooking:          http.StatusNotFound,
	admission.KindNewLessonNotAvailable:    http.StatusConflict,
	admission.KindSwapScheduleConflict:     http.StatusConflict,
	admission.KindSwapTooLate:              http.StatusUnprocessableEntity,
	admission.KindSwapLessonInPast:         http.StatusUnprocessableEntity,
	admission.KindInvalidRange:             http.StatusBadRequest,
}

// httpError maps a service error to the status and code sent to the client.
func httpError(err error) (status int, code string, message string) {
	switch {
	case errors.Is(err, admission.ErrNotFound):
		return http.StatusNotFound, "LESSON_NOT_FOUND", "lesson not found"
	case errors.Is(err, ErrLessonFull):
		return http.StatusConflict, "LESSON_FULL", err.Error()
	case errors.Is(err, ErrAlreadyBooked):
		return http.StatusConflict, "ALREADY_BOOKED", err.Error()
	case errors.Is(err, ErrReservationNotFound):
		return http.StatusNotFound, "RESERVATION_NOT_FOUND", err.Error()
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "reservation belongs to another student"
	case errors.Is(err, ErrInvalidSwap):
		return http.StatusBadRequest, "INVALID_SWAP", err.Error()
	}

	var ae *admission.Error
	if errors.As(err, &ae) {
		if status, ok := admissionStatus[ae.Kind]; ok {
			return status, string(ae.Kind), ae.Message
		}
		if ae.Kind == admission.KindLookupFailed {
			return http.StatusServiceUnavailable, string(ae.Kind), "could not verify the request, try again"
		}
	}

	return http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"
}
