package admission

import (
	"context"
	"errors"
	"fmt"

	"lessonbook/internal/domain"
)

// ValidateSwap decides whether the student's active reservation on oldLessonID may be
// replaced by a seat in newLessonID, and returns that reservation.
//
// A swap is a cancellation plus a booking committed together, so both lessons are
// checked before anything is mutated. There is no admin bypass.
// The fullness check on the new lesson is advisory; the mutation repeats it under lock.
func (v *Validator) ValidateSwap(ctx context.Context, studentID, oldLessonID, newLessonID int64) (*domain.Reservation, error) {
	old, err := v.reservations.GetActiveReservation(ctx, studentID, oldLessonID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoActiveBooking
		}
		return nil, lookupFailed(fmt.Sprintf("get reservation of student %d for lesson %d", studentID, oldLessonID), err)
	}

	now := v.now()

	oldLesson, err := v.lesson(ctx, oldLessonID)
	if err != nil {
		return nil, err
	}
	if IsWithinCutoff(oldLesson.StartTime, now) {
		return nil, ErrSwapTooLate
	}

	newLesson, err := v.lesson(ctx, newLessonID)
	if err != nil {
		return nil, err
	}
	if IsInPast(newLesson.EndTime, now) {
		return nil, ErrSwapLessonInPast
	}
	if newLesson.IsFull() {
		return nil, ErrNewLessonNotAvailable
	}
	if IsWithinCutoff(newLesson.StartTime, now) {
		return nil, ErrSwapTooLate
	}

	conflict, err := v.hasConflict(ctx, studentID, old.ID, newLesson)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSwapScheduleConflict
	}
	return old, nil
}
