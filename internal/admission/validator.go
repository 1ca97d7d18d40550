// Package admission decides whether booking, cancellation and swap requests may proceed.
//
// Every check here is advisory: it runs outside any lock and may go stale before the
// caller commits. The reservation mutation re-checks capacity while holding a row lock
// on the lesson, which is what actually prevents overbooking.
package admission

import (
	"context"
	"fmt"
	"time"

	"lessonbook/internal/domain"
)

// Validator is read-only and safe for concurrent use.
type Validator struct {
	lessons      LessonLookup
	conflicts    ConflictLookup
	balances     BalanceLookup
	reservations ReservationLookup
	now          func() time.Time
}

func NewValidator(
	lessons LessonLookup,
	conflicts ConflictLookup,
	balances BalanceLookup,
	reservations ReservationLookup,
) *Validator {
	return &Validator{
		lessons:      lessons,
		conflicts:    conflicts,
		balances:     balances,
		reservations: reservations,
		now:          time.Now,
	}
}

// WithClock returns a copy of v that reads the current time from now.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	cp := *v
	cp.now = now
	return &cp
}

func (v *Validator) lesson(ctx context.Context, id int64) (*domain.Lesson, error) {
	l, err := v.lessons.GetLesson(ctx, id)
	if err != nil {
		return nil, lookupFailed(fmt.Sprintf("get lesson %d", id), err)
	}
	return l, nil
}

func (v *Validator) hasConflict(ctx context.Context, studentID, excludedReservationID int64, l *domain.Lesson) (bool, error) {
	if err := ValidateRange(l.StartTime, l.EndTime); err != nil {
		return false, err
	}

	var (
		conflict bool
		err      error
	)
	if excludedReservationID > 0 {
		conflict, err = v.conflicts.HasConflictExcluding(ctx, studentID, excludedReservationID, l.StartTime, l.EndTime)
	} else {
		conflict, err = v.conflicts.HasConflict(ctx, studentID, l.StartTime, l.EndTime)
	}
	if err != nil {
		return false, lookupFailed(fmt.Sprintf("check schedule of student %d", studentID), err)
	}
	return conflict, nil
}
