package admission

import (
	"context"
	"fmt"
)

// ValidateBooking decides whether studentID may reserve a seat in lessonID.
//
// Admins may book lessons that are already over, which is how attendance is
// recorded after the fact; for those lessons the schedule check is skipped too.
// Fullness is not checked here: the seat count is only trustworthy under the
// lesson lock taken by the mutation.
func (v *Validator) ValidateBooking(ctx context.Context, studentID, lessonID int64, isAdmin bool) error {
	l, err := v.lesson(ctx, lessonID)
	if err != nil {
		return err
	}

	past := IsInPast(l.EndTime, v.now())
	if past && !isAdmin {
		return ErrLessonInPast
	}

	if !past {
		conflict, err := v.hasConflict(ctx, studentID, 0, l)
		if err != nil {
			return err
		}
		if conflict {
			return ErrScheduleConflict
		}
	}

	price := l.EffectivePrice()
	if price == 0 {
		return nil
	}

	balance, err := v.balances.GetBalance(ctx, studentID)
	if err != nil {
		return lookupFailed(fmt.Sprintf("get balance of student %d", studentID), err)
	}
	if balance < price {
		return ErrInsufficientCredits
	}
	return nil
}
