package admission

import (
	"context"

	"lessonbook/internal/domain"
)

// ValidateCancellation decides whether r may be cancelled. Admins ignore the cutoff.
func (v *Validator) ValidateCancellation(ctx context.Context, r *domain.Reservation, isAdmin bool) error {
	if !r.IsActive() {
		return ErrBookingNotActive
	}

	l, err := v.lesson(ctx, r.LessonID)
	if err != nil {
		return err
	}

	if !isAdmin && IsWithinCutoff(l.StartTime, v.now()) {
		return ErrCannotCancelWithinCutoff
	}
	return nil
}
