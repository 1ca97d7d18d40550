package admission

import (
	"context"
	"time"

	"lessonbook/internal/domain"
)

// LessonLookup returns ErrNotFound (possibly wrapped) when the lesson does not exist.
type LessonLookup interface {
	GetLesson(ctx context.Context, id int64) (*domain.Lesson, error)
}

// ConflictLookup reports whether a student holds an active reservation overlapping [start, end).
type ConflictLookup interface {
	HasConflict(ctx context.Context, studentID int64, start, end time.Time) (bool, error)
	HasConflictExcluding(ctx context.Context, studentID, excludedReservationID int64, start, end time.Time) (bool, error)
}

type BalanceLookup interface {
	GetBalance(ctx context.Context, studentID int64) (int64, error)
}

// ReservationLookup returns ErrNotFound (possibly wrapped) when the student holds no active reservation for the lesson.
type ReservationLookup interface {
	GetActiveReservation(ctx context.Context, studentID, lessonID int64) (*domain.Reservation, error)
}
