package booking

import (
	"context"

	"lessonbook/internal/domain"

	"gorm.io/gorm"
)

// Admission runs the advisory checks before a mutation.
type Admission interface {
	ValidateBooking(ctx context.Context, studentID, lessonID int64, isAdmin bool) error
	ValidateCancellation(ctx context.Context, r *domain.Reservation, isAdmin bool) error
	ValidateSwap(ctx context.Context, studentID, oldLessonID, newLessonID int64) (*domain.Reservation, error)
}

type ReservationRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	ListByStudent(ctx context.Context, studentID int64) ([]domain.Reservation, error)
}

// Ledger moves credits inside a transaction owned by the caller.
type Ledger interface {
	SpendTx(tx *gorm.DB, userID, amount, reservationID int64) (*domain.WalletTransaction, error)
	RefundTx(tx *gorm.DB, userID, amount, reservationID int64) (*domain.WalletTransaction, error)
}

// BookingService is what the HTTP handler needs.
type BookingService interface {
	Book(ctx context.Context, studentID, lessonID int64, isAdmin bool) (*domain.Reservation, error)
	Cancel(ctx context.Context, actorID, reservationID int64, isAdmin bool) (*domain.Reservation, error)
	Swap(ctx context.Context, studentID, oldLessonID, newLessonID int64) (*domain.Reservation, error)
	ListMine(ctx context.Context, studentID int64) ([]domain.Reservation, error)
}
