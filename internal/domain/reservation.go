package domain

import "time"

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
	ReservationSwapped   ReservationStatus = "swapped"
)

// ActiveReservationIndex guarantees at most one active reservation per student and lesson.
const ActiveReservationIndex = "idx_reservations_active_student_lesson"

type Reservation struct {
	ID          int64             `json:"id" gorm:"primaryKey"`
	StudentID   int64             `json:"student_id" gorm:"not null;index;uniqueIndex:idx_reservations_active_student_lesson,where:status = 'active'"`
	LessonID    int64             `json:"lesson_id" gorm:"not null;index;uniqueIndex:idx_reservations_active_student_lesson,where:status = 'active'"`
	Status      ReservationStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	PricePaid   int64             `json:"price_paid" gorm:"not null;default:0"`
	SwappedToID *int64            `json:"swapped_to_id,omitempty"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	Lesson *Lesson `json:"lesson,omitempty" gorm:"foreignKey:LessonID"`
}

func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}
