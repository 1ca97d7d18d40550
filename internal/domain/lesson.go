package domain

import "time"

// Lesson is a scheduled class with a fixed number of seats.
// Occupancy is maintained by the reservation mutations under a row lock.
type Lesson struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"not null"`
	TeacherID *int64    `json:"teacher_id,omitempty" gorm:"index"`
	StartTime time.Time `json:"start_time" gorm:"not null;index"`
	EndTime   time.Time `json:"end_time" gorm:"not null"`
	Capacity  int       `json:"capacity" gorm:"not null"`
	Occupancy int       `json:"occupancy" gorm:"not null;default:0"`
	Price     int64     `json:"price" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Lesson) IsFull() bool {
	return l.Occupancy >= l.Capacity
}

func (l *Lesson) SeatsLeft() int {
	if l.IsFull() {
		return 0
	}
	return l.Capacity - l.Occupancy
}

// EffectivePrice is the price charged for a seat. Stored prices below zero are treated as free.
func (l *Lesson) EffectivePrice() int64 {
	if l.Price < 0 {
		return 0
	}
	return l.Price
}
