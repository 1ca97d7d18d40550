// Package events carries reservation changes to whoever needs to react to them:
// the lesson cache, the live occupancy feed and the message broker.
package events

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	ReservationBooked    Type = "reservation.booked"
	ReservationCancelled Type = "reservation.cancelled"
	ReservationSwapped   Type = "reservation.swapped"
)

// LessonSnapshot is the seat count of a lesson right after the change committed.
type LessonSnapshot struct {
	ID        int64 `json:"id"`
	Occupancy int   `json:"occupancy"`
	Capacity  int   `json:"capacity"`
}

type Event struct {
	Type             Type             `json:"type"`
	ReservationID    int64            `json:"reservation_id"`
	StudentID        int64            `json:"student_id"`
	LessonID         int64            `json:"lesson_id"`
	PreviousLessonID int64            `json:"previous_lesson_id,omitempty"`
	Lessons          []LessonSnapshot `json:"lessons"`
	OccurredAt       time.Time        `json:"occurred_at"`
}

// LessonIDs lists every lesson whose seat count the event changed.
func (e Event) LessonIDs() []int64 {
	ids := make([]int64, 0, len(e.Lessons)+2)
	seen := make(map[int64]bool, cap(ids))
	add := func(id int64) {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(e.LessonID)
	add(e.PreviousLessonID)
	for _, l := range e.Lessons {
		add(l.ID)
	}
	return ids
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
