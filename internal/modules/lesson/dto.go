package lesson

import (
	"time"

	"lessonbook/internal/domain"
)

type CreateLessonRequest struct {
	Title     string    `json:"title" validate:"required,min=2,max=200"`
	TeacherID *int64    `json:"teacher_id" validate:"omitempty,gt=0"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Capacity  int       `json:"capacity" validate:"required,gt=0,lte=500"`
	Price     int64     `json:"price" validate:"gte=0"`
}

type LessonView struct {
	domain.Lesson
	SeatsLeft int `json:"seats_left"`
}

func toView(l domain.Lesson) LessonView {
	return LessonView{Lesson: l, SeatsLeft: l.SeatsLeft()}
}
