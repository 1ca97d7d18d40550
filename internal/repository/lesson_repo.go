package repository

import (
	"context"
	"errors"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/domain"

	"gorm.io/gorm"
)

type LessonRepository struct {
	db *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func (r *LessonRepository) GetLesson(ctx context.Context, id int64) (*domain.Lesson, error) {
	var l domain.Lesson
	if err := r.db.WithContext(ctx).First(&l, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, admission.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListInRange returns lessons overlapping [from, to), earliest first.
func (r *LessonRepository) ListInRange(ctx context.Context, from, to time.Time) ([]domain.Lesson, error) {
	var lessons []domain.Lesson
	err := r.db.WithContext(ctx).
		Where("start_time < ? AND end_time > ?", to.UTC(), from.UTC()).
		Order("start_time ASC, id ASC").
		Find(&lessons).Error
	if err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *LessonRepository) Create(ctx context.Context, l *domain.Lesson) error {
	l.StartTime = l.StartTime.UTC()
	l.EndTime = l.EndTime.UTC()
	return r.db.WithContext(ctx).Create(l).Error
}
