package repository

import (
	"context"
	"errors"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/domain"

	"gorm.io/gorm"
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// HasConflict reports whether the student holds an active reservation on a lesson overlapping [start, end).
func (r *ReservationRepository) HasConflict(ctx context.Context, studentID int64, start, end time.Time) (bool, error) {
	return r.hasConflict(ctx, studentID, 0, start, end)
}

func (r *ReservationRepository) HasConflictExcluding(ctx context.Context, studentID, excludedReservationID int64, start, end time.Time) (bool, error) {
	return r.hasConflict(ctx, studentID, excludedReservationID, start, end)
}

func (r *ReservationRepository) hasConflict(ctx context.Context, studentID, excludedID int64, start, end time.Time) (bool, error) {
	q := r.db.WithContext(ctx).
		Table("reservations AS r").
		Joins("JOIN lessons AS l ON l.id = r.lesson_id").
		Where("r.student_id = ? AND r.status = ?", studentID, domain.ReservationActive).
		Where("l.start_time < ? AND l.end_time > ?", end.UTC(), start.UTC())
	if excludedID > 0 {
		q = q.Where("r.id <> ?", excludedID)
	}

	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *ReservationRepository) GetActiveReservation(ctx context.Context, studentID, lessonID int64) (*domain.Reservation, error) {
	var res domain.Reservation
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND lesson_id = ? AND status = ?", studentID, lessonID, domain.ReservationActive).
		First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, admission.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := r.db.WithContext(ctx).First(&res, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, admission.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// ListByStudent returns every reservation of the student with its lesson, newest first.
func (r *ReservationRepository) ListByStudent(ctx context.Context, studentID int64) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := r.db.WithContext(ctx).
		Preload("Lesson").
		Where("student_id = ?", studentID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
