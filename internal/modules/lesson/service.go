package lesson

import (
	"context"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/domain"
)

const defaultListWindow = 7 * 24 * time.Hour

type Repository interface {
	ListInRange(ctx context.Context, from, to time.Time) ([]domain.Lesson, error)
	Create(ctx context.Context, l *domain.Lesson) error
}

type Service struct {
	repo     Repository
	lookup   admission.LessonLookup
	maxRange time.Duration
	now      func() time.Time
}

// NewService reads single lessons through lookup, which may be cached, and lists straight from repo.
func NewService(repo Repository, lookup admission.LessonLookup, maxRange time.Duration) *Service {
	return &Service{repo: repo, lookup: lookup, maxRange: maxRange, now: time.Now}
}

// List returns lessons overlapping [from, to). A zero from means now; a zero to means a week after from.
func (s *Service) List(ctx context.Context, from, to time.Time) ([]LessonView, error) {
	if from.IsZero() {
		from = s.now()
	}
	if to.IsZero() {
		to = from.Add(defaultListWindow)
		if s.maxRange > 0 && defaultListWindow > s.maxRange {
			to = from.Add(s.maxRange)
		}
	}
	if err := admission.ValidateBoundedRange(from, to, s.maxRange); err != nil {
		return nil, err
	}

	lessons, err := s.repo.ListInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]LessonView, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, toView(l))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*LessonView, error) {
	l, err := s.lookup.GetLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	v := toView(*l)
	return &v, nil
}

func (s *Service) Create(ctx context.Context, req CreateLessonRequest) (*domain.Lesson, error) {
	if err := admission.ValidateRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	l := &domain.Lesson{
		Title:     req.Title,
		TeacherID: req.TeacherID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Capacity:  req.Capacity,
		Price:     req.Price,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}
