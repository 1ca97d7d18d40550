package admission

import (
	"context"
	"testing"
	"time"

	"lessonbook/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockLessonLookup struct {
	mock.Mock
}

func (m *MockLessonLookup) GetLesson(ctx context.Context, id int64) (*domain.Lesson, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lesson), args.Error(1)
}

type MockConflictLookup struct {
	mock.Mock
}

func (m *MockConflictLookup) HasConflict(ctx context.Context, studentID int64, start, end time.Time) (bool, error) {
	args := m.Called(ctx, studentID, start, end)
	return args.Bool(0), args.Error(1)
}

func (m *MockConflictLookup) HasConflictExcluding(ctx context.Context, studentID, excludedReservationID int64, start, end time.Time) (bool, error) {
	args := m.Called(ctx, studentID, excludedReservationID, start, end)
	return args.Bool(0), args.Error(1)
}

type MockBalanceLookup struct {
	mock.Mock
}

func (m *MockBalanceLookup) GetBalance(ctx context.Context, studentID int64) (int64, error) {
	args := m.Called(ctx, studentID)
	return args.Get(0).(int64), args.Error(1)
}

type MockReservationLookup struct {
	mock.Mock
}

func (m *MockReservationLookup) GetActiveReservation(ctx context.Context, studentID, lessonID int64) (*domain.Reservation, error) {
	args := m.Called(ctx, studentID, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

var testNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	validator    *Validator
	lessons      *MockLessonLookup
	conflicts    *MockConflictLookup
	balances     *MockBalanceLookup
	reservations *MockReservationLookup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		lessons:      new(MockLessonLookup),
		conflicts:    new(MockConflictLookup),
		balances:     new(MockBalanceLookup),
		reservations: new(MockReservationLookup),
	}
	f.validator = NewValidator(f.lessons, f.conflicts, f.balances, f.reservations).
		WithClock(func() time.Time { return testNow })
	t.Cleanup(func() {
		f.lessons.AssertExpectations(t)
		f.conflicts.AssertExpectations(t)
		f.balances.AssertExpectations(t)
		f.reservations.AssertExpectations(t)
	})
	return f
}

// lessonAt builds a one-hour lesson starting offset from testNow.
func lessonAt(id int64, offset time.Duration, price int64) *domain.Lesson {
	start := testNow.Add(offset)
	return &domain.Lesson{
		ID:        id,
		Title:     "Lesson",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Capacity:  10,
		Occupancy: 3,
		Price:     price,
	}
}
