package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/domain"
	"lessonbook/internal/events"
	"lessonbook/internal/modules/wallet"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const publishTimeout = 5 * time.Second

// Service commits reservation changes. The admission checks run first and may be stale;
// every invariant that matters is re-checked inside the transaction while the affected
// lesson rows are locked.
type Service struct {
	db           *gorm.DB
	admission    Admission
	reservations ReservationRepository
	ledger       Ledger
	publisher    events.Publisher
	log          *zap.Logger
	now          func() time.Time
}

func NewService(
	db *gorm.DB,
	admission Admission,
	reservations ReservationRepository,
	ledger Ledger,
	publisher events.Publisher,
	log *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		db:           db,
		admission:    admission,
		reservations: reservations,
		ledger:       ledger,
		publisher:    publisher,
		log:          log,
		now:          time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Service) Book(ctx context.Context, studentID, lessonID int64, isAdmin bool) (*domain.Reservation, error) {
	if err := s.admission.ValidateBooking(ctx, studentID, lessonID, isAdmin); err != nil {
		return nil, err
	}

	var (
		res    domain.Reservation
		lesson domain.Lesson
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockLesson(tx, lessonID, &lesson); err != nil {
			return err
		}
		if lesson.IsFull() {
			return ErrLessonFull
		}
		if err := ensureNotBooked(tx, studentID, lessonID); err != nil {
			return err
		}

		var err error
		res, err = s.reserve(tx, studentID, &lesson)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("lesson booked",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("lesson_id", lessonID),
		zap.Int64("price", res.PricePaid),
		zap.Bool("admin", isAdmin),
	)
	s.publish(ctx, events.Event{
		Type:          events.ReservationBooked,
		ReservationID: res.ID,
		StudentID:     studentID,
		LessonID:      lessonID,
		Lessons:       []events.LessonSnapshot{snapshot(&lesson)},
	})

	res.Lesson = &lesson
	return &res, nil
}

func (s *Service) Cancel(ctx context.Context, actorID, reservationID int64, isAdmin bool) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, admission.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if res.StudentID != actorID && !isAdmin {
		return nil, ErrForbidden
	}

	if err := s.admission.ValidateCancellation(ctx, res, isAdmin); err != nil {
		return nil, err
	}

	var lesson domain.Lesson
	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockLesson(tx, res.LessonID, &lesson); err != nil {
			return err
		}
		if err := transition(tx, res.ID, domain.ReservationCancelled, map[string]any{"cancelled_at": now}); err != nil {
			if errors.Is(err, errNotActive) {
				return admission.ErrBookingNotActive
			}
			return err
		}
		if err := adjustOccupancy(tx, &lesson, -1); err != nil {
			return err
		}
		_, err := s.ledger.RefundTx(tx, res.StudentID, res.PricePaid, res.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Status = domain.ReservationCancelled
	res.CancelledAt = &now
	res.Lesson = &lesson

	s.log.Info("reservation cancelled",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("student_id", res.StudentID),
		zap.Int64("lesson_id", res.LessonID),
		zap.Int64("actor_id", actorID),
		zap.Int64("refund", res.PricePaid),
	)
	s.publish(ctx, events.Event{
		Type:          events.ReservationCancelled,
		ReservationID: res.ID,
		StudentID:     res.StudentID,
		LessonID:      res.LessonID,
		Lessons:       []events.LessonSnapshot{snapshot(&lesson)},
	})
	return res, nil
}

// Swap moves the student's seat from oldLessonID to newLessonID in one transaction.
// The old seat is released and refunded, then the new seat is charged at its own price.
func (s *Service) Swap(ctx context.Context, studentID, oldLessonID, newLessonID int64) (*domain.Reservation, error) {
	if oldLessonID == newLessonID {
		return nil, ErrInvalidSwap
	}

	old, err := s.admission.ValidateSwap(ctx, studentID, oldLessonID, newLessonID)
	if err != nil {
		return nil, err
	}

	var (
		created domain.Reservation
		locked  map[int64]*domain.Lesson
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		locked, err = lockLessons(tx, oldLessonID, newLessonID)
		if err != nil {
			return err
		}
		oldLesson, newLesson := locked[oldLessonID], locked[newLessonID]

		if newLesson.IsFull() {
			return admission.ErrNewLessonNotAvailable
		}
		if err := transition(tx, old.ID, domain.ReservationSwapped, nil); err != nil {
			if errors.Is(err, errNotActive) {
				return admission.ErrNoActiveBooking
			}
			return err
		}
		if err := adjustOccupancy(tx, oldLesson, -1); err != nil {
			return err
		}
		if _, err := s.ledger.RefundTx(tx, studentID, old.PricePaid, old.ID); err != nil {
			return err
		}
		if err := ensureNotBooked(tx, studentID, newLessonID); err != nil {
			return err
		}

		created, err = s.reserve(tx, studentID, newLesson)
		if err != nil {
			return err
		}
		return tx.Model(&domain.Reservation{}).Where("id = ?", old.ID).Update("swapped_to_id", created.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation swapped",
		zap.Int64("old_reservation_id", old.ID),
		zap.Int64("new_reservation_id", created.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("old_lesson_id", oldLessonID),
		zap.Int64("new_lesson_id", newLessonID),
	)
	s.publish(ctx, events.Event{
		Type:             events.ReservationSwapped,
		ReservationID:    created.ID,
		StudentID:        studentID,
		LessonID:         newLessonID,
		PreviousLessonID: oldLessonID,
		Lessons: []events.LessonSnapshot{
			snapshot(locked[oldLessonID]),
			snapshot(locked[newLessonID]),
		},
	})

	created.Lesson = locked[newLessonID]
	return &created, nil
}

func (s *Service) ListMine(ctx context.Context, studentID int64) ([]domain.Reservation, error) {
	return s.reservations.ListByStudent(ctx, studentID)
}

// reserve inserts an active reservation on the locked lesson, charges for it and takes the seat.
func (s *Service) reserve(tx *gorm.DB, studentID int64, lesson *domain.Lesson) (domain.Reservation, error) {
	res := domain.Reservation{
		StudentID: studentID,
		LessonID:  lesson.ID,
		Status:    domain.ReservationActive,
		PricePaid: lesson.EffectivePrice(),
	}
	if err := tx.Create(&res).Error; err != nil {
		if isUniqueViolation(err) {
			return res, ErrAlreadyBooked
		}
		return res, err
	}

	if _, err := s.ledger.SpendTx(tx, studentID, res.PricePaid, res.ID); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			return res, admission.ErrInsufficientCredits
		}
		return res, err
	}

	return res, adjustOccupancy(tx, lesson, 1)
}

// publish runs after commit. Failures are logged and never reach the caller.
func (s *Service) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("publish reservation event failed",
			zap.String("type", string(e.Type)),
			zap.Int64("reservation_id", e.ReservationID),
			zap.Error(err),
		)
	}
}

var errNotActive = errors.New("reservation is no longer active")

// transition moves an active reservation to status. It fails with errNotActive when
// another request changed the reservation first.
func transition(tx *gorm.DB, id int64, status domain.ReservationStatus, extra map[string]any) error {
	updates := map[string]any{"status": status}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", id, domain.ReservationActive).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errNotActive
	}
	return nil
}

func ensureNotBooked(tx *gorm.DB, studentID, lessonID int64) error {
	var cnt int64
	err := tx.Model(&domain.Reservation{}).
		Where("student_id = ? AND lesson_id = ? AND status = ?", studentID, lessonID, domain.ReservationActive).
		Count(&cnt).Error
	if err != nil {
		return err
	}
	if cnt > 0 {
		return ErrAlreadyBooked
	}
	return nil
}

func lockLesson(tx *gorm.DB, id int64, l *domain.Lesson) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(l, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lesson %d: %w", id, admission.ErrNotFound)
	}
	return err
}

// lockLessons locks the given lessons in ascending id order so two swaps in opposite
// directions cannot deadlock.
func lockLessons(tx *gorm.DB, ids ...int64) (map[int64]*domain.Lesson, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make(map[int64]*domain.Lesson, len(sorted))
	for _, id := range sorted {
		if _, ok := out[id]; ok {
			continue
		}
		var l domain.Lesson
		if err := lockLesson(tx, id, &l); err != nil {
			return nil, err
		}
		out[id] = &l
	}
	return out, nil
}

func adjustOccupancy(tx *gorm.DB, l *domain.Lesson, delta int) error {
	next := l.Occupancy + delta
	if next < 0 {
		next = 0
	}
	if err := tx.Model(&domain.Lesson{}).Where("id = ?", l.ID).Update("occupancy", next).Error; err != nil {
		return err
	}
	l.Occupancy = next
	return nil
}

func snapshot(l *domain.Lesson) events.LessonSnapshot {
	return events.LessonSnapshot{ID: l.ID, Occupancy: l.Occupancy, Capacity: l.Capacity}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
