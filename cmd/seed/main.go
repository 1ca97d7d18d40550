package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/config"
	"lessonbook/internal/database"
	"lessonbook/internal/domain"
	"lessonbook/internal/modules/booking"
	"lessonbook/internal/modules/wallet"
	"lessonbook/internal/pkg/logger"
	"lessonbook/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var lessonTitles = []string{"Morning yoga", "Pilates", "Spin class", "Boxing basics", "Stretching", "HIIT"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logg.Sync()

	if cfg.IsProduction() {
		logg.Fatal("refusing to seed a production database")
	}

	db, err := database.Connect(cfg.DatabaseURL, logg)
	if err != nil {
		logg.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logg.Fatal("migration failed", zap.Error(err))
	}

	// Cleanup old data (in safe order to avoid foreign key errors)
	logg.Info("cleaning old data")
	for _, table := range []string{"wallet_transactions", "wallets", "reservations", "lessons", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			logg.Fatal("cleanup failed", zap.String("table", table), zap.Error(err))
		}
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	// ================== USERS ==================
	admin := mustCreateUser(ctx, logg, users, "admin@lessonbook.local", "admin123", "Administrator", domain.RoleAdmin)
	teacher := mustCreateUser(ctx, logg, users, "teacher@lessonbook.local", "teacher123", "Head Teacher", domain.RoleTeacher)

	students := make([]*domain.User, 0, 3)
	for i, email := range []string{"asel@lessonbook.local", "bekzat@lessonbook.local", "dina@lessonbook.local"} {
		students = append(students, mustCreateUser(ctx, logg, users, email, "student123", fmt.Sprintf("Student %d", i+1), domain.RoleStudent))
	}

	// ================== LESSONS ==================
	lessons := mustCreateLessons(ctx, logg, repository.NewLessonRepository(db), teacher.ID)

	// ================== WALLETS ==================
	wallets := wallet.NewService(db)
	for _, s := range students {
		if _, _, err := wallets.TopUp(ctx, s.ID, 50); err != nil {
			logg.Fatal("top-up failed", zap.Int64("user_id", s.ID), zap.Error(err))
		}
	}

	// ================== RESERVATIONS ==================
	bookings := newBookingService(db, wallets, logg)
	for i, s := range students {
		l := lessons[(i*3)%len(lessons)]
		if _, err := bookings.Book(ctx, s.ID, l.ID, false); err != nil {
			logg.Warn("seed booking skipped", zap.Int64("student_id", s.ID), zap.Int64("lesson_id", l.ID), zap.Error(err))
		}
	}

	logg.Info("seed completed",
		zap.String("admin", admin.Email),
		zap.Int("students", len(students)),
		zap.Int("lessons", len(lessons)),
	)
}

func mustCreateUser(ctx context.Context, logg *zap.Logger, users *repository.UserRepository, email, password, name string, role domain.UserRole) *domain.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logg.Fatal("hash password", zap.Error(err))
	}
	u := &domain.User{Email: email, PasswordHash: string(hash), Name: name, Role: role}
	if err := users.Create(ctx, u); err != nil {
		logg.Fatal("create user", zap.String("email", email), zap.Error(err))
	}
	logg.Info("user created", zap.String("email", email), zap.String("password", password), zap.String("role", string(role)))
	return u
}

func mustCreateLessons(ctx context.Context, logg *zap.Logger, repo *repository.LessonRepository, teacherID int64) []domain.Lesson {
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	out := make([]domain.Lesson, 0, 14)

	for d := 0; d < 7; d++ {
		for _, hour := range []int{9, 18} {
			start := day.Add(time.Duration(d)*24*time.Hour + time.Duration(hour)*time.Hour)
			l := domain.Lesson{
				Title:     lessonTitles[rand.Intn(len(lessonTitles))],
				TeacherID: &teacherID,
				StartTime: start,
				EndTime:   start.Add(time.Hour),
				Capacity:  8 + rand.Intn(8),
				Price:     int64(rand.Intn(4)) * 5,
			}
			if err := repo.Create(ctx, &l); err != nil {
				logg.Fatal("create lesson", zap.Error(err))
			}
			out = append(out, l)
		}
	}
	logg.Info("lessons created", zap.Int("count", len(out)))
	return out
}

func newBookingService(db *gorm.DB, wallets *wallet.Service, logg *zap.Logger) *booking.Service {
	lessons := repository.NewLessonRepository(db)
	reservations := repository.NewReservationRepository(db)
	validator := admission.NewValidator(lessons, reservations, wallets, reservations)
	return booking.NewService(db, validator, reservations, wallets, nil, logg)
}
