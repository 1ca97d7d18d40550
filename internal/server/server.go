// Package server wires repositories, services and handlers into one gin engine.
package server

import (
	"net/http"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/events"
	"lessonbook/internal/middleware"
	"lessonbook/internal/modules/auth"
	"lessonbook/internal/modules/booking"
	"lessonbook/internal/modules/lesson"
	"lessonbook/internal/modules/occupancy"
	"lessonbook/internal/modules/wallet"
	"lessonbook/internal/pkg/jwt"
	"lessonbook/internal/pkg/response"
	"lessonbook/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Options struct {
	DB  *gorm.DB
	JWT *jwt.Service
	Log *zap.Logger

	// Redis enables the lesson cache when set.
	Redis          *redis.Client
	LessonCacheTTL time.Duration

	// Broker receives every committed reservation change when set.
	Broker events.Publisher

	MaxListRange   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
}

type App struct {
	Router  *gin.Engine
	Hub     *occupancy.Hub
	Limiter *middleware.RateLimiter
}

func New(opts Options) *App {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	lessons := repository.NewLessonRepository(opts.DB)
	reservations := repository.NewReservationRepository(opts.DB)
	users := repository.NewUserRepository(opts.DB)
	wallets := wallet.NewService(opts.DB)

	var (
		lessonLookup admission.LessonLookup = lessons
		publishers   events.Multi
	)
	if opts.Redis != nil {
		cached := repository.NewCachedLessonLookup(lessons, opts.Redis, opts.LessonCacheTTL, log)
		lessonLookup = cached
		// Invalidate before anyone is told the seat count changed.
		publishers = append(publishers, cached)
	}

	hub := occupancy.NewHub(lessonLookup, log)
	publishers = append(publishers, hub)
	if opts.Broker != nil {
		publishers = append(publishers, opts.Broker)
	}

	validator := admission.NewValidator(lessonLookup, reservations, wallets, reservations)

	authHandler := auth.NewHandler(auth.NewService(users, opts.JWT))
	lessonHandler := lesson.NewHandler(lesson.NewService(lessons, lessonLookup, opts.MaxListRange))
	bookingHandler := booking.NewHandler(booking.NewService(opts.DB, validator, reservations, wallets, publishers, log))
	walletHandler := wallet.NewHandler(wallets)
	occupancyHandler := occupancy.NewHandler(hub, log, opts.AllowedOrigins...)

	limiter := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, 3*time.Minute)

	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(opts.AllowedOrigins...))
	r.Use(limiter.Middleware())

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// public
	authHandler.RegisterPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(opts.JWT))

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminOnly())

	me := protected.Group("/users/me")

	authHandler.RegisterProtectedRoutes(protected)
	lessonHandler.RegisterRoutes(v1, admin)
	bookingHandler.RegisterRoutes(protected)
	walletHandler.RegisterRoutes(me, admin)

	ws := r.Group("/ws")
	ws.Use(middleware.JWTAuth(opts.JWT))
	occupancyHandler.RegisterRoutes(ws)

	return &App{Router: r, Hub: hub, Limiter: limiter}
}
