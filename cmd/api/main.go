package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lessonbook/internal/config"
	"lessonbook/internal/database"
	"lessonbook/internal/events"
	"lessonbook/internal/pkg/jwt"
	"lessonbook/internal/pkg/logger"
	"lessonbook/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

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
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, logg)
	if err != nil {
		logg.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logg.Fatal("migration failed", zap.Error(err))
	}

	opts := server.Options{
		DB:             db,
		JWT:            jwt.New(cfg.JWTSecret, cfg.JWTAccessTTL),
		Log:            logg,
		LessonCacheTTL: cfg.LessonCacheTTL,
		MaxListRange:   cfg.MaxListRange,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AllowedOrigins: cfg.AllowedOrigins(),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logg.Warn("redis unavailable, lesson cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			logg.Info("lesson cache enabled", zap.String("addr", cfg.RedisAddr))
			opts.Redis = rdb
		}
	}

	if cfg.RabbitMQURL != "" {
		broker := events.NewAMQPPublisher(cfg.RabbitMQURL, logg)
		defer broker.Close()
		opts.Broker = broker
		logg.Info("reservation events enabled", zap.String("queue", events.ReservationQueue))
	}

	app := server.New(opts)
	defer app.Hub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.Limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logg.Info("shutdown signal received")
	case err := <-serverErr:
		logg.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Websocket connections are hijacked and not tracked by Shutdown.
	app.Hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("graceful shutdown failed", zap.Error(err))
	}

	logg.Info("server stopped")
}
