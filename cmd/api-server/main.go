package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mediconnect/telehealth-api/internal/api"
	"github.com/mediconnect/telehealth-api/internal/appointment"
	"github.com/mediconnect/telehealth-api/internal/config"
	"github.com/mediconnect/telehealth-api/internal/db"
	"github.com/mediconnect/telehealth-api/internal/logger"
	"github.com/mediconnect/telehealth-api/internal/payments"
	"github.com/mediconnect/telehealth-api/internal/records"
	redisclient "github.com/mediconnect/telehealth-api/internal/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns, cfg.PgMinConns)
	cancelPg()
	if err != nil {
		zlog.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migrateCtx, pgPool)
	cancelMigrate()
	if err != nil {
		zlog.Fatal("schema migration error", zap.Error(err))
	}
	zlog.Info("connected to Postgres, schema applied")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		zlog.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zlog.Warn("error closing redis", zap.Error(err))
		}
	}()
	zlog.Info("connected to Redis")

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	meetings := appointment.NewHostedMeetings(cfg.MeetingPrefix, cfg.MeetingBaseURL)
	bookingSvc := appointment.NewService(repo, locker, meetings, cfg, zlog)

	recordsRepo := records.NewPgRepository(pgPool)
	recordsSvc := records.NewService(recordsRepo, bookingSvc, zlog)

	verifier := payments.NewVerifier(cfg.PaymentKeyID, cfg.PaymentSecret)

	router := api.NewRouter(api.RouterConfig{
		Booking:   bookingSvc,
		Records:   recordsSvc,
		Payments:  verifier,
		PgPool:    pgPool,
		Redis:     rdb,
		Logger:    zlog,
		JWTSecret: cfg.JWTSecret,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zlog.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("graceful shutdown failed", zap.Error(err))
	}
}
