package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/court-scheduler/config"
	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/bootstrap"
	"github.com/example/court-scheduler/internal/health"
	"github.com/example/court-scheduler/internal/infrastructure/postgres"
	ctxlog "github.com/example/court-scheduler/internal/log"
	"github.com/example/court-scheduler/internal/metrics"
	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/scheduler"
	"github.com/example/court-scheduler/internal/secretbox"
	"github.com/example/court-scheduler/internal/timeutil"
	httptransport "github.com/example/court-scheduler/internal/transport/http"
	"github.com/example/court-scheduler/internal/transport/http/handler"
	"github.com/example/court-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zone, err := timeutil.Load(cfg.LocalTZ)
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	key, err := cfg.SecretKeyBytes()
	if err != nil {
		log.Fatalf("secret key: %v", err)
	}
	box, err := secretbox.New(key)
	if err != nil {
		log.Fatalf("secret key: %v", err)
	}

	scheduleRepo := postgres.NewScheduleRepository(pool)
	credRepo := postgres.NewCredentialRepository(pool)

	authClient := auth.NewClient(cfg.AuthURL, cfg.ClientID)
	tokenMgr := auth.NewManager(credRepo, box, authClient, cfg.GuardBand(), logger)

	bookingClient := booking.NewClient(cfg.BookingURL, cfg.OccupantID, zone)
	exec := scheduler.NewExecutor(scheduleRepo, tokenMgr, bookingClient, logger)

	sender := notify.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	alerter := notify.NewCredentialAlerter(sender, cfg.AlertEmail, logger)

	sched := scheduler.New(scheduleRepo, credRepo, tokenMgr, exec, alerter, logger, scheduler.Options{
		PrepLead:     cfg.PrepLead(),
		Grace:        cfg.RescueGrace(),
		SafetyMargin: cfg.RefreshSafety(),
		RetryBackoff: cfg.RefreshBackoff(),
		Workers:      cfg.WorkerCount,
	})
	tokenMgr.OnRefreshed(func(_, refreshExpiry time.Time) {
		sched.RearmRefresh(refreshExpiry)
	})

	// Token seed goes in before reconciliation so the refresh cadence is
	// armed off the fresh credential.
	if cfg.TokensPath != "" {
		if err := bootstrap.LoadTokens(ctx, cfg.TokensPath, tokenMgr, logger); err != nil {
			log.Fatalf("token seed: %v", err)
		}
	}

	if err := sched.Reconcile(ctx); err != nil {
		log.Fatalf("reconcile: %v", err)
	}
	defer sched.Stop()

	scheduleUsecase := usecase.NewScheduleUsecase(scheduleRepo, sched, zone, cfg.AdvanceWindow())
	statusUsecase := usecase.NewStatusUsecase(scheduleRepo, credRepo, cfg.GuardBand())

	if cfg.SchedulesPath != "" {
		if err := bootstrap.LoadSchedules(ctx, cfg.SchedulesPath, scheduleUsecase, logger); err != nil {
			log.Fatalf("schedule seed: %v", err)
		}
	}

	scheduleHandler := handler.NewScheduleHandler(scheduleUsecase, logger)
	statusHandler := handler.NewStatusHandler(statusUsecase, sched, logger)
	tokenHandler := handler.NewTokenHandler(tokenMgr, statusUsecase, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, scheduleHandler, statusHandler, tokenHandler, checker, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
