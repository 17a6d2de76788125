package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-payroll/meridian/internal/adjustment"
	"github.com/meridian-payroll/meridian/internal/app"
	"github.com/meridian-payroll/meridian/internal/assignment"
	"github.com/meridian-payroll/meridian/internal/calendar"
	"github.com/meridian-payroll/meridian/internal/observability"
	"github.com/meridian-payroll/meridian/internal/payroll"
	"github.com/meridian-payroll/meridian/internal/payroll/dates"
	"github.com/meridian-payroll/meridian/internal/platform/cache"
	"github.com/meridian-payroll/meridian/internal/platform/db"
	"github.com/meridian-payroll/meridian/internal/shared"
	"github.com/meridian-payroll/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, holiday cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	calendarRepo := calendar.NewRepository(pool)
	calendarService := calendar.NewService(calendarRepo, cache.NewJSONCache(redisClient, cfg.HolidayCacheTTL))

	adjustmentRepo := adjustment.NewRepository(pool)

	datesRepo := dates.NewRepository(pool)
	datesService := dates.NewService(datesRepo, datesRepo, adjustmentRepo, calendarService, logger)

	payrollRepo := payroll.NewRepository(pool)
	payrollService := payroll.NewService(payrollRepo, datesService, auditLogger, logger)

	assignmentRepo := assignment.NewRepository(pool)
	assignmentService := assignment.NewService(assignmentRepo, logger)

	payrollHandler := payroll.NewHandler(logger, payrollService, metrics)
	datesHandler := dates.NewHandler(logger, datesService, metrics)
	assignmentHandler := assignment.NewHandler(logger, assignmentService, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PayrollHandler:    payrollHandler,
		DatesHandler:      datesHandler,
		AssignmentHandler: assignmentHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
