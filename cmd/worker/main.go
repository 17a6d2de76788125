package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-payroll/meridian/internal/adjustment"
	"github.com/meridian-payroll/meridian/internal/app"
	"github.com/meridian-payroll/meridian/internal/calendar"
	jobmetrics "github.com/meridian-payroll/meridian/internal/jobs"
	"github.com/meridian-payroll/meridian/internal/payroll"
	"github.com/meridian-payroll/meridian/internal/payroll/dates"
	"github.com/meridian-payroll/meridian/internal/platform/cache"
	"github.com/meridian-payroll/meridian/internal/platform/db"
	"github.com/meridian-payroll/meridian/internal/shared"
	"github.com/meridian-payroll/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	metrics := jobmetrics.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool)

	calendarRepo := calendar.NewRepository(pool)
	calendarService := calendar.NewService(calendarRepo, cache.NewJSONCache(redisClient, cfg.HolidayCacheTTL))

	adjustmentRepo := adjustment.NewRepository(pool)
	datesRepo := dates.NewRepository(pool)
	datesService := dates.NewService(datesRepo, datesRepo, adjustmentRepo, calendarService, logger)

	payrollRepo := payroll.NewRepository(pool)
	payrollService := payroll.NewService(payrollRepo, datesService, auditLogger, logger)

	activationJob := jobs.NewVersionActivationJob(payrollService, logger, metrics)
	warmJob := jobs.NewHolidayWarmJob(calendarService, logger, metrics)

	activationTask, err := jobs.NewVersionActivationTask(time.Now().UTC())
	if err != nil {
		logger.Error("build activation task", slog.Any("error", err))
		os.Exit(1)
	}
	warmTask, err := jobs.NewHolidayWarmTask(cfg.DefaultCountry)
	if err != nil {
		logger.Error("build holiday warm task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskVersionActivation, Handler: activationJob.Handle},
			{Type: jobs.TaskHolidayWarm, Handler: warmJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ActivationCronSpec, Task: activationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.HolidayWarmCronSpec, Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
