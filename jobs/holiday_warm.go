package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-payroll/meridian/internal/calendar"
	jobmetrics "github.com/meridian-payroll/meridian/internal/jobs"
)

// HolidayWarmJob pre-populates holiday calendar caches ahead of date generation.
type HolidayWarmJob struct {
	Calendars *calendar.Service
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewHolidayWarmJob wires dependencies for the warmup handler.
func NewHolidayWarmJob(calendarSvc *calendar.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *HolidayWarmJob {
	return &HolidayWarmJob{
		Calendars: calendarSvc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes calendar warmup tasks.
func (j *HolidayWarmJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Calendars == nil {
		return errors.New("holiday warm: handler not configured")
	}
	var payload HolidayWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.CountryCode == "" {
		return asynq.SkipRetry
	}
	years := payload.Years
	if len(years) == 0 {
		current := j.now().Year()
		years = []int{current, current + 1}
	}

	tracker := j.metrics().Track(TaskHolidayWarm)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("country", payload.CountryCode))
	logger.Info("starting holiday warmup", slog.Any("years", years))

	for _, year := range years {
		warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		err := j.Calendars.Warm(warmCtx, payload.CountryCode, year)
		cancel()
		if err != nil {
			resultErr = err
			logger.Error("warm calendar", slog.Int("year", year), slog.Any("error", err))
			return resultErr
		}
	}

	logger.Info("completed holiday warmup", slog.Int("years", len(years)))
	return resultErr
}

func (j *HolidayWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskHolidayWarm))
	}
	return slog.Default().With(slog.String("job", TaskHolidayWarm))
}

func (j *HolidayWarmJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *HolidayWarmJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
