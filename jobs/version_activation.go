package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-payroll/meridian/internal/jobs"
	"github.com/meridian-payroll/meridian/internal/payroll"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// VersionActivationJob sweeps pending payroll versions whose go-live date has arrived.
type VersionActivationJob struct {
	Payrolls *payroll.Service
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewVersionActivationJob wires dependencies for the activation handler.
func NewVersionActivationJob(payrollSvc *payroll.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *VersionActivationJob {
	return &VersionActivationJob{
		Payrolls: payrollSvc,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes activation sweep tasks.
func (j *VersionActivationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Payrolls == nil {
		return errors.New("version activation: handler not configured")
	}
	var payload VersionActivationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskVersionActivation)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	asOf := j.now()
	logger := j.logger().With(slog.Time("as_of", asOf))
	logger.Info("starting version activation sweep")

	results, err := j.Payrolls.ActivatePendingVersions(ctx, asOf)
	if err != nil {
		resultErr = err
		logger.Error("activation sweep", slog.Any("error", err))
		return resultErr
	}

	activated := 0
	failed := 0
	for _, res := range results {
		switch res.ActionTaken {
		case payroll.ActivationActivated:
			activated++
		case payroll.ActivationError:
			failed++
			logger.Warn("family activation failed",
				slog.String("payroll_id", res.PayrollID.String()),
				slog.Int("version", res.VersionNumber),
				slog.String("error", res.Error))
		}
	}
	if failed > 0 {
		resultErr = errors.New("version activation: one or more families failed")
	}

	logger.Info("completed version activation sweep",
		slog.Int("families", len(results)),
		slog.Int("activated", activated),
		slog.Int("failed", failed))
	return resultErr
}

func (j *VersionActivationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskVersionActivation))
	}
	return slog.Default().With(slog.String("job", TaskVersionActivation))
}

func (j *VersionActivationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *VersionActivationJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
