package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskVersionActivation sweeps pending payroll versions whose go-live date arrived.
	TaskVersionActivation = "payroll:versions:activate"
	// TaskHolidayWarm pre-populates holiday calendar caches.
	TaskHolidayWarm = "calendar:holidays:warm"
)

// VersionActivationPayload carries scheduling metadata for the activation sweep.
type VersionActivationPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewVersionActivationTask constructs an Asynq task for the activation sweep.
func NewVersionActivationTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(VersionActivationPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVersionActivation, body, asynq.Queue(QueueDefault)), nil
}

// HolidayWarmPayload selects which calendars to warm.
type HolidayWarmPayload struct {
	CountryCode string `json:"country_code"`
	Years       []int  `json:"years,omitempty"`
}

// NewHolidayWarmTask constructs an Asynq task for calendar warmup.
func NewHolidayWarmTask(countryCode string, years ...int) (*asynq.Task, error) {
	body, err := json.Marshal(HolidayWarmPayload{CountryCode: countryCode, Years: years})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHolidayWarm, body, asynq.Queue(QueueDefault)), nil
}
