package dates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-payroll/meridian/internal/adjustment"
	"github.com/meridian-payroll/meridian/internal/calendar"
	"github.com/meridian-payroll/meridian/internal/payroll"
)

// defaultWindow is the generation horizon applied when the caller gives
// no end date.
const defaultWindow = 12 // months

// ConfigSource resolves a payroll's generation configuration.
type ConfigSource interface {
	GetConfig(ctx context.Context, payrollID uuid.UUID) (*Config, error)
}

// StorePort persists generated dates.
type StorePort interface {
	ReplaceWindow(ctx context.Context, payrollID uuid.UUID, from, to time.Time, generated []Generated) ([]payroll.PayrollDate, error)
	ListDates(ctx context.Context, payrollID uuid.UUID, from time.Time) ([]payroll.PayrollDate, error)
}

// RuleSource resolves adjustment rules for cycle/date-type pairs.
type RuleSource interface {
	FindRule(ctx context.Context, cycleID, dateTypeID uuid.UUID) (*adjustment.Rule, error)
}

// CalendarSource loads holiday calendars.
type CalendarSource interface {
	CalendarFor(ctx context.Context, countryCode string, from, to time.Time) (*calendar.Calendar, error)
}

// Service drives the engine against live payroll configuration and
// persists the result.
type Service struct {
	configs   ConfigSource
	store     StorePort
	rules     RuleSource
	calendars CalendarSource
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the generation service.
func NewService(configs ConfigSource, store StorePort, rules RuleSource, calendars CalendarSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{configs: configs, store: store, rules: rules, calendars: calendars, logger: logger, now: time.Now}
}

// GenerateRequest is the caller-facing generation request. Nil dates
// default to [today, today+12 months].
type GenerateRequest struct {
	PayrollID uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	MaxDates  int
}

// GenerateResult reports the persisted dates and whether the run was
// truncated by the date cap. Truncation is an expected condition, not
// an error.
type GenerateResult struct {
	Dates     []payroll.PayrollDate `json:"dates"`
	Truncated bool                  `json:"truncated"`
}

// Generate computes and persists the payroll's dates for the requested
// window. Regeneration over an existing window upserts by original EFT
// date, preserving any consultant assignments attached to kept dates.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	cfg, err := s.configs.GetConfig(ctx, req.PayrollID)
	if err != nil {
		return nil, err
	}

	start := calendar.DateOnly(s.now())
	if req.StartDate != nil {
		start = calendar.DateOnly(*req.StartDate)
	}
	end := start.AddDate(0, defaultWindow, 0)
	if req.EndDate != nil {
		end = calendar.DateOnly(*req.EndDate)
	}

	rule, err := s.rules.FindRule(ctx, cfg.CycleID, cfg.DateTypeID)
	if err != nil {
		return nil, fmt.Errorf("dates: rule for cycle %q date type %q: %w", cfg.Cycle, cfg.DateType, err)
	}
	cal, err := s.calendars.CalendarFor(ctx, cfg.CountryCode, start, end)
	if err != nil {
		return nil, err
	}

	dateValue := 0
	if cfg.DateValue != nil {
		dateValue = *cfg.DateValue
	}
	generated, truncated, err := Generate(Input{
		Cycle:                   cfg.Cycle,
		DateType:                cfg.DateType,
		DateValue:               dateValue,
		RangeStart:              start,
		RangeEnd:                end,
		MaxDates:                req.MaxDates,
		ProcessingDaysBeforeEFT: cfg.ProcessingDaysBeforeEFT,
		Rule:                    rule.RuleCode,
		Calendar:                cal,
	})
	if err != nil {
		return nil, err
	}

	saved, err := s.store.ReplaceWindow(ctx, req.PayrollID, start, end, generated)
	if err != nil {
		return nil, err
	}
	s.logger.Info("generated payroll dates",
		slog.String("payroll_id", req.PayrollID.String()),
		slog.Int("count", len(saved)),
		slog.Bool("truncated", truncated))
	return &GenerateResult{Dates: saved, Truncated: truncated}, nil
}

// RegenerateForPayroll rebuilds a payroll's dates from the given day
// over the default horizon. Used by the version manager after a version
// goes live.
func (s *Service) RegenerateForPayroll(ctx context.Context, payrollID uuid.UUID, from time.Time) (int, error) {
	from = calendar.DateOnly(from)
	result, err := s.Generate(ctx, GenerateRequest{PayrollID: payrollID, StartDate: &from})
	if err != nil {
		return 0, err
	}
	return len(result.Dates), nil
}
