package adjustment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-payroll/meridian/internal/calendar"
)

// RuleCode enumerates the supported adjustment strategies. The set is
// closed: an unrecognised code in reference data is a configuration
// error, never silently treated as "no adjustment".
type RuleCode string

const (
	// RulePrevious moves to the nearest earlier business day.
	RulePrevious RuleCode = "previous"
	// RuleNext moves to the nearest later business day.
	RuleNext RuleCode = "next"
	// RuleNearest moves to the closest business day, earlier on ties.
	RuleNearest RuleCode = "nearest"
	// RuleNone leaves the date untouched even on weekends/holidays.
	RuleNone RuleCode = "none"
)

// Rule maps a (cycle, date type) pair to an adjustment strategy.
// Unique per pair. Reference data.
type Rule struct {
	ID              uuid.UUID
	CycleID         uuid.UUID
	DateTypeID      uuid.UUID
	RuleCode        RuleCode
	RuleDescription string
}

// ErrRuleNotFound indicates no rule is configured for a cycle/date-type pair.
var ErrRuleNotFound = errors.New("adjustment: rule not found")

// ErrUnknownRuleCode indicates reference data carries a code outside the closed set.
var ErrUnknownRuleCode = errors.New("adjustment: unknown rule code")

// Apply shifts a raw date off weekends and holidays according to the
// rule. Applying to an already-valid business date is a no-op, so the
// operation is idempotent.
func Apply(cal *calendar.Calendar, code RuleCode, d time.Time) (time.Time, error) {
	d = calendar.DateOnly(d)
	switch code {
	case RuleNone:
		return d, nil
	case RulePrevious:
		return cal.PreviousBusinessDay(d), nil
	case RuleNext:
		return cal.NextBusinessDay(d), nil
	case RuleNearest:
		return cal.NearestBusinessDay(d), nil
	default:
		return time.Time{}, ErrUnknownRuleCode
	}
}
