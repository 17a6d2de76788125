// Package dates implements the payroll date generation engine: it turns
// a payroll's cycle and date-type configuration into the concrete
// calendar of EFT dates and processing deadlines.
package dates

import (
	"errors"
	"fmt"
	"time"

	"github.com/meridian-payroll/meridian/internal/adjustment"
	"github.com/meridian-payroll/meridian/internal/calendar"
	"github.com/meridian-payroll/meridian/internal/payroll"
)

// HardDateCap bounds a single generation run regardless of the caller's
// maxDates, so a misconfigured cycle cannot run away.
const HardDateCap = 366

var (
	// ErrUnsupportedCombination indicates the cycle/date-type pair has no
	// defined recurrence semantics.
	ErrUnsupportedCombination = errors.New("dates: unsupported cycle/date-type combination")
	// ErrInvalidDateValue indicates the date value is outside the range
	// the date type accepts.
	ErrInvalidDateValue = errors.New("dates: invalid date value")
	// ErrInvalidRange indicates the requested range is empty or reversed.
	ErrInvalidRange = errors.New("dates: range end before range start")
)

// Input carries everything the engine needs; all reference data is
// pre-fetched so generation itself is a pure computation.
type Input struct {
	Cycle                   payroll.CycleName
	DateType                payroll.DateTypeName
	DateValue               int
	RangeStart              time.Time
	RangeEnd                time.Time
	MaxDates                int
	ProcessingDaysBeforeEFT int
	Rule                    adjustment.RuleCode
	Calendar                *calendar.Calendar
}

// Generated is one computed occurrence before persistence.
type Generated struct {
	OriginalEFTDate time.Time
	AdjustedEFTDate time.Time
	ProcessingDate  time.Time
}

// Generate computes the ordered pay-run dates inside [RangeStart,
// RangeEnd]. The second return reports whether the run was truncated by
// MaxDates (or the hard cap) before the range was exhausted.
func Generate(in Input) ([]Generated, bool, error) {
	start := calendar.DateOnly(in.RangeStart)
	end := calendar.DateOnly(in.RangeEnd)
	if end.Before(start) {
		return nil, false, ErrInvalidRange
	}
	max := in.MaxDates
	if max <= 0 || max > HardDateCap {
		max = HardDateCap
	}

	raws, truncated, err := rawOccurrences(in, start, end, max)
	if err != nil {
		return nil, false, err
	}

	out := make([]Generated, 0, len(raws))
	for _, raw := range raws {
		adjusted, err := adjustment.Apply(in.Calendar, in.Rule, raw)
		if err != nil {
			return nil, false, fmt.Errorf("dates: adjust %s: %w", raw.Format(time.DateOnly), err)
		}
		processing := in.Calendar.AddBusinessDays(adjusted, -in.ProcessingDaysBeforeEFT)
		out = append(out, Generated{
			OriginalEFTDate: raw,
			AdjustedEFTDate: adjusted,
			ProcessingDate:  processing,
		})
	}
	return out, truncated, nil
}

func rawOccurrences(in Input, start, end time.Time, max int) ([]time.Time, bool, error) {
	switch in.Cycle {
	case payroll.CycleWeekly:
		return weekdayOccurrences(in, start, end, max, 7)
	case payroll.CycleFortnightly:
		return weekdayOccurrences(in, start, end, max, 14)
	case payroll.CycleMonthly:
		return monthlyOccurrences(in, start, end, max, 1)
	case payroll.CycleBiMonthly:
		return monthlyOccurrences(in, start, end, max, 2)
	case payroll.CycleQuarterly:
		return monthlyOccurrences(in, start, end, max, 3)
	default:
		return nil, false, fmt.Errorf("%w: cycle %q", ErrUnsupportedCombination, in.Cycle)
	}
}

// weekdayOccurrences handles weekly and fortnightly cycles. The phase is
// anchored to the first matching weekday on or after the range start and
// advances by a fixed day step, so month boundaries cannot drift it.
func weekdayOccurrences(in Input, start, end time.Time, max, stepDays int) ([]time.Time, bool, error) {
	if in.DateType != payroll.DateTypeDayOfWeek {
		return nil, false, fmt.Errorf("%w: cycle %q with date type %q", ErrUnsupportedCombination, in.Cycle, in.DateType)
	}
	if in.DateValue < 1 || in.DateValue > 7 {
		return nil, false, fmt.Errorf("%w: weekday %d", ErrInvalidDateValue, in.DateValue)
	}
	d := start
	for isoWeekday(d) != in.DateValue {
		d = d.AddDate(0, 0, 1)
	}
	var out []time.Time
	for !d.After(end) {
		if len(out) == max {
			return out, true, nil
		}
		out = append(out, d)
		d = d.AddDate(0, 0, stepDays)
	}
	return out, false, nil
}

// monthlyOccurrences handles month-stepped cycles. Iteration is indexed
// by month, so a month without a valid occurrence (e.g. no 5th Friday)
// is skipped without shifting the phase of later months.
func monthlyOccurrences(in Input, start, end time.Time, max, stepMonths int) ([]time.Time, bool, error) {
	if err := validateMonthlyDateValue(in); err != nil {
		return nil, false, err
	}
	var out []time.Time
	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(end) {
		raw, ok := monthOccurrence(in, month)
		if ok && !raw.Before(start) && !raw.After(end) {
			if len(out) == max {
				return out, true, nil
			}
			out = append(out, raw)
		}
		month = month.AddDate(0, stepMonths, 0)
	}
	return out, false, nil
}

func validateMonthlyDateValue(in Input) error {
	switch in.DateType {
	case payroll.DateTypeFixedDate:
		if in.DateValue < 1 || in.DateValue > 31 {
			return fmt.Errorf("%w: day of month %d", ErrInvalidDateValue, in.DateValue)
		}
	case payroll.DateTypeNthWeekday:
		n, wd := in.DateValue/10, in.DateValue%10
		if n < 1 || n > 5 || wd < 1 || wd > 7 {
			return fmt.Errorf("%w: nth weekday %d", ErrInvalidDateValue, in.DateValue)
		}
	case payroll.DateTypeFirstBusinessDay, payroll.DateTypeLastBusinessDay:
		// no date value required
	default:
		return fmt.Errorf("%w: cycle %q with date type %q", ErrUnsupportedCombination, in.Cycle, in.DateType)
	}
	return nil
}

// monthOccurrence resolves the raw date inside one month. ok is false
// when the month has no valid occurrence.
func monthOccurrence(in Input, monthStart time.Time) (time.Time, bool) {
	switch in.DateType {
	case payroll.DateTypeFixedDate:
		day := in.DateValue
		if last := daysInMonth(monthStart); day > last {
			day = last
		}
		return time.Date(monthStart.Year(), monthStart.Month(), day, 0, 0, 0, 0, time.UTC), true
	case payroll.DateTypeFirstBusinessDay:
		return in.Calendar.FirstBusinessDayOfMonth(monthStart), true
	case payroll.DateTypeLastBusinessDay:
		return in.Calendar.LastBusinessDayOfMonth(monthStart), true
	case payroll.DateTypeNthWeekday:
		n, wd := in.DateValue/10, in.DateValue%10
		d := monthStart
		for isoWeekday(d) != wd {
			d = d.AddDate(0, 0, 1)
		}
		d = d.AddDate(0, 0, 7*(n-1))
		if d.Month() != monthStart.Month() {
			return time.Time{}, false
		}
		return d, true
	default:
		return time.Time{}, false
	}
}

func daysInMonth(monthStart time.Time) int {
	return time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}

// isoWeekday maps Go weekdays to ISO numbering (Monday=1..Sunday=7).
func isoWeekday(d time.Time) int {
	wd := int(d.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
