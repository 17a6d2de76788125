package calendar

import (
	"time"

	"github.com/google/uuid"
)

// Holiday is one public holiday observation. Reference data, read-only
// from the engine's point of view.
type Holiday struct {
	ID          uuid.UUID
	Date        time.Time
	LocalName   string
	Name        string
	CountryCode string
	Region      string
	IsFixed     bool
	IsGlobal    bool
}

// DateOnly truncates a timestamp to a UTC calendar date. All calendar
// arithmetic in the engine works on these normalised values.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Calendar is an in-memory holiday set for one country, spanning the
// years it was built for. Safe for concurrent reads.
type Calendar struct {
	countryCode string
	holidays    map[string]struct{}
}

// NewCalendar builds a calendar from holiday rows. Rows for other
// countries are ignored unless flagged global.
func NewCalendar(countryCode string, holidays []Holiday) *Calendar {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		if !h.IsGlobal && h.CountryCode != countryCode {
			continue
		}
		set[DateOnly(h.Date).Format(time.DateOnly)] = struct{}{}
	}
	return &Calendar{countryCode: countryCode, holidays: set}
}

// CountryCode reports which country the calendar was built for.
func (c *Calendar) CountryCode() string { return c.countryCode }

// IsWeekend reports whether the date falls on Saturday or Sunday.
func (c *Calendar) IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether the date is a public holiday.
func (c *Calendar) IsHoliday(d time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.holidays[DateOnly(d).Format(time.DateOnly)]
	return ok
}

// IsBusinessDay reports whether the date is neither a weekend nor a holiday.
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	return !c.IsWeekend(d) && !c.IsHoliday(d)
}

// NextBusinessDay returns the first business day on or after d.
func (c *Calendar) NextBusinessDay(d time.Time) time.Time {
	d = DateOnly(d)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PreviousBusinessDay returns the first business day on or before d.
func (c *Calendar) PreviousBusinessDay(d time.Time) time.Time {
	d = DateOnly(d)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NearestBusinessDay returns the closest business day to d. Ties
// resolve to the earlier day.
func (c *Calendar) NearestBusinessDay(d time.Time) time.Time {
	d = DateOnly(d)
	if c.IsBusinessDay(d) {
		return d
	}
	prev := c.PreviousBusinessDay(d)
	next := c.NextBusinessDay(d)
	if d.Sub(prev) <= next.Sub(d) {
		return prev
	}
	return next
}

// AddBusinessDays moves n business days forward (or backward when n is
// negative) from d. The result always lands on a business day; when n
// is zero the nearest earlier business day is returned.
func (c *Calendar) AddBusinessDays(d time.Time, n int) time.Time {
	d = DateOnly(d)
	if n == 0 {
		return c.PreviousBusinessDay(d)
	}
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for n > 0 {
		d = d.AddDate(0, 0, step)
		if c.IsBusinessDay(d) {
			n--
		}
	}
	return d
}

// LastBusinessDayOfMonth returns the final business day in the month
// containing d.
func (c *Calendar) LastBusinessDayOfMonth(d time.Time) time.Time {
	eom := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	return c.PreviousBusinessDay(eom)
}

// FirstBusinessDayOfMonth returns the first business day in the month
// containing d.
func (c *Calendar) FirstBusinessDayOfMonth(d time.Time) time.Time {
	som := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return c.NextBusinessDay(som)
}
