package adjustment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-payroll/meridian/internal/calendar"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testCalendar() *calendar.Calendar {
	return calendar.NewCalendar("AU", []calendar.Holiday{
		{Date: day(2025, time.January, 1), Name: "New Year's Day", CountryCode: "AU"},
		{Date: day(2025, time.December, 25), Name: "Christmas Day", CountryCode: "AU"},
		{Date: day(2025, time.December, 26), Name: "Boxing Day", CountryCode: "AU"},
	})
}

func TestApply(t *testing.T) {
	cal := testCalendar()
	saturday := day(2025, time.August, 16)

	tests := []struct {
		name string
		code RuleCode
		in   time.Time
		want time.Time
	}{
		{"previous moves back to friday", RulePrevious, saturday, day(2025, time.August, 15)},
		{"next moves forward to monday", RuleNext, saturday, day(2025, time.August, 18)},
		{"nearest prefers the closer friday", RuleNearest, saturday, day(2025, time.August, 15)},
		{"none leaves the weekend date", RuleNone, saturday, saturday},
		{"previous skips stacked holidays", RulePrevious, day(2025, time.December, 26), day(2025, time.December, 24)},
		{"next clears the christmas break", RuleNext, day(2025, time.December, 25), day(2025, time.December, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(cal, tt.code, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	cal := testCalendar()
	for _, code := range []RuleCode{RulePrevious, RuleNext, RuleNearest, RuleNone} {
		first, err := Apply(cal, code, day(2025, time.August, 17))
		require.NoError(t, err)
		second, err := Apply(cal, code, first)
		require.NoError(t, err)
		assert.Equal(t, first, second, "rule %s", code)
	}
}

func TestApplyBusinessDayUntouched(t *testing.T) {
	cal := testCalendar()
	wednesday := day(2025, time.August, 13)
	for _, code := range []RuleCode{RulePrevious, RuleNext, RuleNearest, RuleNone} {
		got, err := Apply(cal, code, wednesday)
		require.NoError(t, err)
		assert.Equal(t, wednesday, got, "rule %s", code)
	}
}

func TestApplyRejectsUnknownCode(t *testing.T) {
	_, err := Apply(testCalendar(), RuleCode("closest"), day(2025, time.August, 16))
	assert.ErrorIs(t, err, ErrUnknownRuleCode)
}
