package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-payroll/meridian/internal/platform/cache"
)

type fakeHolidayRepo struct {
	holidays []Holiday
	calls    int
}

func (f *fakeHolidayRepo) ListByCountryRange(ctx context.Context, countryCode string, from, to time.Time) ([]Holiday, error) {
	f.calls++
	var out []Holiday
	for _, h := range f.holidays {
		if h.CountryCode != countryCode && !h.IsGlobal {
			continue
		}
		if h.Date.Before(from) || h.Date.After(to) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func newTestCache(t *testing.T) *cache.JSONCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewJSONCache(client, time.Hour)
}

func TestCalendarForCachesPerCountryAndYearSpan(t *testing.T) {
	repo := &fakeHolidayRepo{holidays: []Holiday{
		{Date: day(2025, time.January, 1), Name: "New Year's Day", CountryCode: "AU"},
		{Date: day(2025, time.April, 18), Name: "Good Friday", CountryCode: "AU"},
	}}
	svc := NewService(repo, newTestCache(t))
	ctx := context.Background()

	cal, err := svc.CalendarFor(ctx, "AU", day(2025, time.March, 1), day(2025, time.June, 30))
	require.NoError(t, err)
	// The span is widened to whole years, so a holiday outside the
	// requested window is still visible.
	assert.True(t, cal.IsHoliday(day(2025, time.January, 1)))
	assert.Equal(t, 1, repo.calls)

	// Second request in the same year span hits the cache.
	cal, err = svc.CalendarFor(ctx, "AU", day(2025, time.July, 1), day(2025, time.September, 30))
	require.NoError(t, err)
	assert.True(t, cal.IsHoliday(day(2025, time.April, 18)))
	assert.Equal(t, 1, repo.calls)

	// A span crossing into 2026 is a distinct cache entry.
	_, err = svc.CalendarFor(ctx, "AU", day(2025, time.November, 1), day(2026, time.February, 28))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestCalendarForWithoutCache(t *testing.T) {
	repo := &fakeHolidayRepo{holidays: []Holiday{
		{Date: day(2025, time.December, 25), Name: "Christmas Day", CountryCode: "AU"},
	}}
	svc := NewService(repo, nil)

	cal, err := svc.CalendarFor(context.Background(), "AU", day(2025, time.December, 1), day(2025, time.December, 31))
	require.NoError(t, err)
	assert.True(t, cal.IsHoliday(day(2025, time.December, 25)))

	_, err = svc.CalendarFor(context.Background(), "AU", day(2025, time.December, 1), day(2025, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestCalendarForSwapsReversedRange(t *testing.T) {
	repo := &fakeHolidayRepo{}
	svc := NewService(repo, nil)

	_, err := svc.CalendarFor(context.Background(), "AU", day(2025, time.June, 30), day(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
}

func TestWarmPopulatesCache(t *testing.T) {
	repo := &fakeHolidayRepo{holidays: []Holiday{
		{Date: day(2026, time.January, 26), Name: "Australia Day", CountryCode: "AU"},
	}}
	svc := NewService(repo, newTestCache(t))
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx, "AU", 2026))
	assert.Equal(t, 1, repo.calls)

	cal, err := svc.CalendarFor(ctx, "AU", day(2026, time.January, 1), day(2026, time.December, 31))
	require.NoError(t, err)
	assert.True(t, cal.IsHoliday(day(2026, time.January, 26)))
	assert.Equal(t, 1, repo.calls)
}
