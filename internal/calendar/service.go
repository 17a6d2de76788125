package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-payroll/meridian/internal/platform/cache"
)

// RepositoryPort defines holiday lookups needed by the service.
type RepositoryPort interface {
	ListByCountryRange(ctx context.Context, countryCode string, from, to time.Time) ([]Holiday, error)
}

// Service loads holiday calendars, caching per country and year span.
type Service struct {
	repo  RepositoryPort
	cache *cache.JSONCache
}

// NewService builds a calendar service. The cache may be nil.
func NewService(repo RepositoryPort, jsonCache *cache.JSONCache) *Service {
	return &Service{repo: repo, cache: jsonCache}
}

// CalendarFor returns the holiday calendar covering every year touched
// by [from, to] for the given country.
func (s *Service) CalendarFor(ctx context.Context, countryCode string, from, to time.Time) (*Calendar, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("calendar: repository not configured")
	}
	if to.Before(from) {
		from, to = to, from
	}
	// Whole-year window so cache entries are reusable across requests.
	spanFrom := time.Date(from.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	spanTo := time.Date(to.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)

	key := fmt.Sprintf("calendar:%s:%d:%d", countryCode, from.Year(), to.Year())
	var holidays []Holiday
	err := s.cache.FetchJSON(ctx, key, &holidays, func(ctx context.Context) (any, error) {
		return s.repo.ListByCountryRange(ctx, countryCode, spanFrom, spanTo)
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: load holidays %s: %w", countryCode, err)
	}
	return NewCalendar(countryCode, holidays), nil
}

// Warm preloads the cache for a country and year. Used by the nightly
// warm-up job ahead of date-generation traffic.
func (s *Service) Warm(ctx context.Context, countryCode string, year int) error {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	_, err := s.CalendarFor(ctx, countryCode, from, to)
	return err
}
