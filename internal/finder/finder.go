// Package finder runs a complete availability search: it resolves the dates to search,
// gathers busy time from every configured source, and hands the pooled intervals to the
// slot selector.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"cloud.google.com/go/civil"

	"quickslot/internal/attendees"
	"quickslot/internal/calmath"
	"quickslot/internal/models"
	"quickslot/internal/slots"
)

// ErrDateInPast is returned when an explicitly selected date is before today.
var ErrDateInPast = errors.New("selected date is in the past")

// BusySource supplies busy intervals per attendee for a date range.
type BusySource interface {
	Name() string
	QueryBusy(ctx context.Context, attendees []string, r models.DateRange) (map[string][]models.BusyInterval, error)
}

// Request describes one search. When Dates is set it takes precedence over DayCount.
type Request struct {
	Attendees []string
	Params    slots.Params
	DayCount  int
	Dates     []civil.Date
}

// Result is the outcome of a search. An empty Buckets is a valid "no availability" result.
type Result struct {
	Range    models.DateRange
	Searched []civil.Date
	Buckets  models.DayBuckets
}

// Finder orchestrates availability searches.
type Finder struct {
	logger   *slog.Logger
	sources  []BusySource
	calendar *calmath.Calendar
	loc      *time.Location
	now      func() time.Time
}

// NewFinder creates a new Finder. A nil calendar uses the federal holidays only.
func NewFinder(logger *slog.Logger, sources []BusySource, cal *calmath.Calendar, loc *time.Location) (*Finder, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one busy source is required")
	}
	if cal == nil {
		cal = calmath.Default
	}
	if loc == nil {
		loc = time.Local
	}
	return &Finder{
		logger:   logger,
		sources:  sources,
		calendar: cal,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// WithClock replaces the clock used to resolve "tomorrow".
func (f *Finder) WithClock(now func() time.Time) *Finder {
	f.now = now
	return f
}

// Find performs a search.
func (f *Finder) Find(ctx context.Context, req Request) (*Result, error) {
	if err := attendees.Validate(req.Attendees); err != nil {
		return nil, fmt.Errorf("invalid attendees: %w", err)
	}
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}

	rng, dates, err := f.resolve(req)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Searching for availability.", "range", rng.String(), "days", len(dates), "attendees", len(req.Attendees))

	busy, err := f.gatherBusy(ctx, req.Attendees, rng)
	if err != nil {
		return nil, err
	}

	buckets := slots.Collect(dates, f.loc, req.Params, busy)
	f.logger.Info("Search finished.", "slots", buckets.Count(), "daysWithSlots", len(buckets.Days()))

	return &Result{Range: rng, Searched: dates, Buckets: buckets}, nil
}

// resolve picks the range to query and the days to search. A day-count search skips
// weekends and holidays; an explicit selection searches every selected day.
func (f *Finder) resolve(req Request) (models.DateRange, []civil.Date, error) {
	if len(req.Dates) > 0 {
		dates, err := calmath.NormalizeDates(req.Dates)
		if err != nil {
			return models.DateRange{}, nil, err
		}
		today := civil.DateOf(f.now().In(f.loc))
		if dates[0].Before(today) {
			return models.DateRange{}, nil, fmt.Errorf("%w: %s", ErrDateInPast, dates[0])
		}
		rng, err := calmath.ResolveDateRangeFromDates(dates, f.loc)
		if err != nil {
			return models.DateRange{}, nil, err
		}
		return rng, dates, nil
	}

	rng, err := f.calendar.ResolveDateRange(f.now().In(f.loc), req.DayCount)
	if err != nil {
		return models.DateRange{}, nil, fmt.Errorf("failed to resolve date range: %w", err)
	}
	return rng, f.calendar.SearchDates(rng, true), nil
}

// gatherBusy queries every source and pools the results. Any failing source fails the
// search.
func (f *Finder) gatherBusy(ctx context.Context, emails []string, rng models.DateRange) ([]models.BusyInterval, error) {
	var pooled []models.BusyInterval
	for _, src := range f.sources {
		byAttendee, err := src.QueryBusy(ctx, emails, rng)
		if err != nil {
			return nil, fmt.Errorf("busy source %s: %w", src.Name(), err)
		}
		f.logger.Debug("Fetched busy time.", "source", src.Name(), "calendars", len(byAttendee))
		pooled = append(pooled, Pool(byAttendee)...)
	}
	return pooled, nil
}

// Pool flattens per-attendee busy lists into one list. Attendees are visited in sorted
// order so the result is deterministic.
func Pool(byAttendee map[string][]models.BusyInterval) []models.BusyInterval {
	keys := make([]string, 0, len(byAttendee))
	for k := range byAttendee {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []models.BusyInterval
	for _, k := range keys {
		out = append(out, byAttendee[k]...)
	}
	return out
}
