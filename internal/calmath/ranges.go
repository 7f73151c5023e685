package calmath

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"

	"quickslot/internal/models"
)

var (
	// ErrNoDatesSelected is returned when an explicit date search has no dates.
	ErrNoDatesSelected = errors.New("no dates selected")
	// ErrUnboundedSearch is returned when the business-day walk exceeds MaxLookaheadDays.
	ErrUnboundedSearch = errors.New("no business days found within lookahead")
	// ErrInvalidDayCount is returned for a non-positive day count.
	ErrInvalidDayCount = errors.New("day count must be positive")
)

const (
	// CalendarWeek is the day count that means "the next seven calendar days".
	CalendarWeek = 7
	// MaxLookaheadDays caps the business-day walk at one year.
	MaxLookaheadDays = 366
)

// ResolveDateRange returns the range covering dayCount days starting tomorrow relative to
// now, in now's location. A count of CalendarWeek spans seven calendar days; any other
// count ends on the dayCount-th business day.
func (c *Calendar) ResolveDateRange(now time.Time, dayCount int) (models.DateRange, error) {
	if dayCount <= 0 {
		return models.DateRange{}, fmt.Errorf("%w: got %d", ErrInvalidDayCount, dayCount)
	}
	loc := now.Location()
	start := civil.DateOf(now).AddDays(1)

	if dayCount == CalendarWeek {
		return span(start, start.AddDays(CalendarWeek-1), loc), nil
	}

	found := 0
	day := start
	for range MaxLookaheadDays {
		if c.IsBusinessDay(day) {
			found++
			if found == dayCount {
				return span(start, day, loc), nil
			}
		}
		day = day.AddDays(1)
	}
	return models.DateRange{}, fmt.Errorf("%w: found %d of %d business days in %d days",
		ErrUnboundedSearch, found, dayCount, MaxLookaheadDays)
}

// ResolveDateRange resolves a day-count range against the federal holiday calendar.
func ResolveDateRange(now time.Time, dayCount int) (models.DateRange, error) {
	return Default.ResolveDateRange(now, dayCount)
}

// ResolveDateRangeFromDates returns the range from the earliest selected date's midnight to
// the end of the latest selected date, in loc.
func ResolveDateRangeFromDates(dates []civil.Date, loc *time.Location) (models.DateRange, error) {
	sorted, err := NormalizeDates(dates)
	if err != nil {
		return models.DateRange{}, err
	}
	return span(sorted[0], sorted[len(sorted)-1], loc), nil
}

// NormalizeDates validates a selection and returns it sorted with duplicates removed.
func NormalizeDates(dates []civil.Date) ([]civil.Date, error) {
	if len(dates) == 0 {
		return nil, ErrNoDatesSelected
	}
	out := make([]civil.Date, 0, len(dates))
	for _, d := range dates {
		if !d.IsValid() {
			return nil, fmt.Errorf("invalid date %q", d)
		}
		out = append(out, d)
	}
	slices.SortFunc(out, civil.Date.Compare)
	return slices.Compact(out), nil
}

// SearchDates enumerates the calendar days touched by r. With businessOnly set, weekends
// and holidays are left out.
func (c *Calendar) SearchDates(r models.DateRange, businessOnly bool) []civil.Date {
	var out []civil.Date
	end := civil.DateOf(r.End)
	for d := civil.DateOf(r.Start); !d.After(end); d = d.AddDays(1) {
		if businessOnly && !c.IsBusinessDay(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ParseDates parses YYYY-MM-DD strings.
func ParseDates(values []string) ([]civil.Date, error) {
	out := make([]civil.Date, 0, len(values))
	for _, v := range values {
		d, err := civil.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", v, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func span(first, last civil.Date, loc *time.Location) models.DateRange {
	return models.DateRange{
		Start: first.In(loc),
		End:   endOfDay(last, loc),
	}
}

func endOfDay(d civil.Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, int(999*time.Millisecond), loc)
}
