package calmath

import (
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// Holiday is a named non-working day.
type Holiday struct {
	Name string
	Date civil.Date
}

// rule yields the date a holiday falls on in a given year.
type rule struct {
	name string
	on   func(year int) civil.Date
}

func fixed(month time.Month, day int) func(int) civil.Date {
	return func(year int) civil.Date {
		return civil.Date{Year: year, Month: month, Day: day}
	}
}

func nth(month time.Month, wd time.Weekday, n int) func(int) civil.Date {
	return func(year int) civil.Date {
		return NthWeekday(year, month, wd, n)
	}
}

func last(month time.Month, wd time.Weekday) func(int) civil.Date {
	return func(year int) civil.Date {
		return LastWeekday(year, month, wd)
	}
}

// Holidays falling on a weekend are not moved to an observed weekday.
var federalRules = []rule{
	{"New Year's Day", fixed(time.January, 1)},
	{"Martin Luther King Jr. Day", nth(time.January, time.Monday, 3)},
	{"Presidents Day", nth(time.February, time.Monday, 3)},
	{"Memorial Day", last(time.May, time.Monday)},
	{"Independence Day", fixed(time.July, 4)},
	{"Labor Day", nth(time.September, time.Monday, 1)},
	{"Columbus Day", nth(time.October, time.Monday, 2)},
	{"Veterans Day", fixed(time.November, 11)},
	{"Thanksgiving", nth(time.November, time.Thursday, 4)},
	{"Christmas Day", fixed(time.December, 25)},
}

// NthWeekday returns the n-th (1-based) occurrence of wd in the month: the first wd on or
// after the 1st, plus n-1 weeks.
func NthWeekday(year int, month time.Month, wd time.Weekday, n int) civil.Date {
	first := civil.Date{Year: year, Month: month, Day: 1}
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDays(offset + (n-1)*7)
}

// LastWeekday returns the last occurrence of wd on or before the final day of the month.
func LastWeekday(year int, month time.Month, wd time.Weekday) civil.Date {
	end := civil.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
	offset := (int(end.Weekday()) - int(wd) + 7) % 7
	return end.AddDays(-offset)
}

// Calendar decides which days are holidays. The zero value knows only the federal rules.
type Calendar struct {
	custom map[civil.Date]string
}

// NewCalendar returns a calendar that also treats the given dates as holidays.
func NewCalendar(custom ...civil.Date) *Calendar {
	c := &Calendar{custom: make(map[civil.Date]string, len(custom))}
	for _, d := range custom {
		c.custom[d] = "Custom holiday"
	}
	return c
}

// Default is the calendar used by the package-level helpers.
var Default = &Calendar{}

// HolidayName returns the holiday falling on d, if any.
func (c *Calendar) HolidayName(d civil.Date) (string, bool) {
	for _, r := range federalRules {
		if r.on(d.Year) == d {
			return r.name, true
		}
	}
	if name, ok := c.custom[d]; ok {
		return name, true
	}
	return "", false
}

// IsHoliday reports whether d is a recognised holiday.
func (c *Calendar) IsHoliday(d civil.Date) bool {
	_, ok := c.HolidayName(d)
	return ok
}

// IsBusinessDay reports whether d is a weekday that is not a holiday.
func (c *Calendar) IsBusinessDay(d civil.Date) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(d)
}

// Holidays lists the holidays of a year in date order, custom dates included.
func (c *Calendar) Holidays(year int) []Holiday {
	out := make([]Holiday, 0, len(federalRules)+len(c.custom))
	for _, r := range federalRules {
		out = append(out, Holiday{Name: r.name, Date: r.on(year)})
	}
	for d, name := range c.custom {
		if d.Year == year {
			out = append(out, Holiday{Name: name, Date: d})
		}
	}
	slices.SortStableFunc(out, func(a, b Holiday) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// IsHoliday reports whether d is a federal holiday.
func IsHoliday(d civil.Date) bool {
	return Default.IsHoliday(d)
}

// IsBusinessDay reports whether d is a weekday that is not a federal holiday.
func IsBusinessDay(d civil.Date) bool {
	return Default.IsBusinessDay(d)
}
