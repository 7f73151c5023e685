package models

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// ErrInvalidWorkWindow is returned when a working-hour window is outside a day or empty.
var ErrInvalidWorkWindow = errors.New("invalid work window")

// BusyInterval is a span during which at least one attendee is unavailable.
// Intervals from different attendees are pooled; the owner is not tracked.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the interval intersects [start, end).
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && b.End.After(start)
}

// Slot is a proposed meeting time. End - Start always equals the requested duration.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the slot.
func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// DateRange is the inclusive span queried from the free/busy sources.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s - %s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// WorkWindow is the daily working-hour window in decimal hours (9.5 == 09:30).
type WorkWindow struct {
	StartHour float64
	EndHour   float64
}

// Validate checks that the window lies within a single day and is not empty.
func (w WorkWindow) Validate() error {
	if math.IsNaN(w.StartHour) || math.IsNaN(w.EndHour) {
		return fmt.Errorf("%w: hours must be numbers", ErrInvalidWorkWindow)
	}
	if w.StartHour < 0 || w.EndHour > 24 {
		return fmt.Errorf("%w: %s must be within 0-24", ErrInvalidWorkWindow, w)
	}
	if w.EndHour <= w.StartHour {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidWorkWindow, w)
	}
	return nil
}

// BufferHours is trimmed from both ends of the window when early/late times are avoided.
const BufferHours = 0.5

// Effective returns the window narrowed by BufferHours at each end when avoidEarlyLate is
// set. ok is false when the narrowed window is empty.
func (w WorkWindow) Effective(avoidEarlyLate bool) (eff WorkWindow, ok bool) {
	eff = w
	if avoidEarlyLate {
		eff.StartHour += BufferHours
		eff.EndHour -= BufferHours
	}
	return eff, eff.EndHour > eff.StartHour
}

// Bounds returns the window's instants on the given calendar day. Fractional hours are
// converted to whole minutes on the wall clock, so DST transitions do not shift them.
func (w WorkWindow) Bounds(date civil.Date, loc *time.Location) (start, end time.Time) {
	return AtHour(date, w.StartHour, loc), AtHour(date, w.EndHour, loc)
}

func (w WorkWindow) String() string {
	return fmt.Sprintf("%s-%s", formatHour(w.StartHour), formatHour(w.EndHour))
}

// AtHour returns the wall-clock instant at a decimal hour of the given day.
func AtHour(date civil.Date, hour float64, loc *time.Location) time.Time {
	minutes := int(math.Round(hour * 60))
	return time.Date(date.Year, date.Month, date.Day, 0, minutes, 0, 0, loc)
}

func formatHour(h float64) string {
	minutes := int(math.Round(h * 60))
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Segment is a time-of-day band used to spread proposals across the day.
type Segment int

const (
	Morning Segment = iota
	Midday
	Afternoon
)

// Segment boundaries in decimal hours.
const (
	MiddayStartHour    = 12.0
	AfternoonStartHour = 15.0
)

// Segments lists the bands in day order.
var Segments = []Segment{Morning, Midday, Afternoon}

func (s Segment) String() string {
	switch s {
	case Morning:
		return "morning"
	case Midday:
		return "midday"
	case Afternoon:
		return "afternoon"
	default:
		return fmt.Sprintf("segment(%d)", int(s))
	}
}

// Window returns the part of w covered by the segment. ok is false when that part is empty.
func (s Segment) Window(w WorkWindow) (seg WorkWindow, ok bool) {
	switch s {
	case Morning:
		seg = WorkWindow{StartHour: w.StartHour, EndHour: math.Min(MiddayStartHour, w.EndHour)}
	case Midday:
		seg = WorkWindow{StartHour: math.Max(MiddayStartHour, w.StartHour), EndHour: math.Min(AfternoonStartHour, w.EndHour)}
	case Afternoon:
		seg = WorkWindow{StartHour: math.Max(AfternoonStartHour, w.StartHour), EndHour: w.EndHour}
	default:
		return WorkWindow{}, false
	}
	return seg, seg.StartHour < seg.EndHour
}

// DayBuckets groups proposed slots by calendar day. Map iteration order carries no
// meaning; use Days for chronological order.
type DayBuckets map[civil.Date][]Slot

// Days returns the keys that hold at least one slot, earliest first.
func (b DayBuckets) Days() []civil.Date {
	days := make([]civil.Date, 0, len(b))
	for d, s := range b {
		if len(s) > 0 {
			days = append(days, d)
		}
	}
	slices.SortFunc(days, civil.Date.Compare)
	return days
}

// Count returns the total number of slots across all days.
func (b DayBuckets) Count() int {
	n := 0
	for _, s := range b {
		n += len(s)
	}
	return n
}
