// Package slots picks proposed meeting times out of free gaps. Each day is split into
// morning, midday and afternoon bands; every band contributes at most one slot, the
// earliest one that fits after rounding up to the 15-minute grid.
package slots

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"quickslot/internal/interval"
	"quickslot/internal/models"
)

const (
	// Grid is the boundary every slot start is rounded up to.
	Grid = 15 * time.Minute
	// MaxPerDay caps the slots proposed for one day.
	MaxPerDay = 3
)

// ErrInvalidDuration is returned for a meeting duration that is not positive.
var ErrInvalidDuration = errors.New("meeting duration must be positive")

// Params describes what is being scheduled.
type Params struct {
	Window         models.WorkWindow
	Duration       time.Duration
	AvoidEarlyLate bool
}

// Validate checks the duration and the unbuffered working window.
func (p Params) Validate() error {
	if p.Duration <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDuration, p.Duration)
	}
	return p.Window.Validate()
}

// FindDaySlots returns up to one slot per segment for the given day, in chronological
// order. A window that collapses after the early/late buffer yields no slots.
func FindDaySlots(date civil.Date, loc *time.Location, p Params, busy []models.BusyInterval) []models.Slot {
	if p.Duration <= 0 {
		return nil
	}
	eff, ok := p.Window.Effective(p.AvoidEarlyLate)
	if !ok {
		return nil
	}
	dayStart, dayEnd := eff.Bounds(date, loc)
	gaps := interval.DayGaps(dayStart, dayEnd, busy)

	var out []models.Slot
	for _, seg := range models.Segments {
		w, ok := seg.Window(eff)
		if !ok {
			continue
		}
		segStart, segEnd := w.Bounds(date, loc)
		if slot, ok := firstFit(gaps, segStart, segEnd, p.Duration); ok {
			out = append(out, slot)
		}
	}
	return out
}

// firstFit returns the earliest grid-aligned slot in the first gap that can hold it.
func firstFit(gaps []interval.Gap, segStart, segEnd time.Time, d time.Duration) (models.Slot, bool) {
	for _, g := range gaps {
		part, ok := g.Intersect(segStart, segEnd)
		if !ok || part.Duration() < d {
			continue
		}
		start := RoundUp(part.Start.In(segStart.Location()))
		if end := start.Add(d); !end.After(part.End) {
			return models.Slot{Start: start, End: end}, true
		}
	}
	return models.Slot{}, false
}

// RoundUp moves t forward to the next quarter hour on its wall clock. Times already on
// the grid are returned unchanged. The grid is taken from t's own zone offset, so the
// result is never before t, even in the repeated hour of a DST fall-back.
func RoundUp(t time.Time) time.Time {
	_, off := t.Zone()
	shift := time.Duration(off) * time.Second
	wall := t.Add(shift)
	floor := wall.Truncate(Grid)
	if floor.Equal(wall) {
		return t
	}
	return floor.Add(Grid - shift)
}
