// Package interval merges pooled busy intervals and derives the free gaps left inside a
// working-hour window.
package interval

import (
	"slices"
	"time"

	"quickslot/internal/models"
)

// Gap is a free span inside a day window.
type Gap struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the gap.
func (g Gap) Duration() time.Duration {
	return g.End.Sub(g.Start)
}

// Intersect clips the gap to [start, end). ok is false when nothing remains.
func (g Gap) Intersect(start, end time.Time) (Gap, bool) {
	out := g
	if start.After(out.Start) {
		out.Start = start
	}
	if end.Before(out.End) {
		out.End = end
	}
	return out, out.End.After(out.Start)
}

// Overlapping returns the intervals that intersect [start, end), in input order.
func Overlapping(busy []models.BusyInterval, start, end time.Time) []models.BusyInterval {
	var out []models.BusyInterval
	for _, b := range busy {
		if b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	return out
}

// Merge sorts intervals by start and folds every interval that starts at or before the
// current end into it. Equal starts keep their input order. The input is not modified.
func Merge(busy []models.BusyInterval) []models.BusyInterval {
	if len(busy) == 0 {
		return nil
	}
	sorted := slices.Clone(busy)
	slices.SortStableFunc(sorted, func(a, b models.BusyInterval) int {
		return a.Start.Compare(b.Start)
	})

	merged := []models.BusyInterval{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if !next.Start.After(cur.End) {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// FreeGaps walks merged busy intervals once and returns the free spans of
// [dayStart, dayEnd), in order. Busy intervals may extend past either bound.
func FreeGaps(dayStart, dayEnd time.Time, merged []models.BusyInterval) []Gap {
	var gaps []Gap
	cursor := dayStart
	for _, b := range merged {
		if !b.Start.Before(dayEnd) {
			break
		}
		if cursor.Before(b.Start) {
			gaps = append(gaps, Gap{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(dayEnd) {
		gaps = append(gaps, Gap{Start: cursor, End: dayEnd})
	}
	return gaps
}

// DayGaps filters busy to [dayStart, dayEnd), merges it, and returns the free gaps.
func DayGaps(dayStart, dayEnd time.Time, busy []models.BusyInterval) []Gap {
	return FreeGaps(dayStart, dayEnd, Merge(Overlapping(busy, dayStart, dayEnd)))
}
