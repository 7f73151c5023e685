package slots

import (
	"slices"
	"time"

	"cloud.google.com/go/civil"

	"quickslot/internal/models"
)

// Collect runs FindDaySlots for every date and groups the results by the calendar day
// of each slot's start. Each day is sorted earliest first and cut to MaxPerDay; days
// without slots are omitted.
func Collect(dates []civil.Date, loc *time.Location, p Params, busy []models.BusyInterval) models.DayBuckets {
	buckets := make(models.DayBuckets)
	for _, date := range dates {
		for _, s := range FindDaySlots(date, loc, p, busy) {
			key := civil.DateOf(s.Start.In(loc))
			buckets[key] = append(buckets[key], s)
		}
	}
	for day, list := range buckets {
		slices.SortStableFunc(list, func(a, b models.Slot) int {
			return a.Start.Compare(b.Start)
		})
		if len(list) > MaxPerDay {
			list = list[:MaxPerDay]
		}
		buckets[day] = list
	}
	return buckets
}
