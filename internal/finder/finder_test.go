package finder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickslot/internal/calmath"
	"quickslot/internal/models"
	"quickslot/internal/slots"
)

type fakeSource struct {
	name  string
	busy  map[string][]models.BusyInterval
	err   error
	calls []models.DateRange
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) QueryBusy(_ context.Context, _ []string, r models.DateRange) (map[string][]models.BusyInterval, error) {
	f.calls = append(f.calls, r)
	return f.busy, f.err
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func newTestFinder(t *testing.T, loc *time.Location, now time.Time, sources ...BusySource) *Finder {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f, err := NewFinder(logger, sources, nil, loc)
	require.NoError(t, err)
	return f.WithClock(func() time.Time { return now })
}

func defaultParams() slots.Params {
	return slots.Params{
		Window:   models.WorkWindow{StartHour: 9, EndHour: 17},
		Duration: 30 * time.Minute,
	}
}

func TestFindDayCount(t *testing.T) {
	loc := newYork(t)
	// Thursday before Memorial Day weekend.
	now := time.Date(2025, time.May, 22, 16, 0, 0, 0, loc)
	at := func(d, h, m int) time.Time { return time.Date(2025, time.May, d, h, m, 0, 0, loc) }

	src := &fakeSource{name: "fake", busy: map[string][]models.BusyInterval{
		"me@example.com": {{Start: at(23, 9, 0), End: at(23, 11, 0)}},
		"you@example.com": {
			{Start: at(23, 10, 30), End: at(23, 12, 15)},
			{Start: at(27, 8, 0), End: at(27, 18, 0)},
		},
	}}
	f := newTestFinder(t, loc, now, src)

	res, err := f.Find(context.Background(), Request{
		Attendees: []string{"me@example.com", "you@example.com"},
		Params:    defaultParams(),
		DayCount:  3,
	})
	require.NoError(t, err)

	fri := civil.Date{Year: 2025, Month: time.May, Day: 23}
	tue := civil.Date{Year: 2025, Month: time.May, Day: 27}
	wed := civil.Date{Year: 2025, Month: time.May, Day: 28}
	assert.Equal(t, []civil.Date{fri, tue, wed}, res.Searched)
	assert.Equal(t, []civil.Date{fri, wed}, res.Buckets.Days())

	require.Len(t, src.calls, 1)
	assert.Equal(t, at(23, 0, 0), src.calls[0].Start)
	assert.Equal(t, wed, civil.DateOf(src.calls[0].End))

	friday := res.Buckets[fri]
	require.Len(t, friday, 2)
	assert.Equal(t, at(23, 12, 15), friday[0].Start)
	assert.Equal(t, at(23, 15, 0), friday[1].Start)
}

func TestFindSelectedDates(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, loc)
	src := &fakeSource{name: "fake"}
	f := newTestFinder(t, loc, now, src)

	sat := civil.Date{Year: 2025, Month: time.March, Day: 15}
	mon := civil.Date{Year: 2025, Month: time.March, Day: 17}
	res, err := f.Find(context.Background(), Request{
		Attendees: []string{"me@example.com"},
		Params:    defaultParams(),
		DayCount:  5,
		Dates:     []civil.Date{mon, sat, mon},
	})
	require.NoError(t, err)

	// Explicit selections are searched even on weekends.
	assert.Equal(t, []civil.Date{sat, mon}, res.Searched)
	assert.Equal(t, 6, res.Buckets.Count())
	assert.Equal(t, time.Date(2025, time.March, 15, 0, 0, 0, 0, loc), res.Range.Start)
}

func TestFindRejectsPastDates(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, loc)
	f := newTestFinder(t, loc, now, &fakeSource{name: "fake"})

	_, err := f.Find(context.Background(), Request{
		Attendees: []string{"me@example.com"},
		Params:    defaultParams(),
		Dates:     []civil.Date{{Year: 2025, Month: time.March, Day: 13}},
	})
	assert.ErrorIs(t, err, ErrDateInPast)
}

func TestFindValidation(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, loc)
	src := &fakeSource{name: "fake"}
	f := newTestFinder(t, loc, now, src)

	_, err := f.Find(context.Background(), Request{Params: defaultParams(), DayCount: 3})
	assert.Error(t, err)

	bad := defaultParams()
	bad.Duration = 0
	_, err = f.Find(context.Background(), Request{Attendees: []string{"me@example.com"}, Params: bad, DayCount: 3})
	assert.ErrorIs(t, err, slots.ErrInvalidDuration)

	_, err = f.Find(context.Background(), Request{Attendees: []string{"me@example.com"}, Params: defaultParams()})
	assert.ErrorIs(t, err, calmath.ErrInvalidDayCount)

	assert.Empty(t, src.calls)
}

func TestFindSourceFailure(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, loc)
	boom := errors.New("boom")
	f := newTestFinder(t, loc, now, &fakeSource{name: "ok"}, &fakeSource{name: "broken", err: boom})

	_, err := f.Find(context.Background(), Request{
		Attendees: []string{"me@example.com"},
		Params:    defaultParams(),
		DayCount:  1,
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
}

func TestFindNoAvailability(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, loc)
	allDay := models.BusyInterval{
		Start: time.Date(2025, time.March, 17, 0, 0, 0, 0, loc),
		End:   time.Date(2025, time.March, 18, 0, 0, 0, 0, loc),
	}
	f := newTestFinder(t, loc, now, &fakeSource{name: "fake", busy: map[string][]models.BusyInterval{"me@example.com": {allDay}}})

	res, err := f.Find(context.Background(), Request{
		Attendees: []string{"me@example.com"},
		Params:    defaultParams(),
		DayCount:  1,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Buckets.Count())
}

func TestNewFinderRequiresSource(t *testing.T) {
	_, err := NewFinder(slog.Default(), nil, nil, time.UTC)
	assert.Error(t, err)
}

func TestPool(t *testing.T) {
	a := models.BusyInterval{Start: time.Unix(0, 0), End: time.Unix(60, 0)}
	b := models.BusyInterval{Start: time.Unix(120, 0), End: time.Unix(180, 0)}
	got := Pool(map[string][]models.BusyInterval{"z@example.com": {a}, "a@example.com": {b}, "m@example.com": nil})
	assert.Equal(t, []models.BusyInterval{b, a}, got)
}
