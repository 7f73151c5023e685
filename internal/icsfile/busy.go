// Package icsfile turns iCalendar data into busy intervals. It backs both the local
// .ics file source and the CalDAV source.
package icsfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"quickslot/internal/models"
)

const (
	propTransparency = "TRANSP"
	propStatus       = "STATUS"
)

// BusyFromCalendar returns the busy intervals of every opaque, non-cancelled VEVENT in cal
// that overlaps r. Recurring events are expanded within r. Floating and all-day times
// are read in loc.
func BusyFromCalendar(cal *ical.Calendar, r models.DateRange, loc *time.Location) ([]models.BusyInterval, error) {
	if cal == nil {
		return nil, nil
	}
	var out []models.BusyInterval
	for _, ev := range cal.Events() {
		if !blocksTime(ev) {
			continue
		}
		start, err := ev.DateTimeStart(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid DTSTART: %w", err)
		}
		end, err := ev.DateTimeEnd(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid DTEND: %w", err)
		}
		if start.IsZero() || !end.After(start) {
			continue
		}
		length := end.Sub(start)

		set, err := ev.RecurrenceSet(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid recurrence: %w", err)
		}
		if set == nil {
			if (models.BusyInterval{Start: start, End: end}).Overlaps(r.Start, r.End) {
				out = append(out, models.BusyInterval{Start: start, End: end})
			}
			continue
		}
		// Occurrences that started before the range may still run into it.
		for _, occ := range set.Between(r.Start.Add(-length), r.End, true) {
			b := models.BusyInterval{Start: occ, End: occ.Add(length)}
			if b.Overlaps(r.Start, r.End) {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func blocksTime(ev ical.Event) bool {
	if p := ev.Props.Get(propTransparency); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return false
	}
	if p := ev.Props.Get(propStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return false
	}
	return true
}

// Decode reads every calendar in r and returns their busy intervals within rng.
func Decode(r io.Reader, rng models.DateRange, loc *time.Location) ([]models.BusyInterval, error) {
	dec := ical.NewDecoder(r)
	var out []models.BusyInterval
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode iCalendar data: %w", err)
		}
		busy, err := BusyFromCalendar(cal, rng, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, busy...)
	}
}

// Source reads busy time from local .ics files, one attendee per file.
type Source struct {
	logger *slog.Logger
	files  map[string]string
	loc    *time.Location
}

// NewSource builds a source from "attendee=path" or bare "path" specs. A bare path is
// keyed by its file name without extension.
func NewSource(logger *slog.Logger, loc *time.Location, specs []string) (*Source, error) {
	files := make(map[string]string, len(specs))
	for _, spec := range specs {
		who, path, ok := strings.Cut(spec, "=")
		if !ok {
			path = spec
			who = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if who == "" || path == "" {
			return nil, fmt.Errorf("invalid busy file spec %q", spec)
		}
		files[who] = path
	}
	return &Source{logger: logger, files: files, loc: loc}, nil
}

// Name identifies the source in logs.
func (s *Source) Name() string {
	return "ics"
}

// QueryBusy loads every configured file. The attendee list is not consulted; each file
// already names whose calendar it holds.
func (s *Source) QueryBusy(ctx context.Context, _ []string, r models.DateRange) (map[string][]models.BusyInterval, error) {
	out := make(map[string][]models.BusyInterval, len(s.files))
	for who, path := range s.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		busy, err := s.load(path, r)
		if err != nil {
			return nil, fmt.Errorf("failed to read busy file %s: %w", path, err)
		}
		s.logger.Debug("Loaded busy file.", "file", path, "intervals", len(busy))
		out[who] = busy
	}
	return out, nil
}

func (s *Source) load(path string, r models.DateRange) ([]models.BusyInterval, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, r, s.loc)
}
