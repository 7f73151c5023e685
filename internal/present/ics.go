package present

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"quickslot/internal/models"
)

// HoldOptions describes the tentative events written by WriteICS.
type HoldOptions struct {
	Summary   string
	Organizer string
	Attendees []string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// WriteICS writes every proposed slot as a TENTATIVE VEVENT with a fresh UID, days in
// chronological order.
func WriteICS(w io.Writer, b models.DayBuckets, opts HoldOptions) error {
	stamp := opts.Now
	if stamp.IsZero() {
		stamp = time.Now()
	}
	summary := opts.Summary
	if summary == "" {
		summary = "Hold: meeting"
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//quickslot//EN")

	for _, d := range b.Days() {
		for _, s := range b[d] {
			cal.Children = append(cal.Children, holdEvent(s, summary, stamp.UTC(), opts))
		}
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode slots to iCal format: %w", err)
	}
	return nil
}

func holdEvent(s models.Slot, summary string, stamp time.Time, opts HoldOptions) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uuid.New().String())
	ve.Props.SetText(ical.PropSummary, summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, s.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, s.End.UTC())
	ve.Props.SetText(ical.PropStatus, "TENTATIVE")
	ve.Props.SetText(ical.PropTransparency, "TRANSPARENT")

	if opts.Organizer != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + opts.Organizer
		ve.Props.Add(p)
	}
	for _, a := range opts.Attendees {
		if a == opts.Organizer {
			continue
		}
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + a
		ve.Props.Add(p)
	}
	return ve
}
