// Package present formats search results for people: the copy-paste message, a styled
// terminal listing, and an iCalendar file of tentative holds.
package present

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/charmbracelet/lipgloss"

	"quickslot/internal/models"
)

const (
	// Intro opens the copy-paste message.
	Intro = "Here are a few times that work on my end:"
	// NoAvailability is shown when a search produced no slots.
	NoAvailability = "No available times found. Try selecting different dates or adjusting the meeting duration."
)

// DayHeader formats a day as "Monday, January 20".
func DayHeader(d civil.Date) string {
	return d.In(time.UTC).Format("Monday, January 2")
}

// TimeOfDay formats a time as "9:00 AM".
func TimeOfDay(t time.Time) string {
	return t.Format("3:04 PM")
}

// SlotLabel formats a slot as "9:00 AM - 9:30 AM".
func SlotLabel(s models.Slot) string {
	return TimeOfDay(s.Start) + " - " + TimeOfDay(s.End)
}

// Text renders the plain-text message, days in chronological order. It returns
// NoAvailability when there is nothing to offer.
func Text(b models.DayBuckets) string {
	days := b.Days()
	if len(days) == 0 {
		return NoAvailability
	}
	var sb strings.Builder
	sb.WriteString(Intro + "\n\n")
	for _, d := range days {
		sb.WriteString(DayHeader(d) + "\n")
		for _, s := range b[d] {
			fmt.Fprintf(&sb, "  • %s\n", SlotLabel(s))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	slotStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("252"))
	emptyStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
)

// Render writes a styled, day-grouped listing for the terminal.
func Render(w io.Writer, b models.DayBuckets) error {
	days := b.Days()
	if len(days) == 0 {
		_, err := fmt.Fprintln(w, emptyStyle.Render(NoAvailability))
		return err
	}
	for i, d := range days {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, headerStyle.Render(DayHeader(d))); err != nil {
			return err
		}
		for _, s := range b[d] {
			if _, err := fmt.Fprintln(w, slotStyle.Render("• "+SlotLabel(s))); err != nil {
				return err
			}
		}
	}
	return nil
}
