// Package icloud reads busy time from a CalDAV calendar. The iCloud endpoint is the
// default, but any CalDAV server works.
package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"quickslot/internal/icsfile"
	"quickslot/internal/models"
)

const (
	// ICloudCalDAVEndpoint is used when no endpoint is configured.
	ICloudCalDAVEndpoint = "https://caldav.icloud.com/"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "quickslot/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient queries a single CalDAV calendar for busy time.
type CalDAVClient struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	calendarPath string
	username     string
	loc          *time.Location
}

// Options configures NewClient.
type Options struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
	Location     *time.Location
}

// NewClient connects to the CalDAV server and locates the named calendar.
func NewClient(ctx context.Context, logger *slog.Logger, opts Options) (*CalDAVClient, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = ICloudCalDAVEndpoint
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	transport := &customTransport{
		Username:  opts.Username,
		Password:  opts.Password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &CalDAVClient{
		caldavClient: caldavClient,
		logger:       logger,
		username:     opts.Username,
		loc:          loc,
	}

	logger.Info("Finding CalDAV calendar", "calendarName", opts.CalendarName)
	calendarPath, err := c.findCalendar(ctx, opts.CalendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", opts.CalendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return c, nil
}

// Name identifies the source in logs.
func (c *CalDAVClient) Name() string {
	return "caldav:" + c.username
}

// QueryBusy returns the calendar owner's busy intervals within r, keyed by the account
// username. Other attendees are not visible over CalDAV.
func (c *CalDAVClient) QueryBusy(ctx context.Context, _ []string, r models.DateRange) (map[string][]models.BusyInterval, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldav.CalendarCompRequest{{
				Name:  "VEVENT",
				Props: []string{"UID", "DTSTART", "DTEND", "DURATION", "RRULE", "RDATE", "EXDATE", "TRANSP", "STATUS"},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: r.Start.UTC(),
				End:   r.End.UTC(),
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var busy []models.BusyInterval
	for _, obj := range objects {
		b, err := icsfile.BusyFromCalendar(obj.Data, r, c.loc)
		if err != nil {
			c.logger.Warn("Skipping unreadable calendar object", "path", obj.Path, "error", err)
			continue
		}
		busy = append(busy, b...)
	}

	c.logger.Info("Fetched CalDAV busy time.", "objects", len(objects), "intervals", len(busy))
	return map[string][]models.BusyInterval{c.username: busy}, nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the
// matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
