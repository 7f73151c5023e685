package icloud

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickslot/internal/models"
)

const (
	testUser     = "me@icloud.com"
	testPassword = "app-specific"
)

const multistatusHeader = `<?xml version="1.0" encoding="utf-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">`

const principalResponse = multistatusHeader + `
  <d:response>
    <d:href>/</d:href>
    <d:propstat>
      <d:prop><d:current-user-principal><d:href>/principals/me/</d:href></d:current-user-principal></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

const homeSetResponse = multistatusHeader + `
  <d:response>
    <d:href>/principals/me/</d:href>
    <d:propstat>
      <d:prop><c:calendar-home-set><d:href>/calendars/me/</d:href></c:calendar-home-set></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

const calendarsResponse = multistatusHeader + `
  <d:response>
    <d:href>/calendars/me/</d:href>
    <d:propstat>
      <d:prop><d:resourcetype><d:collection/></d:resourcetype></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/calendars/me/personal/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
        <d:displayname>Personal</d:displayname>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/calendars/me/work/</d:href>
    <d:propstat>
      <d:prop>
        <d:resourcetype><d:collection/><c:calendar/></d:resourcetype>
        <d:displayname>Work</d:displayname>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

const eventsResponse = multistatusHeader + `
  <d:response>
    <d:href>/calendars/me/work/standup.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"1"</d:getetag>
        <c:calendar-data><![CDATA[BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:standup@test
DTSTAMP:20250301T000000Z
DTSTART:20250317T140000Z
DTEND:20250317T150000Z
END:VEVENT
BEGIN:VEVENT
UID:focus@test
DTSTAMP:20250301T000000Z
DTSTART:20250317T160000Z
DTEND:20250317T170000Z
TRANSP:TRANSPARENT
END:VEVENT
END:VCALENDAR
]]></c:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

// fakeCalDAV serves just enough of CalDAV for calendar discovery and a calendar query.
type fakeCalDAV struct {
	mu      sync.Mutex
	reports []string
}

func (f *fakeCalDAV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if user, pass, ok := r.BasicAuth(); !ok || user != testUser || pass != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var body string
	switch {
	case r.Method == "PROPFIND" && r.URL.Path == "/":
		body = principalResponse
	case r.Method == "PROPFIND" && r.URL.Path == "/principals/me/":
		body = homeSetResponse
	case r.Method == "PROPFIND" && r.URL.Path == "/calendars/me/":
		body = calendarsResponse
	case r.Method == "REPORT" && r.URL.Path == "/calendars/me/work/":
		req, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.reports = append(f.reports, string(req))
		f.mu.Unlock()
		body = eventsResponse
	default:
		http.Error(w, fmt.Sprintf("unexpected %s %s", r.Method, r.URL.Path), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = io.WriteString(w, body)
}

func newTestClient(t *testing.T, calendarName string) (*CalDAVClient, *fakeCalDAV, error) {
	t.Helper()
	fake := &fakeCalDAV{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Endpoint:     srv.URL + "/",
		Username:     testUser,
		Password:     testPassword,
		CalendarName: calendarName,
		Location:     time.UTC,
	})
	return client, fake, err
}

func TestQueryBusy(t *testing.T) {
	client, fake, err := newTestClient(t, "Work")
	require.NoError(t, err)
	assert.Equal(t, "/calendars/me/work/", client.calendarPath)
	assert.Equal(t, "caldav:"+testUser, client.Name())

	rng := models.DateRange{
		Start: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 18, 23, 59, 59, 0, time.UTC),
	}
	busy, err := client.QueryBusy(context.Background(), []string{"someone@example.com"}, rng)
	require.NoError(t, err)

	require.Len(t, busy, 1)
	require.Len(t, busy[testUser], 1)
	got := busy[testUser][0]
	assert.True(t, got.Start.Equal(time.Date(2025, 3, 17, 14, 0, 0, 0, time.UTC)), "start %s", got.Start)
	assert.True(t, got.End.Equal(time.Date(2025, 3, 17, 15, 0, 0, 0, time.UTC)), "end %s", got.End)

	require.Len(t, fake.reports, 1)
	report := fake.reports[0]
	assert.Contains(t, report, "time-range")
	assert.Contains(t, report, "20250317T000000Z")
	assert.Contains(t, report, "20250318T235959Z")
	assert.Contains(t, report, "VEVENT")
}

func TestNewClientUnknownCalendar(t *testing.T) {
	_, _, err := newTestClient(t, "Holidays")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no calendar found with name 'Holidays'")
}

func TestCustomTransport(t *testing.T) {
	var gotUser, gotPass, gotAgent string
	var gotAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotAuth = r.BasicAuth()
		gotAgent = r.UserAgent()
	}))
	defer srv.Close()

	client := &http.Client{Transport: &customTransport{
		Username:  testUser,
		Password:  testPassword,
		Transport: http.DefaultTransport,
	}}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.True(t, gotAuth)
	assert.Equal(t, testUser, gotUser)
	assert.Equal(t, testPassword, gotPass)
	assert.Equal(t, "quickslot/1.0", gotAgent)
	assert.Empty(t, req.Header.Get("Authorization"), "caller's request must not be modified")
}
