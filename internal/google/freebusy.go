// Package google queries attendee availability through the Google Calendar Free/Busy API.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"quickslot/internal/attendees"
	"quickslot/internal/models"
)

var (
	// ErrUnauthorized means the stored token was rejected; run the auth command again.
	ErrUnauthorized = errors.New("authentication failed, run 'quickslot auth' to sign in again")
	// ErrAccessDenied means the account may not read the requested calendars.
	ErrAccessDenied = errors.New("access denied, check your calendar permissions")
)

// RetryPolicy controls how failed free/busy queries are retried.
type RetryPolicy struct {
	MaxTries  uint
	BaseDelay time.Duration
}

// DefaultRetryPolicy makes three attempts starting from a one second delay.
var DefaultRetryPolicy = RetryPolicy{MaxTries: 3, BaseDelay: time.Second}

// CalendarClient queries the Free/Busy endpoint of the Google Calendar API.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
	account string
	retry   RetryPolicy
}

// NewClient creates a client for an account whose token file lives in tokenDir.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, tokenDir, account string) (*CalendarClient, error) {
	config, err := GetOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := NewTokenStore(tokenDir).Load(account)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", account, err)
	}

	return NewClientWithHTTP(ctx, logger, account, config.Client(ctx, token))
}

// NewClientWithHTTP creates a client on top of an already authenticated HTTP client.
// Extra options (e.g. option.WithEndpoint) are passed to the calendar service.
func NewClientWithHTTP(ctx context.Context, logger *slog.Logger, account string, httpClient *http.Client, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarClient{service: service, logger: logger, account: account, retry: DefaultRetryPolicy}, nil
}

// WithRetry replaces the retry policy.
func (c *CalendarClient) WithRetry(p RetryPolicy) *CalendarClient {
	c.retry = p
	return c
}

// Name identifies the source in logs.
func (c *CalendarClient) Name() string {
	return "google:" + c.account
}

// QueryBusy returns every attendee's busy intervals within r. Attendees whose calendars
// cannot be read are reported with no busy intervals.
func (c *CalendarClient) QueryBusy(ctx context.Context, emails []string, r models.DateRange) (map[string][]models.BusyInterval, error) {
	items := make([]*calendar.FreeBusyRequestItem, len(emails))
	for i, email := range emails {
		items[i] = &calendar.FreeBusyRequestItem{Id: email}
	}
	req := &calendar.FreeBusyRequest{
		TimeMin: r.Start.Format(time.RFC3339),
		TimeMax: r.End.Format(time.RFC3339),
		Items:   items,
	}

	c.logger.Debug("Querying free/busy", "account", c.account, "attendees", len(emails), "range", r.String())

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.BaseDelay
	b.Multiplier = 2

	attempt := 0
	resp, err := backoff.Retry(ctx, func() (*calendar.FreeBusyResponse, error) {
		attempt++
		resp, err := c.service.Freebusy.Query(req).Context(ctx).Do()
		if err != nil {
			return nil, classify(err)
		}
		return resp, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.retry.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("Free/busy query failed, retrying.", "attempt", attempt, "retryIn", next, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query free/busy: %w", err)
	}

	busy := toBusyIntervals(c.logger, emails, resp)
	c.logger.Info("Fetched free/busy data.", "account", c.account, "calendars", len(resp.Calendars))
	return busy, nil
}

// classify marks errors that a retry cannot fix as permanent.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == http.StatusUnauthorized:
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrUnauthorized, err))
	case gerr.Code == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrAccessDenied, err))
	case gerr.Code == http.StatusTooManyRequests:
		if secs, convErr := strconv.Atoi(gerr.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			return backoff.RetryAfter(secs)
		}
		return err
	case gerr.Code >= 500:
		return err
	case gerr.Code >= 400:
		return backoff.Permanent(fmt.Errorf("calendar API error %d: %w", gerr.Code, err))
	default:
		return err
	}
}

// toBusyIntervals converts a Free/Busy response. Every requested attendee gets an entry;
// calendars that report errors or malformed periods contribute no busy time.
func toBusyIntervals(logger *slog.Logger, emails []string, resp *calendar.FreeBusyResponse) map[string][]models.BusyInterval {
	out := make(map[string][]models.BusyInterval, len(emails))
	for _, email := range emails {
		out[email] = nil
	}
	if resp == nil {
		return out
	}

	for id, cal := range resp.Calendars {
		if len(cal.Errors) > 0 {
			reasons := make([]string, 0, len(cal.Errors))
			for _, e := range cal.Errors {
				reasons = append(reasons, e.Reason)
			}
			logger.Warn("Calendar unavailable, treating as free.", "attendee", attendees.Mask(id), "reasons", reasons)
			continue
		}
		for _, p := range cal.Busy {
			if p == nil {
				continue
			}
			start, err1 := time.Parse(time.RFC3339, p.Start)
			end, err2 := time.Parse(time.RFC3339, p.End)
			if err1 != nil || err2 != nil || !end.After(start) {
				logger.Warn("Skipping malformed busy period.", "attendee", attendees.Mask(id), "start", p.Start, "end", p.End)
				continue
			}
			out[id] = append(out[id], models.BusyInterval{Start: start, End: end})
		}
	}
	return out
}
