// Package attendees parses and validates the e-mail addresses whose calendars are
// searched.
package attendees

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxAttendees bounds a single search.
const MaxAttendees = 50

const maxEmailLength = 320

var (
	// ErrNoAttendees is returned when the attendee list is empty.
	ErrNoAttendees = errors.New("at least one attendee e-mail is required")
	// ErrTooManyAttendees is returned when more than MaxAttendees addresses are given.
	ErrTooManyAttendees = fmt.Errorf("too many attendees, maximum %d allowed", MaxAttendees)
)

var (
	separators = regexp.MustCompile(`[\n,;]`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	unsafeRe   = regexp.MustCompile(`(?i)[<>'"]|javascript:|data:|vbscript:|on\w+=`)

	suspiciousDomains = []*regexp.Regexp{
		regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`),
		regexp.MustCompile(`localhost`),
		regexp.MustCompile(`127\.0\.0\.1`),
		regexp.MustCompile(`0\.0\.0\.0`),
		regexp.MustCompile(`\.onion$`),
		regexp.MustCompile(`\.bit$`),
	}
)

// Parse builds the attendee list: the organizer first, then every entry of extra split
// on newlines, commas and semicolons. Blank entries are dropped.
func Parse(organizer string, extra ...string) []string {
	var out []string
	if o := strings.TrimSpace(organizer); o != "" {
		out = append(out, o)
	}
	for _, e := range extra {
		for _, part := range separators.Split(e, -1) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks every address and reports all problems at once.
func Validate(emails []string) error {
	if len(emails) == 0 {
		return ErrNoAttendees
	}
	if len(emails) > MaxAttendees {
		return ErrTooManyAttendees
	}

	var errs []error
	seen := make(map[string]struct{}, len(emails))
	for i, email := range emails {
		n := i + 1
		switch {
		case unsafeRe.MatchString(email):
			errs = append(errs, fmt.Errorf("attendee %d: invalid characters in e-mail address", n))
			continue
		case !ValidEmail(email):
			errs = append(errs, fmt.Errorf("attendee %d: invalid e-mail format - %s", n, Mask(email)))
			continue
		}
		key := strings.ToLower(email)
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("attendee %d: duplicate e-mail address - %s", n, Mask(email)))
			continue
		}
		seen[key] = struct{}{}
		if SuspiciousDomain(email) {
			errs = append(errs, fmt.Errorf("attendee %d: suspicious domain - %s", n, Mask(email)))
		}
	}
	return errors.Join(errs...)
}

// ValidEmail applies the address grammar and length rules.
func ValidEmail(email string) bool {
	if len(email) > maxEmailLength || strings.Contains(email, "..") {
		return false
	}
	if strings.HasPrefix(email, ".") || strings.HasSuffix(email, ".") {
		return false
	}
	return emailRe.MatchString(email)
}

// SuspiciousDomain flags IP literals, loopback names and darknet TLDs.
func SuspiciousDomain(email string) bool {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return true
	}
	domain = strings.ToLower(domain)
	for _, re := range suspiciousDomains {
		if re.MatchString(domain) {
			return true
		}
	}
	return false
}

// Mask hides most of the local part so addresses can be logged.
func Mask(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	if runes := []rune(local); len(runes) > 3 {
		return string(runes[:2]) + "***@" + domain
	}
	return "***@" + domain
}
