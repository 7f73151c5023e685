package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/urfave/cli/v2"

	"quickslot/internal/attendees"
	"quickslot/internal/calmath"
	"quickslot/internal/config"
	"quickslot/internal/finder"
	"quickslot/internal/google"
	"quickslot/internal/icloud"
	"quickslot/internal/icsfile"
	"quickslot/internal/present"
	"quickslot/internal/slots"
)

// flagSettings maps find flags onto config keys so flags override the config file.
var flagSettings = map[string]string{
	"duration":         "duration",
	"days":             "search_range",
	"start-hour":       "start_hour",
	"end-hour":         "end_hour",
	"avoid-early-late": "avoid_early_late",
	"timezone":         "timezone",
	"organizer":        "organizer",
	"source":           "sources",
	"busy-file":        "busy_files",
	"account":          "account",
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "Find up to three meeting times per day that work for every attendee.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "organizer", Aliases: []string{"o"}, Usage: "Your e-mail address (always included)."},
			&cli.StringSliceFlag{Name: "attendee", Aliases: []string{"a"}, Usage: "Attendee e-mails; comma, semicolon or newline separated."},
			&cli.IntFlag{Name: "duration", Aliases: []string{"d"}, Usage: "Meeting length in minutes."},
			&cli.IntFlag{Name: "days", Usage: "Search the next N business days; 7 means the next calendar week."},
			&cli.StringSliceFlag{Name: "date", Usage: "Search specific dates (YYYY-MM-DD). Overrides --days."},
			&cli.Float64Flag{Name: "start-hour", Usage: "Start of working hours (e.g. 9 or 9.5)."},
			&cli.Float64Flag{Name: "end-hour", Usage: "End of working hours (e.g. 17)."},
			&cli.BoolFlag{Name: "avoid-early-late", Usage: "Skip the first and last 30 minutes of the day."},
			&cli.StringFlag{Name: "timezone", Usage: "IANA timezone for working hours."},
			&cli.StringSliceFlag{Name: "source", Usage: "Busy sources: google, caldav, ics."},
			&cli.StringSliceFlag{Name: "busy-file", Usage: "Local .ics busy file, as path or attendee=path."},
			&cli.StringFlag{Name: "account", Usage: "Google token account to use."},
			&cli.BoolFlag{Name: "plain", Usage: "Print the copy-paste text instead of the styled listing."},
			&cli.BoolFlag{Name: "copy", Usage: "Copy the copy-paste text to the clipboard."},
			&cli.StringFlag{Name: "ics", Usage: "Write the proposed slots as tentative holds to this .ics file."},
		},
		Action: func(c *cli.Context) error {
			store, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if err := applyFlags(c, store); err != nil {
				return err
			}
			cfg, err := store.Config()
			if err != nil {
				return err
			}

			logger, closeLog := setupLogger(cfg.LogLevel, cfg.LogFile)
			defer closeLog.Close()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			cal, err := cfg.Calendar()
			if err != nil {
				return err
			}
			dates, err := calmath.ParseDates(c.StringSlice("date"))
			if err != nil {
				return err
			}

			sources, err := buildSources(c.Context, logger, cfg, loc)
			if err != nil {
				return err
			}
			f, err := finder.NewFinder(logger, sources, cal, loc)
			if err != nil {
				return err
			}

			emails := attendees.Parse(cfg.Organizer, c.StringSlice("attendee")...)
			res, err := f.Find(c.Context, finder.Request{
				Attendees: emails,
				Params: slots.Params{
					Window:         cfg.Window(),
					Duration:       cfg.MeetingDuration(),
					AvoidEarlyLate: cfg.AvoidEarlyLate,
				},
				DayCount: cfg.SearchRange,
				Dates:    dates,
			})
			if err != nil {
				return err
			}

			text := present.Text(res.Buckets)
			if c.Bool("plain") {
				fmt.Println(strings.TrimRight(text, "\n"))
			} else if err := present.Render(os.Stdout, res.Buckets); err != nil {
				return err
			}

			if c.Bool("copy") && res.Buckets.Count() > 0 {
				if err := clipboard.WriteAll(text); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
				logger.Info("Copied times to clipboard.")
			}

			if path := c.String("ics"); path != "" && res.Buckets.Count() > 0 {
				if err := writeHolds(path, res, cfg.Organizer, emails); err != nil {
					return err
				}
				logger.Info("Wrote tentative holds.", "file", path, "slots", res.Buckets.Count())
			}
			return nil
		},
	}
}

func applyFlags(c *cli.Context, store *config.Store) error {
	for flag, key := range flagSettings {
		if !c.IsSet(flag) {
			continue
		}
		var value any
		switch flag {
		case "duration", "days":
			value = c.Int(flag)
		case "start-hour", "end-hour":
			value = c.Float64(flag)
		case "avoid-early-late":
			value = c.Bool(flag)
		case "source", "busy-file":
			value = c.StringSlice(flag)
		default:
			value = c.String(flag)
		}
		if err := store.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func buildSources(ctx context.Context, logger *slog.Logger, cfg *config.Config, loc *time.Location) ([]finder.BusySource, error) {
	names := slices.Clone(cfg.Sources)
	if len(cfg.BusyFiles) > 0 && !slices.Contains(names, config.SourceICS) {
		names = append(names, config.SourceICS)
	}

	var sources []finder.BusySource
	for _, name := range names {
		switch name {
		case config.SourceGoogle:
			account := cfg.Account
			if account == "" {
				accounts, err := google.NewTokenStore(cfg.TokenDir).Accounts()
				if err != nil || len(accounts) == 0 {
					return nil, fmt.Errorf("no google accounts found. Run the 'auth' command first")
				}
				account = accounts[0]
			}
			client, err := google.NewClient(ctx, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), cfg.TokenDir, account)
			if err != nil {
				return nil, fmt.Errorf("failed to create google client for account %s: %w", account, err)
			}
			sources = append(sources, client)
		case config.SourceCalDAV:
			client, err := icloud.NewClient(ctx, logger, icloud.Options{
				Endpoint:     cfg.CalDAVEndpoint,
				Username:     os.Getenv("ICLOUD_USERNAME"),
				Password:     os.Getenv("ICLOUD_APP_SPECIFIC_PASSWORD"),
				CalendarName: cfg.CalDAVCalendar,
				Location:     loc,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create caldav client: %w", err)
			}
			sources = append(sources, client)
		case config.SourceICS:
			src, err := icsfile.NewSource(logger, loc, cfg.BusyFiles)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
	}
	return sources, nil
}

func writeHolds(path string, res *finder.Result, organizer string, emails []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return present.WriteICS(f, res.Buckets, present.HoldOptions{
		Organizer: organizer,
		Attendees: emails,
	})
}
