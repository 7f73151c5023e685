// Package config loads QuickSlot settings from a YAML file, QUICKSLOT_* environment
// variables and built-in defaults, and persists changed settings back to disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/viper"

	"quickslot/internal/calmath"
	"quickslot/internal/models"
)

// FileName is the config file base name searched for in the config paths.
const FileName = "quickslot"

// Sources that can supply busy time.
const (
	SourceGoogle = "google"
	SourceCalDAV = "caldav"
	SourceICS    = "ics"
)

var knownSources = []string{SourceGoogle, SourceCalDAV, SourceICS}

// Config holds all configuration values.
type Config struct {
	Duration       int      `mapstructure:"duration"`
	SearchRange    int      `mapstructure:"search_range"`
	StartHour      float64  `mapstructure:"start_hour"`
	EndHour        float64  `mapstructure:"end_hour"`
	AvoidEarlyLate bool     `mapstructure:"avoid_early_late"`
	Timezone       string   `mapstructure:"timezone"`
	Organizer      string   `mapstructure:"organizer"`
	Holidays       []string `mapstructure:"holidays"`
	Sources        []string `mapstructure:"sources"`

	TokenDir string `mapstructure:"token_dir"`
	Account  string `mapstructure:"account"`

	CalDAVEndpoint string   `mapstructure:"caldav_endpoint"`
	CalDAVCalendar string   `mapstructure:"caldav_calendar"`
	BusyFiles      []string `mapstructure:"busy_files"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// Store wraps the viper instance the config was read from so settings can be saved.
// changed holds the values set through Set; only those and the file's own values are
// ever written back.
type Store struct {
	v       *viper.Viper
	changed map[string]any
}

// Keys that may be changed with Set.
var settable = []string{
	"duration", "search_range", "start_hour", "end_hour", "avoid_early_late", "timezone",
	"organizer", "holidays", "sources", "token_dir", "account", "caldav_endpoint",
	"caldav_calendar", "busy_files", "log_level", "log_file",
}

// Load reads configuration. An explicit path must exist; otherwise quickslot.yaml is
// looked up in the working directory and the user config directory, and a missing file
// is not an error.
func Load(path string) (*Store, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUICKSLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "quickslot"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return &Store{v: v, changed: make(map[string]any)}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("duration", 30)
	v.SetDefault("search_range", 3)
	v.SetDefault("start_hour", 9)
	v.SetDefault("end_hour", 17)
	v.SetDefault("avoid_early_late", false)
	v.SetDefault("timezone", "Local")
	v.SetDefault("organizer", "")
	v.SetDefault("holidays", []string{})
	v.SetDefault("sources", []string{SourceGoogle})
	v.SetDefault("token_dir", ".")
	v.SetDefault("account", "")
	v.SetDefault("caldav_endpoint", "")
	v.SetDefault("caldav_calendar", "")
	v.SetDefault("busy_files", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// Config decodes and validates the current settings.
func (s *Store) Config() (*Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Set changes one setting in memory.
func (s *Store) Set(key string, value any) error {
	if !slices.Contains(settable, key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	s.v.Set(key, value)
	s.changed[key] = value
	return nil
}

// Settings returns every setting as a flat map, for display.
func (s *Store) Settings() map[string]any {
	return s.v.AllSettings()
}

// File returns the config file in use, or "" when only defaults and env are used.
func (s *Store) File() string {
	return s.v.ConfigFileUsed()
}

// Save writes the settings read from the config file plus every value changed with Set
// to path, or to the file they were loaded from. Defaults and QUICKSLOT_* environment
// values are not written.
func (s *Store) Save(path string) error {
	if path == "" {
		path = s.File()
	}
	if path == "" {
		path = FileName + ".yaml"
	}

	out := viper.New()
	if file := s.File(); file != "" {
		out.SetConfigFile(file)
		if err := out.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to re-read %s: %w", file, err)
		}
	}
	for key, value := range s.changed {
		out.Set(key, value)
	}

	if err := out.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to save config to %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %d", c.Duration))
	}
	if c.SearchRange <= 0 {
		errs = append(errs, fmt.Errorf("search_range must be positive, got %d", c.SearchRange))
	}
	if err := c.Window().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.HolidayDates(); err != nil {
		errs = append(errs, err)
	}
	for _, src := range c.Sources {
		if !slices.Contains(knownSources, src) {
			errs = append(errs, fmt.Errorf("unknown source %q, expected one of %s", src, strings.Join(knownSources, ", ")))
		}
	}
	return errors.Join(errs...)
}

// Window returns the configured working hours.
func (c *Config) Window() models.WorkWindow {
	return models.WorkWindow{StartHour: c.StartHour, EndHour: c.EndHour}
}

// MeetingDuration returns Duration in minutes as a time.Duration.
func (c *Config) MeetingDuration() time.Duration {
	return time.Duration(c.Duration) * time.Minute
}

// Location resolves the configured timezone. "" and "Local" mean the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// HolidayDates parses the custom holidays.
func (c *Config) HolidayDates() ([]civil.Date, error) {
	return calmath.ParseDates(c.Holidays)
}

// Calendar returns the holiday calendar including custom holidays.
func (c *Config) Calendar() (*calmath.Calendar, error) {
	dates, err := c.HolidayDates()
	if err != nil {
		return nil, err
	}
	return calmath.NewCalendar(dates...), nil
}
