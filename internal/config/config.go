// Package config provides the configuration structure for read-aloud.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/rules"
	"github.com/book-expert/read-aloud/internal/tracking"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	appName            = "read-aloud"
	defaultSpeechCmd   = "espeak"
	defaultSpeed       = 160
	defaultEncoding    = "utf-8"
	defaultNATSURL     = "nats://127.0.0.1:4222"
	defaultNATSSubject = "read-aloud.segment"
	defaultBucket      = "READ_ALOUD_TEXTS"
	stateFileName      = "positions.db"
	defaultWatch       = "1s"
)

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	// StateDB is the SQLite file holding saved reading positions.
	StateDB string `toml:"state_db"`
}

// RulesConfig names the rules files. Empty paths disable that stage.
type RulesConfig struct {
	TransformationFile string `toml:"transformation_file"`
	SubstitutionFile   string `toml:"substitution_file"`
	// RegexFlags are applied to every pattern rule, e.g. "i".
	RegexFlags string `toml:"regex_flags"`
}

// InputConfig controls how input text is decoded.
type InputConfig struct {
	Encoding string `toml:"encoding"`
}

// SegmentingConfig controls how transformed text is cut into units.
type SegmentingConfig struct {
	// Separator is a regular expression; empty means one unit per line.
	Separator string `toml:"separator"`
}

// SpeechConfig holds the external speech program settings.
type SpeechConfig struct {
	Command   string   `toml:"command"`
	Voice     string   `toml:"voice"`
	Speed     int      `toml:"speed"`
	ExtraArgs []string `toml:"extra_args"`
}

// ReadingConfig controls how the read command follows changes to its files.
type ReadingConfig struct {
	// Tracking is one of none, backward, forward and restart.
	Tracking string `toml:"tracking"`
	// WatchInterval is how often the input and rules files are checked for
	// changes, e.g. "500ms". Zero disables watching.
	WatchInterval string `toml:"watch_interval"`
}

// NATSConfig holds the configuration for the segmentation service.
type NATSConfig struct {
	URL               string `toml:"url"`
	Subject           string `toml:"subject"`
	ObjectStoreBucket string `toml:"object_store_bucket"`
}

// Config is the root configuration structure.
type Config struct {
	Paths      PathsConfig      `toml:"paths"`
	Rules      RulesConfig      `toml:"rules"`
	Input      InputConfig      `toml:"input"`
	Segmenting SegmentingConfig `toml:"segmenting"`
	Speech     SpeechConfig     `toml:"speech"`
	Reading    ReadingConfig    `toml:"reading"`
	NATS       NATSConfig       `toml:"nats"`
}

// Default returns the configuration used when no file sets a value.
func Default() Config {
	var cfg Config

	cfg.ApplyDefaults()

	return cfg
}

// Load loads the configuration through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile decodes the TOML file at path. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration file: %w", err)
	}
	defer file.Close()

	var cfg Config

	err = toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration file %s: %w", path, err)
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every empty field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = filepath.Join(os.TempDir(), appName, "logs")
	}

	if c.Paths.StateDB == "" {
		c.Paths.StateDB = defaultStateDB()
	}

	if c.Input.Encoding == "" {
		c.Input.Encoding = defaultEncoding
	}

	if c.Speech.Command == "" {
		c.Speech.Command = defaultSpeechCmd
	}

	if c.Speech.Speed == 0 {
		c.Speech.Speed = defaultSpeed
	}

	if c.Reading.Tracking == "" {
		c.Reading.Tracking = string(tracking.DefaultMode)
	}

	if c.Reading.WatchInterval == "" {
		c.Reading.WatchInterval = defaultWatch
	}

	if c.NATS.URL == "" {
		c.NATS.URL = defaultNATSURL
	}

	if c.NATS.Subject == "" {
		c.NATS.Subject = defaultNATSSubject
	}

	if c.NATS.ObjectStoreBucket == "" {
		c.NATS.ObjectStoreBucket = defaultBucket
	}
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	if !rules.ValidateFlags(c.Rules.RegexFlags) {
		return fmt.Errorf("%w: rules.regex_flags %q may only hold i, m, s and U once each", ErrInvalidConfig, c.Rules.RegexFlags)
	}

	if c.Speech.Speed < 0 {
		return fmt.Errorf("%w: speech.speed must not be negative", ErrInvalidConfig)
	}

	if c.Speech.Speed > 0 && (c.Speech.Speed < core.MinSpeed || c.Speech.Speed > core.MaxSpeed) {
		return fmt.Errorf("%w: speech.speed must be between %d and %d", ErrInvalidConfig, core.MinSpeed, core.MaxSpeed)
	}

	_, err := c.TrackingMode()
	if err != nil {
		return err
	}

	_, err = c.WatchPeriod()
	if err != nil {
		return err
	}

	_, err = c.SeparatorRegexp()
	if err != nil {
		return err
	}

	return nil
}

// TrackingMode returns the configured tracking mode.
func (c *Config) TrackingMode() (tracking.Mode, error) {
	mode, err := tracking.ParseMode(c.Reading.Tracking)
	if err != nil {
		return "", fmt.Errorf("%w: reading.tracking: %w", ErrInvalidConfig, err)
	}

	return mode, nil
}

// WatchPeriod returns how often files are checked for changes. Zero means never.
func (c *Config) WatchPeriod() (time.Duration, error) {
	if c.Reading.WatchInterval == "" {
		return 0, nil
	}

	period, err := time.ParseDuration(c.Reading.WatchInterval)
	if err != nil || period < 0 {
		return 0, fmt.Errorf("%w: reading.watch_interval %q is not a duration", ErrInvalidConfig, c.Reading.WatchInterval)
	}

	return period, nil
}

// SeparatorRegexp compiles the unit separator. It returns nil when unset.
func (c *Config) SeparatorRegexp() (*regexp.Regexp, error) {
	if c.Segmenting.Separator == "" {
		return nil, nil
	}

	re, err := regexp.Compile(c.Segmenting.Separator)
	if err != nil {
		return nil, fmt.Errorf("%w: segmenting.separator: %w", ErrInvalidConfig, err)
	}

	return re, nil
}

// ParseOptions returns the options for parsing rules files.
func (c *Config) ParseOptions() rules.ParseOptions {
	return rules.ParseOptions{DefaultFlags: c.Rules.RegexFlags}
}

// SpeechSettings converts the speech section for the speaker.
func (c *Config) SpeechSettings() core.SpeechConfig {
	return core.SpeechConfig{
		Command:   c.Speech.Command,
		Voice:     c.Speech.Voice,
		Speed:     c.Speech.Speed,
		ExtraArgs: append([]string(nil), c.Speech.ExtraArgs...),
	}
}

func defaultStateDB() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}

	return filepath.Join(dir, appName, stateFileName)
}
