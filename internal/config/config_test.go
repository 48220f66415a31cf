// Package config_test tests the configuration loading for read-aloud.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/read-aloud/internal/config"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/tracking"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
[paths]
base_logs_dir = "/var/log/read-aloud"
state_db = "/var/lib/read-aloud/positions.db"

[rules]
transformation_file = "rules/segment.rules"
substitution_file = "rules/subst.rules"
regex_flags = "i"

[input]
encoding = "latin1"

[segmenting]
separator = '\n\s*\n'

[speech]
command = "espeak-ng"
voice = "en-gb"
speed = 180
extra_args = ["-a", "120"]

[reading]
tracking = "forward"
watch_interval = "250ms"

[nats]
url = "nats://127.0.0.1:4222"
subject = "segment.jobs"
object_store_bucket = "TEXTS"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(fullConfig), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "/var/log/read-aloud", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/var/lib/read-aloud/positions.db", cfg.Paths.StateDB)
	assert.Equal(t, "rules/segment.rules", cfg.Rules.TransformationFile)
	assert.Equal(t, "rules/subst.rules", cfg.Rules.SubstitutionFile)
	assert.Equal(t, "i", cfg.Rules.RegexFlags)
	assert.Equal(t, "latin1", cfg.Input.Encoding)
	assert.Equal(t, `\n\s*\n`, cfg.Segmenting.Separator)
	assert.Equal(t, "espeak-ng", cfg.Speech.Command)
	assert.Equal(t, "en-gb", cfg.Speech.Voice)
	assert.Equal(t, 180, cfg.Speech.Speed)
	assert.Equal(t, []string{"-a", "120"}, cfg.Speech.ExtraArgs)
	assert.Equal(t, "forward", cfg.Reading.Tracking)
	assert.Equal(t, "250ms", cfg.Reading.WatchInterval)
	assert.Equal(t, "segment.jobs", cfg.NATS.Subject)
	assert.Equal(t, "TEXTS", cfg.NATS.ObjectStoreBucket)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFile(writeConfig(t, fullConfig))
	require.NoError(t, err)

	separator, err := cfg.SeparatorRegexp()
	require.NoError(t, err)
	require.NotNil(t, separator)
	assert.True(t, separator.MatchString("a\n \nb"))

	assert.Equal(t, "i", cfg.ParseOptions().DefaultFlags)
	assert.Equal(t, core.SpeechConfig{
		Command:   "espeak-ng",
		Voice:     "en-gb",
		Speed:     180,
		ExtraArgs: []string{"-a", "120"},
	}, cfg.SpeechSettings())

	mode, err := cfg.TrackingMode()
	require.NoError(t, err)
	assert.Equal(t, tracking.ModeForward, mode)

	period, err := cfg.WatchPeriod()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, period)
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFile(writeConfig(t, "[rules]\ntransformation_file = \"x.rules\"\n"))
	require.NoError(t, err)

	defaults := config.Default()

	assert.Equal(t, "x.rules", cfg.Rules.TransformationFile)
	assert.Equal(t, defaults.Speech, cfg.Speech)
	assert.Equal(t, defaults.NATS, cfg.NATS)
	assert.Equal(t, "utf-8", cfg.Input.Encoding)
	assert.Equal(t, defaults.Reading, cfg.Reading)
	assert.Equal(t, "backward", cfg.Reading.Tracking)
	assert.NotEmpty(t, cfg.Paths.BaseLogsDir)
	assert.NotEmpty(t, cfg.Paths.StateDB)

	separator, err := cfg.SeparatorRegexp()
	require.NoError(t, err)
	assert.Nil(t, separator)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{name: "unknown key", content: "[speech]\npitch = 3\n", invalid: false},
		{name: "bad toml", content: "[speech\n", invalid: false},
		{name: "bad regex flags", content: "[rules]\nregex_flags = \"x\"\n", invalid: true},
		{name: "bad separator", content: "[segmenting]\nseparator = \"(\"\n", invalid: true},
		{name: "negative speed", content: "[speech]\nspeed = -5\n", invalid: true},
		{name: "speed too high", content: "[speech]\nspeed = 401\n", invalid: true},
		{name: "unknown tracking mode", content: "[reading]\ntracking = \"sideways\"\n", invalid: true},
		{name: "bad watch interval", content: "[reading]\nwatch_interval = \"soon\"\n", invalid: true},
		{name: "negative watch interval", content: "[reading]\nwatch_interval = \"-1s\"\n", invalid: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFile(writeConfig(t, testCase.content))
			require.Error(t, err)

			if testCase.invalid {
				require.ErrorIs(t, err, config.ErrInvalidConfig)
			}
		})
	}

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
