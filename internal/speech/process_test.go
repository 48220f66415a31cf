package speech_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeSpeaker = `printf '%s\n' "$*" >> "$(dirname "$0")/spoken.txt"
case "$1" in
long) exec sleep 10 ;;
fail) echo "no voice" >&2; exit 3 ;;
esac
`

type fixture struct {
	speaker *speech.ProcessSpeaker
	spoken  string
}

// newFixture runs a shell script as the speech program. The script appends its
// arguments to spoken.txt and sleeps when told to say "long".
func newFixture(t *testing.T) fixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("speech tests need a POSIX shell")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "speak.sh")
	require.NoError(t, os.WriteFile(script, []byte(fakeSpeaker), 0o600))

	log, err := logger.New(dir, "speech-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	cfg := core.SpeechConfig{Command: "/bin/sh", Voice: "", Speed: 0, ExtraArgs: []string{script}}

	return fixture{speaker: speech.New(cfg, log), spoken: filepath.Join(dir, "spoken.txt")}
}

func (f fixture) lines(t *testing.T) []string {
	t.Helper()

	data, err := os.ReadFile(f.spoken)
	require.NoError(t, err)

	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// startLong starts a long utterance and waits until the script has logged it.
func (f fixture) startLong(t *testing.T) <-chan error {
	t.Helper()

	done := make(chan error, 1)

	go func() {
		done <- f.speaker.Speak(context.Background(), "long")
	}()

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(f.spoken)
		speaking, _ := f.speaker.Speaking()

		return err == nil && strings.Contains(string(data), "long") && speaking
	}, 5*time.Second, 10*time.Millisecond)

	return done
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("speech did not end")

		return nil
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	speaker := speech.New(core.SpeechConfig{Command: "", Voice: "en-gb", Speed: 170, ExtraArgs: []string{"-a", "50"}}, nil)

	assert.Equal(t, speech.DefaultCommand, speaker.Config().Command)
	assert.Equal(t, []string{"-s", "170", "-v", "en-gb", "-a", "50", "hello there"}, speaker.Args(" - -hello there"))

	bare := speech.New(core.SpeechConfig{Command: "say", Voice: "", Speed: 0, ExtraArgs: nil}, nil)
	assert.Equal(t, []string{"text"}, bare.Args("text"))
}

func TestSetSpeed_ChangesArgs(t *testing.T) {
	t.Parallel()

	speaker := speech.New(core.SpeechConfig{Command: "espeak", Voice: "", Speed: 0, ExtraArgs: nil}, nil)
	assert.Equal(t, speech.DefaultSpeed, speaker.Speed())

	speaker.SetSpeed(230)

	assert.Equal(t, 230, speaker.Speed())
	assert.Equal(t, 230, speaker.Config().Speed)
	assert.Equal(t, []string{"-s", "230", "word"}, speaker.Args("word"))
}

func TestSpeak_RunsProgram(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	require.NoError(t, f.speaker.Speak(context.Background(), "Hello world."))
	assert.Equal(t, []string{"Hello world."}, f.lines(t))

	speaking, _ := f.speaker.Speaking()
	assert.False(t, speaking)
}

func TestSpeak_ReportsFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	err := f.speaker.Speak(context.Background(), "fail")
	require.ErrorIs(t, err, speech.ErrSpeechFailed)
	assert.Contains(t, err.Error(), "no voice")

	missing := speech.New(core.SpeechConfig{Command: filepath.Join(t.TempDir(), "nope"), Voice: "", Speed: 0, ExtraArgs: nil}, nil)
	require.ErrorIs(t, missing.Speak(context.Background(), "x"), speech.ErrSpeechFailed)
}

func TestStop_InterruptsSpeech(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	done := f.startLong(t)

	require.NoError(t, f.speaker.Stop())
	require.ErrorIs(t, waitResult(t, done), speech.ErrStopped)
	require.NoError(t, f.speaker.Stop(), "stopping twice is harmless")
}

func TestSpeak_StopsUtteranceInFlight(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	done := f.startLong(t)

	require.NoError(t, f.speaker.Speak(context.Background(), "next"))
	require.ErrorIs(t, waitResult(t, done), speech.ErrStopped)
	assert.Equal(t, []string{"long", "next"}, f.lines(t))
}

func TestSpeak_ContextCancellation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)

	defer cancel()

	err := f.speaker.Speak(ctx, "long")
	require.ErrorIs(t, err, speech.ErrStopped)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	require.ErrorIs(t, f.speaker.Pause(), speech.ErrNotSpeaking)
	require.ErrorIs(t, f.speaker.Resume(), speech.ErrNotSpeaking)

	done := f.startLong(t)

	require.NoError(t, f.speaker.Pause())

	speaking, paused := f.speaker.Speaking()
	assert.True(t, speaking)
	assert.True(t, paused)

	require.NoError(t, f.speaker.Resume())

	_, paused = f.speaker.Speaking()
	assert.False(t, paused)

	require.NoError(t, f.speaker.Pause())
	require.NoError(t, f.speaker.Stop(), "a paused utterance can be stopped")
	require.ErrorIs(t, waitResult(t, done), speech.ErrStopped)
}
