// Package speech drives an external text-to-speech program such as espeak.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
)

var (
	// ErrStopped is returned by Speak when the utterance was interrupted.
	ErrStopped = errors.New("speech stopped")

	// ErrNotSpeaking is returned by Pause and Resume when nothing is being said.
	ErrNotSpeaking = errors.New("no speech in progress")

	// ErrSpeechFailed is returned when the speech program fails to start or exits with an error.
	ErrSpeechFailed = errors.New("speech program failed")

	// ErrPauseUnsupported is returned on platforms that cannot suspend a process.
	ErrPauseUnsupported = errors.New("pausing speech is not supported on this platform")
)

const (
	// DefaultCommand is the speech program used when none is configured.
	DefaultCommand = "espeak"

	// DefaultSpeed is the espeak words-per-minute default.
	DefaultSpeed = 160

	waitDelay = 2 * time.Second
)

// utterance is one running speech process.
type utterance struct {
	cmd     *exec.Cmd
	paused  bool
	stopped bool
}

// ProcessSpeaker implements core.Speaker by running one speech process per utterance.
type ProcessSpeaker struct {
	config core.SpeechConfig
	log    *logger.Logger

	mu      sync.Mutex
	current *utterance
}

// New creates a ProcessSpeaker. Empty fields of cfg take their defaults.
func New(cfg core.SpeechConfig, log *logger.Logger) *ProcessSpeaker {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}

	return &ProcessSpeaker{
		config:  cfg,
		log:     log,
		mu:      sync.Mutex{},
		current: nil,
	}
}

// Config returns the speech configuration.
func (p *ProcessSpeaker) Config() core.SpeechConfig {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.config
}

// Speed returns the words-per-minute rate of the next utterance.
func (p *ProcessSpeaker) Speed() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Speed <= 0 {
		return DefaultSpeed
	}

	return p.config.Speed
}

// SetSpeed changes the rate used from the next utterance on.
func (p *ProcessSpeaker) SetSpeed(wordsPerMinute int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.config.Speed = wordsPerMinute
}

// Args returns the command-line arguments used to say text.
func (p *ProcessSpeaker) Args(text string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.argsLocked(text)
}

func (p *ProcessSpeaker) argsLocked(text string) []string {
	var args []string

	if p.config.Speed > 0 {
		args = append(args, "-s", strconv.Itoa(p.config.Speed))
	}

	if p.config.Voice != "" {
		args = append(args, "-v", p.config.Voice)
	}

	args = append(args, p.config.ExtraArgs...)

	// A leading hyphen would be taken as an option.
	return append(args, strings.TrimLeft(text, " -"))
}

// Speak says text and waits until the program exits. Any utterance still in
// flight is stopped first.
func (p *ProcessSpeaker) Speak(ctx context.Context, text string) error {
	current, stderr, err := p.start(ctx, text)
	if err != nil {
		return err
	}

	err = current.cmd.Wait()

	p.mu.Lock()
	stopped := current.stopped

	if p.current == current {
		p.current = nil
	}
	p.mu.Unlock()

	if stopped {
		return ErrStopped
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
	}

	if err != nil {
		return fmt.Errorf("%w: %w - output: %s", ErrSpeechFailed, err, stderr.String())
	}

	return nil
}

func (p *ProcessSpeaker) start(ctx context.Context, text string) (*utterance, *bytes.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	var stderr bytes.Buffer

	// #nosec G204 -- arguments are passed directly, never through a shell
	cmd := exec.CommandContext(ctx, p.config.Command, p.argsLocked(text)...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Start()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSpeechFailed, err)
	}

	p.log.Info("Started %s (pid %d) for %d bytes of text", p.config.Command, cmd.Process.Pid, len(text))

	p.current = &utterance{cmd: cmd, paused: false, stopped: false}

	return p.current, &stderr, nil
}

// Stop interrupts the utterance in flight, if any.
func (p *ProcessSpeaker) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	return nil
}

func (p *ProcessSpeaker) stopLocked() {
	if p.current == nil {
		return
	}

	current := p.current
	p.current = nil
	current.stopped = true

	if current.paused {
		err := resumeProcess(current.cmd.Process)
		if err != nil {
			p.log.Warn("Failed to resume paused speech before stopping: %v", err)
		}
	}

	err := current.cmd.Process.Kill()
	if err != nil {
		p.log.Warn("Failed to stop speech process %d: %v", current.cmd.Process.Pid, err)
	}
}

// Pause suspends the utterance in flight.
func (p *ProcessSpeaker) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNotSpeaking
	}

	if p.current.paused {
		return nil
	}

	err := pauseProcess(p.current.cmd.Process)
	if err != nil {
		return err
	}

	p.current.paused = true

	return nil
}

// Resume continues a paused utterance.
func (p *ProcessSpeaker) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNotSpeaking
	}

	if !p.current.paused {
		return nil
	}

	err := resumeProcess(p.current.cmd.Process)
	if err != nil {
		return err
	}

	p.current.paused = false

	return nil
}

// Speaking reports whether an utterance is in flight and whether it is paused.
func (p *ProcessSpeaker) Speaking() (speaking, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return false, false
	}

	return true, p.current.paused
}
