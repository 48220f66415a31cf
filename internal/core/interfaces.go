// Package core defines the interfaces shared by the read-aloud packages.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Speech rate limits in words per minute.
const (
	MinSpeed = 10
	MaxSpeed = 400
)

// SpeechConfig holds the settings passed to the external speech program.
type SpeechConfig struct {
	Command   string
	Voice     string
	Speed     int
	ExtraArgs []string
}

// Speaker reads text aloud, one utterance at a time. Speak blocks until the
// utterance ends; starting a new one stops the one in flight.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop() error
	Pause() error
	Resume() error
	// Speed is the words-per-minute rate; SetSpeed applies from the next utterance.
	Speed() int
	SetSpeed(wordsPerMinute int)
}
