// Package tracking decides where reading continues after the text being read
// changes on disk.
package tracking

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ErrUnknownMode is returned by ParseMode for a name that is not a mode.
var ErrUnknownMode = errors.New("unknown tracking mode")

// Mode selects how the reading position follows changes.
type Mode string

// Tracking modes.
const (
	// ModeNone keeps the position, only clamping it to the new length.
	ModeNone Mode = "none"
	// ModeBackward jumps back to the first modified unit at or before the position.
	ModeBackward Mode = "backward"
	// ModeForward jumps to the first modified unit wherever it is.
	ModeForward Mode = "forward"
	// ModeRestart starts again from the first unit on any change.
	ModeRestart Mode = "restart"
)

// DefaultMode is used when no mode is configured.
const DefaultMode = ModeBackward

// Modes lists the valid modes.
func Modes() []Mode {
	return []Mode{ModeNone, ModeBackward, ModeForward, ModeRestart}
}

// ParseMode returns the mode with the given name. An empty name is DefaultMode.
func ParseMode(name string) (Mode, error) {
	if name == "" {
		return DefaultMode, nil
	}

	for _, mode := range Modes() {
		if strings.EqualFold(name, string(mode)) {
			return mode, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// Action tells the player what to do with speech after a change.
type Action int

// Actions.
const (
	// NoAction leaves speech as it is.
	NoAction Action = iota
	// Stop halts speech at the new position.
	Stop
	// Restart plays the unit at the new position.
	Restart
)

func (a Action) String() string {
	switch a {
	case Stop:
		return "stop"
	case Restart:
		return "restart"
	default:
		return "none"
	}
}

// Decision is the outcome of a change.
type Decision struct {
	// Modified holds the 1-based indexes of new units that differ from the old text.
	Modified []int
	// Position is the 1-based unit to continue from; 0 for an empty text.
	Position int
	Action   Action
}

// Changed reports whether any unit was modified, added or removed.
func (d Decision) Changed() bool {
	return len(d.Modified) > 0
}

// Modified returns the 1-based indexes of the units of updated that were
// replaced or inserted, plus the unit following each deletion.
func Modified(old, updated []string) []int {
	matcher := difflib.NewMatcherWithJunk(old, updated, false, nil)

	var (
		modified     []int
		lastA, lastB int
	)

	for _, block := range matcher.GetMatchingBlocks() {
		switch {
		case block.B > lastB:
			for index := lastB; index < block.B; index++ {
				modified = append(modified, index+1)
			}
		case block.A > lastA:
			if block.B < len(updated) {
				modified = append(modified, block.B+1)
			}
		}

		lastA = block.A + block.Size
		lastB = block.B + block.Size
	}

	return modified
}

// Track decides the position and speech action after old becomes updated
// while the reader is at current. playing is true when speech is running and
// not paused.
func Track(mode Mode, old, updated []string, current int, playing bool) Decision {
	decision := Decision{Modified: Modified(old, updated), Position: current, Action: NoAction}

	if len(updated) == 0 {
		decision.Position = 0
		decision.Action = Stop

		return decision
	}

	if jump, ok := jumpToModified(mode, decision.Modified, current); ok {
		decision.Position = jump
		decision.Action = whilePlaying(playing)

		return decision
	}

	if current > len(updated) {
		if mode == ModeRestart {
			decision.Position = 1
			decision.Action = whilePlaying(playing)

			return decision
		}

		decision.Position = len(updated)
		decision.Action = Stop

		return decision
	}

	if playing && slices.Contains(decision.Modified, current) {
		decision.Action = Restart
	}

	return decision
}

func jumpToModified(mode Mode, modified []int, current int) (int, bool) {
	if len(modified) == 0 {
		return 0, false
	}

	switch mode {
	case ModeRestart:
		return 1, true
	case ModeForward:
		return modified[0], true
	case ModeBackward:
		if modified[0] <= current {
			return modified[0], true
		}

		return 0, false
	default:
		return 0, false
	}
}

func whilePlaying(playing bool) Action {
	if playing {
		return Restart
	}

	return NoAction
}
