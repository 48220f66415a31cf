package player

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownCommand is returned for input that names no command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMissingArgument is returned when a command needs an argument.
	ErrMissingArgument = errors.New("missing argument")

	// ErrBadArgument is returned when a command argument cannot be used.
	ErrBadArgument = errors.New("bad argument")
)

// Action names a player command.
type Action string

// Player actions.
const (
	ActionNext       Action = "next"
	ActionPrevious   Action = "previous"
	ActionFirst      Action = "first"
	ActionLast       Action = "last"
	ActionGo         Action = "go"
	ActionRestart    Action = "restart"
	ActionStop       Action = "stop"
	ActionToggle     Action = "toggle"
	ActionFind       Action = "find"
	ActionFindCase   Action = "find-case"
	ActionRegex      Action = "regex"
	ActionRegexCase  Action = "regex-case"
	ActionFindNext   Action = "find-next"
	ActionFindPrev   Action = "find-prev"
	ActionLogSubst   Action = "log"
	ActionShow       Action = "show"
	ActionToggleSubs Action = "toggle-subst"
	ActionFaster     Action = "faster"
	ActionSlower     Action = "slower"
	ActionHelp       Action = "help"
	ActionQuit       Action = "quit"
)

// Command is one parsed input line.
type Command struct {
	Action Action
	// Arg is the search expression for search actions.
	Arg string
	// Unit is the target of ActionGo.
	Unit int
}

// keyBindings are the one-letter shortcuts. They are case-sensitive.
var keyBindings = map[string]Action{
	"n": ActionNext,
	"b": ActionPrevious,
	"v": ActionFirst,
	"m": ActionLast,
	"g": ActionGo,
	"a": ActionRestart,
	"x": ActionStop,
	"p": ActionToggle,
	"f": ActionFind,
	"F": ActionFindCase,
	"r": ActionRegex,
	"R": ActionRegexCase,
	"t": ActionFindNext,
	"e": ActionFindPrev,
	"u": ActionLogSubst,
	"w": ActionShow,
	"S": ActionToggleSubs,
	"+": ActionFaster,
	"-": ActionSlower,
	"h": ActionHelp,
	"?": ActionHelp,
	"q": ActionQuit,
}

var aliases = map[string]Action{
	"prev":   ActionPrevious,
	"goto":   ActionGo,
	"repeat": ActionRestart,
	"pause":  ActionToggle,
	"resume": ActionToggle,
	"search": ActionFind,
	"exit":   ActionQuit,
	"speed+": ActionFaster,
	"speed-": ActionSlower,
}

var allActions = []Action{
	ActionNext, ActionPrevious, ActionFirst, ActionLast, ActionGo, ActionRestart,
	ActionStop, ActionToggle, ActionFind, ActionFindCase, ActionRegex, ActionRegexCase,
	ActionFindNext, ActionFindPrev, ActionLogSubst, ActionShow, ActionToggleSubs,
	ActionFaster, ActionSlower, ActionHelp, ActionQuit,
}

// ParseCommand reads one input line such as "next", "g 12" or "find some words".
func ParseCommand(line string) (Command, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	action, ok := lookupAction(name)
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	command := Command{Action: action, Arg: "", Unit: 0}

	switch action {
	case ActionGo:
		if arg == "" {
			return Command{}, fmt.Errorf("%w: %s needs a unit number", ErrMissingArgument, action)
		}

		unit, err := strconv.Atoi(arg)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q is not a unit number", ErrBadArgument, arg)
		}

		command.Unit = unit
	case ActionFind, ActionFindCase, ActionRegex, ActionRegexCase:
		if arg == "" {
			return Command{}, fmt.Errorf("%w: %s needs a search expression", ErrMissingArgument, action)
		}

		command.Arg = arg
	default:
	}

	return command, nil
}

func lookupAction(name string) (Action, bool) {
	if action, ok := keyBindings[name]; ok {
		return action, true
	}

	name = strings.ToLower(name)

	if action, ok := aliases[name]; ok {
		return action, true
	}

	for _, action := range allActions {
		if string(action) == name {
			return action, true
		}
	}

	return "", false
}
