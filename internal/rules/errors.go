package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRulesFile indicates a structural violation in a rules file.
	ErrMalformedRulesFile = errors.New("malformed rules file")
	// ErrInvalidPattern indicates that a rule pattern or its replacement could not be compiled.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrRulesFileNotFound indicates that a rules file path was given but could not be read.
	ErrRulesFileNotFound = errors.New("rules file not found")
)

// Reasons reported for malformed rules files.
const (
	reasonUnknownHeader       = "unknown section header %q"
	reasonUnterminatedHeader  = "unterminated section header %q"
	reasonOrphanProtect       = "[DO NOT] section without a preceding [DO] section"
	reasonDoubleProtect       = "two consecutive [DO NOT] sections"
	reasonPatternInApply      = "a pattern without replacement is only allowed in a [DO NOT] section"
	reasonMissingReplacement  = "literal rule %q has no replacement line"
	reasonReplacementIsRegex  = "replacement line of literal rule %q looks like a regex rule"
	reasonUnterminatedRule    = "unterminated regular expression rule"
	reasonEmptyLiteral        = "empty literal rule"
	reasonInvalidFlags        = "invalid flags %q"
	reasonBadGroupReference   = "reference to group %d, but the pattern has %d group(s)"
	reasonUnterminatedCase    = "unterminated case conversion in replacement"
	reasonTrailingBackslash   = "trailing backslash in replacement"
	reasonUnterminatedBracket = "unterminated group reference"
	reasonNegativeGroup       = "reference to group %d, group numbers cannot be negative"
	reasonLineTooLong         = "line longer than %d bytes"
)

// Error describes a rule that could not be parsed or compiled, with its location.
type Error struct {
	File   string
	Line   int
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %v: %s", e.File, e.Line, e.Err, e.Reason)
}

// Unwrap returns the error kind (ErrMalformedRulesFile or ErrInvalidPattern).
func (e *Error) Unwrap() error {
	return e.Err
}

func malformed(file string, line int, format string, args ...any) *Error {
	return &Error{File: file, Line: line, Reason: fmt.Sprintf(format, args...), Err: ErrMalformedRulesFile}
}

func invalid(file string, line int, reason string) *Error {
	return &Error{File: file, Line: line, Reason: reason, Err: ErrInvalidPattern}
}
