package units

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned when no unit matches a query.
	ErrNotFound = errors.New("no unit matches the search")

	// ErrEmptyQuery is returned for a query with no text.
	ErrEmptyQuery = errors.New("empty search expression")

	// ErrInvalidQuery is returned when a regex query does not compile.
	ErrInvalidQuery = errors.New("invalid search expression")

	// ErrOutOfRange is returned for a unit index outside 1..Len().
	ErrOutOfRange = errors.New("unit index out of range")
)

// Direction selects which way a search walks.
type Direction int

const (
	// Forward searches towards the last unit.
	Forward Direction = iota
	// Backward searches towards the first unit.
	Backward
)

// Query is a search expression over unit texts.
type Query struct {
	Expression    string
	Regex         bool
	CaseSensitive bool
}

// Document holds the units split from one transformed text. It is read-only
// after construction.
type Document struct {
	// Source is the transformed text the units were cut from.
	Source string
	units  []Unit
}

// NewDocument splits text with splitter.
func NewDocument(text string, splitter Splitter) *Document {
	return &Document{
		Source: text,
		units:  splitter.Split(text),
	}
}

// Len returns the number of units.
func (d *Document) Len() int {
	return len(d.units)
}

// Units returns a copy of all units in order.
func (d *Document) Units() []Unit {
	return append([]Unit(nil), d.units...)
}

// Texts returns the text of every unit in order.
func (d *Document) Texts() []string {
	texts := make([]string, 0, len(d.units))
	for _, unit := range d.units {
		texts = append(texts, unit.Text)
	}

	return texts
}

// Unit returns the unit with the 1-based index.
func (d *Document) Unit(index int) (Unit, error) {
	if index < 1 || index > len(d.units) {
		return Unit{}, fmt.Errorf("%w: %d not in 1..%d", ErrOutOfRange, index, len(d.units))
	}

	return d.units[index-1], nil
}

// Clamp moves index into 1..Len(). It returns 0 for an empty document.
func (d *Document) Clamp(index int) int {
	if len(d.units) == 0 {
		return 0
	}

	return min(max(index, 1), len(d.units))
}

// Find returns the index of the first unit matching the query, starting at
// from (inclusive) and walking in dir. The search does not wrap.
func (d *Document) Find(query Query, from int, dir Direction) (int, error) {
	match, err := query.matcher()
	if err != nil {
		return 0, err
	}

	step := 1
	if dir == Backward {
		step = -1
	}

	for index := from; index >= 1 && index <= len(d.units); index += step {
		if match(d.units[index-1].Text) {
			return index, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrNotFound, query.Expression)
}

func (q Query) matcher() (func(string) bool, error) {
	if q.Expression == "" {
		return nil, ErrEmptyQuery
	}

	if q.Regex {
		expr := q.Expression
		if !q.CaseSensitive {
			expr = "(?i)" + expr
		}

		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}

		return re.MatchString, nil
	}

	if q.CaseSensitive {
		return func(text string) bool {
			return strings.Contains(text, q.Expression)
		}, nil
	}

	needle := strings.ToLower(q.Expression)

	return func(text string) bool {
		return strings.Contains(strings.ToLower(text), needle)
	}, nil
}
