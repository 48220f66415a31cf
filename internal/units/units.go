// Package units splits transformed text into the numbered units read aloud one
// at a time, and searches them.
package units

import (
	"regexp"
	"strings"
	"unicode"
)

// Unit is one speakable chunk of the transformed text.
type Unit struct {
	// Index is the 1-based position among all units.
	Index int `json:"index" yaml:"index"`
	// Text is the segment with surrounding whitespace removed.
	Text string `json:"text" yaml:"text"`
	// Line is the 1-based line of the transformed text the unit starts on.
	Line int `json:"line" yaml:"line"`
	// Start and End are the byte offsets of Text in the transformed text.
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Splitter cuts text into units. The zero value splits on newlines.
type Splitter struct {
	// Separator, when set, marks unit boundaries instead of "\n".
	// Zero-width matches are ignored.
	Separator *regexp.Regexp
}

// Split cuts text on newlines into trimmed, non-empty units numbered from 1.
func Split(text string) []Unit {
	var splitter Splitter

	return splitter.Split(text)
}

// Split cuts text at each separator into trimmed, non-empty units numbered from 1.
func (s Splitter) Split(text string) []Unit {
	var (
		found []Unit
		line  = 1
		seen  = 0
	)

	emit := func(start, end int) {
		segment := text[start:end]
		trimmedLeft := strings.TrimLeftFunc(segment, unicode.IsSpace)
		trimmed := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)

		if trimmed == "" {
			return
		}

		unitStart := start + len(segment) - len(trimmedLeft)
		line += strings.Count(text[seen:unitStart], "\n")
		seen = unitStart

		found = append(found, Unit{
			Index: len(found) + 1,
			Text:  trimmed,
			Line:  line,
			Start: unitStart,
			End:   unitStart + len(trimmed),
		})
	}

	start := 0

	for _, boundary := range s.boundaries(text) {
		emit(start, boundary[0])
		start = boundary[1]
	}

	emit(start, len(text))

	return found
}

func (s Splitter) boundaries(text string) [][]int {
	if s.Separator == nil {
		var bounds [][]int

		for i := range len(text) {
			if text[i] == '\n' {
				bounds = append(bounds, []int{i, i + 1})
			}
		}

		return bounds
	}

	var bounds [][]int

	for _, loc := range s.Separator.FindAllStringIndex(text, -1) {
		if loc[0] < loc[1] {
			bounds = append(bounds, loc)
		}
	}

	return bounds
}
