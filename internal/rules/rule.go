package rules

import (
	"regexp"
	"strings"
)

// Kind tells how a rule's pattern was written.
type Kind int

const (
	// Literal rules match their text exactly and case-sensitively.
	Literal Kind = iota
	// Pattern rules match a regular expression (RE2 syntax).
	Pattern
)

func (k Kind) String() string {
	if k == Literal {
		return "literal"
	}

	return "pattern"
}

// Source locates the definition of a rule in its rules file.
type Source struct {
	File       string
	Line       int
	Definition string
}

// Rule is one compiled transformation or protection rule.
type Rule struct {
	Kind   Kind
	Source Source
	// Pattern is the literal text or the regular expression as written.
	Pattern string

	regex    *regexp.Regexp
	template Template
}

// Match is one occurrence of a rule in a text. Submatches holds byte offset
// pairs for the whole match and each capture group, -1 for groups that did
// not participate.
type Match struct {
	Start      int
	End        int
	Submatches []int
}

// Empty reports whether the match has zero width.
func (m Match) Empty() bool {
	return m.Start == m.End
}

// FindAll returns the non-overlapping matches of the rule in text, left to right.
func (r *Rule) FindAll(text string) []Match {
	found := r.regex.FindAllStringSubmatchIndex(text, -1)
	if len(found) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(found))
	for _, loc := range found {
		matches = append(matches, Match{Start: loc[0], End: loc[1], Submatches: loc})
	}

	return matches
}

// Expand returns the replacement text for a match found in text.
func (r *Rule) Expand(text string, m Match) string {
	var out strings.Builder

	r.template.expand(&out, text, m.Submatches)

	return out.String()
}

// ReplaceAll replaces every match of the rule in text, ignoring protection.
func (r *Rule) ReplaceAll(text string) string {
	matches := r.FindAll(text)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder

	last := 0
	for _, m := range matches {
		out.WriteString(text[last:m.Start])
		r.template.expand(&out, text, m.Submatches)
		last = m.End
	}

	out.WriteString(text[last:])

	return out.String()
}

func (r *Rule) String() string {
	return r.Source.Definition
}
