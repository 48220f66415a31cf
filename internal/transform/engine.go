// Package transform applies a ruleset to a text, section by section, keeping the
// spans matched by each section's protection rules untouched.
package transform

import (
	"strings"

	"github.com/book-expert/read-aloud/internal/rules"
)

// EventKind classifies trace events.
type EventKind int

const (
	// EventProtected reports a protected span computed at the start of a section.
	EventProtected EventKind = iota
	// EventApplied reports a match that was replaced.
	EventApplied
	// EventSkipped reports a match left alone because it touches a protected span.
	EventSkipped
)

// Event describes one step of a transformation, for rule debugging logs.
// Offsets refer to the text as it was when the event happened.
type Event struct {
	Kind        EventKind
	Section     int
	Rule        *rules.Rule
	Span        Span
	Text        string
	Replacement string
}

// Engine applies rulesets. The zero value is ready to use.
type Engine struct {
	// Trace, when set, receives every protection, replacement and skipped match.
	Trace func(Event)
	// Changed, when set, receives the text after each rule pass that modified it.
	Changed func(rule *rules.Rule, text string)
}

// Apply runs the ruleset over text with a zero Engine.
func Apply(ruleset *rules.Ruleset, text string) string {
	var engine Engine

	return engine.Apply(ruleset, text)
}

// Apply runs every section of the ruleset in order, each on the output of the
// previous one. A nil ruleset returns text unchanged.
func (e *Engine) Apply(ruleset *rules.Ruleset, text string) string {
	if ruleset == nil {
		return text
	}

	for i, section := range ruleset.Sections {
		text = e.applySection(i+1, section, text)
	}

	return text
}

func (e *Engine) applySection(number int, section rules.Section, text string) string {
	if len(section.Apply) == 0 {
		return text
	}

	spans := Protect(section.Protect, text)

	for _, span := range spans {
		e.emit(Event{
			Kind:        EventProtected,
			Section:     number,
			Rule:        nil,
			Span:        span,
			Text:        text[span.Start:span.End],
			Replacement: "",
		})
	}

	for _, rule := range section.Apply {
		before := text
		text, spans = e.applyRule(number, rule, text, spans)

		if e.Changed != nil && text != before {
			e.Changed(rule, text)
		}
	}

	return text
}

type edit struct {
	end   int
	delta int
}

// applyRule makes one left-to-right replacement pass and returns the new text
// with the protected spans moved to where their characters now are.
func (e *Engine) applyRule(number int, rule *rules.Rule, text string, spans []Span) (string, []Span) {
	matches := rule.FindAll(text)
	if len(matches) == 0 {
		return text, spans
	}

	var (
		out   strings.Builder
		edits []edit
	)

	last := 0

	for _, m := range matches {
		matched := text[m.Start:m.End]
		span := Span{Start: m.Start, End: m.End}

		if _, hit := protected(spans, m); hit {
			e.emit(Event{Kind: EventSkipped, Section: number, Rule: rule, Span: span, Text: matched, Replacement: ""})

			continue
		}

		replacement := rule.Expand(text, m)
		e.emit(Event{Kind: EventApplied, Section: number, Rule: rule, Span: span, Text: matched, Replacement: replacement})

		out.WriteString(text[last:m.Start])
		out.WriteString(replacement)
		last = m.End

		edits = append(edits, edit{end: m.End, delta: len(replacement) - len(matched)})
	}

	if len(edits) == 0 {
		return text, spans
	}

	out.WriteString(text[last:])

	return out.String(), shiftSpans(spans, edits)
}

// shiftSpans moves each span by the total length change of the edits before it.
// Edits never intersect a span, so every edit lies wholly before or after each span.
func shiftSpans(spans []Span, edits []edit) []Span {
	if len(spans) == 0 {
		return spans
	}

	shifted := make([]Span, 0, len(spans))
	offset := 0
	next := 0

	for _, span := range spans {
		for next < len(edits) && edits[next].end <= span.Start {
			offset += edits[next].delta
			next++
		}

		shifted = append(shifted, Span{Start: span.Start + offset, End: span.End + offset})
	}

	return shifted
}

func (e *Engine) emit(event Event) {
	if e.Trace != nil {
		e.Trace(event)
	}
}
