// Package subst rewrites a unit's text just before it is spoken, using a
// separate ruleset, without touching the stored unit.
package subst

import (
	"fmt"

	"github.com/book-expert/read-aloud/internal/rules"
	"github.com/book-expert/read-aloud/internal/transform"
	"github.com/book-expert/read-aloud/internal/units"
)

// Step records one rule that changed the text and the text it produced.
type Step struct {
	Rule *rules.Rule
	Text string
}

// Result is the transient spoken form of one unit.
type Result struct {
	Unit    units.Unit
	Text    string
	History []Step
}

// Changed reports whether any rule modified the unit's text.
func (r Result) Changed() bool {
	return r.Text != r.Unit.Text
}

// Engine applies a substitution ruleset to units. It is safe for concurrent use.
type Engine struct {
	ruleset *rules.Ruleset
}

// Load parses the substitution rules file at path.
func Load(path string, opts rules.ParseOptions) (*Engine, error) {
	ruleset, err := rules.ParseFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load substitution rules: %w", err)
	}

	return New(ruleset), nil
}

// New wraps a parsed ruleset. A nil ruleset passes text through.
func New(ruleset *rules.Ruleset) *Engine {
	return &Engine{ruleset: ruleset}
}

// PassThrough returns an engine that speaks every unit as stored.
func PassThrough() *Engine {
	return &Engine{ruleset: nil}
}

// Enabled reports whether the engine has any rule to apply.
func (e *Engine) Enabled() bool {
	return e != nil && !e.ruleset.Empty()
}

// File returns the rules file the engine was loaded from, if any.
func (e *Engine) File() string {
	if e == nil || e.ruleset == nil {
		return ""
	}

	return e.ruleset.File
}

// Apply returns the text to speak for unit. The unit itself is not modified.
func (e *Engine) Apply(unit units.Unit) Result {
	result := Result{Unit: unit, Text: unit.Text, History: nil}

	if !e.Enabled() {
		return result
	}

	engine := transform.Engine{
		Trace: nil,
		Changed: func(rule *rules.Rule, text string) {
			result.History = append(result.History, Step{Rule: rule, Text: text})
		},
	}

	result.Text = engine.Apply(e.ruleset, unit.Text)

	return result
}
