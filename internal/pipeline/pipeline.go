// Package pipeline chains transformation, splitting and substitution into the
// units of one text.
package pipeline

import (
	"github.com/book-expert/read-aloud/internal/rules"
	"github.com/book-expert/read-aloud/internal/subst"
	"github.com/book-expert/read-aloud/internal/transform"
	"github.com/book-expert/read-aloud/internal/units"
)

// Pipeline turns decoded text into units. The zero value passes text through
// and splits on newlines.
type Pipeline struct {
	// Transformation is the segmenting ruleset; nil means no transformation.
	Transformation *rules.Ruleset
	// Substitution rewrites units for speech; nil means pass-through.
	Substitution *subst.Engine
	Splitter     units.Splitter
	// Engine carries the optional trace hook.
	Engine transform.Engine
}

// ExportedUnit is a unit together with the text that would be spoken for it.
type ExportedUnit struct {
	Index  int    `json:"index"  yaml:"index"`
	Line   int    `json:"line"   yaml:"line"`
	Start  int    `json:"start"  yaml:"start"`
	End    int    `json:"end"    yaml:"end"`
	Text   string `json:"text"   yaml:"text"`
	Spoken string `json:"spoken" yaml:"spoken"`
}

// Export is the serialisable form of a segmented text.
type Export struct {
	Source      string         `json:"source"      yaml:"source"`
	Fingerprint string         `json:"fingerprint" yaml:"fingerprint"`
	Units       []ExportedUnit `json:"units"       yaml:"units"`
}

// Segment transforms text and splits the result into a document.
func (p *Pipeline) Segment(text string) *units.Document {
	transformed := p.Engine.Apply(p.Transformation, text)

	return units.NewDocument(transformed, p.Splitter)
}

// Export lists every unit of doc with its substituted spoken text.
func (p *Pipeline) Export(source, fingerprint string, doc *units.Document) Export {
	engine := p.Substitution
	if engine == nil {
		engine = subst.PassThrough()
	}

	all := doc.Units()
	exported := make([]ExportedUnit, 0, len(all))

	for _, unit := range all {
		exported = append(exported, ExportedUnit{
			Index:  unit.Index,
			Line:   unit.Line,
			Start:  unit.Start,
			End:    unit.End,
			Text:   unit.Text,
			Spoken: engine.Apply(unit).Text,
		})
	}

	return Export{
		Source:      source,
		Fingerprint: fingerprint,
		Units:       exported,
	}
}
