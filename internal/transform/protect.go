package transform

import (
	"sort"

	"github.com/book-expert/read-aloud/internal/rules"
)

// Span is a half-open byte interval [Start, End) of a text.
type Span struct {
	Start int
	End   int
}

// Intersects reports whether the match touches the span. A zero-width match
// intersects only when it falls strictly inside the span.
func (s Span) Intersects(m rules.Match) bool {
	if m.Empty() {
		return s.Start < m.Start && m.Start < s.End
	}

	return m.Start < s.End && s.Start < m.End
}

// Protect returns the merged spans of text matched by any of the protection rules,
// sorted by position. Overlapping and adjacent spans are merged.
func Protect(protection []*rules.Rule, text string) []Span {
	var spans []Span

	for _, rule := range protection {
		for _, m := range rule.FindAll(text) {
			if !m.Empty() {
				spans = append(spans, Span{Start: m.Start, End: m.End})
			}
		}
	}

	return mergeSpans(spans)
}

func mergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}

		return spans[i].End < spans[j].End
	})

	merged := []Span{spans[0]}

	for _, span := range spans[1:] {
		last := &merged[len(merged)-1]
		if span.Start <= last.End {
			last.End = max(last.End, span.End)

			continue
		}

		merged = append(merged, span)
	}

	return merged
}

// protected returns the span intersecting m, if any. spans must be sorted and disjoint.
func protected(spans []Span, m rules.Match) (Span, bool) {
	index := sort.Search(len(spans), func(i int) bool {
		return spans[i].End > m.Start
	})

	for i := index; i < len(spans) && spans[i].Start <= m.End; i++ {
		if spans[i].Intersects(m) {
			return spans[i], true
		}
	}

	return Span{Start: 0, End: 0}, false
}
