package transform_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/read-aloud/internal/rules"
	"github.com/book-expert/read-aloud/internal/transform"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sentenceSplitRules = `[DO]
s/([.!?])/$1\n/
`

const protectedSplitRules = `[DO]
s/([.!?])/$1\n/

[DO NOT]
/\d+\.\d+/
`

func mustParse(t *testing.T, content string) *rules.Ruleset {
	t.Helper()

	ruleset, err := rules.Parse("test.rules", strings.NewReader(content), rules.ParseOptions{DefaultFlags: ""})
	require.NoError(t, err)

	return ruleset
}

func TestApply_SplitsSentences(t *testing.T) {
	t.Parallel()

	result := transform.Apply(mustParse(t, sentenceSplitRules), "Hello. How are you? Fine!")

	assert.Equal(t, "Hello.\n How are you?\n Fine!\n", result)
}

func TestApply_ProtectionKeepsDecimalsTogether(t *testing.T) {
	t.Parallel()

	result := transform.Apply(mustParse(t, protectedSplitRules), "Version 3.14 is out.")

	assert.Equal(t, "Version 3.14 is out.\n", result)
}

func TestApply_NilAndEmptyRulesetPassThrough(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unchanged text", transform.Apply(nil, "unchanged text"))
	assert.Equal(t, "unchanged text", transform.Apply(mustParse(t, "# nothing\n"), "unchanged text"))
}

func TestApply_ApplyOnlyEqualsSequentialReplacement(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/colour/color/
s/(\d+) ?km/$1 kilometres/
Dr.
Doctor
s/\s+/ /

[DO]
s/o/0/
`)

	inputs := []string{
		"",
		"colour colour",
		"Dr. Who drove 12km and then 3 km in colour.",
		"nothing to see here",
		"Dr.Dr.  km 5 km",
	}

	for _, input := range inputs {
		expected := input
		for _, section := range ruleset.Sections {
			for _, rule := range section.Apply {
				expected = rule.ReplaceAll(expected)
			}
		}

		assert.Equal(t, expected, transform.Apply(ruleset, input), input)
	}
}

func TestApply_ProtectedSpansAreNeverPartiallyReplaced(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/\./<dot>/

[DO NOT]
/\d+\.\d+/
e.g.
`)

	inputs := []string{
		"Pi is 3.14. E is 2.71.",
		"e.g. 1.2.3 is a version.",
		"No numbers. Just dots...",
		"10.5.",
		".5 and 5. and 5.5",
	}

	for _, input := range inputs {
		spans := transform.Protect(ruleset.Sections[0].Protect, input)
		output := transform.Apply(ruleset, input)

		protectedDots := 0
		for _, span := range spans {
			protectedText := input[span.Start:span.End]
			assert.Contains(t, output, protectedText, input)
			protectedDots += strings.Count(protectedText, ".")
		}

		expectedReplaced := strings.Count(input, ".") - protectedDots
		assert.Equal(t, expectedReplaced, strings.Count(output, "<dot>"), input)
	}
}

func TestApply_PartialOverlapIsSkipped(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/2 ab 3/X/
s/ab/Y/

[DO NOT]
/12/
/34/
`)

	assert.Equal(t, "12 Y 34", transform.Apply(ruleset, "12 ab 34"))
}

func TestApply_EmptyMatchesInsideSpanAreSkipped(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/\b/|/

[DO NOT]
/3\.14/
`)

	assert.Equal(t, "|v| |3.14| |x|", transform.Apply(ruleset, "v 3.14 x"))
}

func TestSpan_IntersectsEmptyMatch(t *testing.T) {
	t.Parallel()

	span := transform.Span{Start: 2, End: 6}

	tests := []struct {
		at       int
		expected bool
	}{
		{at: 1, expected: false},
		{at: 2, expected: false},
		{at: 3, expected: true},
		{at: 5, expected: true},
		{at: 6, expected: false},
	}

	for _, testCase := range tests {
		assert.Equal(t, testCase.expected, span.Intersects(rules.Match{Start: testCase.at, End: testCase.at, Submatches: nil}), testCase.at)
	}
}

func TestApply_SpansFollowOffsetDrift(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/a/AAAA/
s/\./ dot /

[DO NOT]
/\d+\.\d+/
`)

	assert.Equal(t, "AAAAAAAAAAAA 3.14 x dot y", transform.Apply(ruleset, "aaa 3.14 x.y"))
}

func TestApply_ShrinkingReplacementsBeforeSpan(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/long prefix //
s/#/!/

[DO NOT]
/#keep#/
`)

	assert.Equal(t, "!a #keep# !b", transform.Apply(ruleset, "long prefix #a #keep# #b"))
}

func TestApply_ProtectionIsComputedOncePerSection(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/x/KEEP/
s/K/k/

[DO NOT]
/KEEP/
`)

	assert.Equal(t, "kEEP KEEP", transform.Apply(ruleset, "x KEEP"))
}

func TestApply_ProtectionIsScopedToItsSection(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/a/b/

[DO NOT]
/a1/

[DO]
s/a/c/
`)

	assert.Equal(t, "b c1", transform.Apply(ruleset, "a a1"))
}

func TestApply_SectionsChainInFileOrder(t *testing.T) {
	t.Parallel()

	ruleset := mustParse(t, `[DO]
s/cat/dog/

[DO]
s/dog/wolf/
`)

	assert.Equal(t, "wolf wolf", transform.Apply(ruleset, "cat dog"))
}

func TestApply_IsNotIdempotentInGeneral(t *testing.T) {
	t.Parallel()

	growing := mustParse(t, "[DO]\ns/a/aa/\n")

	once := transform.Apply(growing, "a")
	twice := transform.Apply(growing, once)

	assert.Equal(t, "aa", once)
	assert.Equal(t, "aaaa", twice, "rules re-match their own replacements on a second run")

	selfProtecting := mustParse(t, "[DO]\ns/\\ba\\b/aa/\n\n[DO NOT]\n/aa/\n")

	once = transform.Apply(selfProtecting, "a b")
	assert.Equal(t, "aa b", once)
	assert.Equal(t, once, transform.Apply(selfProtecting, once))
}

func TestEngine_TraceReportsEveryDecision(t *testing.T) {
	t.Parallel()

	var events []transform.Event

	engine := transform.Engine{Trace: func(event transform.Event) {
		events = append(events, event)
	}}

	result := engine.Apply(mustParse(t, protectedSplitRules), "At 3.14 pm. Done")

	assert.Equal(t, "At 3.14 pm.\n Done", result)
	require.Len(t, events, 3)

	assert.Equal(t, transform.EventProtected, events[0].Kind)
	assert.Equal(t, "3.14", events[0].Text)
	assert.Equal(t, 1, events[0].Section)

	assert.Equal(t, transform.EventSkipped, events[1].Kind)
	assert.Equal(t, transform.Span{Start: 4, End: 5}, events[1].Span)

	assert.Equal(t, transform.EventApplied, events[2].Kind)
	assert.Equal(t, ".\n", events[2].Replacement)
	assert.Equal(t, 2, events[2].Rule.Source.Line)
}

func TestApply_Golden(t *testing.T) {
	t.Parallel()

	ruleset, err := rules.ParseFile(filepath.Join("testdata", "sentences.rules"), rules.ParseOptions{DefaultFlags: ""})
	require.NoError(t, err)

	input, err := os.ReadFile(filepath.Join("testdata", "sample.txt"))
	require.NoError(t, err)

	golden := goldie.New(t)
	golden.Assert(t, "sentences", []byte(transform.Apply(ruleset, string(input))))
}
