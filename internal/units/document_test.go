package units_test

import (
	"testing"

	"github.com/book-expert/read-aloud/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "The cat sat.\nA dog barked.\nThe CAT ran.\nBirds sang 3 songs.\n"

func TestDocument_Navigation(t *testing.T) {
	t.Parallel()

	doc := units.NewDocument(sampleText, units.Splitter{Separator: nil})

	assert.Equal(t, 4, doc.Len())
	assert.Equal(t, sampleText, doc.Source)

	unit, err := doc.Unit(2)
	require.NoError(t, err)
	assert.Equal(t, "A dog barked.", unit.Text)

	_, err = doc.Unit(0)
	require.ErrorIs(t, err, units.ErrOutOfRange)

	_, err = doc.Unit(5)
	require.ErrorIs(t, err, units.ErrOutOfRange)

	assert.Equal(t, 1, doc.Clamp(-3))
	assert.Equal(t, 4, doc.Clamp(99))
	assert.Equal(t, 3, doc.Clamp(3))
	assert.Equal(t, 0, units.NewDocument("", units.Splitter{Separator: nil}).Clamp(1))
}

func TestDocument_UnitsReturnsCopy(t *testing.T) {
	t.Parallel()

	doc := units.NewDocument(sampleText, units.Splitter{Separator: nil})

	all := doc.Units()
	all[0].Text = "changed"

	unit, err := doc.Unit(1)
	require.NoError(t, err)
	assert.Equal(t, "The cat sat.", unit.Text)
}

func TestDocument_Texts(t *testing.T) {
	t.Parallel()

	doc := units.NewDocument(sampleText, units.Splitter{Separator: nil})

	assert.Equal(t, []string{"The cat sat.", "A dog barked.", "The CAT ran.", "Birds sang 3 songs."}, doc.Texts())
	assert.Empty(t, units.NewDocument("\n", units.Splitter{Separator: nil}).Texts())
}

func TestDocument_Find(t *testing.T) {
	t.Parallel()

	doc := units.NewDocument(sampleText, units.Splitter{Separator: nil})

	tests := []struct {
		name     string
		query    units.Query
		from     int
		dir      units.Direction
		expected int
	}{
		{name: "plain ignoring case", query: units.Query{Expression: "cat", Regex: false, CaseSensitive: false}, from: 2, dir: units.Forward, expected: 3},
		{name: "start is inclusive", query: units.Query{Expression: "cat", Regex: false, CaseSensitive: false}, from: 1, dir: units.Forward, expected: 1},
		{name: "case sensitive", query: units.Query{Expression: "CAT", Regex: false, CaseSensitive: true}, from: 1, dir: units.Forward, expected: 3},
		{name: "backward", query: units.Query{Expression: "the", Regex: false, CaseSensitive: false}, from: 2, dir: units.Backward, expected: 1},
		{name: "regex", query: units.Query{Expression: `\d+ songs`, Regex: true, CaseSensitive: false}, from: 1, dir: units.Forward, expected: 4},
		{name: "regex ignoring case", query: units.Query{Expression: `^a \w+`, Regex: true, CaseSensitive: false}, from: 1, dir: units.Forward, expected: 2},
		{name: "plain text is not a regex", query: units.Query{Expression: "sat.", Regex: false, CaseSensitive: true}, from: 1, dir: units.Forward, expected: 1},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			index, err := doc.Find(testCase.query, testCase.from, testCase.dir)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, index)
		})
	}
}

func TestDocument_FindFailures(t *testing.T) {
	t.Parallel()

	doc := units.NewDocument(sampleText, units.Splitter{Separator: nil})

	_, err := doc.Find(units.Query{Expression: "cat", Regex: false, CaseSensitive: true}, 2, units.Forward)
	require.ErrorIs(t, err, units.ErrNotFound, "the search does not wrap around")

	_, err = doc.Find(units.Query{Expression: "birds", Regex: false, CaseSensitive: false}, 3, units.Backward)
	require.ErrorIs(t, err, units.ErrNotFound)

	_, err = doc.Find(units.Query{Expression: "", Regex: false, CaseSensitive: false}, 1, units.Forward)
	require.ErrorIs(t, err, units.ErrEmptyQuery)

	_, err = doc.Find(units.Query{Expression: "(", Regex: true, CaseSensitive: false}, 1, units.Forward)
	require.ErrorIs(t, err, units.ErrInvalidQuery)
}
