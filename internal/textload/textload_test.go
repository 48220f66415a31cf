package textload_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/read-aloud/internal/textload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Decoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		encoding string
		input    []byte
		expected string
	}{
		{name: "plain utf-8", encoding: "", input: []byte("Hello.\nBye."), expected: "Hello.\nBye."},
		{name: "utf-8 bom removed", encoding: "", input: []byte("\xef\xbb\xbfHello."), expected: "Hello."},
		{name: "utf-16le bom", encoding: "", input: []byte{0xff, 0xfe, 'H', 0, 'i', 0}, expected: "Hi"},
		{name: "utf-16be bom", encoding: "latin1", input: []byte{0xfe, 0xff, 0, 'H', 0, 'i'}, expected: "Hi"},
		{name: "latin1", encoding: "latin1", input: []byte("caf\xe9"), expected: "caf\u00e9"},
		{name: "windows-1252 quotes", encoding: "windows-1252", input: []byte("\x93quoted\x94"), expected: "“quoted”"},
		{name: "crlf and cr", encoding: "utf-8", input: []byte("a\r\nb\rc\n"), expected: "a\nb\nc\n"},
		{name: "nfc", encoding: "utf-8", input: []byte("cafe\u0301"), expected: "caf\u00e9"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			loader := textload.Loader{Encoding: testCase.encoding}

			text, err := loader.Load(bytes.NewReader(testCase.input))
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, text.Content)
			assert.Equal(t, textload.Fingerprint(testCase.expected), text.Fingerprint)
		})
	}
}

func TestLoad_UnknownEncoding(t *testing.T) {
	t.Parallel()

	loader := textload.Loader{Encoding: "klingon-8"}

	_, err := loader.Load(strings.NewReader("x"))
	require.ErrorIs(t, err, textload.ErrUnknownEncoding)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(path, []byte("One.\nTwo.\n"), 0o600))

	text, err := textload.Loader{Encoding: ""}.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, text.Path)
	assert.Equal(t, "One.\nTwo.\n", text.Content)

	_, err = textload.Loader{Encoding: ""}.LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, textload.ErrReadInput)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	first := textload.Fingerprint("some text")

	assert.Len(t, first, 64)
	assert.Equal(t, first, textload.Fingerprint("some text"))
	assert.NotEqual(t, first, textload.Fingerprint("some text."))
}
