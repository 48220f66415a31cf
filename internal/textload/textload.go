// Package textload reads input text files into normalised UTF-8 strings.
package textload

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnknownEncoding is returned for an encoding name that is not recognised.
	ErrUnknownEncoding = errors.New("unknown text encoding")

	// ErrReadInput is returned when the input cannot be read or decoded.
	ErrReadInput = errors.New("failed to read input text")
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "utf-8"

// Text is a decoded input file.
type Text struct {
	Path        string
	Content     string
	Fingerprint string
}

// Loader decodes input files. The zero value reads UTF-8.
type Loader struct {
	// Encoding is a WHATWG encoding label such as "utf-8", "latin1" or "windows-1252".
	Encoding string
}

// LoadFile reads and decodes the file at path.
func (l Loader) LoadFile(path string) (*Text, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	defer file.Close()

	text, err := l.Load(file)
	if err != nil {
		return nil, err
	}

	text.Path = path

	return text, nil
}

// Load decodes r. A leading byte order mark selects UTF-8 or UTF-16 and is
// removed; otherwise the configured encoding is used. Line endings are
// normalised to "\n" and the result to Unicode NFC.
func (l Loader) Load(r io.Reader) (*Text, error) {
	fallback, err := lookup(l.Encoding)
	if err != nil {
		return nil, err
	}

	decoder := unicode.BOMOverride(fallback.NewDecoder())

	raw, err := io.ReadAll(transform.NewReader(r, decoder))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}

	content := norm.NFC.String(normaliseLineEndings(string(raw)))

	return &Text{
		Path:        "",
		Content:     content,
		Fingerprint: Fingerprint(content),
	}, nil
}

// Fingerprint returns the hex BLAKE3 digest of content.
func Fingerprint(content string) string {
	sum := blake3.Sum256([]byte(content))

	return hex.EncodeToString(sum[:])
}

func lookup(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultEncoding
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}

	return enc, nil
}

func normaliseLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	return strings.ReplaceAll(text, "\r", "\n")
}
