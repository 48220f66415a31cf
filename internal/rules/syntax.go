package rules

import (
	"strings"
)

// Delimiters accepted after the leading "s" of a substitution rule.
const substitutionDelimiters = `/|_:%"!@~`

const patternDelimiter = '/'

// Flags accepted after the closing delimiter of a regex rule.
const validFlags = "imsU"

// ruleSyntax is the split form of an "s/PATTERN/REPLACEMENT/FLAGS" or "/PATTERN/FLAGS" line.
type ruleSyntax struct {
	delim       byte
	pattern     string
	replacement string
	flags       string
}

func isSubstitutionDelimiter(ch byte) bool {
	return strings.IndexByte(substitutionDelimiters, ch) >= 0
}

// looksLikeSubstitution reports whether line starts the way an s-rule does.
func looksLikeSubstitution(line string) bool {
	return len(line) >= 2 && line[0] == 's' && isSubstitutionDelimiter(line[1])
}

func looksLikePattern(line string) bool {
	return len(line) >= 1 && line[0] == patternDelimiter
}

func looksLikeRegexRule(line string) bool {
	return looksLikeSubstitution(line) || looksLikePattern(line)
}

// splitSubstitution parses "s<d>PATTERN<d>REPLACEMENT<d>FLAGS".
func splitSubstitution(line string) (ruleSyntax, bool) {
	delim := line[1]

	fields, rest, ok := splitFields(line[2:], delim, 2)
	if !ok || fields[0] == "" || !isFlagWord(rest) {
		return ruleSyntax{delim: delim, pattern: "", replacement: "", flags: ""}, false
	}

	return ruleSyntax{delim: delim, pattern: fields[0], replacement: fields[1], flags: rest}, true
}

// splitPattern parses "/PATTERN/FLAGS".
func splitPattern(line string) (ruleSyntax, bool) {
	fields, rest, ok := splitFields(line[1:], patternDelimiter, 1)
	if !ok || fields[0] == "" || !isFlagWord(rest) {
		return ruleSyntax{delim: patternDelimiter, pattern: "", replacement: "", flags: ""}, false
	}

	return ruleSyntax{delim: patternDelimiter, pattern: fields[0], replacement: "", flags: rest}, true
}

// splitFields cuts count delimiter-terminated fields off body. Escaped characters
// are kept with their backslash. In the first field, a delimiter inside a
// bracketed character class does not end the field.
func splitFields(body string, delim byte, count int) ([]string, string, bool) {
	fields := make([]string, 0, count)
	start := 0
	inClass := false
	classStart := -1

	for i := 0; i < len(body) && len(fields) < count; i++ {
		ch := body[i]

		switch {
		case ch == '\\':
			i++
		case len(fields) == 0 && !inClass && ch == '[':
			inClass = true
			classStart = i
		case inClass && ch == ']' && !isClassLeadingBracket(body, classStart, i):
			inClass = false
		case !inClass && ch == delim:
			fields = append(fields, body[start:i])
			start = i + 1
		}
	}

	if len(fields) < count {
		return nil, "", false
	}

	return fields, body[start:], true
}

// isClassLeadingBracket reports whether the ']' at i is the literal first member
// of the class opened at classStart, as in "[]a]" or "[^]a]".
func isClassLeadingBracket(body string, classStart, i int) bool {
	if i == classStart+1 {
		return true
	}

	return i == classStart+2 && body[classStart+1] == '^'
}

func isFlagWord(s string) bool {
	for i := range len(s) {
		ch := s[i]
		if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') {
			return false
		}
	}

	return true
}

// ValidateFlags checks a flag word such as "is". Each flag may appear once.
func ValidateFlags(flags string) bool {
	for i := range len(flags) {
		if strings.IndexByte(validFlags, flags[i]) < 0 {
			return false
		}

		if strings.IndexByte(flags[i+1:], flags[i]) >= 0 {
			return false
		}
	}

	return true
}

// flagPrefix builds the inline flag group for the union of two flag words.
func flagPrefix(defaults, flags string) string {
	var merged strings.Builder

	for i := range len(validFlags) {
		ch := validFlags[i]
		if strings.IndexByte(defaults, ch) >= 0 || strings.IndexByte(flags, ch) >= 0 {
			merged.WriteByte(ch)
		}
	}

	if merged.Len() == 0 {
		return ""
	}

	return "(?" + merged.String() + ")"
}

// unescapeLine removes the single leading backslash that lets a literal line
// start with '[', '/', "s/" or '#'.
func unescapeLine(line string) string {
	if strings.HasPrefix(line, `\`) {
		return line[1:]
	}

	return line
}
