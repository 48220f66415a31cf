package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type partKind int

const (
	partLiteral partKind = iota
	partGroup
	partUpper
	partLower
)

type templatePart struct {
	kind  partKind
	text  string
	group int
	parts []templatePart
}

// Template is a replacement with its backreferences resolved to group numbers.
// Both "$N" and "\N" are normalised to the same part when the rule is parsed.
type Template struct {
	parts []templatePart
}

func literalTemplate(text string) Template {
	if text == "" {
		return Template{parts: nil}
	}

	return Template{parts: []templatePart{{kind: partLiteral, text: text, group: 0, parts: nil}}}
}

// expand writes the replacement for one match in text.
func (t Template) expand(dst *strings.Builder, text string, submatches []int) {
	expandParts(dst, t.parts, text, submatches)
}

func expandParts(dst *strings.Builder, parts []templatePart, text string, submatches []int) {
	for _, part := range parts {
		switch part.kind {
		case partLiteral:
			dst.WriteString(part.text)
		case partGroup:
			start, end := submatches[2*part.group], submatches[2*part.group+1]
			if start >= 0 && end >= 0 {
				dst.WriteString(text[start:end])
			}
		case partUpper, partLower:
			var inner strings.Builder

			expandParts(&inner, part.parts, text, submatches)

			if part.kind == partUpper {
				dst.WriteString(strings.ToUpper(inner.String()))
			} else {
				dst.WriteString(strings.ToLower(inner.String()))
			}
		}
	}
}

// templateParser turns the raw REPLACEMENT field of an s-rule into a Template.
type templateParser struct {
	src   string
	pos   int
	delim byte
	re    *regexp.Regexp
}

func parseTemplate(src string, delim byte, re *regexp.Regexp) (Template, string) {
	p := &templateParser{src: src, pos: 0, delim: delim, re: re}

	parts, reason := p.parse(true)
	if reason != "" {
		return Template{parts: nil}, reason
	}

	return Template{parts: parts}, ""
}

func (p *templateParser) parse(allowCase bool) ([]templatePart, string) {
	var (
		parts   []templatePart
		literal strings.Builder
	)

	flush := func() {
		if literal.Len() > 0 {
			parts = append(parts, templatePart{kind: partLiteral, text: literal.String(), group: 0, parts: nil})
			literal.Reset()
		}
	}

	for p.pos < len(p.src) {
		ch := p.src[p.pos]

		switch {
		case ch == '\\':
			if p.pos+1 >= len(p.src) {
				return nil, reasonTrailingBackslash
			}

			next := p.src[p.pos+1]
			if isDigit(next) {
				group, reason := p.number(p.pos + 1)
				if reason != "" {
					return nil, reason
				}

				flush()
				parts = append(parts, templatePart{kind: partGroup, text: "", group: group, parts: nil})

				continue
			}

			literal.WriteString(unescape(next, p.delim))
			p.pos += 2
		case ch == '$':
			group, ok, reason := p.dollar()
			if reason != "" {
				return nil, reason
			}

			if !ok {
				literal.WriteByte('$')
				p.pos++

				continue
			}

			flush()
			parts = append(parts, templatePart{kind: partGroup, text: "", group: group, parts: nil})
		case ch == '{' && allowCase && p.caseOpener():
			kind := partUpper
			if strings.EqualFold(p.src[p.pos+1:p.pos+3], "lc") {
				kind = partLower
			}

			closing := p.closingBrace(p.pos + 4)
			if closing < 0 {
				return nil, reasonUnterminatedCase
			}

			inner := &templateParser{src: p.src[p.pos+4 : closing], pos: 0, delim: p.delim, re: p.re}

			nested, reason := inner.parse(false)
			if reason != "" {
				return nil, reason
			}

			flush()
			parts = append(parts, templatePart{kind: kind, text: "", group: 0, parts: nested})
			p.pos = closing + 1
		default:
			literal.WriteByte(ch)
			p.pos++
		}
	}

	flush()

	return parts, ""
}

func (p *templateParser) caseOpener() bool {
	if p.pos+4 > len(p.src) || p.src[p.pos+3] != ':' {
		return false
	}

	name := p.src[p.pos+1 : p.pos+3]

	return strings.EqualFold(name, "uc") || strings.EqualFold(name, "lc")
}

// closingBrace finds the first unescaped '}' at or after from. The braces of
// a "${...}" group reference do not count.
func (p *templateParser) closingBrace(from int) int {
	for i := from; i < len(p.src); i++ {
		switch p.src[i] {
		case '\\':
			i++
		case '$':
			if i+1 < len(p.src) && p.src[i+1] == '{' {
				end := strings.IndexByte(p.src[i+2:], '}')
				if end < 0 {
					return -1
				}

				i += end + 2
			}
		case '}':
			return i
		}
	}

	return -1
}

// number reads a run of digits starting at start and resolves it as a group.
func (p *templateParser) number(start int) (int, string) {
	end := start
	for end < len(p.src) && isDigit(p.src[end]) {
		end++
	}

	group, err := strconv.Atoi(p.src[start:end])
	if err != nil {
		return 0, err.Error()
	}

	p.pos = end

	return group, p.checkGroup(group)
}

// dollar handles "$$", "$N" and "${N}" / "${name}". ok is false for a lone '$'.
func (p *templateParser) dollar() (int, bool, string) {
	if p.pos+1 >= len(p.src) {
		return 0, false, ""
	}

	next := p.src[p.pos+1]

	switch {
	case next == '$':
		p.pos++

		return 0, false, ""
	case isDigit(next):
		group, reason := p.number(p.pos + 1)

		return group, true, reason
	case next == '{':
		end := strings.IndexByte(p.src[p.pos+2:], '}')
		if end < 0 {
			return 0, false, reasonUnterminatedBracket
		}

		name := p.src[p.pos+2 : p.pos+2+end]
		p.pos += end + 3

		group, err := strconv.Atoi(name)
		if err != nil {
			group = p.re.SubexpIndex(name)
			if group < 0 {
				return 0, false, fmt.Sprintf("reference to unknown group %q", name)
			}
		}

		return group, true, p.checkGroup(group)
	default:
		return 0, false, ""
	}
}

func (p *templateParser) checkGroup(group int) string {
	if group < 0 {
		return fmt.Sprintf(reasonNegativeGroup, group)
	}

	if group > p.re.NumSubexp() {
		return fmt.Sprintf(reasonBadGroupReference, group, p.re.NumSubexp())
	}

	return ""
}

func unescape(ch, delim byte) string {
	switch ch {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case '\\', '$', '{', '}', delim:
		return string(ch)
	default:
		return "\\" + string(ch)
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
