// Package rules parses rules files into rulesets and matches their rules.
//
// A rules file is a line-oriented list of rules grouped into "[DO]" sections,
// whose rules rewrite text, each optionally followed by a "[DO NOT]" section
// whose rules mark text the preceding "[DO]" rules must leave alone.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const (
	commentMarker  = '#'
	headerDo       = "do"
	headerDoNot    = "donot"
	maxLineBytes   = 1024 * 1024
	utf8ByteOrder  = "\ufeff"
	segmentKeyword = "segment"
)

// ParseOptions controls how rule patterns are compiled.
type ParseOptions struct {
	// DefaultFlags are regex flags applied to every pattern rule, e.g. "i".
	DefaultFlags string
}

// Section is one "[DO]" group of transformation rules and the protection rules
// of the "[DO NOT]" group that immediately followed it.
type Section struct {
	Apply   []*Rule
	Protect []*Rule
	// HasProtect is true when a "[DO NOT]" header was given, even if empty.
	HasProtect bool
}

// Ruleset is the ordered list of sections parsed from one rules file.
type Ruleset struct {
	File     string
	Sections []Section
}

// Empty reports whether the ruleset has no transformation rules at all.
func (rs *Ruleset) Empty() bool {
	if rs == nil {
		return true
	}

	for _, section := range rs.Sections {
		if len(section.Apply) > 0 {
			return false
		}
	}

	return true
}

// ParseFile reads and parses the rules file at path.
func ParseFile(path string, opts ParseOptions) (*Ruleset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRulesFileNotFound, err)
	}
	defer file.Close()

	return Parse(path, file, opts)
}

// Parse reads a rules file from r. The name is used in error messages only.
// The whole file is rejected on the first error.
func Parse(name string, r io.Reader, opts ParseOptions) (*Ruleset, error) {
	if !ValidateFlags(opts.DefaultFlags) {
		return nil, malformed(name, 0, reasonInvalidFlags, opts.DefaultFlags)
	}

	p := &parser{
		file:     name,
		opts:     opts,
		sections: nil,
		current:  nil,
		explicit: false,
		protect:  false,
		pending:  nil,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, utf8ByteOrder)
		}

		err := p.line(lineNo, strings.TrimSpace(line))
		if err != nil {
			return nil, err
		}
	}

	err := scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		return nil, malformed(name, lineNo+1, reasonLineTooLong, maxLineBytes)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", name, err)
	}

	if p.pending != nil {
		return nil, malformed(name, p.pending.Source.Line, reasonMissingReplacement, p.pending.Pattern)
	}

	sections := make([]Section, 0, len(p.sections))
	for _, section := range p.sections {
		sections = append(sections, *section)
	}

	return &Ruleset{File: name, Sections: sections}, nil
}

type parser struct {
	file     string
	opts     ParseOptions
	sections []*Section
	current  *Section
	// explicit is true when current was opened by a "[DO]" header.
	explicit bool
	protect  bool
	// pending is a literal transformation rule waiting for its replacement line.
	pending *Rule
}

func (p *parser) line(lineNo int, line string) error {
	if line == "" || line[0] == commentMarker {
		return nil
	}

	if line[0] == '[' {
		return p.header(lineNo, line)
	}

	if p.pending != nil {
		return p.replacement(lineNo, line)
	}

	if p.current == nil {
		p.open(false)
	}

	switch {
	case looksLikeSubstitution(line):
		return p.substitution(lineNo, line)
	case looksLikePattern(line):
		return p.pattern(lineNo, line)
	default:
		return p.literal(lineNo, line)
	}
}

func (p *parser) open(explicit bool) {
	p.current = &Section{Apply: nil, Protect: nil, HasProtect: false}
	p.sections = append(p.sections, p.current)
	p.explicit = explicit
	p.protect = false
}

func (p *parser) header(lineNo int, line string) error {
	if p.pending != nil {
		return malformed(p.file, p.pending.Source.Line, reasonMissingReplacement, p.pending.Pattern)
	}

	if len(line) < 2 || line[len(line)-1] != ']' {
		return malformed(p.file, lineNo, reasonUnterminatedHeader, line)
	}

	switch canonicalHeader(line[1 : len(line)-1]) {
	case headerDo:
		p.open(true)
	case headerDoNot:
		if p.current == nil || (!p.explicit && len(p.current.Apply) == 0) {
			return malformed(p.file, lineNo, reasonOrphanProtect)
		}

		if p.current.HasProtect {
			return malformed(p.file, lineNo, reasonDoubleProtect)
		}

		p.current.HasProtect = true
		p.protect = true
	default:
		return malformed(p.file, lineNo, reasonUnknownHeader, line)
	}

	return nil
}

// canonicalHeader maps "DO NOT", "do not segment" and similar to "donot".
func canonicalHeader(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, segmentKeyword, "")

	return strings.Join(strings.Fields(name), "")
}

func (p *parser) substitution(lineNo int, line string) error {
	syntax, ok := splitSubstitution(line)
	if !ok {
		return malformed(p.file, lineNo, reasonUnterminatedRule)
	}

	rule, err := p.compile(lineNo, line, syntax)
	if err != nil {
		return err
	}

	if p.protect {
		p.current.Protect = append(p.current.Protect, rule)

		return nil
	}

	template, reason := parseTemplate(syntax.replacement, syntax.delim, rule.regex)
	if reason != "" {
		return invalid(p.file, lineNo, reason)
	}

	rule.template = template
	p.current.Apply = append(p.current.Apply, rule)

	return nil
}

func (p *parser) pattern(lineNo int, line string) error {
	syntax, ok := splitPattern(line)
	if !ok {
		return malformed(p.file, lineNo, reasonUnterminatedRule)
	}

	if !p.protect {
		return malformed(p.file, lineNo, reasonPatternInApply)
	}

	rule, err := p.compile(lineNo, line, syntax)
	if err != nil {
		return err
	}

	p.current.Protect = append(p.current.Protect, rule)

	return nil
}

func (p *parser) compile(lineNo int, line string, syntax ruleSyntax) (*Rule, error) {
	if !ValidateFlags(syntax.flags) {
		return nil, malformed(p.file, lineNo, reasonInvalidFlags, syntax.flags)
	}

	regex, err := regexp.Compile(flagPrefix(p.opts.DefaultFlags, syntax.flags) + syntax.pattern)
	if err != nil {
		return nil, invalid(p.file, lineNo, err.Error())
	}

	return &Rule{
		Kind:     Pattern,
		Source:   Source{File: p.file, Line: lineNo, Definition: line},
		Pattern:  syntax.pattern,
		regex:    regex,
		template: Template{parts: nil},
	}, nil
}

func (p *parser) literal(lineNo int, line string) error {
	text := unescapeLine(line)
	if text == "" {
		return malformed(p.file, lineNo, reasonEmptyLiteral)
	}

	rule := &Rule{
		Kind:     Literal,
		Source:   Source{File: p.file, Line: lineNo, Definition: line},
		Pattern:  text,
		regex:    regexp.MustCompile(regexp.QuoteMeta(text)),
		template: Template{parts: nil},
	}

	if p.protect {
		p.current.Protect = append(p.current.Protect, rule)

		return nil
	}

	p.pending = rule

	return nil
}

func (p *parser) replacement(lineNo int, line string) error {
	rule := p.pending
	p.pending = nil

	if looksLikeRegexRule(line) {
		return malformed(p.file, lineNo, reasonReplacementIsRegex, rule.Pattern)
	}

	rule.template = literalTemplate(unescapeLine(line))
	rule.Source.Definition += "\n" + line
	p.current.Apply = append(p.current.Apply, rule)

	return nil
}
