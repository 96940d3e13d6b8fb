// Package isa loads the instruction grammar: an ordered list of bit-pattern
// templates with their rendering and callback specs, plus the named tables
// used to render enumerated operands.
//
// A catalog is built once at program start and is read-only afterwards, so
// it can be shared by any number of concurrent section scans.
package isa

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// DefaultGrammarFile is the grammar looked up when no path is configured.
const DefaultGrammarFile = "videocoreiv.arch"

const tableDirective = "(define-table"

// Catalog is the parsed grammar.
type Catalog struct {
	templates []*Template
	tables    map[byte][]string
}

// New builds a catalog from already parsed templates and tables. Template
// order is kept as given.
func New(templates []*Template, tables map[byte][]string) *Catalog {
	c := &Catalog{
		templates: slices.Clone(templates),
		tables:    make(map[byte][]string, len(tables)),
	}
	for tag, entries := range tables {
		c.tables[tag] = slices.Clone(entries)
	}
	return c
}

// LoadFile reads and parses a grammar file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load grammar %s: %w", path, err)
	}
	return c, nil
}

// Load parses grammar text. Blank lines and lines starting with '#' are
// ignored, "(define-table X [a, b, ...])" declares a table, other lines
// starting with '(' are ignored and every remaining line declares an
// instruction: `<bit-pattern> "<format>" ["<callback>"]`.
func Load(r io.Reader) (*Catalog, error) {
	c := &Catalog{tables: make(map[byte][]string)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "", strings.HasPrefix(line, "#"):
			continue

		case strings.HasPrefix(line, tableDirective):
			tag, entries, err := parseTable(line)
			if err != nil {
				return nil, atLine(err, lineNo, line)
			}
			c.tables[tag] = entries

		case strings.HasPrefix(line, "("):
			continue

		default:
			t, err := parseInstruction(line)
			if err != nil {
				return nil, atLine(err, lineNo, line)
			}
			t.Line = lineNo
			c.templates = append(c.templates, t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	return c, nil
}

// Templates returns the templates in declaration order. The slice is shared
// and must not be modified.
func (c *Catalog) Templates() []*Template { return c.templates }

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }

// Table returns the display strings for an operand letter, if the letter is
// a table tag.
func (c *Catalog) Table(tag byte) ([]string, bool) {
	t, ok := c.tables[tag]
	return t, ok
}

// IsTable reports whether tag names a table.
func (c *Catalog) IsTable(tag byte) bool {
	_, ok := c.tables[tag]
	return ok
}

// TableTags returns all table tags, sorted.
func (c *Catalog) TableTags() []byte {
	tags := make([]byte, 0, len(c.tables))
	for tag := range c.tables {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// CountByLength returns the number of templates per byte length.
func (c *Catalog) CountByLength() map[int]int {
	counts := make(map[int]int)
	for _, t := range c.templates {
		counts[t.ByteLength]++
	}
	return counts
}

func parseTable(line string) (byte, []string, error) {
	def := strings.TrimSpace(line[len(tableDirective):])
	if def == "" {
		return 0, nil, grammarErrorf(line, nil, "table declaration without tag")
	}
	tag := def[0]

	open := strings.IndexByte(def, '[')
	if open < 0 {
		return 0, nil, grammarErrorf(line, nil, "table declaration without entry list")
	}

	clean := strings.NewReplacer(`"`, "", "[", "", "]", "", ")", "")
	var entries []string
	for _, entry := range strings.Split(def[open+1:], ",") {
		entries = append(entries, clean.Replace(strings.TrimSpace(entry)))
	}
	return tag, entries, nil
}

func parseInstruction(line string) (*Template, error) {
	q1 := strings.IndexByte(line, '"')
	if q1 < 0 {
		return nil, grammarErrorf(line, nil, "instruction declaration without format string")
	}
	q2 := strings.IndexByte(line[q1+1:], '"')
	if q2 < 0 {
		return nil, grammarErrorf(line, nil, "unterminated format string")
	}
	q2 += q1 + 1

	pattern := line[:q1]
	format := line[q1+1 : q2]

	var callback string
	if q3 := strings.IndexByte(line[q2+1:], '"'); q3 >= 0 {
		q3 += q2 + 1
		q4 := strings.IndexByte(line[q3+1:], '"')
		if q4 < 0 {
			return nil, grammarErrorf(line, nil, "unterminated callback string")
		}
		callback = line[q3+1 : q3+1+q4]
	}

	return NewTemplate(pattern, format, callback)
}

// atLine stamps a grammar error with its source line.
func atLine(err error, lineNo int, line string) error {
	var ge *GrammarError
	if errors.As(err, &ge) {
		ge.Line = lineNo
		ge.Text = line
		return ge
	}
	return &GrammarError{Line: lineNo, Text: line, Reason: "invalid declaration", Err: err}
}
