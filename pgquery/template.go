// Package pgquery implements the SQL template language of the routes
// configuration. A template is plain SQL text with named holes written as
// {{name}}; holes are bound per request from a JSON parameter bag. Binding
// produces a parameterised statement ($1, $2, ...) with an argument vector,
// so the database driver performs the actual value encoding. The legacy
// inline rendering, where values are quoted into the SQL text, is kept for
// diagnostics.
package pgquery

import (
	"errors"
	"strings"
)

type fragmentKind int

const (
	literalFragment fragmentKind = iota
	holeFragment
)

type fragment struct {
	kind fragmentKind
	text string
}

// Template represents a parsed SQL template. Immutable after Parse.
type Template struct {
	source    string
	fragments []fragment
}

// ErrEmptyTemplate is returned by Parse for input without any SQL text.
var ErrEmptyTemplate = errors.New("empty template")

// MissingError is returned when a template hole has no binding in the bag.
// Name is the first unbound hole in source order.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return "no binding for template hole: " + e.Name
}

func isHoleNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == ':'
}

// Parse scans text for {{name}} holes and returns the template. Whitespace
// inside the braces is ignored. A '{{' that is not followed by a valid hole
// name and '}}' is taken literally.
func Parse(text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyTemplate
	}

	t := &Template{source: text}
	var literal strings.Builder
	for len(text) > 0 {
		open := strings.Index(text, "{{")
		if open < 0 {
			literal.WriteString(text)
			break
		}

		name, rest, ok := scanHole(text[open+2:])
		if !ok {
			literal.WriteString(text[:open+2])
			text = text[open+2:]
			continue
		}

		literal.WriteString(text[:open])
		if literal.Len() > 0 {
			t.fragments = append(t.fragments, fragment{literalFragment, literal.String()})
			literal.Reset()
		}

		t.fragments = append(t.fragments, fragment{holeFragment, name})
		text = rest
	}

	if literal.Len() > 0 {
		t.fragments = append(t.fragments, fragment{literalFragment, literal.String()})
	}

	return t, nil
}

// scanHole reads the inside of a hole, starting right after the opening
// braces. It reports the hole name and the text following the closing
// braces.
func scanHole(code string) (name, rest string, ok bool) {
	i := 0
	for i < len(code) && (code[i] == ' ' || code[i] == '\t') {
		i++
	}

	start := i
	for i < len(code) && isHoleNameChar(code[i]) {
		i++
	}

	if i == start {
		return "", "", false
	}

	name = code[start:i]
	for i < len(code) && (code[i] == ' ' || code[i] == '\t') {
		i++
	}

	if !strings.HasPrefix(code[i:], "}}") {
		return "", "", false
	}

	return name, code[i+2:], true
}

// Source returns the original template text.
func (t *Template) Source() string { return t.source }

// Holes returns the hole names in source order, including duplicates.
func (t *Template) Holes() []string {
	var names []string
	for _, f := range t.fragments {
		if f.kind == holeFragment {
			names = append(names, f.text)
		}
	}

	return names
}
