package routeconf

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/johanneshilden/trombone/pgquery"
	"github.com/johanneshilden/trombone/pipeline"
)

// Error reports a routes file problem with the physical line it started on.
type Error struct {
	Line     int
	Original error
}

func (e *Error) Error() string {
	return fmt.Sprintf("routes line %d: %v", e.Line, e.Original)
}

func (e *Error) Unwrap() error { return e.Original }

func lineError(line int, format string, args ...interface{}) error {
	return &Error{Line: line, Original: fmt.Errorf(format, args...)}
}

// sql action symbols and their result shaping
var sqlSymbols = map[string]pgquery.ResultKind{
	"--": pgquery.ResultNone,
	"~>": pgquery.ResultItem,
	"->": pgquery.ResultItemOk,
	">>": pgquery.ResultCollection,
	"<>": pgquery.ResultLastInsert,
	"><": pgquery.ResultCount,
}

// ParseFile loads and parses a routes configuration file.
func ParseFile(path string) ([]*Route, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseString(string(b))
}

// ParseString parses routes configuration text into the routing table, in
// declaration order. An empty or all-comment document yields an empty
// table; any malformed line aborts with an *Error naming the line.
func ParseString(text string) ([]*Route, error) {
	routes := []*Route{}
	for _, l := range preprocess(text) {
		r, err := parseLine(l)
		if err != nil {
			return nil, err
		}

		routes = append(routes, r)
	}

	return routes, nil
}

// cutToken splits off the first whitespace-delimited token, keeping the
// remainder verbatim apart from leading space.
func cutToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}

	return s[:i], strings.TrimLeft(s[i:], " \t")
}

func parseLine(l logicalLine) (*Route, error) {
	method, rest := cutToken(l.text)
	if !methods[method] {
		return nil, lineError(l.line, "unknown method %q", method)
	}

	uri, rest := cutToken(rest)
	if uri == "" {
		return nil, lineError(l.line, "missing uri")
	}

	pattern, err := ParsePattern(uri)
	if err != nil {
		return nil, lineError(l.line, "%v", err)
	}

	action, err := parseAction(l, rest)
	if err != nil {
		return nil, err
	}

	return &Route{Method: method, Pattern: pattern, Action: action}, nil
}

func parseAction(l logicalLine, s string) (Action, error) {
	switch {
	case s == "":
		return nil, lineError(l.line, "missing action")

	case strings.HasPrefix(s, "{..}"):
		body, err := parseJSONObject(strings.TrimSpace(s[4:]))
		if err != nil {
			return nil, lineError(l.line, "static response: %v", err)
		}

		return StaticAction{Body: body}, nil

	case strings.HasPrefix(s, "<js>"):
		script := strings.TrimSpace(s[4:])
		if script == "" {
			return nil, lineError(l.line, "missing script path")
		}

		return NodeJsAction{Script: script}, nil

	case strings.HasPrefix(s, "|>"):
		p, err := pipeline.Decode([]byte(strings.TrimSpace(s[2:])))
		if err != nil {
			return nil, lineError(l.line, "inline pipeline: %v", err)
		}

		return InlinePipelineAction{Pipeline: p}, nil

	case strings.HasPrefix(s, "||"):
		name := strings.TrimSpace(s[2:])
		if name == "" {
			return nil, lineError(l.line, "missing pipeline name")
		}

		return PipelineAction{Name: name}, nil
	}

	if len(s) >= 2 {
		if kind, ok := sqlSymbols[s[:2]]; ok {
			return parseSqlAction(l, kind, strings.TrimSpace(s[2:]))
		}
	}

	return nil, lineError(l.line, "unrecognised action %q", s)
}

func parseJSONObject(s string) (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(s), &body); err != nil {
		return nil, err
	}

	return body, nil
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_'
}

// tryHints recognises an optional leading hint list '(a, b)'. The parens
// are only taken as hints when every element is a bare identifier, so a SQL
// body starting with a parenthesised expression is left alone.
func tryHints(s string) (hints []string, rest string, ok bool) {
	if s == "" || s[0] != '(' {
		return nil, s, false
	}

	end := strings.IndexByte(s, ')')
	if end < 0 {
		return nil, s, false
	}

	for _, h := range strings.Split(s[1:end], ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, s, false
		}

		for i := 0; i < len(h); i++ {
			if !isIdentChar(h[i]) {
				return nil, s, false
			}
		}

		hints = append(hints, h)
	}

	return hints, strings.TrimSpace(s[end+1:]), true
}

func parseSqlAction(l logicalLine, kind pgquery.ResultKind, s string) (Action, error) {
	hints, body, _ := tryHints(s)
	tpl, err := pgquery.Parse(body)
	if err != nil {
		return nil, lineError(l.line, "sql template: %v", err)
	}

	result := pgquery.Result{Kind: kind}
	switch kind {
	case pgquery.ResultItem, pgquery.ResultItemOk, pgquery.ResultCollection:
		result.Columns = hints
		if len(result.Columns) == 0 {
			result.Columns = tpl.Probe().Columns
		}

		if len(result.Columns) == 0 {
			return nil, lineError(l.line, "cannot infer result columns, add a column hint")
		}

	case pgquery.ResultLastInsert:
		result.Sequence = "id"
		switch len(hints) {
		case 0:
			result.Table = tpl.Probe().Table
		case 1:
			result.Table = hints[0]
		default:
			result.Table = hints[0]
			result.Sequence = hints[1]
		}

		if result.Table == "" {
			return nil, lineError(l.line, "cannot infer target table, add a table hint")
		}
	}

	return SqlAction{Query: pgquery.Query{Result: result, Template: tpl}}, nil
}
