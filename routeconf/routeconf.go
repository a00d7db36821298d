// Package routeconf parses the routes configuration file. The file is a
// line-oriented DSL; every logical line binds an HTTP method and a URI
// pattern to an action:
//
//	GET    photo/:id   ~>  select * from photo where id = {{:id}}
//	POST   photo       <>  insert into photo (url) values ({{url}})
//	DELETE photo/:id   --  delete from photo where id = {{:id}}
//	GET    summary     ||  photo-summary
//	POST   resize      <js>  scripts/resize.js
//	OPTIONS photo      {..}  {"<Allow>":"GET,POST"}
//
// Comments start with '#'. An inline pipeline ('|>') or static ('{..}')
// JSON body may span several physical lines between its braces.
package routeconf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/johanneshilden/trombone/pgquery"
	"github.com/johanneshilden/trombone/pipeline"
)

// Methods accepted in route definitions.
var methods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"PATCH":   true,
	"DELETE":  true,
	"OPTIONS": true,
}

// Segment is one element of a URI pattern: either a literal atom or a named
// variable.
type Segment struct {
	Name string
	Var  bool
}

// Pattern is the ordered segment list of a route's URI template.
type Pattern []Segment

// String renders the pattern back in its configuration form.
func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		if s.Var {
			parts[i] = ":" + s.Name
		} else {
			parts[i] = s.Name
		}
	}

	return strings.Join(parts, "/")
}

func isAtomChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '!' || c == '~'
}

// ParsePattern splits a URI template into segments. A leading slash is
// ignored; a segment starting with ':' declares a variable.
func ParsePattern(s string) (Pattern, error) {
	var p Pattern
	for _, seg := range strings.Split(s, "/") {
		if seg == "" {
			continue
		}

		name, isVar := seg, false
		if seg[0] == ':' {
			name, isVar = seg[1:], true
		}

		if name == "" {
			return nil, fmt.Errorf("empty segment name in %q", s)
		}

		for i := 0; i < len(name); i++ {
			if !isAtomChar(name[i]) {
				return nil, fmt.Errorf("invalid character %q in segment %q", name[i], seg)
			}
		}

		p = append(p, Segment{Name: name, Var: isVar})
	}

	return p, nil
}

// Match tests the pattern against decoded path segments and, on success,
// returns the variable bindings.
func (p Pattern) Match(segments []string) (map[string]string, bool) {
	if len(p) != len(segments) {
		return nil, false
	}

	params := make(map[string]string)
	for i, s := range p {
		if s.Var {
			params[s.Name] = segments[i]
			continue
		}

		if s.Name != segments[i] {
			return nil, false
		}
	}

	return params, true
}

// SplitPath cuts a request path into segments, dropping empty ones and
// URL-decoding each.
func SplitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}

		if dec, err := url.PathUnescape(seg); err == nil {
			seg = dec
		}

		segments = append(segments, seg)
	}

	return segments
}

// Action is the behaviour bound to a route. Exactly one of the concrete
// types below; Kind names the variant for logs and diagnostics.
type Action interface {
	Kind() string
}

// SqlAction executes a parameterised SQL statement.
type SqlAction struct {
	Query pgquery.Query
}

// PipelineAction runs a pipeline registered in the mesh.
type PipelineAction struct {
	Name string
}

// InlinePipelineAction runs a pipeline defined inline in the routes file.
type InlinePipelineAction struct {
	Pipeline *pipeline.Pipeline
}

// NodeJsAction runs an external Node.js script.
type NodeJsAction struct {
	Script string
}

// StaticAction responds with a fixed JSON object.
type StaticAction struct {
	Body map[string]interface{}
}

func (SqlAction) Kind() string            { return "sql" }
func (PipelineAction) Kind() string       { return "pipeline" }
func (InlinePipelineAction) Kind() string { return "inline-pipeline" }
func (NodeJsAction) Kind() string         { return "nodejs" }
func (StaticAction) Kind() string         { return "static" }

// Route binds a method and URI pattern to an action. The routing table
// preserves declaration order; the first matching route wins.
type Route struct {
	Method  string
	Pattern Pattern
	Action  Action
}

func (r *Route) String() string {
	return r.Method + " " + r.Pattern.String()
}
