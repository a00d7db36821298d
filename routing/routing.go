// Package routing matches incoming requests against the routing table
// built from the routes configuration. Matching is positional: the table is
// walked in declaration order and the first route whose method and segment
// shape fit the request wins. There is no specificity scoring.
package routing

import (
	"github.com/johanneshilden/trombone/routeconf"
)

// Table is the immutable, ordered routing table.
type Table struct {
	routes []*routeconf.Route
}

// New builds a table from routes in declaration order.
func New(routes []*routeconf.Route) *Table {
	return &Table{routes: routes}
}

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.routes) }

// Match finds the first route for the method and path. The returned map
// binds the pattern's variables to the URL-decoded path segments. The third
// value is false when no route matches.
func (t *Table) Match(method, path string) (*routeconf.Route, map[string]string, bool) {
	segments := routeconf.SplitPath(path)
	for _, r := range t.routes {
		if r.Method != method {
			continue
		}

		if params, ok := r.Pattern.Match(segments); ok {
			return r, params, true
		}
	}

	return nil, nil, false
}
