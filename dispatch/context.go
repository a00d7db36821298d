package dispatch

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/johanneshilden/trombone/routeconf"
)

// Context is the per-request bag handed to actions and plug points. It is
// created by the dispatcher and discarded when the response is written.
type Context struct {

	// Request is the incoming HTTP request.
	Request *http.Request

	// RequestID identifies the request in logs and on the response.
	RequestID string

	// PathParams binds the matched pattern's variables.
	PathParams map[string]string

	// Bag is the merged parameter set: path variables overlaid by the
	// top-level fields of the request body.
	Bag map[string]interface{}

	// Body is the raw request body.
	Body []byte

	// Log is the request-scoped application logger.
	Log *logrus.Entry

	route   *routeconf.Route
	errKind Kind
	header  http.Header
}

// Route returns the matched route, nil before matching or when no route
// matched.
func (c *Context) Route() *routeconf.Route { return c.route }

// Header is the response header accumulator shared with middleware
// collaborators; its entries are merged into the response before it is
// written.
func (c *Context) Header() http.Header {
	if c.header == nil {
		c.header = http.Header{}
	}

	return c.header
}
