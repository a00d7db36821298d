package dispatch

import "net/http"

// RouteResponse is the outcome of a successfully executed action: the HTTP
// status, response headers accumulated by the action, and the JSON body
// value.
type RouteResponse struct {
	Status  int
	Headers http.Header
	Body    interface{}
}

func okResponse(body interface{}) *RouteResponse {
	return &RouteResponse{Status: http.StatusOK, Body: body}
}

// SetHeader adds a response header, creating the header map on first use.
func (r *RouteResponse) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = http.Header{}
	}

	r.Headers.Set(name, value)
}
