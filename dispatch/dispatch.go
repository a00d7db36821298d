// Package dispatch is the per-request state machine of the gateway: read
// and decode the JSON body, authenticate, match the route, bind the
// parameter bag, execute the action and shape the JSON response. Errors
// stay error values until the very end, where they are mapped to the status
// codes of the error taxonomy.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/johanneshilden/trombone/logging"
	"github.com/johanneshilden/trombone/metrics"
	"github.com/johanneshilden/trombone/nodejs"
	"github.com/johanneshilden/trombone/pg"
	"github.com/johanneshilden/trombone/pipeline"
	"github.com/johanneshilden/trombone/routeconf"
	"github.com/johanneshilden/trombone/routing"
	"github.com/johanneshilden/trombone/secrets"
)

// Signature request headers.
const (
	SignatureHeader = "X-Request-Signature"
	PublicKeyHeader = "X-Public-Key"
)

// PreFilter may short-circuit a request before authentication and routing.
// A non-nil response is written as-is; nil lets dispatch continue. The hook
// point for the CORS and static-file collaborators.
type PreFilter func(r *http.Request) *RouteResponse

// PostSuccessHook observes every successfully dispatched route, e.g. for
// publishing change notifications.
type PostSuccessHook func(route *routeconf.Route, resp *RouteResponse)

// Options configure a Handler.
type Options struct {

	// Table is the routing table. Required.
	Table *routing.Table

	// DB is the connection pool. Required for sql and pipeline routes.
	DB pg.DB

	// Mesh resolves named pipelines. Optional.
	Mesh *pipeline.Mesh

	// NodeJs runs script actions. Optional.
	NodeJs *nodejs.Runner

	// Keystore verifies request signatures when HMAC is enabled.
	Keystore *secrets.Keystore

	// HMACEnabled turns signature verification on.
	HMACEnabled bool

	// TrustLoopback skips verification for loopback peers.
	TrustLoopback bool

	// MaxBodyBytes bounds the request body. Zero means 1 MiB.
	MaxBodyBytes int64

	// ActionTimeout bounds the execution of one action. Zero means 30s.
	ActionTimeout time.Duration

	// Server is the Server response header value.
	Server string

	// Ping enables the builtin GET /ping health answer.
	Ping bool

	// PreFilters run in order before authentication.
	PreFilters []PreFilter

	// PostSuccess hooks run after a 2xx response.
	PostSuccess []PostSuccessHook

	// Metrics receives request measurements. Optional.
	Metrics *metrics.Metrics
}

// Handler dispatches requests over an immutable routing table. Safe for
// concurrent use.
type Handler struct {
	table     *routing.Table
	db        pg.DB
	mesh      *pipeline.Mesh
	nodejs    *nodejs.Runner
	pipelines *pipeline.Runtime
	keystore  *secrets.Keystore
	options   Options
}

// New creates the dispatcher.
func New(o Options) *Handler {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}

	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 30 * time.Second
	}

	if o.Server == "" {
		o.Server = "Trombone"
	}

	if o.Mesh == nil {
		o.Mesh = pipeline.NewMesh()
	}

	if o.NodeJs == nil {
		o.NodeJs = nodejs.New(nodejs.Options{})
	}

	return &Handler{
		table:     o.Table,
		db:        o.DB,
		mesh:      o.Mesh,
		nodejs:    o.NodeJs,
		pipelines: &pipeline.Runtime{DB: o.DB, Mesh: o.Mesh, NodeJs: o.NodeJs},
		keystore:  o.Keystore,
		options:   o,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	w.Header().Set("Server", h.options.Server)
	w.Header().Set("X-Request-Id", requestID)

	rc := &Context{
		Request:   r,
		RequestID: requestID,
		Log:       log.WithField("request", requestID),
	}

	resp := h.dispatch(r, rc)
	size := h.writeResponse(w, rc, resp)

	if resp.Status < 300 && rc.route != nil {
		for _, hook := range h.options.PostSuccess {
			hook(rc.route, resp)
		}
	}

	h.options.Metrics.MeasureRequest(r.Method, resp.Status, time.Since(start))

	entry := &logging.Access{
		ID:       requestID,
		Remote:   r.RemoteAddr,
		Method:   r.Method,
		Path:     r.URL.Path,
		Status:   resp.Status,
		Bytes:    size,
		Duration: time.Since(start),
		Error:    string(rc.errKind),
	}

	if rc.route != nil {
		entry.Route = rc.route.Pattern.String()
		entry.Action = rc.route.Action.Kind()
	}

	logging.LogAccess(entry)
}

// dispatch produces the response for one request; every failure path
// returns the mapped error response.
func (h *Handler) dispatch(r *http.Request, rc *Context) *RouteResponse {
	for _, filter := range h.options.PreFilters {
		if resp := filter(r); resp != nil {
			return resp
		}
	}

	if h.options.Ping && r.Method == http.MethodGet && r.URL.Path == "/ping" {
		return okResponse(map[string]interface{}{"status": "ok"})
	}

	body, err := readBody(r, h.options.MaxBodyBytes)
	if err != nil {
		return h.errorResponse(rc, &Error{Kind: KindBadRequest, Message: "cannot read request body", Err: err})
	}

	rc.Body = body

	fields, err := decodeBody(body)
	if err != nil {
		return h.errorResponse(rc, &Error{Kind: KindBadRequest, Message: "request body must be a JSON object", Err: err})
	}

	if !h.authenticated(r, body) {
		return h.errorResponse(rc, kindError(KindUnauthorized, "missing or invalid request signature"))
	}

	route, params, ok := h.table.Match(r.Method, r.URL.Path)
	if !ok {
		return h.errorResponse(rc, kindError(KindNotFound, "no such route"))
	}

	rc.route = route
	rc.PathParams = params
	rc.Bag = buildBag(params, fields)

	ctx, cancel := context.WithTimeout(r.Context(), h.options.ActionTimeout)
	defer cancel()

	resp, err := h.execute(ctx, rc, route.Action)
	if err != nil {
		return h.errorResponse(rc, classify(err, KindServerConfiguration))
	}

	return resp
}

func readBody(r *http.Request, max int64) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, max+1))
	if err != nil {
		return nil, err
	}

	if int64(len(body)) > max {
		return nil, io.ErrShortBuffer
	}

	return body, nil
}

// decodeBody parses the body as a JSON object. An empty body counts as the
// empty object; any other top-level JSON value is rejected.
func decodeBody(body []byte) (map[string]interface{}, error) {
	if len(body) == 0 {
		return map[string]interface{}{}, nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	if fields == nil {
		return nil, errors.New("request body is null")
	}

	return fields, nil
}

// buildBag merges the path variables and the body fields; the body wins on
// conflict.
func buildBag(params map[string]string, fields map[string]interface{}) map[string]interface{} {
	bag := make(map[string]interface{}, len(params)+len(fields))
	for k, v := range params {
		bag[":"+k] = v
	}

	for k, v := range fields {
		bag[k] = v
	}

	return bag
}

func (h *Handler) authenticated(r *http.Request, body []byte) bool {
	if !h.options.HMACEnabled {
		return true
	}

	if h.options.TrustLoopback && isLoopback(r.RemoteAddr) {
		return true
	}

	if h.keystore == nil {
		return false
	}

	pub := r.Header.Get(PublicKeyHeader)
	sig := r.Header.Get(SignatureHeader)
	if pub == "" || sig == "" {
		return false
	}

	return h.keystore.Verify(pub, sig, r.Method, r.URL.Path, body)
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (h *Handler) errorResponse(rc *Context, e *Error) *RouteResponse {
	rc.Log.Errorf("dispatch: %v", e)
	rc.errKind = e.Kind
	h.options.Metrics.MeasureError(string(e.Kind))

	body := map[string]interface{}{"error": string(e.Kind)}
	if e.Message != "" {
		body["message"] = e.Message
	}

	return &RouteResponse{Status: e.Kind.StatusCode(), Body: body}
}

func (h *Handler) writeResponse(w http.ResponseWriter, rc *Context, resp *RouteResponse) int64 {
	payload, err := json.Marshal(resp.Body)
	if err != nil {
		rc.Log.Errorf("marshal response: %v", err)
		payload = []byte(`{"error":"ServerConfiguration"}`)
		resp.Status = http.StatusInternalServerError
	}

	for name, values := range rc.header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	for name, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.Status)
	n, _ := w.Write(payload)
	return int64(n)
}
