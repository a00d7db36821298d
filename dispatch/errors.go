package dispatch

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/johanneshilden/trombone/nodejs"
	"github.com/johanneshilden/trombone/pg"
	"github.com/johanneshilden/trombone/pgquery"
	"github.com/johanneshilden/trombone/pipeline"
)

// Kind is the machine-readable error category carried in the "error" field
// of error responses.
type Kind string

const (
	KindBadRequest          Kind = "BadRequest"
	KindUnauthorized        Kind = "Unauthorized"
	KindNotFound            Kind = "NotFound"
	KindConflict            Kind = "Conflict"
	KindServerConfiguration Kind = "ServerConfiguration"
	KindDbError             Kind = "DbError"
	KindNodeJsError         Kind = "NodeJsError"
	KindPipelineError       Kind = "PipelineError"
	KindTimeout             Kind = "Timeout"
)

// StatusCode maps the kind to its HTTP status.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	}

	return http.StatusInternalServerError
}

// Error is a dispatch failure. It only becomes an HTTP response at the
// boundary of ServeHTTP.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}

	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}

	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func kindError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// classify maps an action failure to its error kind. fallback applies to
// errors no rule recognises; each caller passes the kind of its own path:
// DbError for SQL, PipelineError for pipelines, NodeJsError for scripts and
// ServerConfiguration in the dispatcher itself.
func classify(err error, fallback Kind) *Error {
	var (
		de      *Error
		missing *pgquery.MissingError
		node    *pipeline.NodeError
		pconfig *pipeline.ConfigError
		exit    *nodejs.ExitError
		pgErr   *pgconn.PgError
	)

	switch {
	case errors.As(err, &de):
		return de

	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}

	case errors.As(err, &missing):
		return &Error{Kind: KindBadRequest, Message: missing.Error(), Err: err}

	case errors.Is(err, pg.ErrNoRows):
		return &Error{Kind: KindNotFound, Err: err}

	case pg.IsConflict(err):
		return &Error{Kind: KindConflict, Err: err}

	case errors.As(err, &node):
		e := &Error{Kind: KindPipelineError, Message: "processor " + node.Node + " failed", Err: err}

		// a cancelled or expired pipeline is a timeout, not a node fault
		if errors.Is(node.Err, context.DeadlineExceeded) {
			e.Kind = KindTimeout
		}

		return e

	case errors.As(err, &pconfig), errors.Is(err, pipeline.ErrCycle):
		return &Error{Kind: KindServerConfiguration, Err: err}

	case errors.As(err, &exit), errors.Is(err, nodejs.ErrBadEnvelope):
		return &Error{Kind: KindNodeJsError, Err: err}

	case errors.Is(err, pg.ErrMultipleRows), errors.As(err, &pgErr):
		return &Error{Kind: KindDbError, Err: err}
	}

	return &Error{Kind: fallback, Err: err}
}
