package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Access describes one dispatched request. The dispatcher fills it from its
// per-request context after the response has been written, so the entry
// reflects what the gateway did with the request: which route matched,
// which action kind ran, and which error kind was returned if any.
type Access struct {

	// ID is the request id assigned by the dispatcher.
	ID string

	// Remote is the peer address of the connection.
	Remote string

	Method string
	Path   string

	// Route is the matched pattern in its configuration spelling. Empty
	// when the request was answered before routing (ping, pre-filters)
	// or no route matched.
	Route string

	// Action is the kind of the executed action (sql, pipeline,
	// inline-pipeline, nodejs, static). Empty when no route matched.
	Action string

	// Error is the error kind of a failed dispatch, empty on success.
	Error string

	// Status and Bytes describe the written response.
	Status int
	Bytes  int64

	// Duration is the total dispatch time.
	Duration time.Duration
}

var accessLog *logrus.Logger

// LogAccess writes one access entry. Severity follows the outcome: server
// errors log as errors, client errors as warnings, everything else as info.
func LogAccess(a *Access) {
	if accessLog == nil || a == nil {
		return
	}

	fields := logrus.Fields{
		"id":       a.ID,
		"remote":   a.Remote,
		"status":   a.Status,
		"bytes":    a.Bytes,
		"duration": a.Duration.Milliseconds(),
	}

	if a.Route != "" {
		fields["route"] = a.Route
	}

	if a.Action != "" {
		fields["action"] = a.Action
	}

	if a.Error != "" {
		fields["error"] = a.Error
	}

	entry := accessLog.WithFields(fields)
	msg := a.Method + " " + a.Path
	switch {
	case a.Status >= 500:
		entry.Error(msg)
	case a.Status >= 400:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}
