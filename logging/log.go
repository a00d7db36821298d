// Package logging sets up the gateway's two log streams. The application
// log is the logrus standard logger shared by every package; the access log
// is a separate logger fed by the dispatcher with one structured entry per
// dispatched request (see Access). Keeping them apart lets operators route
// request traffic and application diagnostics to different sinks.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Options for Init.
type Options struct {

	// Level is the application log level name (debug, info, warn,
	// error). Empty means info.
	Level string

	// JSON switches both streams to JSON entries.
	JSON bool

	// Output receives application log entries; nil means stderr.
	Output io.Writer

	// AccessOutput receives access log entries; nil means stderr.
	AccessOutput io.Writer

	// AccessDisabled turns the access log off entirely.
	AccessDisabled bool
}

// Init configures both streams. An unknown level name is a configuration
// error and rejected rather than silently ignored, since the level decides
// whether the per-statement SQL debug entries are emitted at all.
func Init(o Options) error {
	if o.Level != "" {
		level, err := logrus.ParseLevel(o.Level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}

		logrus.SetLevel(level)
	}

	if o.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if o.Output != nil {
		logrus.SetOutput(o.Output)
	}

	if o.AccessDisabled {
		accessLog = nil
		return nil
	}

	accessLog = logrus.New()
	accessLog.Level = logrus.InfoLevel
	if o.JSON {
		accessLog.Formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	} else {
		accessLog.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	if o.AccessOutput != nil {
		accessLog.Out = o.AccessOutput
	} else {
		accessLog.Out = os.Stderr
	}

	return nil
}
