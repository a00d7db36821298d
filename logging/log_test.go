package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func initAccessBuffer(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := Init(Options{AccessOutput: &buf}); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { accessLog = nil })
	return &buf
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init(Options{Level: "chatty"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestLogAccessFields(t *testing.T) {
	buf := initAccessBuffer(t)

	LogAccess(&Access{
		ID:       "r-1",
		Remote:   "10.0.0.5:41000",
		Method:   "GET",
		Path:     "/photo/42",
		Route:    "photo/:id",
		Action:   "sql",
		Status:   200,
		Bytes:    24,
		Duration: 12 * time.Millisecond,
	})

	out := buf.String()
	for _, want := range []string{"GET /photo/42", "route=", "photo/:id", "action=sql", "status=200", "id=r-1"} {
		if !strings.Contains(out, want) {
			t.Error("missing", want, "in", out)
		}
	}

	if strings.Contains(out, "error=") {
		t.Error("no error field expected on success:", out)
	}
}

func TestLogAccessSeverity(t *testing.T) {
	buf := initAccessBuffer(t)

	LogAccess(&Access{Method: "GET", Path: "/x", Status: 404, Error: "NotFound"})
	if out := buf.String(); !strings.Contains(out, "warn") || !strings.Contains(out, "error=NotFound") {
		t.Error("client errors should log as warnings with the error kind:", out)
	}

	buf.Reset()
	LogAccess(&Access{Method: "POST", Path: "/x", Status: 500, Error: "DbError"})
	if out := buf.String(); !strings.Contains(out, "erro") {
		t.Error("server errors should log as errors:", out)
	}
}

func TestLogAccessDisabled(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{AccessOutput: &buf, AccessDisabled: true}); err != nil {
		t.Fatal(err)
	}

	LogAccess(&Access{Method: "GET", Path: "/x", Status: 200})
	if buf.Len() != 0 {
		t.Error("disabled access log must not write:", buf.String())
	}
}
