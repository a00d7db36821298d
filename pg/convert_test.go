package pg

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestJSONValue(t *testing.T) {
	ts := time.Date(2016, 4, 2, 11, 30, 0, 0, time.UTC)
	for _, tt := range []struct {
		msg  string
		in   interface{}
		want interface{}
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"string", "x", "x"},
		{"int64", int64(7), int64(7)},
		{"float32 widens", float32(1.5), float64(1.5)},
		{"bytes to string", []byte("blob"), "blob"},
		{"timestamp", ts, "2016-04-02T11:30:00Z"},
		{"uuid", [16]byte{0x12, 0x34}, "12340000-0000-0000-0000-000000000000"},
		{"array", []interface{}{[]byte("a"), int64(1)}, []interface{}{"a", int64(1)}},
		{"nested object", map[string]interface{}{"k": []byte("v")}, map[string]interface{}{"k": "v"}},
		{"unsupported", struct{ X int }{1}, UnsupportedValue},
		{"channel is unsupported", make(chan int), UnsupportedValue},
	} {
		if d := cmp.Diff(tt.want, JSONValue(tt.in)); d != "" {
			t.Error(tt.msg, d)
		}
	}
}

func TestJSONValueInterval(t *testing.T) {
	iv := pgtype.Interval{Days: 2, Microseconds: 1_500_000, Valid: true}
	if got := JSONValue(iv); got != "P2DT1.5S" {
		t.Error("unexpected interval", got)
	}
}

func TestJSONValueNumeric(t *testing.T) {
	var n pgtype.Numeric
	if err := n.Scan("12.25"); err != nil {
		t.Fatal(err)
	}

	if got := JSONValue(n); got != 12.25 {
		t.Error("unexpected numeric", got)
	}
}
