package pg

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// UnsupportedValue replaces result values the gateway cannot express in
// JSON.
const UnsupportedValue = "[unsupported SQL type]"

// JSONValue converts one PostgreSQL result value to the value marshalled
// into the response: text and bytes become strings, numerics numbers,
// temporal types ISO strings, arrays convert element-wise. Anything without
// a JSON shape collapses to UnsupportedValue.
func JSONValue(v interface{}) interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case bool, string, float64, int64, int32, int16, int:
		return v
	case float32:
		return float64(v)
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case time.Duration:
		return formatInterval(pgtype.Interval{Microseconds: v.Microseconds(), Valid: true})
	case [16]byte:
		return formatUUID(v)
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return UnsupportedValue
		}

		return f.Float64
	case pgtype.Interval:
		return formatInterval(v)
	case pgtype.Time:
		return time.UnixMicro(v.Microseconds).UTC().Format("15:04:05.999999")
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = JSONValue(e)
		}

		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, e := range v {
			out[k] = JSONValue(e)
		}

		return out
	default:
		return UnsupportedValue
	}
}

func formatUUID(b [16]byte) string {
	s := hex.EncodeToString(b[:])
	return s[:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:]
}

// formatInterval renders an interval as an ISO 8601 duration.
func formatInterval(iv pgtype.Interval) string {
	out := "P"
	if iv.Months != 0 {
		out += fmt.Sprintf("%dM", iv.Months)
	}

	if iv.Days != 0 {
		out += fmt.Sprintf("%dD", iv.Days)
	}

	if iv.Microseconds != 0 || out == "P" {
		out += fmt.Sprintf("T%gS", float64(iv.Microseconds)/1e6)
	}

	return out
}
