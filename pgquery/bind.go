package pgquery

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Bind renders the template as a parameterised statement. Every hole becomes
// a $N placeholder and its bound value is appended to the argument vector;
// repeated holes share one placeholder. The first hole without a binding
// aborts with a MissingError.
func (t *Template) Bind(bag map[string]interface{}) (string, []interface{}, error) {
	var (
		sql     strings.Builder
		args    []interface{}
		indexes = make(map[string]int)
	)

	for _, f := range t.fragments {
		if f.kind == literalFragment {
			sql.WriteString(f.text)
			continue
		}

		v, ok := bag[f.text]
		if !ok {
			return "", nil, &MissingError{Name: f.text}
		}

		i, seen := indexes[f.text]
		if !seen {
			args = append(args, v)
			i = len(args)
			indexes[f.text] = i
		}

		sql.WriteString("$")
		sql.WriteString(strconv.Itoa(i))
	}

	return sql.String(), args, nil
}

// Inline renders the template with the bound values quoted directly into the
// SQL text. Strings are single-quoted with embedded quotes doubled, numbers
// and booleans are emitted verbatim, nil becomes NULL. Structured values are
// quoted as their JSON encoding.
func (t *Template) Inline(bag map[string]interface{}) (string, error) {
	var sql strings.Builder
	for _, f := range t.fragments {
		if f.kind == literalFragment {
			sql.WriteString(f.text)
			continue
		}

		v, ok := bag[f.text]
		if !ok {
			return "", &MissingError{Name: f.text}
		}

		sql.WriteString(quoteValue(v))
	}

	return sql.String(), nil
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(v)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return quoteString(fmt.Sprint(v))
		}

		return quoteString(string(b))
	}
}
