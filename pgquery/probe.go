package pgquery

import "strings"

// ProbeResult carries the table and column names recognised in a template.
// Either field may be empty when the statement shape is not recognised.
// Columns may be the single element "*".
type ProbeResult struct {
	Table   string
	Columns []string
}

// Probe inspects the literal fragments of the template for the statement
// shapes INSERT INTO <t>, UPDATE <t>, DELETE FROM <t> and
// SELECT <cols> FROM <t>. It is a best-effort reflection used at load time
// to supply default columns and table hints; complex statements
// (subqueries, CTEs) are beyond it and need explicit hints in the routes
// file.
func (t *Template) Probe() ProbeResult {
	var b strings.Builder
	for _, f := range t.fragments {
		if f.kind == literalFragment {
			b.WriteString(f.text)
		} else {
			// keep token boundaries where a hole sat
			b.WriteString(" ? ")
		}
	}

	sql := strings.TrimSpace(b.String())
	lower := strings.ToLower(sql)

	switch {
	case strings.HasPrefix(lower, "insert"):
		return ProbeResult{Table: wordAfter(sql, lower, "into")}
	case strings.HasPrefix(lower, "update"):
		return ProbeResult{Table: wordAfter(sql, lower, "update")}
	case strings.HasPrefix(lower, "delete"):
		return ProbeResult{Table: wordAfter(sql, lower, "from")}
	case strings.HasPrefix(lower, "select"):
		return probeSelect(sql, lower)
	}

	return ProbeResult{}
}

// wordAfter returns the identifier following the first occurrence of the
// given keyword. Matching is done on the lowercased text, extraction on the
// original so that identifier case is preserved.
func wordAfter(sql, lower, keyword string) string {
	i := strings.Index(lower, keyword)
	if i < 0 {
		return ""
	}

	rest := sql[i+len(keyword):]
	fields := strings.FieldsFunc(rest, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '(' || r == ';'
	})

	if len(fields) == 0 {
		return ""
	}

	return strings.TrimSuffix(fields[0], ";")
}

func probeSelect(sql, lower string) ProbeResult {
	from := topLevelIndex(lower, "from")
	if from < 0 {
		return ProbeResult{}
	}

	cols := splitColumns(sql[len("select"):from])
	return ProbeResult{
		Table:   wordAfter(sql[from:], lower[from:], "from"),
		Columns: cols,
	}
}

// topLevelIndex finds the keyword outside any parentheses.
func topLevelIndex(lower, keyword string) int {
	depth := 0
	for i := 0; i+len(keyword) <= len(lower); i++ {
		switch lower[i] {
		case '(':
			depth++
		case ')':
			depth--
		}

		if depth > 0 {
			continue
		}

		if strings.HasPrefix(lower[i:], keyword) && boundary(lower, i, len(keyword)) {
			return i
		}
	}

	return -1
}

func boundary(s string, i, n int) bool {
	before := i == 0 || !isHoleNameChar(s[i-1])
	after := i+n == len(s) || !isHoleNameChar(s[i+n])
	return before && after
}

// splitColumns splits a select list on commas outside parentheses. A
// trailing "as alias" wins over the expression; "*" is passed through.
func splitColumns(list string) []string {
	var (
		cols  []string
		depth int
		start int
	)

	emit := func(chunk string) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			return
		}

		lower := strings.ToLower(chunk)
		if i := strings.LastIndex(lower, " as "); i >= 0 {
			chunk = strings.TrimSpace(chunk[i+4:])
		}

		cols = append(cols, chunk)
	}

	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				emit(list[start:i])
				start = i + 1
			}
		}
	}

	emit(list[start:])
	return cols
}
