package pgquery

// ResultKind selects how the rows of an executed statement are shaped into
// the JSON response.
type ResultKind int

const (
	// ResultNone executes the statement and reports plain success.
	ResultNone ResultKind = iota

	// ResultItem expects a single row, returned as a JSON object. Zero
	// rows is a not-found condition.
	ResultItem

	// ResultItemOk is ResultItem with a status marker added to the object.
	ResultItemOk

	// ResultCollection returns all rows as a JSON array.
	ResultCollection

	// ResultLastInsert returns the identifier generated by an insert,
	// read back from the statement's sequence.
	ResultLastInsert

	// ResultCount returns the number of affected rows.
	ResultCount
)

func (k ResultKind) String() string {
	switch k {
	case ResultNone:
		return "none"
	case ResultItem:
		return "item"
	case ResultItemOk:
		return "item-ok"
	case ResultCollection:
		return "collection"
	case ResultLastInsert:
		return "last-insert"
	case ResultCount:
		return "count"
	}

	return "unknown"
}

// Result describes the shaping of a statement's outcome. Columns applies to
// the row-returning kinds; Table and Sequence to ResultLastInsert.
type Result struct {
	Kind     ResultKind
	Columns  []string
	Table    string
	Sequence string
}

// Query is a SQL template together with its result shaping. The unit stored
// in a route and in a pipeline's sql processors.
type Query struct {
	Result   Result
	Template *Template
}
