package pg

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/johanneshilden/trombone/pgquery"
)

// Outcome is the shaped result of one executed query. Body is the JSON
// value of the response; Created marks an insert whose generated id was
// returned.
type Outcome struct {
	Body    interface{}
	Created bool
}

// Run binds the query template from the bag, executes it on ex and shapes
// the rows per the query's result mode. For the last-insert mode the
// executor must be bound to a single connection (a Tx), since the generated
// id is read back with currval.
func Run(ctx context.Context, ex Executor, q pgquery.Query, bag map[string]interface{}) (*Outcome, error) {
	sql, args, err := q.Template.Bind(bag)
	if err != nil {
		return nil, err
	}

	log.Debugf("sql: %s %v", sql, args)

	switch q.Result.Kind {
	case pgquery.ResultNone:
		if _, err := ex.Exec(ctx, sql, args...); err != nil {
			return nil, err
		}

		return &Outcome{Body: map[string]interface{}{"status": "ok"}}, nil

	case pgquery.ResultCount:
		n, err := ex.Exec(ctx, sql, args...)
		if err != nil {
			return nil, err
		}

		return &Outcome{Body: map[string]interface{}{"rowsAffected": n}}, nil

	case pgquery.ResultItem, pgquery.ResultItemOk:
		rows, err := ex.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}

		switch len(rows) {
		case 0:
			return nil, ErrNoRows
		case 1:
		default:
			return nil, ErrMultipleRows
		}

		item := selectColumns(rows[0], q.Result.Columns)
		if q.Result.Kind == pgquery.ResultItemOk {
			item["status"] = "ok"
		}

		return &Outcome{Body: item}, nil

	case pgquery.ResultCollection:
		rows, err := ex.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}

		collection := make([]interface{}, len(rows))
		for i, row := range rows {
			collection[i] = selectColumns(row, q.Result.Columns)
		}

		return &Outcome{Body: collection}, nil

	case pgquery.ResultLastInsert:
		if _, err := ex.Exec(ctx, sql, args...); err != nil {
			return nil, err
		}

		id, err := lastInsertId(ctx, ex, q.Result.Table, q.Result.Sequence)
		if err != nil {
			return nil, err
		}

		return &Outcome{
			Body:    map[string]interface{}{q.Result.Table: id},
			Created: true,
		}, nil
	}

	return nil, ErrNoRows
}

// lastInsertId reads the value generated for table.column by the preceding
// insert on the same connection.
func lastInsertId(ctx context.Context, ex Executor, table, column string) (interface{}, error) {
	rows, err := ex.Query(ctx, "select currval(pg_get_serial_sequence($1, $2))", table, column)
	if err != nil {
		return nil, err
	}

	if len(rows) != 1 {
		return nil, ErrNoRows
	}

	for _, v := range rows[0] {
		return v, nil
	}

	return nil, ErrNoRows
}

// selectColumns keeps the named columns of a row. A nil list or a "*"
// element keeps the whole row.
func selectColumns(row map[string]interface{}, columns []string) map[string]interface{} {
	star := len(columns) == 0
	for _, c := range columns {
		if c == "*" {
			star = true
			break
		}
	}

	if star {
		return row
	}

	out := make(map[string]interface{}, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}

	return out
}
