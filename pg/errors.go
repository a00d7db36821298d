package pg

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoRows marks an item query that matched nothing.
var ErrNoRows = errors.New("no rows in result")

// ErrMultipleRows marks an item query that matched more than one row.
var ErrMultipleRows = errors.New("multiple rows in result")

// IsConflict reports whether the error is a PostgreSQL integrity violation
// (unique, foreign key, check; SQLSTATE class 23).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
}
