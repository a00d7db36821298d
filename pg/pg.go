// Package pg is the PostgreSQL side of the gateway: a narrow execution
// interface over a pgx connection pool, conversion of result values to
// JSON, and the shaping of statement outcomes per result mode.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Executor runs SQL statements. Query returns the rows with values already
// converted to their JSON representation; Exec returns the affected row
// count.
type Executor interface {
	Query(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
}

// Tx is an executor bound to one transaction on one connection.
type Tx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB is the pool-level interface handed to the dispatcher.
type DB interface {
	Executor
	Begin(ctx context.Context) (Tx, error)
}

// Options configure the connection pool.
type Options struct {

	// URL is a pgx connection string.
	URL string

	// MaxConns bounds the pool size. Zero means the default of 10.
	MaxConns int32

	// ConnectTimeout bounds the startup connectivity probe.
	ConnectTimeout time.Duration
}

// Pool implements DB over a pgxpool.Pool.
type Pool struct {
	pool *pgxpool.Pool
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// NewPool connects to PostgreSQL, retrying with exponential backoff until
// the database answers a ping or the configured timeout elapses.
func NewPool(ctx context.Context, o Options) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(o.URL)
	if err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}

	cfg.MaxConns = o.MaxConns
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		if err := pool.Ping(ctx); err != nil {
			log.Warnf("database not reachable yet: %v", err)
			return struct{}{}, err
		}

		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(timeout))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Pool{pool: pool}, nil
}

// Close releases the pool.
func (p *Pool) Close() { p.pool.Close() }

func (p *Pool) Query(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	return queryRows(ctx, p.pool, sql, args...)
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// Begin borrows one connection from the pool for a transaction.
func (p *Pool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	return &poolTx{tx: tx}, nil
}

type poolTx struct {
	tx pgx.Tx
}

func (t *poolTx) Query(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	return queryRows(ctx, t.tx, sql, args...)
}

func (t *poolTx) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (t *poolTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *poolTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func queryRows(ctx context.Context, q querier, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = JSONValue(values[i])
		}

		out = append(out, row)
	}

	return out, rows.Err()
}
