// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package sqldb runs surrealq programs on a database/sql database. Each
// statement of a program is prepared and run on its own, with the $params
// it references passed as named arguments.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/canonical/surrealq"
	"github.com/canonical/surrealq/internal/parse"
	"github.com/canonical/surrealq/internal/value"
)

// DefaultStatementCacheSize is the number of prepared statements a Conn
// keeps unless WithStatementCacheSize says otherwise.
const DefaultStatementCacheSize = 256

// Conn is a surrealq.Conn over a *sql.DB.
//
// Conn caches the *sql.Stmt prepared for each statement text. The least
// recently used statement is closed when the cache is full. The cache is
// emptied, and the statements closed, by Close or by a finalizer once the
// Conn is garbage collected. The underlying *sql.DB is never closed by Conn.
type Conn struct {
	db        *sql.DB
	logger    zerolog.Logger
	stmtCache *lru.Cache[string, *sql.Stmt]
}

type options struct {
	logger    zerolog.Logger
	cacheSize int
}

// Option configures a Conn.
type Option func(*options)

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStatementCacheSize sets the number of prepared statements kept. Sizes
// below one are ignored.
func WithStatementCacheSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.cacheSize = size
		}
	}
}

// New returns a Conn running queries on db.
func New(db *sql.DB, opts ...Option) *Conn {
	o := options{
		logger:    zerolog.Nop(),
		cacheSize: DefaultStatementCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	// The eviction callback must not refer to the Conn, or the finalizer
	// below would never run.
	logger := o.logger
	stmtCache, err := lru.NewWithEvict(o.cacheSize, func(text string, sqlstmt *sql.Stmt) {
		if err := sqlstmt.Close(); err != nil {
			logger.Debug().Err(err).Str("statement", text).Msg("cannot close statement")
		}
	})
	if err != nil {
		panic(err)
	}
	c := &Conn{
		db:        db,
		logger:    o.logger,
		stmtCache: stmtCache,
	}
	runtime.SetFinalizer(c, func(c *Conn) {
		c.Close()
	})
	return c
}

// PlainDB returns the underlying database object.
func (c *Conn) PlainDB() *sql.DB {
	return c.db
}

// Execute runs the statements of program in order. A statement that fails
// is reported in its Result and does not stop later statements. An error is
// returned only if the program cannot be parsed or ctx is done.
func (c *Conn) Execute(ctx context.Context, program string, params surrealq.ParameterMap) (*surrealq.Response, error) {
	stmts, err := parse.Parse(program)
	if err != nil {
		return nil, err
	}

	resp := &surrealq.Response{Results: make([]surrealq.Result, 0, len(stmts))}
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		result, err := c.run(ctx, stmt, params)
		elapsed := time.Since(start)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Debug().Int("statement", i).Err(err).Msg("statement failed")
			resp.Results = append(resp.Results, surrealq.Result{
				Status: surrealq.StatusErr,
				Time:   elapsed.String(),
				Result: surrealq.Null{},
				Detail: err.Error(),
			})
			continue
		}
		c.logger.Debug().Int("statement", i).Dur("elapsed", elapsed).Msg("statement executed")
		resp.Results = append(resp.Results, surrealq.Result{
			Status: surrealq.StatusOK,
			Time:   elapsed.String(),
			Result: result,
		})
	}
	return resp, nil
}

// run executes a single statement. Statements returning columns produce an
// Array with one Object per row, others produce Null.
func (c *Conn) run(ctx context.Context, stmt parse.Statement, params surrealq.ParameterMap) (surrealq.Value, error) {
	// Only the parameters referenced by the statement are passed, the
	// driver rejects any others.
	var args []any
	for _, name := range stmt.Params() {
		arg, err := driverValue(params[name])
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %s", name, err)
		}
		args = append(args, sql.Named(name, arg))
	}

	rows, err := c.query(ctx, stmt.Text(), args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		// Step through the rows so the statement runs to completion.
		for rows.Next() {
		}
		return surrealq.Null{}, rows.Err()
	}

	result := surrealq.Array{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := surrealq.Object{}
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			v, err := value.From(vals[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %s", col, err)
			}
			row[col] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// driverValue converts a Value into a value accepted by database/sql
// drivers. Record ids are passed as their text, arrays and objects as JSON.
func driverValue(v surrealq.Value) (any, error) {
	switch v := v.(type) {
	case nil, surrealq.Null:
		return nil, nil
	case surrealq.Bool:
		return bool(v), nil
	case surrealq.Number:
		if v.IsFloat() {
			return v.Float64(), nil
		}
		return v.Int64(), nil
	case surrealq.Strand:
		return string(v), nil
	case surrealq.Thing:
		return v.String(), nil
	case surrealq.Array, surrealq.Object:
		data, err := json.Marshal(value.ToGo(v))
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return nil, fmt.Errorf("internal error: unknown value type %T", v)
}

// query runs the statement prepared for text. A statement can be evicted,
// and so closed, between being taken from the cache and being run. In that
// case it is prepared and run once more.
func (c *Conn) query(ctx context.Context, text string, args []any) (*sql.Rows, error) {
	for retried := false; ; retried = true {
		sqlstmt, err := c.prepareStmt(ctx, text)
		if err != nil {
			return nil, err
		}
		rows, err := sqlstmt.QueryContext(ctx, args...)
		if err != nil && !retried && ctx.Err() == nil && !c.cached(text, sqlstmt) {
			continue
		}
		return rows, err
	}
}

// cached reports whether sqlstmt is the statement cached for text.
func (c *Conn) cached(text string, sqlstmt *sql.Stmt) bool {
	cur, ok := c.stmtCache.Peek(text)
	return ok && cur == sqlstmt
}

// prepareStmt returns the cached statement prepared for text, preparing it
// if it is not in the cache.
func (c *Conn) prepareStmt(ctx context.Context, text string) (*sql.Stmt, error) {
	if sqlstmt, ok := c.stmtCache.Get(text); ok {
		return sqlstmt, nil
	}

	sqlstmt, err := c.db.PrepareContext(ctx, text)
	if err != nil {
		return nil, err
	}
	// Another statement may have been cached for text since we last
	// checked.
	if sqlstmtAlt, ok, _ := c.stmtCache.PeekOrAdd(text, sqlstmt); ok {
		sqlstmt.Close()
		return sqlstmtAlt, nil
	}
	return sqlstmt, nil
}

// Close closes all prepared statements held by the Conn. The Conn can still
// be used afterwards, statements are prepared again as needed. Failures to
// close a statement are logged.
func (c *Conn) Close() error {
	c.stmtCache.Purge()
	return nil
}
