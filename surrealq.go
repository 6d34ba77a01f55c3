// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/canonical/surrealq/internal/parse"
)

// Conn carries a program and its parameters to the database and returns
// the reply. The transports under transport/ implement it.
type Conn interface {
	// Execute runs every statement of program with params bound and
	// returns one result per statement.
	Execute(ctx context.Context, program string, params ParameterMap) (*Response, error)
}

// DB is a database reached through a Conn.
type DB struct {
	conn Conn
}

// NewDB creates a new [DB] from a [Conn].
func NewDB(conn Conn) *DB {
	if conn == nil {
		return nil
	}
	return &DB{conn: conn}
}

// Conn returns the underlying connection.
func (db *DB) Conn() Conn {
	return db.conn
}

// Query starts a new query holding the statements in text. More statements
// and parameter bindings can be added before the query is run with
// [Query.Run].
func (db *DB) Query(text string) *Query {
	q := &Query{db: db, params: ParameterMap{}}
	return q.Query(text)
}

// Query accumulates statements and parameter bindings. It is designed to be
// built by chaining method calls and run once. Failures while building are
// recorded and returned by [Query.Run], in which case nothing is sent.
type Query struct {
	db     *DB
	stmts  []parse.Statement
	params ParameterMap
	// err is the first failure recorded while building the query.
	err  error
	done int32
}

// Request is the program and parameters sent when a query is run.
type Request struct {
	// Program holds the statements of the query in the order they were
	// added, separated by ";\n".
	Program string
	Params  ParameterMap
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Query appends the statements in text to the query. The text is parsed
// straight away, a parse failure is returned when the query is run.
func (q *Query) Query(text string) *Query {
	stmts, err := parseProgram(text)
	if err != nil {
		q.fail(err)
		return q
	}
	q.stmts = append(q.stmts, stmts...)
	return q
}

// Bind resolves each binding into the query parameters. Later bindings for
// a name replace earlier ones.
func (q *Query) Bind(bindings ...Binding) *Query {
	for _, b := range bindings {
		if err := Resolve(b, q.params); err != nil {
			q.fail(err)
		}
	}
	return q
}

// BindMerged merges m into the query parameters.
func (q *Query) BindMerged(m Mergeable) *Query {
	return q.Bind(m)
}

// BindFields binds every field of v, see [Fields].
func (q *Query) BindFields(v any) *Query {
	return q.Bind(Fields(v))
}

// Request returns the program and parameters the query sends when it is
// run, or the first failure recorded while building it.
func (q *Query) Request() (*Request, error) {
	if q.err != nil {
		return nil, q.err
	}
	return &Request{Program: parse.Join(q.stmts), Params: q.params.Clone()}, nil
}

// Run sends the query to the database in a single request and returns the
// response. A query can only be run once, later calls return
// [ErrQueryDone]. Errors from the connection are returned unchanged.
func (q *Query) Run(ctx context.Context) (*Response, error) {
	if !atomic.CompareAndSwapInt32(&q.done, 0, 1) {
		return nil, ErrQueryDone
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := q.Request()
	if err != nil {
		return nil, err
	}
	if q.db == nil || q.db.conn == nil {
		return nil, fmt.Errorf("cannot run query: no database connection")
	}
	return q.db.conn.Execute(ctx, req.Program, req.Params)
}
