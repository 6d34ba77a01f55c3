// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqldb_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"
)

// This file contains a wrapper sql.Driver over the SQLite driver which
// counts the prepared statements that are created and closed, so tests can
// check for statement leaks.

var preparedStmts, closedStmts int64

func init() {
	sql.Register("sqlite3-tracking", &trackingDriver{})
}

type trackingDriver struct {
	sqlite3.SQLiteDriver
}

func (d *trackingDriver) Open(dsn string) (driver.Conn, error) {
	conn, err := d.SQLiteDriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &trackingConn{SQLiteConn: conn.(*sqlite3.SQLiteConn)}, nil
}

type trackingConn struct {
	*sqlite3.SQLiteConn
}

func (c *trackingConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	s, err := c.SQLiteConn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&preparedStmts, 1)
	return &trackingStmt{SQLiteStmt: s.(*sqlite3.SQLiteStmt)}, nil
}

func (c *trackingConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

type trackingStmt struct {
	*sqlite3.SQLiteStmt
}

func (s *trackingStmt) Close() error {
	atomic.AddInt64(&closedStmts, 1)
	return s.SQLiteStmt.Close()
}

// stmtCounts returns the number of statements prepared and closed so far.
func stmtCounts() (prepared, closed int64) {
	return atomic.LoadInt64(&preparedStmts), atomic.LoadInt64(&closedStmts)
}
