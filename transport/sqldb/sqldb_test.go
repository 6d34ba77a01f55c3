// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqldb_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	. "gopkg.in/check.v1"

	"github.com/canonical/surrealq"
	"github.com/canonical/surrealq/transport/sqldb"
)

// Hook up gocheck into the "go test" runner.
func TestSQLDB(t *testing.T) { TestingT(t) }

type SQLDBSuite struct {
	plainDB *sql.DB
	conn    *sqldb.Conn
	db      *surrealq.DB
}

var _ = Suite(&SQLDBSuite{})

type Person struct {
	ID      int    `db:"id"`
	Name    string `db:"name"`
	Company string `db:"company"`
}

func (s *SQLDBSuite) SetUpTest(c *C) {
	plainDB, err := sql.Open("sqlite3", ":memory:")
	c.Assert(err, IsNil)
	// Every connection to ":memory:" opens a new database.
	plainDB.SetMaxOpenConns(1)
	_, err = plainDB.Exec(`CREATE TABLE person (id integer, name text, company text)`)
	c.Assert(err, IsNil)
	s.plainDB = plainDB
	s.conn = sqldb.New(plainDB)
	s.db = surrealq.NewDB(s.conn)
}

func (s *SQLDBSuite) TearDownTest(c *C) {
	c.Check(s.conn.Close(), IsNil)
	c.Check(s.plainDB.Close(), IsNil)
}

func (s *SQLDBSuite) TestInsertAndSelect(c *C) {
	resp, err := s.db.Query("INSERT INTO person (id, name, company) VALUES ($id, $name, $company)").
		BindFields(Person{ID: 1, Name: "John", Company: "company:acme"}).
		Query("SELECT id, name, company FROM person WHERE name = $name").
		Run(context.Background())
	c.Assert(err, IsNil)
	c.Assert(resp.Err(), IsNil)
	c.Assert(resp.Len(), Equals, 2)
	c.Check(resp.Results[0].Status, Equals, surrealq.StatusOK)

	var people []Person
	c.Assert(resp.Decode(1, &people), IsNil)
	// The record id is stored as its text.
	c.Check(people, DeepEquals, []Person{{ID: 1, Name: "John", Company: "company:acme"}})

	var p Person
	c.Assert(resp.DecodeOne(1, &p), IsNil)
	c.Check(p.Name, Equals, "John")
}

func (s *SQLDBSuite) TestOnlyReferencedParamsAreBound(c *C) {
	// The driver would reject the unused "other" parameter.
	resp, err := s.db.Query("INSERT INTO person (id, name) VALUES ($id, $name)").
		Bind(
			surrealq.Pair("id", 2),
			surrealq.NamedString("name", "Jane"),
			surrealq.NamedString("other", "unused"),
		).
		Query("SELECT count(*) AS n FROM person WHERE id = $id").
		Run(context.Background())
	c.Assert(err, IsNil)
	c.Assert(resp.Err(), IsNil)

	var rows []map[string]any
	c.Assert(resp.Decode(1, &rows), IsNil)
	c.Check(rows, DeepEquals, []map[string]any{{"n": int64(1)}})
}

func (s *SQLDBSuite) TestRepeatedParam(c *C) {
	resp, err := s.db.Query("SELECT $x + $x AS twice").
		Bind(surrealq.Pair("x", 21)).
		Run(context.Background())
	c.Assert(err, IsNil)

	var row map[string]int
	c.Assert(resp.DecodeOne(0, &row), IsNil)
	c.Check(row["twice"], Equals, 42)
}

func (s *SQLDBSuite) TestUnboundParamIsNull(c *C) {
	resp, err := s.db.Query("SELECT $missing IS NULL AS missing").Run(context.Background())
	c.Assert(err, IsNil)

	var row map[string]int
	c.Assert(resp.DecodeOne(0, &row), IsNil)
	c.Check(row["missing"], Equals, 1)
}

func (s *SQLDBSuite) TestFailedStatementDoesNotStopOthers(c *C) {
	resp, err := s.db.Query("SELECT * FROM nowhere; INSERT INTO person (id) VALUES (3); SELECT id FROM person").
		Run(context.Background())
	c.Assert(err, IsNil)
	c.Assert(resp.Len(), Equals, 3)
	c.Check(resp.Results[0].Status, Equals, surrealq.StatusErr)
	c.Check(resp.Results[0].Detail, Matches, "no such table: nowhere")
	c.Check(resp.Results[1].Status, Equals, surrealq.StatusOK)
	c.Check(resp.Results[2].Status, Equals, surrealq.StatusOK)

	err = resp.Err()
	c.Check(err, ErrorMatches, "statement 0 failed: no such table: nowhere")
	_, err = resp.Take(0)
	c.Check(err, FitsTypeOf, &surrealq.QueryError{})

	var ids []map[string]int
	c.Assert(resp.Decode(2, &ids), IsNil)
	c.Check(ids, DeepEquals, []map[string]int{{"id": 3}})
}

func (s *SQLDBSuite) TestCompositeValuesAsJSON(c *C) {
	resp, err := s.db.Query("SELECT $tags AS tags, $owner AS owner, $meta AS meta").
		Bind(
			surrealq.Pair("tags", []string{"a", "b"}),
			surrealq.NamedString("owner", "person:tobie"),
			surrealq.Pair("meta", map[string]any{"k": 1}),
		).
		Run(context.Background())
	c.Assert(err, IsNil)

	var row map[string]string
	c.Assert(resp.DecodeOne(0, &row), IsNil)
	c.Check(row, DeepEquals, map[string]string{
		"tags":  `["a","b"]`,
		"owner": "person:tobie",
		"meta":  `{"k":1}`,
	})
}

func (s *SQLDBSuite) TestStatementCache(c *C) {
	plainDB, err := sql.Open("sqlite3-tracking", ":memory:")
	c.Assert(err, IsNil)
	defer plainDB.Close()
	plainDB.SetMaxOpenConns(1)
	conn := sqldb.New(plainDB)
	db := surrealq.NewDB(conn)
	prepared0, closed0 := stmtCounts()

	q := "SELECT $id AS id"
	for i := 0; i < 3; i++ {
		resp, err := db.Query(q).Bind(surrealq.Pair("id", i)).Run(context.Background())
		c.Assert(err, IsNil)
		c.Assert(resp.Err(), IsNil)
	}
	c.Check(conn.CachedStatements(), DeepEquals, []string{q})
	prepared, closed := stmtCounts()
	c.Check(prepared-prepared0, Equals, int64(1))
	c.Check(closed-closed0, Equals, int64(0))

	c.Assert(conn.Close(), IsNil)
	c.Check(conn.CachedStatements(), HasLen, 0)
	_, closed = stmtCounts()
	c.Check(closed-closed0, Equals, int64(1))

	// The connection prepares statements again after Close.
	resp, err := db.Query(q).Bind(surrealq.Pair("id", 4)).Run(context.Background())
	c.Assert(err, IsNil)
	c.Assert(resp.Err(), IsNil)
	prepared, _ = stmtCounts()
	c.Check(prepared-prepared0, Equals, int64(2))
	c.Assert(conn.Close(), IsNil)
}

func (s *SQLDBSuite) TestStatementCacheEviction(c *C) {
	plainDB, err := sql.Open("sqlite3-tracking", ":memory:")
	c.Assert(err, IsNil)
	defer plainDB.Close()
	plainDB.SetMaxOpenConns(1)
	conn := sqldb.New(plainDB, sqldb.WithStatementCacheSize(2))
	defer conn.Close()
	db := surrealq.NewDB(conn)
	prepared0, closed0 := stmtCounts()

	run := func(q string) {
		resp, err := db.Query(q).Run(context.Background())
		c.Assert(err, IsNil)
		c.Assert(resp.Err(), IsNil)
	}
	run("SELECT 1")
	run("SELECT 2")
	run("SELECT 1")
	// The least recently used statement is closed to make room.
	run("SELECT 3")
	c.Check(conn.CachedStatements(), DeepEquals, []string{"SELECT 1", "SELECT 3"})
	prepared, closed := stmtCounts()
	c.Check(prepared-prepared0, Equals, int64(3))
	c.Check(closed-closed0, Equals, int64(1))

	// An evicted statement is prepared again.
	run("SELECT 2")
	c.Check(conn.CachedStatements(), DeepEquals, []string{"SELECT 3", "SELECT 2"})
	prepared, closed = stmtCounts()
	c.Check(prepared-prepared0, Equals, int64(4))
	c.Check(closed-closed0, Equals, int64(2))
}

func (s *SQLDBSuite) TestInvalidProgram(c *C) {
	_, err := s.conn.Execute(context.Background(), "SELECT (", nil)
	c.Check(err, ErrorMatches, "cannot parse statement: column 8: missing closing '\\)'")
}

func (s *SQLDBSuite) TestCancelledContext(c *C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.conn.Execute(ctx, "SELECT 1", nil)
	c.Check(err, Equals, context.Canceled)
}

func (s *SQLDBSuite) TestOpenDqliteRegistersDriver(c *C) {
	before := sql.Drivers()
	plainDB, err := sqldb.OpenDqlite(context.Background(), "test", "127.0.0.1:9001")
	c.Assert(err, IsNil)
	defer plainDB.Close()

	var added []string
	for _, name := range sql.Drivers() {
		if !contains(before, name) {
			added = append(added, name)
		}
	}
	c.Assert(added, HasLen, 1)
	c.Check(added[0], Matches, `surrealq-dqlite-\d+`)

	// Each call registers a driver of its own.
	other, err := sqldb.OpenDqlite(context.Background(), "test", "127.0.0.1:9001")
	c.Assert(err, IsNil)
	defer other.Close()
	c.Check(sql.Drivers(), HasLen, len(before)+2)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (s *SQLDBSuite) TestOpenDqliteNeedsAddresses(c *C) {
	_, err := sqldb.OpenDqlite(context.Background(), "test")
	c.Check(err, ErrorMatches, `cannot open dqlite database "test": no node addresses`)
}
