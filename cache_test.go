// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq_test

import (
	"context"
	"fmt"

	. "gopkg.in/check.v1"

	"github.com/canonical/surrealq"
)

type CacheSuite struct{}

var _ = Suite(&CacheSuite{})

func (s *CacheSuite) SetUpTest(c *C) {
	surrealq.PurgeProgramCache()
}

func (s *CacheSuite) TestParsedProgramReuse(c *C) {
	text := "SELECT * FROM person WHERE name = $name"
	stmts, err := surrealq.ParseProgram(text)
	c.Assert(err, IsNil)
	c.Check(surrealq.ProgramCached(text), Equals, true)
	c.Check(surrealq.ProgramCacheLen(), Equals, 1)

	again, err := surrealq.ParseProgram(text)
	c.Assert(err, IsNil)
	c.Check(&again[0], Equals, &stmts[0])
	c.Check(surrealq.ProgramCacheLen(), Equals, 1)
}

func (s *CacheSuite) TestParseFailureNotCached(c *C) {
	_, err := surrealq.ParseProgram("SELECT (")
	c.Assert(err, NotNil)
	c.Check(surrealq.ProgramCacheLen(), Equals, 0)
}

func (s *CacheSuite) TestCachedStatementsShared(c *C) {
	db := surrealq.NewDB(connFunc(func(ctx context.Context, program string, params surrealq.ParameterMap) (*surrealq.Response, error) {
		return &surrealq.Response{}, nil
	}))
	q1 := db.Query("CREATE a").Query("CREATE b")
	q2 := db.Query("CREATE a")
	c.Check(surrealq.ProgramCacheLen(), Equals, 2)

	// Appending to one query does not affect the other.
	req1, err := q1.Request()
	c.Assert(err, IsNil)
	req2, err := q2.Request()
	c.Assert(err, IsNil)
	c.Check(req1.Program, Equals, "CREATE a;\nCREATE b")
	c.Check(req2.Program, Equals, "CREATE a")
}

func (s *CacheSuite) TestEviction(c *C) {
	for i := 0; i < surrealq.ProgramCacheSize+10; i++ {
		_, err := surrealq.ParseProgram(fmt.Sprintf("RETURN %d", i))
		c.Assert(err, IsNil)
	}
	c.Check(surrealq.ProgramCacheLen(), Equals, surrealq.ProgramCacheSize)
	c.Check(surrealq.ProgramCached("RETURN 0"), Equals, false)
}

type connFunc func(ctx context.Context, program string, params surrealq.ParameterMap) (*surrealq.Response, error)

func (f connFunc) Execute(ctx context.Context, program string, params surrealq.ParameterMap) (*surrealq.Response, error) {
	return f(ctx, program, params)
}
