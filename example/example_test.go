// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package example_test

import (
	"bytes"
	"context"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/surrealq/example"
)

// Hook up gocheck into the "go test" runner.
func TestExample(t *testing.T) { TestingT(t) }

type ExampleSuite struct{}

var _ = Suite(&ExampleSuite{})

func (s *ExampleSuite) TestRun(c *C) {
	var out bytes.Buffer
	c.Assert(example.Run(context.Background(), &out), IsNil)
	c.Check(out.String(), Equals, `Saba is taller than Jim.
Kiri is taller than Jim.
Dave is taller than Jim.
Sophie is taller than Jim.
Berlin (place:berlin) has people taller than Jim.
Brasília (place:⟨brasília⟩) has people taller than Jim.
Cape Town (place:cape_town) has people taller than Jim.
`)
}
