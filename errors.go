// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq

import (
	"errors"
	"fmt"

	"github.com/canonical/surrealq/internal/parse"
	"github.com/canonical/surrealq/internal/value"
)

// ErrUnsupportedShape is returned, wrapped, when a value has no Value
// representation or when a value that is not object shaped is decomposed
// into named parameters.
var ErrUnsupportedShape = value.ErrUnsupportedShape

// ErrQueryDone is returned when a Query is run more than once.
var ErrQueryDone = errors.New("query has already been run")

// ParseError is returned when statement text cannot be parsed. It holds the
// line and column of the problem.
type ParseError = parse.Error

// QueryError reports a statement that the database failed to execute.
type QueryError struct {
	// Index is the position of the statement in the program.
	Index int
	// Detail is the message reported by the database.
	Detail string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("statement %d failed: %s", e.Index, e.Detail)
}
