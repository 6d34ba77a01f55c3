// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/canonical/surrealq/internal/parse"
)

// programCacheSize is the number of distinct statement texts whose parsed
// form is kept.
const programCacheSize = 512

// programCache maps statement text to its parsed statements. Statements are
// immutable so cached slices are shared between queries. Failed parses are
// not cached.
var programCache = newProgramCache()

func newProgramCache() *lru.Cache[string, []parse.Statement] {
	c, err := lru.New[string, []parse.Statement](programCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

// parseProgram returns the statements in text, parsing them if they are not
// in the cache.
func parseProgram(text string) ([]parse.Statement, error) {
	if stmts, ok := programCache.Get(text); ok {
		return stmts, nil
	}
	stmts, err := parse.Parse(text)
	if err != nil {
		return nil, err
	}
	programCache.Add(text, stmts)
	return stmts, nil
}
