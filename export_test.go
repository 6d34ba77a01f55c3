// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq

import (
	"github.com/canonical/surrealq/internal/parse"
)

const ProgramCacheSize = programCacheSize

func PurgeProgramCache() {
	programCache.Purge()
}

func ProgramCacheLen() int {
	return programCache.Len()
}

func ProgramCached(text string) bool {
	return programCache.Contains(text)
}

func ParseProgram(text string) ([]parse.Statement, error) {
	return parseProgram(text)
}
