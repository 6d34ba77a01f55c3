// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqldb

// CachedStatements returns the cached statement texts, least recently used
// first.
func (c *Conn) CachedStatements() []string {
	return c.stmtCache.Keys()
}
