// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/canonical/go-dqlite/client"
	"github.com/canonical/go-dqlite/driver"
)

// dqliteDriverCount is used to give each registered dqlite driver a unique
// name.
var dqliteDriverCount int64

// OpenDqlite opens the database called name on the dqlite cluster reachable
// at the given node addresses.
func OpenDqlite(ctx context.Context, name string, addresses ...string) (*sql.DB, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("cannot open dqlite database %q: no node addresses", name)
	}

	store := client.NewInmemNodeStore()
	nodes := make([]client.NodeInfo, len(addresses))
	for i, address := range addresses {
		nodes[i] = client.NodeInfo{ID: uint64(i + 1), Address: address}
	}
	if err := store.Set(ctx, nodes); err != nil {
		return nil, fmt.Errorf("cannot open dqlite database %q: %s", name, err)
	}

	drv, err := driver.New(store)
	if err != nil {
		return nil, fmt.Errorf("cannot open dqlite database %q: %s", name, err)
	}
	// Drivers cannot be unregistered, each store gets its own name.
	driverName := "surrealq-dqlite-" + strconv.FormatInt(atomic.AddInt64(&dqliteDriverCount, 1), 10)
	sql.Register(driverName, drv)

	return sql.Open(driverName, name)
}
