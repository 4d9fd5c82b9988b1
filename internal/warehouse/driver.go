// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package warehouse

import (
	"context"
	"sort"
	"sync"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// Opener establishes a new connection for a registered driver.
type Opener func(ctx context.Context, dsn string) (Conn, error)

var (
	drivers   = map[string]Opener{}
	driversMu sync.RWMutex
)

// RegisterDriver registers an opener under name. Driver packages call this
// from init(). This function is goroutine-safe.
func RegisterDriver(name string, open Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = open
}

// Drivers returns the registered driver names in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects through the named driver.
func Open(ctx context.Context, driver, dsn string) (Conn, error) {
	driversMu.RLock()
	open, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, quarryerr.New(quarryerr.CodeWarehouseDriverNotFound,
			"unsupported warehouse driver: "+driver,
			quarryerr.FieldDriver(driver),
		)
	}

	conn, err := open(ctx, dsn)
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeWarehouseConnectFailure,
			"connecting to warehouse", quarryerr.FieldDriver(driver))
	}
	return conn, nil
}

// Connector returns a ConnectFunc bound to driver and dsn, suitable for
// NewHandle.
func Connector(driver, dsn string) ConnectFunc {
	return func(ctx context.Context) (Conn, error) {
		return Open(ctx, driver, dsn)
	}
}
