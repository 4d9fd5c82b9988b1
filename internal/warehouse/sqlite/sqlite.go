// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlite registers the "sqlite3" warehouse driver. It backs local
// development and tests; production deployments register their own driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/quarry/internal/warehouse"
)

// DriverName is the name this package registers under.
const DriverName = "sqlite3"

func init() {
	warehouse.RegisterDriver(DriverName, Open)
}

// Open opens the SQLite database at dsn and verifies it answers a ping.
// Bare paths get WAL journaling and a busy timeout.
func Open(ctx context.Context, dsn string) (warehouse.Conn, error) {
	db, err := sql.Open(DriverName, withDefaults(dsn))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite warehouse: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite warehouse: %w", err)
	}
	return warehouse.NewSQLConn(db, 0), nil
}

func withDefaults(dsn string) string {
	if dsn == "" {
		return ":memory:"
	}
	if dsn == ":memory:" || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_busy_timeout=5000"
}
