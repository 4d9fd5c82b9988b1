// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package warehouse

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// DefaultPingTimeout bounds the liveness probe of a SQLConn.
const DefaultPingTimeout = 5 * time.Second

// SQLConn adapts a database/sql pool to Conn. Driver packages wrap the
// *sql.DB they open with NewSQLConn.
type SQLConn struct {
	db          *sql.DB
	pingTimeout time.Duration
}

var _ Conn = (*SQLConn)(nil)

// NewSQLConn wraps db. A non-positive pingTimeout selects DefaultPingTimeout.
func NewSQLConn(db *sql.DB, pingTimeout time.Duration) *SQLConn {
	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}
	return &SQLConn{db: db, pingTimeout: pingTimeout}
}

// DB exposes the underlying pool.
func (c *SQLConn) DB() *sql.DB {
	return c.db
}

func (c *SQLConn) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeWarehouseQueryFailure, "executing query")
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeWarehouseQueryFailure, "reading column types")
	}
	out := &Rows{Columns: make([]Column, len(types))}
	for i, ct := range types {
		out.Columns[i] = Column{Name: ct.Name(), Type: strings.ToUpper(ct.DatabaseTypeName())}
	}

	for rows.Next() {
		raw := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, quarryerr.Wrap(err, quarryerr.CodeWarehouseQueryFailure, "scanning row")
		}
		for i := range raw {
			raw[i] = convertValue(out.Columns[i].Type, raw[i])
		}
		out.Values = append(out.Values, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeWarehouseQueryFailure, "iterating rows")
	}
	return out, nil
}

func (c *SQLConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, quarryerr.Wrap(err, quarryerr.CodeWarehouseQueryFailure, "executing statement")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

func (c *SQLConn) IsAlive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	return c.db.PingContext(ctx) == nil
}

func (c *SQLConn) Close() error {
	return c.db.Close()
}

// convertValue turns driver byte slices into strings and fixed-point
// numerics into float64.
func convertValue(dbType string, v any) any {
	if i := strings.IndexByte(dbType, '('); i >= 0 {
		dbType = strings.TrimSpace(dbType[:i])
	}
	switch dbType {
	case "DECIMAL", "NUMERIC", "NUMBER":
		switch t := v.(type) {
		case []byte:
			if f, err := strconv.ParseFloat(string(t), 64); err == nil {
				return f
			}
			return string(t)
		case string:
			if f, err := strconv.ParseFloat(t, 64); err == nil {
				return f
			}
			return t
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
