// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package warehouse

import (
	"context"
	"regexp"
	"strings"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// Conn is a single warehouse connection. The SQL dialect is opaque to this
// package; drivers only move text and rows.
type Conn interface {
	// Query runs a statement that returns rows.
	Query(ctx context.Context, query string, args ...any) (*Rows, error)

	// Exec runs a statement that does not return rows and reports the number
	// of affected rows (-1 when the driver cannot tell).
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// IsAlive reports whether the connection can still serve requests.
	IsAlive(ctx context.Context) bool

	Close() error
}

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Rows is a fully materialized result set.
type Rows struct {
	Columns []Column
	Values  [][]any
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}

// ColumnNames returns the column names in result order.
func (r *Rows) ColumnNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// Records converts the result set into one map per row keyed by column name.
// An empty result yields an empty, non-nil slice.
func (r *Rows) Records() []map[string]any {
	if r == nil || len(r.Columns) == 0 {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(r.Values))
	for _, row := range r.Values {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col.Name] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#]*$`)

// QuoteIdent validates a database object name and returns it double-quoted
// for interpolation into SQL text. Values must be bound as parameters instead.
func QuoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", quarryerr.Errorf(quarryerr.CodeWarehouseIdentifierInput, "invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// QuoteQualified quotes a possibly dotted name such as "db.table", checking
// every part with QuoteIdent.
func QuoteQualified(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", quarryerr.Errorf(quarryerr.CodeWarehouseIdentifierInput, "invalid qualified name %q", name)
	}
	for i, p := range parts {
		q, err := QuoteIdent(p)
		if err != nil {
			return "", err
		}
		parts[i] = q
	}
	return strings.Join(parts, "."), nil
}
