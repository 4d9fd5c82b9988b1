// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package catalog holds the compiled-in operations. The SQL text targets the
// Teradata data dictionary (DBC views, DBQL and ResUsage tables); object
// names are validated identifiers and values are bound parameters.
package catalog

import (
	"context"

	"github.com/sigil-dev/quarry/internal/registry"
	"github.com/sigil-dev/quarry/internal/warehouse"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// Builtins returns every compiled-in operation in registration order.
func Builtins() []registry.Descriptor {
	var all []registry.Descriptor
	all = append(all, coreTools()...)
	all = append(all, baseTools()...)
	all = append(all, dbaTools()...)
	all = append(all, qualityTools()...)
	all = append(all, securityTools()...)
	all = append(all, vectorTools()...)
	all = append(all, prompts()...)
	return all
}

// Register adds all built-ins to reg.
func Register(reg *registry.Registry) error {
	for _, d := range Builtins() {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// statement is SQL text plus its bound values.
type statement struct {
	sql  string
	args []any
}

// builder turns call arguments into a statement.
type builder func(args registry.Args) (statement, error)

// fixed returns a builder for SQL without arguments.
func fixed(sql string) builder {
	return func(registry.Args) (statement, error) { return statement{sql: sql}, nil }
}

// queryTool describes a warehouse-bound tool whose statement comes from build.
func queryTool(name, description string, params []registry.Param, build builder) registry.Descriptor {
	return registry.Descriptor{
		Name:        name,
		Kind:        registry.KindQuery,
		Type:        registry.TypeTool,
		Description: description,
		Params:      params,
		Source:      registry.SourceBuiltin,
		Handler: registry.StaticHandler(func(ctx context.Context, res registry.Resources, args registry.Args) (any, error) {
			st, err := build(args)
			if err != nil {
				return nil, err
			}
			rows, err := res.Conn.Query(ctx, st.sql, st.args...)
			if err != nil {
				return nil, err
			}
			return registry.QueryResponse(name, st.sql, rows)
		}),
	}
}

func str(name, description string) registry.Param {
	return registry.Param{Name: name, Type: registry.ParamString, Description: description, Default: ""}
}

func requiredStr(name, description string) registry.Param {
	return registry.Param{Name: name, Type: registry.ParamString, Description: description, Required: true}
}

func integer(name, description string, def int) registry.Param {
	return registry.Param{Name: name, Type: registry.ParamInteger, Description: description, Default: def}
}

// ident validates a required object name argument and returns it quoted.
func ident(args registry.Args, param string) (string, error) {
	v := args.String(param)
	if v == "" {
		return "", quarryerr.Errorf(quarryerr.CodeDispatchInvalidInput, "argument %q is required", param)
	}
	return warehouse.QuoteIdent(v)
}

// qualifiedIdent is ident for names that may carry a database prefix.
func qualifiedIdent(args registry.Args, param string) (string, error) {
	v := args.String(param)
	if v == "" {
		return "", quarryerr.Errorf(quarryerr.CodeDispatchInvalidInput, "argument %q is required", param)
	}
	return warehouse.QuoteQualified(v)
}
