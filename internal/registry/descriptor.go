// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package registry

import (
	"bytes"
	"context"
	"text/template"

	"github.com/sigil-dev/quarry/internal/vectorsearch"
	"github.com/sigil-dev/quarry/internal/warehouse"
	"github.com/sigil-dev/quarry/pkg/envelope"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// Kind names the external resource an operation needs before it runs.
type Kind string

const (
	// KindAction needs no external resource.
	KindAction Kind = "action"
	// KindQuery needs a live warehouse connection.
	KindQuery Kind = "query"
	// KindVectorQuery runs inside a vector-store session.
	KindVectorQuery Kind = "vector_query"
)

// Type is how an operation is exposed to callers.
type Type string

const (
	TypeTool   Type = "tool"
	TypePrompt Type = "prompt"
)

// SourceBuiltin marks descriptors compiled into the binary.
const SourceBuiltin = "builtin"

// Descriptor describes one named operation.
type Descriptor struct {
	Name        string
	Kind        Kind
	Type        Type
	Description string
	Params      []Param
	Handler     Handler

	// Source is SourceBuiltin or the definition file the operation came from.
	Source string
}

// Resources are the handles available to a running handler. Conn is set for
// KindQuery, Session for KindVectorQuery. Warehouse is always set so actions
// and vector handlers can reach the warehouse themselves.
type Resources struct {
	Warehouse *warehouse.Handle
	Conn      warehouse.Conn
	Session   vectorsearch.Session
}

// Handler executes an operation. Implementations are StaticHandler,
// TemplatedQuery and TemplatedPrompt.
type Handler interface {
	Run(ctx context.Context, res Resources, args Args) (any, error)
}

// Finisher is implemented by KindVectorQuery handlers that have work to do
// after the vector session is released. Finish receives the value Run
// returned inside the session; its errors never trigger a session refresh.
type Finisher interface {
	Finish(ctx context.Context, res Resources, searched any) (any, error)
}

// StaticHandler is a compiled-in operation body.
type StaticHandler func(ctx context.Context, res Resources, args Args) (any, error)

func (f StaticHandler) Run(ctx context.Context, res Resources, args Args) (any, error) {
	return f(ctx, res, args)
}

// TemplatedQuery runs fixed SQL text and returns the standard response
// document built from the resulting rows.
type TemplatedQuery struct {
	Name string
	SQL  string
}

func (q TemplatedQuery) Run(ctx context.Context, res Resources, _ Args) (any, error) {
	if res.Conn == nil {
		return nil, quarryerr.New(quarryerr.CodeWarehouseConnectFailure, "no warehouse connection")
	}
	rows, err := res.Conn.Query(ctx, q.SQL)
	if err != nil {
		return nil, err
	}
	return QueryResponse(q.Name, q.SQL, rows)
}

// QueryResponse renders rows as the standard response document with
// tool_name, sql, columns and row_count metadata.
func QueryResponse(name, sql string, rows *warehouse.Rows) (string, error) {
	return envelope.Response(rows.Records(), map[string]any{
		"tool_name": name,
		"sql":       sql,
		"columns":   rows.Columns,
		"row_count": rows.Len(),
	})
}

// TemplatedPrompt returns message text. Prompts declared with parameters
// are rendered as text/template with the bound arguments; parameterless
// prompts return Text verbatim.
type TemplatedPrompt struct {
	Text string
	tmpl *template.Template
}

// NewPromptTemplate parses text as a template executed against the call
// arguments, e.g. "Describe table {{.table_name}}".
func NewPromptTemplate(name, text string) (TemplatedPrompt, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return TemplatedPrompt{}, quarryerr.Wrapf(err, quarryerr.CodeRegistryDefinitionInvalid, "parsing prompt %q", name)
	}
	return TemplatedPrompt{Text: text, tmpl: tmpl}, nil
}

// MustPromptTemplate is NewPromptTemplate for compiled-in prompts.
func MustPromptTemplate(name, text string) TemplatedPrompt {
	p, err := NewPromptTemplate(name, text)
	if err != nil {
		panic(err)
	}
	return p
}

func (p TemplatedPrompt) Run(_ context.Context, _ Resources, args Args) (any, error) {
	if p.tmpl == nil {
		return p.Text, nil
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, map[string]any(args)); err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeDispatchInvalidInput, "rendering prompt")
	}
	return buf.String(), nil
}
