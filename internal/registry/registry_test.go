// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package registry_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/quarry/internal/registry"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func static(name string) registry.Descriptor {
	return registry.Descriptor{
		Name: name,
		Kind: registry.KindAction,
		Type: registry.TypeTool,
		Handler: registry.StaticHandler(func(context.Context, registry.Resources, registry.Args) (any, error) {
			return name, nil
		}),
	}
}

func TestRegisterAndResolve(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(static("ping")))

	d, err := r.Resolve("ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", d.Name)

	out, err := d.Handler.Run(context.Background(), registry.Resources{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ping", out)
}

func TestResolve_NotFound(t *testing.T) {
	_, err := registry.New().Resolve("missingOp")
	require.Error(t, err)
	assert.True(t, quarryerr.IsNotFound(err))
	assert.Contains(t, err.Error(), "missingOp")
}

func TestRegister_DuplicateRejected(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(static("ping")))

	dup := static("ping")
	dup.Source = "defs/extra_tools.yaml"
	err := r.Register(dup)
	require.Error(t, err)
	assert.True(t, quarryerr.IsConflict(err))
	assert.Contains(t, err.Error(), "defs/extra_tools.yaml")
	assert.Contains(t, err.Error(), registry.SourceBuiltin)
	assert.Equal(t, 1, r.Len())
}

func TestList_RegistrationOrder(t *testing.T) {
	r := registry.New()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(static(n)))
	}
	prompt := static("ask")
	prompt.Type = registry.TypePrompt
	require.NoError(t, r.Register(prompt))

	var names []string
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid", "ask"}, names)

	prompts := r.List(registry.TypePrompt)
	require.Len(t, prompts, 1)
	assert.Equal(t, "ask", prompts[0].Name)
}

func TestFreeze(t *testing.T) {
	r := registry.New()
	r.Freeze()
	assert.True(t, r.Frozen())

	err := r.Register(static("late"))
	require.Error(t, err)
	assert.True(t, quarryerr.HasCode(err, quarryerr.CodeRegistryFrozen))
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*registry.Descriptor)
	}{
		{"empty name", func(d *registry.Descriptor) { d.Name = "" }},
		{"bad name", func(d *registry.Descriptor) { d.Name = "drop table" }},
		{"no handler", func(d *registry.Descriptor) { d.Handler = nil }},
		{"bad kind", func(d *registry.Descriptor) { d.Kind = "batch" }},
		{"bad type", func(d *registry.Descriptor) { d.Type = "resource" }},
		{"dup param", func(d *registry.Descriptor) {
			d.Params = []registry.Param{{Name: "a"}, {Name: "a"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := static("op")
			tt.mutate(&d)
			err := registry.New().Register(d)
			require.Error(t, err)
			assert.True(t, quarryerr.HasCode(err, quarryerr.CodeRegistryDefinitionInvalid))
		})
	}
}

func TestTemplatedPrompt(t *testing.T) {
	ctx := context.Background()

	plain := registry.TemplatedPrompt{Text: "Summarize {{ not a template"}
	out, err := plain.Run(ctx, registry.Resources{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Summarize {{ not a template", out)

	tmpl, err := registry.NewPromptTemplate("desc", "Describe {{.database_name}}.{{.table_name}}")
	require.NoError(t, err)
	out, err = tmpl.Run(ctx, registry.Resources{}, registry.Args{"database_name": "DBC", "table_name": "TVM"})
	require.NoError(t, err)
	assert.Equal(t, "Describe DBC.TVM", out)

	_, err = tmpl.Run(ctx, registry.Resources{}, registry.Args{"database_name": "DBC"})
	require.Error(t, err)
}

func TestTemplatedQuery_RequiresConn(t *testing.T) {
	_, err := registry.TemplatedQuery{Name: "q", SQL: "SELECT 1"}.Run(context.Background(), registry.Resources{}, nil)
	require.Error(t, err)
}
