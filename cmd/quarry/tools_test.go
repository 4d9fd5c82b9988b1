// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolsCommand_ListsBuiltinsAndDefinitions(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeDefs(t, "sales_tools.yaml", `
- type: tool
  name: sales_total
  sql: SELECT 42 AS answer
  description: Total sales
- type: prompt
  name: sales_summary
  prompt: Summarize recent sales by region.
  description: Sales summary prompt
`)

	out, err := env.run(t, "", "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "Tools (36)")
	assert.Contains(t, out, "Prompts (10)")
	assert.Contains(t, out, "base_readQuery")
	assert.Contains(t, out, "sales_total")
	assert.Contains(t, out, "Total sales")
	assert.Contains(t, out, "sales_summary")
}

func TestToolsCommand_TypeFilter(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "", "tools", "--type", "prompt")
	require.NoError(t, err)
	assert.Contains(t, out, "Prompts (9)")
	assert.NotContains(t, out, "Tools (")

	_, err = env.run(t, "", "tools", "--type", "resource")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--type")
}

func TestToolsCommand_DuplicateDefinition(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeDefs(t, "dup_tools.yaml", `
- type: tool
  name: base_readQuery
  sql: SELECT 1
`)

	_, err := env.run(t, "", "tools")
	assert.Error(t, err)
}
