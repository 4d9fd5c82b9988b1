// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/quarry/internal/config"
)

func TestInitCommand_WritesDefaults(t *testing.T) {
	env := newTestEnv(t, "")
	path := filepath.Join(env.dir, "out", "quarry.yaml")

	out, err := env.run(t, "", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, config.ModeStdio, cfg.Transport.Mode)

	_, err = env.run(t, "", "init", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = env.run(t, "", "init", "--path", path, "--force")
	require.NoError(t, err)
}

func TestOpenAPICommand(t *testing.T) {
	env := newTestEnv(t, "")
	path := filepath.Join(env.dir, "api", "openapi", "spec.json")

	out, err := env.run(t, "", "openapi", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OpenAPI spec written to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Quarry", doc.Info.Title)
	assert.Contains(t, doc.Paths, "/health")
	assert.Contains(t, doc.Paths, "/api/v1/operations")
	assert.Contains(t, doc.Paths, "/api/v1/operations/{name}")
}
