// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/quarry/internal/vectorsearch"
	"github.com/sigil-dev/quarry/internal/vectorsearch/sqlitevec"
)

func TestReadDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: kb-1
  content: How do I reset my password?
  metadata:
    kb_id: 1
- content: Where can I download invoices?
`), 0o600))

	docs, err := readDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "kb-1", docs[0].ID)
	assert.Equal(t, 1, docs[0].Metadata["kb_id"])
	assert.NotEmpty(t, docs[1].ID, "missing ids are generated")
}

func TestReadDocuments_MissingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: empty\n"), 0o600))

	_, err := readDocuments(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
}

func TestIndexCommand_ThenSearch(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "vectors.db")
	env := newTestEnv(t, "vectorstore:\n  name: faq\n  backend: sqlite-vec\n  dimensions: 64\n  db_path: "+dbPath+"\n")
	docsPath := filepath.Join(env.dir, "faq.yaml")
	require.NoError(t, os.WriteFile(docsPath, []byte(`
- id: reset
  content: reset your password from the account settings page
- id: invoices
  content: invoices can be downloaded from the billing page
`), 0o600))

	out, err := env.run(t, "", "index", docsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 documents into faq")

	store, err := sqlitevec.Open(context.Background(), vectorsearch.Config{
		Name:       "faq",
		DBPath:     dbPath,
		Dimensions: 64,
	})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	res, err := store.Search(context.Background(), vectorsearch.SearchRequest{Question: "reset password", TopK: 2})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
}
