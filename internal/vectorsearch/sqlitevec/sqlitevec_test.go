// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlitevec_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sigil-dev/quarry/internal/embedding"
	"github.com/sigil-dev/quarry/internal/vectorsearch"
	"github.com/sigil-dev/quarry/internal/vectorsearch/sqlitevec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) vectorsearch.Config {
	t.Helper()
	return vectorsearch.Config{
		Name:       "faq",
		DBPath:     filepath.Join(t.TempDir(), "vectors.db"),
		Dimensions: 64,
	}
}

func seed(t *testing.T, s *sqlitevec.Store) {
	t.Helper()
	err := s.Upsert(context.Background(), []sqlitevec.Document{
		{ID: "1", Content: "How do I list all databases?", Metadata: map[string]any{"kb_id": 1}},
		{ID: "2", Content: "How much space does a table use?", Metadata: map[string]any{"kb_id": 2}},
		{ID: "3", Content: "Who has access to this database?", Metadata: map[string]any{"kb_id": 3}},
	})
	require.NoError(t, err)
}

func TestStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s, err := sqlitevec.Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	seed(t, s)

	res, err := s.Search(ctx, vectorsearch.SearchRequest{Question: "how do I list all databases", TopK: 2})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	best := res.Records[0]
	assert.Equal(t, "1", best["id"])
	assert.Equal(t, float64(1), best["kb_id"])
	assert.Greater(t, best["score"].(float64), res.Records[1]["score"].(float64))
}

func TestStore_OutputColumns(t *testing.T) {
	ctx := context.Background()
	s, err := sqlitevec.Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	seed(t, s)

	res, err := s.Search(ctx, vectorsearch.SearchRequest{Question: "table space", TopK: 1, OutputColumns: []string{"kb_id"}})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.ElementsMatch(t, []string{"kb_id", "score"}, keys(res.Records[0]))
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s, err := sqlitevec.Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Upsert(ctx, []sqlitevec.Document{{ID: "a", Content: "first"}}))
	require.NoError(t, s.Upsert(ctx, []sqlitevec.Document{{ID: "a", Content: "second"}}))

	res, err := s.Search(ctx, vectorsearch.SearchRequest{Question: "second", TopK: 5})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "second", res.Records[0]["content"])
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, err := sqlitevec.Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	seed(t, s)

	require.NoError(t, s.Delete(ctx, []string{"1", "2", "3"}))

	res, err := s.Search(ctx, vectorsearch.SearchRequest{Question: "databases", TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestStore_InvalidTopK(t *testing.T) {
	ctx := context.Background()
	s, err := sqlitevec.Open(ctx, testConfig(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Search(ctx, vectorsearch.SearchRequest{Question: "x", TopK: 0})
	require.Error(t, err)
}

func TestOpen_DimensionMismatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedder = embedding.NewHash(8)

	_, err := sqlitevec.Open(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")
}

func TestOpen_InvalidName(t *testing.T) {
	cfg := testConfig(t)
	cfg.Name = `faq"; DROP TABLE x; --`

	_, err := sqlitevec.Open(context.Background(), cfg)
	require.Error(t, err)
}

func TestBackendRegistered(t *testing.T) {
	assert.Contains(t, vectorsearch.Backends(), sqlitevec.BackendName)

	c, err := vectorsearch.NewClient(sqlitevec.BackendName, testConfig(t))
	require.NoError(t, err)
	s, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
