// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package httpvs_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sigil-dev/quarry/internal/vectorsearch"
	"github.com/sigil-dev/quarry/internal/vectorsearch/httpvs"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore issues numbered tokens and rejects every token listed in expired.
type fakeStore struct {
	mu       sync.Mutex
	issued   int
	expired  map[string]bool
	searches []string
}

func (f *fakeStore) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "demo" || pass != "secret" {
			http.Error(w, "bad credentials", http.StatusForbidden)
			return
		}
		f.mu.Lock()
		f.issued++
		tok := fmt.Sprintf("t%d", f.issued)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": tok})
	})
	mux.HandleFunc("POST /api/v1/vectorstores/{name}/similarity-search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "faq_store", r.PathValue("name"))
		tok := r.Header.Get("Authorization")[len("Bearer "):]

		f.mu.Lock()
		f.searches = append(f.searches, tok)
		expired := f.expired[tok]
		f.mu.Unlock()
		if expired {
			http.Error(w, "Session expired", http.StatusUnauthorized)
			return
		}

		var req struct {
			Question string `json:"question"`
			TopK     int    `json:"top_k"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{
			{"kb_id": 11, "question": req.Question, "score": 0.93},
			{"kb_id": 12, "question": "other", "score": 0.41},
		}[:req.TopK]})
	})
	mux.HandleFunc("DELETE /api/v1/sessions/current", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newClient(t *testing.T, f *fakeStore) vectorsearch.Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c, err := vectorsearch.NewClient(httpvs.BackendName, vectorsearch.Config{
		Name:     "faq_store",
		Endpoint: srv.URL,
		Username: "demo",
		Password: "secret",
	})
	require.NoError(t, err)
	return c
}

func TestSearch(t *testing.T) {
	f := &fakeStore{}
	c := newClient(t, f)
	ctx := context.Background()

	s, err := c.Connect(ctx)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	res, err := s.Search(ctx, vectorsearch.SearchRequest{Question: "what is DBC", TopK: 2, OutputColumns: []string{"kb_id"}})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, map[string]any{"kb_id": float64(11), "score": 0.93}, res.Records[0])
}

func TestConnect_BadCredentials(t *testing.T) {
	srv := httptest.NewServer((&fakeStore{}).handler(t))
	defer srv.Close()

	c, err := httpvs.New(vectorsearch.Config{Name: "faq_store", Endpoint: srv.URL, Username: "demo", Password: "nope"})
	require.NoError(t, err)

	_, err = c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, vectorsearch.IsSessionExpired(err))
}

func TestSearch_ExpiredTokenIsDetected(t *testing.T) {
	f := &fakeStore{expired: map[string]bool{"t1": true}}
	c := newClient(t, f)

	s, err := c.Connect(context.Background())
	require.NoError(t, err)

	_, err = s.Search(context.Background(), vectorsearch.SearchRequest{Question: "q", TopK: 1})
	require.Error(t, err)
	assert.True(t, vectorsearch.IsSessionExpired(err))
	assert.Contains(t, err.Error(), "401")
}

func TestHandle_RefreshesExpiredToken(t *testing.T) {
	f := &fakeStore{expired: map[string]bool{"t1": true}}
	h := vectorsearch.NewHandle(newClient(t, f))
	ctx := context.Background()
	require.NoError(t, h.Connect(ctx))

	out, err := h.Invoke(ctx, func(ctx context.Context, s vectorsearch.Session) (any, error) {
		return s.Search(ctx, vectorsearch.SearchRequest{Question: "q", TopK: 1})
	})
	require.NoError(t, err)
	assert.Len(t, out.(*vectorsearch.SearchResult).Records, 1)
	assert.Equal(t, []string{"t1", "t2"}, f.searches)
}

func TestNew_Validation(t *testing.T) {
	_, err := httpvs.New(vectorsearch.Config{Name: "x"})
	require.Error(t, err)
	assert.True(t, quarryerr.IsInvalidInput(err))

	_, err = httpvs.New(vectorsearch.Config{Endpoint: "http://localhost"})
	require.Error(t, err)
}
