// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package vectorsearch owns the session with the similarity-search service.
// Backends register a Factory by name; Handle wraps the live session with
// expiry detection and a single refresh-and-retry.
package vectorsearch

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/sigil-dev/quarry/internal/embedding"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// SearchRequest asks for the TopK documents most similar to Question.
// OutputColumns, when set, restricts the fields returned per match.
type SearchRequest struct {
	Question      string
	TopK          int
	OutputColumns []string
}

// SearchResult holds one record per match, best match first. Every record
// carries a "score" field where higher means more similar.
type SearchResult struct {
	Records []map[string]any `json:"records"`
}

// Session is an authenticated connection to a vector store.
type Session interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
	Close() error
}

// Client opens sessions against a named vector store.
type Client interface {
	Connect(ctx context.Context) (Session, error)
}

// Config carries backend settings. Backends ignore fields they do not use.
type Config struct {
	Name       string
	Endpoint   string
	Username   string
	Password   string
	DBPath     string
	Dimensions int
	Embedder   embedding.Embedder
	HTTPClient *http.Client
}

// Factory builds a Client from cfg.
type Factory func(cfg Config) (Client, error)

var (
	backends   = map[string]Factory{}
	backendsMu sync.RWMutex
)

// RegisterBackend registers a backend factory under name. Backend packages
// call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient builds a Client through the named backend.
func NewClient(backend string, cfg Config) (Client, error) {
	backendsMu.RLock()
	factory, ok := backends[backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, quarryerr.Errorf(quarryerr.CodeVectorBackendNotFound,
			"unsupported vector store backend: %s", backend)
	}
	return factory(cfg)
}

// Project keeps only the named fields of each record. "score" is always kept.
func Project(records []map[string]any, columns []string) []map[string]any {
	if len(columns) == 0 {
		return records
	}
	out := make([]map[string]any, len(records))
	for i, rec := range records {
		p := make(map[string]any, len(columns)+1)
		for _, c := range columns {
			if v, ok := rec[c]; ok {
				p[c] = v
			}
		}
		p["score"] = rec["score"]
		out[i] = p
	}
	return out
}
