// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlitevec is a local vector store backed by SQLite with the
// sqlite-vec extension. Each named store owns a vec0 virtual table plus a
// companion document table in the same database file.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/quarry/internal/embedding"
	"github.com/sigil-dev/quarry/internal/vectorsearch"
	"github.com/sigil-dev/quarry/internal/warehouse"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// BackendName is the name this package registers under.
const BackendName = "sqlite-vec"

func init() {
	sqlite_vec.Auto()
	vectorsearch.RegisterBackend(BackendName, New)
}

// Compile-time interface checks.
var (
	_ vectorsearch.Client  = (*client)(nil)
	_ vectorsearch.Session = (*Store)(nil)
)

// Document is one searchable entry. Content is embedded; Metadata is
// returned alongside matches.
type Document struct {
	ID       string         `yaml:"id" json:"id"`
	Content  string         `yaml:"content" json:"content"`
	Metadata map[string]any `yaml:"metadata" json:"metadata,omitempty"`
}

type client struct {
	cfg vectorsearch.Config
}

// New validates cfg and returns a Client whose sessions are Stores.
func New(cfg vectorsearch.Config) (vectorsearch.Client, error) {
	if cfg.DBPath == "" {
		return nil, quarryerr.New(quarryerr.CodeVectorRequestInvalid, "vector store db_path is required")
	}
	if cfg.Embedder == nil {
		cfg.Embedder = embedding.NewHash(cfg.Dimensions)
	}
	return &client{cfg: cfg}, nil
}

func (c *client) Connect(ctx context.Context) (vectorsearch.Session, error) {
	return Open(ctx, c.cfg)
}

// Store implements vectorsearch.Session on a local database.
type Store struct {
	db       *sql.DB
	vecTable string
	docTable string
	embedder embedding.Embedder
}

// Open opens (or creates) the database at cfg.DBPath and initialises the
// tables for store cfg.Name.
func Open(ctx context.Context, cfg vectorsearch.Config) (*Store, error) {
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	vecTable, err := warehouse.QuoteIdent(name + "_vec")
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeVectorRequestInvalid, "invalid vector store name")
	}
	docTable, _ := warehouse.QuoteIdent(name + "_docs")

	emb := cfg.Embedder
	if emb == nil {
		emb = embedding.NewHash(cfg.Dimensions)
	}
	if cfg.Dimensions > 0 && cfg.Dimensions != emb.Dimensions() {
		return nil, quarryerr.Errorf(quarryerr.CodeVectorRequestInvalid,
			"vector store dimensions %d do not match embedder %s (%d)", cfg.Dimensions, emb.Name(), emb.Dimensions())
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	s := &Store{db: db, vecTable: vecTable, docTable: docTable, embedder: emb}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating vector tables: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		s.vecTable, s.embedder.Dimensions(),
	)
	if _, err := s.db.ExecContext(ctx, vecDDL); err != nil {
		return fmt.Errorf("creating vector table: %w", err)
	}

	docDDL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id       TEXT PRIMARY KEY,
	content  TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
)`, s.docTable)
	if _, err := s.db.ExecContext(ctx, docDDL); err != nil {
		return fmt.Errorf("creating document table: %w", err)
	}
	return nil
}

// Upsert embeds and stores docs, replacing entries with the same ID.
func (s *Store) Upsert(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, doc := range docs {
		if doc.ID == "" {
			return quarryerr.New(quarryerr.CodeVectorRequestInvalid, "document id is required")
		}
		vec, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return err
		}
		blob, err := sqlite_vec.SerializeFloat32(vec)
		if err != nil {
			return fmt.Errorf("serializing embedding: %w", err)
		}

		metaJSON := []byte("{}")
		if len(doc.Metadata) > 0 {
			metaJSON, err = json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling metadata for %s: %w", doc.ID, err)
			}
		}

		// vec0 does not support ON CONFLICT; delete first for upsert.
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+s.vecTable+` WHERE id = ?`, doc.ID); err != nil {
			return fmt.Errorf("deleting existing vector %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+s.vecTable+`(id, embedding) VALUES (?, ?)`, doc.ID, blob); err != nil {
			return fmt.Errorf("inserting vector %s: %w", doc.ID, err)
		}
		docQ := `INSERT INTO ` + s.docTable + `(id, content, metadata) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`
		if _, err := tx.ExecContext(ctx, docQ, doc.ID, doc.Content, string(metaJSON)); err != nil {
			return fmt.Errorf("upserting document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing documents: %w", err)
	}
	return nil
}

// Search embeds the question and returns the TopK nearest documents. Each
// record holds the document metadata plus id, content and score, where
// score is 1/(1+distance).
func (s *Store) Search(ctx context.Context, req vectorsearch.SearchRequest) (*vectorsearch.SearchResult, error) {
	if req.TopK <= 0 {
		return nil, quarryerr.Errorf(quarryerr.CodeVectorRequestInvalid, "top_k must be positive, got %d", req.TopK)
	}
	vec, err := s.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, err
	}
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	q := `SELECT v.id, v.distance, COALESCE(d.content, ''), COALESCE(d.metadata, '{}')
FROM ` + s.vecTable + ` v
LEFT JOIN ` + s.docTable + ` d ON d.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, q, blob, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []map[string]any{}
	for rows.Next() {
		var (
			id, content, metaStr string
			distance             float64
		)
		if err := rows.Scan(&id, &distance, &content, &metaStr); err != nil {
			return nil, fmt.Errorf("scanning vector result: %w", err)
		}

		rec := map[string]any{}
		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &rec); err != nil {
				return nil, fmt.Errorf("unmarshalling vector metadata: %w", err)
			}
		}
		rec["id"] = id
		rec["content"] = content
		rec["score"] = 1 / (1 + distance)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector results: %w", err)
	}

	return &vectorsearch.SearchResult{Records: vectorsearch.Project(records, req.OutputColumns)}, nil
}

// Delete removes documents by ID.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	for _, table := range []string{s.vecTable, s.docTable} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
