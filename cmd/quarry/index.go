// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/quarry/internal/vectorsearch"
	"github.com/sigil-dev/quarry/internal/vectorsearch/sqlitevec"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <documents.yaml>",
		Short: "Load documents into the local vector store",
		Long: `Embed documents and upsert them into the sqlite-vec store named by
vectorstore.name (or "default"). The file holds a YAML list of entries
with content, an optional id and optional metadata. Entries without an id
get a generated one.`,
		Args: cobra.ExactArgs(1),
		RunE: runIndex,
	}
	return cmd
}

func readDocuments(path string) ([]sqlitevec.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, quarryerr.Wrapf(err, quarryerr.CodeCLIInputInvalid, "reading %s", path)
	}
	var docs []sqlitevec.Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, quarryerr.Wrapf(err, quarryerr.CodeCLIInputInvalid, "parsing %s", path)
	}
	for i := range docs {
		if docs[i].Content == "" {
			return nil, quarryerr.Errorf(quarryerr.CodeCLIInputInvalid, "%s: entry %d has no content", path, i)
		}
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
	}
	return docs, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	docs, err := readDocuments(args[0])
	if err != nil {
		return err
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	name := cfg.VectorStore.Name
	if name == "" {
		name = "default"
	}
	store, err := sqlitevec.Open(ctx, vectorsearch.Config{
		Name:       name,
		DBPath:     cfg.VectorStore.DBPath,
		Dimensions: cfg.VectorStore.Dimensions,
		Embedder:   emb,
	})
	if err != nil {
		return quarryerr.Wrapf(err, quarryerr.CodeCLISetupFailure, "opening vector store %s", cfg.VectorStore.DBPath)
	}
	defer func() { _ = store.Close() }()

	if err := store.Upsert(ctx, docs); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents into %s (%s)\n", len(docs), name, cfg.VectorStore.DBPath)
	return nil
}
