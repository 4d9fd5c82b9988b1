// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embedding turns text into vectors for the local vector store.
package embedding

import (
	"context"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// Embedder produces a fixed-size vector for a piece of text.
type Embedder interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures an embedder.
type Config struct {
	Provider   string // hash | openai | google
	Model      string
	APIKey     string
	Endpoint   string // optional base URL override
	Dimensions int
}

// DefaultDimensions is used when Config.Dimensions is unset.
const DefaultDimensions = 384

// New builds the embedder named by cfg.Provider. An empty provider selects
// the offline hash embedder.
func New(cfg Config) (Embedder, error) {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	switch cfg.Provider {
	case "", ProviderHash:
		return NewHash(cfg.Dimensions), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderGoogle:
		return NewGoogle(cfg)
	default:
		return nil, quarryerr.Errorf(quarryerr.CodeEmbeddingRequestInvalid,
			"unsupported embedding provider %q", cfg.Provider)
	}
}
