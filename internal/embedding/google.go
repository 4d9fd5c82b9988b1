// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"

	"google.golang.org/genai"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// ProviderGoogle names the Gemini embeddings backend.
const ProviderGoogle = "google"

const defaultGoogleModel = "text-embedding-004"

// Google embeds text through the Gemini API.
type Google struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGoogle creates a Gemini embedder. Returns an error if the API key is missing.
func NewGoogle(cfg Config) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, quarryerr.New(quarryerr.CodeEmbeddingRequestInvalid, "google: missing api_key in config")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeEmbeddingUpstreamFailure, "google: creating client")
	}

	model := cfg.Model
	if model == "" {
		model = defaultGoogleModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return &Google{client: client, model: model, dims: dims}, nil
}

func (g *Google) Name() string    { return ProviderGoogle }
func (g *Google) Dimensions() int { return g.dims }

func (g *Google) Embed(ctx context.Context, text string) ([]float32, error) {
	dims := int32(g.dims)
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeEmbeddingUpstreamFailure, "google: embedding content")
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, quarryerr.New(quarryerr.CodeEmbeddingUpstreamFailure, "google: empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}
