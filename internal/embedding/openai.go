// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// ProviderOpenAI names the OpenAI embeddings backend.
const ProviderOpenAI = "openai"

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAI embeds text through the OpenAI embeddings API.
type OpenAI struct {
	client openaisdk.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI embedder. Returns an error if the API key is missing.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, quarryerr.New(quarryerr.CodeEmbeddingRequestInvalid, "openai: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return &OpenAI{
		client: openaisdk.NewClient(opts...),
		model:  model,
		dims:   dims,
	}, nil
}

func (o *OpenAI) Name() string    { return ProviderOpenAI }
func (o *OpenAI) Dimensions() int { return o.dims }

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: openaisdk.String(text),
		},
		Model:      openaisdk.EmbeddingModel(o.model),
		Dimensions: openaisdk.Int(int64(o.dims)),
	})
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeEmbeddingUpstreamFailure, "openai: creating embedding")
	}
	if len(resp.Data) == 0 {
		return nil, quarryerr.New(quarryerr.CodeEmbeddingUpstreamFailure, "openai: empty embedding response")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}
