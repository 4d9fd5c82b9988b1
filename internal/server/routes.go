// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sigil-dev/quarry/internal/dispatch"
	"github.com/sigil-dev/quarry/internal/registry"
	"github.com/sigil-dev/quarry/pkg/envelope"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// maxBodySize bounds one JSON-RPC request body.
const maxBodySize = 8 << 20

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-operations",
		Method:      http.MethodGet,
		Path:        "/api/v1/operations",
		Summary:     "List registered operations",
		Tags:        []string{"operations"},
	}, s.handleListOperations)

	huma.Register(s.api, huma.Operation{
		OperationID: "call-operation",
		Method:      http.MethodPost,
		Path:        "/api/v1/operations/{name}",
		Summary:     "Call an operation",
		Tags:        []string{"operations"},
	}, s.handleCallOperation)
}

// registerRPCRoute mounts the raw JSON-RPC endpoint. It bypasses huma since
// the body is a protocol message, not a REST resource.
func (s *Server) registerRPCRoute() {
	s.router.Post(s.cfg.Path, s.handleRPC)
	if trimmed := strings.TrimSuffix(s.cfg.Path, "/"); trimmed != "" && trimmed != s.cfg.Path {
		s.router.Post(trimmed, s.handleRPC)
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx := r.Context()
	if id := middleware.GetReqID(ctx); id != "" {
		ctx = dispatch.WithRequestID(ctx, id)
	}

	resp, ok := s.rpc.Handle(ctx, body)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		slog.Warn("failed to write rpc response", "error", err)
	}
}

// --- Request/Response types for huma ---

// OperationSummary describes one registered operation.
type OperationSummary struct {
	Name        string         `json:"name"`
	Type        string         `json:"type" enum:"tool,prompt"`
	Kind        string         `json:"kind"`
	Description string         `json:"description,omitempty"`
	Source      string         `json:"source"`
	InputSchema map[string]any `json:"input_schema"`
}

type listOperationsInput struct {
	Type string `query:"type" enum:"tool,prompt" doc:"Only list operations of this type"`
}

type listOperationsOutput struct {
	Body struct {
		Operations []OperationSummary `json:"operations"`
	}
}

type callOperationInput struct {
	Name string `path:"name"`
	Body struct {
		Arguments map[string]any `json:"arguments,omitempty" doc:"Operation arguments"`
	}
}

type callOperationOutput struct {
	Body envelope.Envelope
}

// --- Handlers ---

func (s *Server) handleListOperations(_ context.Context, input *listOperationsInput) (*listOperationsOutput, error) {
	var types []registry.Type
	if input.Type != "" {
		types = append(types, registry.Type(input.Type))
	}

	descs := s.dispatcher.List(types...)
	out := &listOperationsOutput{}
	out.Body.Operations = make([]OperationSummary, 0, len(descs))
	for _, d := range descs {
		out.Body.Operations = append(out.Body.Operations, OperationSummary{
			Name:        d.Name,
			Type:        string(d.Type),
			Kind:        string(d.Kind),
			Description: d.Description,
			Source:      d.Source,
			InputSchema: registry.InputSchema(d.Params),
		})
	}
	return out, nil
}

func (s *Server) handleCallOperation(ctx context.Context, input *callOperationInput) (*callOperationOutput, error) {
	if _, err := s.dispatcher.Resolve(input.Name); err != nil {
		return nil, huma.NewError(quarryerr.HTTPStatus(err), err.Error())
	}
	if id := middleware.GetReqID(ctx); id != "" {
		ctx = dispatch.WithRequestID(ctx, id)
	}
	return &callOperationOutput{Body: s.dispatcher.Dispatch(ctx, input.Name, input.Body.Arguments)}, nil
}
