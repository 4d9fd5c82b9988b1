// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package rpc speaks the JSON-RPC 2.0 subset of the Model Context Protocol
// needed to list and call operations. Messages are decoded here and handed
// to the dispatcher; framing is newline-delimited on stdio and one message
// per request body over HTTP.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/sigil-dev/quarry/internal/dispatch"
	"github.com/sigil-dev/quarry/internal/registry"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// maxMessageSize bounds one stdio line.
const maxMessageSize = 8 << 20

// Server answers protocol requests against a Dispatcher.
type Server struct {
	dispatcher *dispatch.Dispatcher
	info       serverInfo
}

// NewServer returns a Server announcing itself as name/version.
func NewServer(d *dispatch.Dispatcher, name, version string) *Server {
	return &Server{dispatcher: d, info: serverInfo{Name: name, Version: version}}
}

// ServeStdio reads newline-delimited requests from r and writes responses
// to w until r ends or ctx is cancelled. End of input returns nil.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp, ok := s.Handle(ctx, line)
		if !ok {
			continue
		}
		if _, err := out.Write(append(resp, '\n')); err != nil {
			return quarryerr.Wrap(err, quarryerr.CodeRPCParseInvalidFormat, "writing response")
		}
		if err := out.Flush(); err != nil {
			return quarryerr.Wrap(err, quarryerr.CodeRPCParseInvalidFormat, "flushing response")
		}
	}
	if err := scanner.Err(); err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeRPCParseInvalidFormat, "reading request")
	}
	slog.Info("stdin closed")
	return nil
}

// Handle processes one encoded message. It reports false when the message
// is a notification and nothing should be written back.
func (s *Server) Handle(ctx context.Context, data []byte) ([]byte, bool) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return encode(Response{JSONRPC: Version, ID: json.RawMessage("null"),
			Error: &Error{Code: CodeParseError, Message: "parse error: " + err.Error()}}), true
	}

	result, rpcErr := s.route(ctx, req)
	if req.IsNotification() {
		return nil, false
	}

	resp := Response{JSONRPC: Version, ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return encode(resp), true
}

func (s *Server) route(ctx context.Context, req Request) (any, *Error) {
	if req.JSONRPC != Version {
		return nil, &Error{Code: CodeInvalidRequest, Message: "invalid JSON-RPC version"}
	}

	switch req.Method {
	case "initialize":
		var p initializeParams
		_ = json.Unmarshal(req.Params, &p)
		version := ProtocolVersion
		if p.ProtocolVersion != "" {
			version = p.ProtocolVersion
		}
		return initializeResult{
			ProtocolVersion: version,
			Capabilities: map[string]capability{
				"tools":   {},
				"prompts": {},
			},
			ServerInfo: s.info,
		}, nil

	case "ping":
		return struct{}{}, nil

	case "tools/list":
		return toolsListResult{Tools: s.Tools()}, nil

	case "tools/call":
		var p callParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		env := s.dispatcher.Dispatch(ctx, p.Name, p.Arguments)
		return toolCallResult{
			Content: []Content{{Type: "text", Text: env.Results}},
			IsError: env.IsError(),
		}, nil

	case "prompts/list":
		return promptsListResult{Prompts: s.Prompts()}, nil

	case "prompts/get":
		var p callParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		desc, err := s.dispatcher.Resolve(p.Name)
		if err != nil || desc.Type != registry.TypePrompt {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown prompt: %s", p.Name)}
		}
		env := s.dispatcher.Dispatch(ctx, p.Name, p.Arguments)
		if env.IsError() {
			return nil, &Error{Code: CodeInvalidParams, Message: env.Results}
		}
		return promptGetResult{
			Description: desc.Description,
			Messages:    []promptMessage{{Role: "user", Content: Content{Type: "text", Text: env.Results}}},
		}, nil

	default:
		if req.IsNotification() {
			return nil, nil
		}
		return nil, &Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

// Tools lists the registered tools with their input schemas.
func (s *Server) Tools() []Tool {
	descs := s.dispatcher.List(registry.TypeTool)
	tools := make([]Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: registry.InputSchema(d.Params),
		})
	}
	return tools
}

// Prompts lists the registered prompts with their arguments.
func (s *Server) Prompts() []Prompt {
	descs := s.dispatcher.List(registry.TypePrompt)
	prompts := make([]Prompt, 0, len(descs))
	for _, d := range descs {
		p := Prompt{Name: d.Name, Description: d.Description}
		for _, param := range d.Params {
			p.Arguments = append(p.Arguments, PromptArgument{
				Name:        param.Name,
				Description: param.Description,
				Required:    param.Required,
			})
		}
		prompts = append(prompts, p)
	}
	return prompts
}

func decodeParams(raw json.RawMessage, dst *callParams) *Error {
	if len(raw) == 0 {
		return &Error{Code: CodeInvalidParams, Message: "params are required"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	if dst.Name == "" {
		return &Error{Code: CodeInvalidParams, Message: "params.name is required"}
	}
	return nil
}

func encode(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("encoding response", "error", err)
		data, _ = json.Marshal(Response{JSONRPC: Version, ID: resp.ID,
			Error: &Error{Code: CodeInternalError, Message: "internal error"}})
	}
	return data
}
