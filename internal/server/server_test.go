// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/quarry/internal/catalog"
	"github.com/sigil-dev/quarry/internal/dispatch"
	"github.com/sigil-dev/quarry/internal/policy"
	"github.com/sigil-dev/quarry/internal/registry"
	"github.com/sigil-dev/quarry/internal/rpc"
	"github.com/sigil-dev/quarry/internal/server"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
	"github.com/sigil-dev/quarry/pkg/health"
)

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	reg := registry.New()
	require.NoError(t, catalog.Register(reg))
	reg.Freeze()
	d, err := dispatch.New(dispatch.Config{Registry: reg})
	require.NoError(t, err)
	return d
}

func newTestServer(t *testing.T, cfg server.Config, healthFn server.HealthFunc) *server.Server {
	t.Helper()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	d := newDispatcher(t)
	srv, err := server.New(cfg, d, rpc.NewServer(d, "quarry", "test"), healthFn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func serve(srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_New_EmptyListenAddr(t *testing.T) {
	d := newDispatcher(t)
	_, err := server.New(server.Config{}, d, rpc.NewServer(d, "quarry", "test"), nil)
	require.Error(t, err)
	assert.True(t, quarryerr.HasCode(err, quarryerr.CodeServerConfigInvalid), "expected CodeServerConfigInvalid, got %s", quarryerr.CodeOf(err))
	assert.Contains(t, err.Error(), "listen address is required")
}

func TestServer_New_InvalidRateLimit(t *testing.T) {
	d := newDispatcher(t)
	_, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: 5},
	}, d, rpc.NewServer(d, "quarry", "test"), nil)
	require.Error(t, err)
	assert.True(t, quarryerr.HasCode(err, quarryerr.CodeServerConfigInvalid))
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := newTestServer(t, server.Config{}, func() health.Report {
		return health.Report{
			Status:    "degraded",
			State:     "RUNNING",
			Warehouse: health.Metrics{Available: false, FailureCount: 2, LastError: "connection refused"},
		}
	})

	w := serve(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "RUNNING", report.State)
	assert.Equal(t, int64(2), report.Warehouse.FailureCount)
	assert.Equal(t, "connection refused", report.Warehouse.LastError)
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv := newTestServer(t, server.Config{}, nil)

	w := serve(srv, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "openapi")

	body := w.Body.String()
	assert.Contains(t, body, "/api/v1/operations")
	assert.Contains(t, body, "/api/v1/operations/{name}")
	assert.Contains(t, body, "/health")
}

func TestServer_ListOperations(t *testing.T) {
	srv := newTestServer(t, server.Config{}, nil)

	w := serve(srv, http.MethodGet, "/api/v1/operations?type=prompt", "")
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Operations []server.OperationSummary `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Operations, 9)
	for _, op := range out.Operations {
		assert.Equal(t, "prompt", op.Type, op.Name)
		assert.Equal(t, registry.SourceBuiltin, op.Source)
	}

	w = serve(srv, http.MethodGet, "/api/v1/operations", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Greater(t, len(out.Operations), 9)
}

func TestServer_CallOperation(t *testing.T) {
	srv := newTestServer(t, server.Config{}, nil)

	var env struct {
		Status  string `json:"status"`
		Results string `json:"results"`
	}

	w := serve(srv, http.MethodPost, "/api/v1/operations/ping", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "pong", env.Results)

	w = serve(srv, http.MethodPost, "/api/v1/operations/base_query", `{"arguments":{"qry":"select 1"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "select 1")

	// Dispatch failures are envelopes, not HTTP errors.
	w = serve(srv, http.MethodPost, "/api/v1/operations/ping", `{"arguments":{"extra":1}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "error", env.Status)
	assert.True(t, strings.HasPrefix(env.Results, "Error: "))
}

func TestServer_CallOperation_NotFound(t *testing.T) {
	srv := newTestServer(t, server.Config{}, nil)

	w := serve(srv, http.MethodPost, "/api/v1/operations/missingOp", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "missingOp")
}

func TestServer_CallOperation_Denied(t *testing.T) {
	reg := registry.New()
	require.NoError(t, catalog.Register(reg))
	reg.Freeze()
	access, err := policy.NewAccess(nil, []string{"base_*"})
	require.NoError(t, err)
	d, err := dispatch.New(dispatch.Config{Registry: reg, Access: access})
	require.NoError(t, err)
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, d, rpc.NewServer(d, "quarry", "test"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	w := serve(srv, http.MethodPost, "/api/v1/operations/base_query", `{"arguments":{"qry":"select 1"}}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "disabled")

	w = serve(srv, http.MethodGet, "/api/v1/operations?type=prompt", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"base_query"`)
	assert.Contains(t, w.Body.String(), `"dba_tableArchive"`)
}

func TestServer_RPCEndpoint(t *testing.T) {
	srv := newTestServer(t, server.Config{}, nil)

	for _, path := range []string{"/mcp/", "/mcp"} {
		w := serve(srv, http.MethodPost, path, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ping"}}`)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"pong"}],"isError":false}}`, w.Body.String())
	}
}

func TestServer_RPCEndpoint_CustomPath(t *testing.T) {
	srv := newTestServer(t, server.Config{Path: "rpc/"}, nil)

	w := serve(srv, http.MethodPost, "/rpc/", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(srv, http.MethodPost, "/mcp/", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestServer_RPCEndpoint_Notification(t *testing.T) {
	srv := newTestServer(t, server.Config{}, nil)

	w := serve(srv, http.MethodPost, "/mcp/", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestServer_RateLimited(t *testing.T) {
	srv := newTestServer(t, server.Config{
		RateLimit: server.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1},
	}, nil)

	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(srv, http.MethodGet, "/health", "").Code)
}

func TestServer_Serve(t *testing.T) {
	srv := newTestServer(t, server.Config{}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/mcp/"
	resp, err := http.Post(url, "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":"x","method":"ping"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
