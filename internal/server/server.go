// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package server is the HTTP transport: the JSON-RPC endpoint, a REST view
// of the operation catalog, health and the OpenAPI document.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sigil-dev/quarry/internal/dispatch"
	"github.com/sigil-dev/quarry/internal/rpc"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
	"github.com/sigil-dev/quarry/pkg/health"
)

// DefaultPath is where the JSON-RPC endpoint is mounted unless configured.
const DefaultPath = "/mcp/"

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	Path         string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	Version      string
}

// HealthFunc reports current handle health.
type HealthFunc func() health.Report

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router     chi.Router
	api        huma.API
	cfg        Config
	dispatcher *dispatch.Dispatcher
	rpc        *rpc.Server
	health     HealthFunc

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with chi router, huma API, health endpoint, CORS and
// per-IP rate limiting, serving operations through d.
func New(cfg Config, d *dispatch.Dispatcher, rpcServer *rpc.Server, healthFn HealthFunc) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, quarryerr.New(quarryerr.CodeServerConfigInvalid, "listen address is required")
	}
	if d == nil || rpcServer == nil {
		return nil, quarryerr.New(quarryerr.CodeServerConfigInvalid, "dispatcher and rpc server are required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 6 * time.Minute
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if healthFn == nil {
		healthFn = func() health.Report { return health.Report{Status: "ok"} }
	}

	srv := &Server{
		cfg:        cfg,
		dispatcher: d,
		rpc:        rpcServer,
		health:     healthFn,
		done:       make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, srv.done))

	humaConfig := huma.DefaultConfig("Quarry", cfg.Version)
	humaConfig.Info.Description = "Warehouse operations exposed to agents"
	api := humachi.New(r, humaConfig)

	srv.router = r
	srv.api = api

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, srv.handleHealth)

	srv.registerRoutes()
	srv.registerRPCRoute()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background goroutines. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return quarryerr.Wrapf(err, quarryerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() { _ = s.Close() }()

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return quarryerr.Wrap(err, quarryerr.CodeServerStartFailure, "serving http")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeServerShutdownFailure, "shutting down")
	}

	return <-errCh
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body health.Report
}

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*HealthResponse, error) {
	return &HealthResponse{Body: s.health()}, nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
