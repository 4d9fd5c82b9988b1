// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/sigil-dev/quarry/internal/catalog"
	"github.com/sigil-dev/quarry/internal/config"
	"github.com/sigil-dev/quarry/internal/dispatch"
	"github.com/sigil-dev/quarry/internal/embedding"
	"github.com/sigil-dev/quarry/internal/policy"
	"github.com/sigil-dev/quarry/internal/registry"
	"github.com/sigil-dev/quarry/internal/rpc"
	"github.com/sigil-dev/quarry/internal/server"
	"github.com/sigil-dev/quarry/internal/vectorsearch"
	_ "github.com/sigil-dev/quarry/internal/vectorsearch/httpvs"    // register http backend
	_ "github.com/sigil-dev/quarry/internal/vectorsearch/sqlitevec" // register sqlite-vec backend
	"github.com/sigil-dev/quarry/internal/warehouse"
	_ "github.com/sigil-dev/quarry/internal/warehouse/sqlite" // register sqlite3 driver
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
	"github.com/sigil-dev/quarry/pkg/health"
)

// App holds every wired component of a running server.
type App struct {
	Registry   *registry.Registry
	Warehouse  *warehouse.Handle
	Vector     *vectorsearch.Handle
	Dispatcher *dispatch.Dispatcher
	RPC        *rpc.Server
	// Server is nil unless the transport mode is http.
	Server *server.Server
}

// StateFunc reports the lifecycle state for health output.
type StateFunc func() string

// BuildRegistry registers the built-in catalog plus every definition in
// dir and freezes the result.
func BuildRegistry(dir string) (*registry.Registry, error) {
	reg := registry.New()
	if err := catalog.Register(reg); err != nil {
		return nil, err
	}
	n, err := registry.LoadDir(reg, dir)
	if err != nil {
		return nil, quarryerr.Wrapf(err, quarryerr.CodeCLISetupFailure, "loading definitions from %s", dir)
	}
	reg.Freeze()
	slog.Info("operation registry ready", "operations", reg.Len(), "declared", n)
	return reg, nil
}

func buildPolicy(cfg config.DispatchConfig) (*policy.Access, *policy.Guard, error) {
	access, err := policy.NewAccess(cfg.Allow, cfg.Deny)
	if err != nil {
		return nil, nil, quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "building operation policy")
	}
	mode, err := policy.ParseMode(cfg.ResultScan)
	if err != nil {
		return nil, nil, quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "building result guard")
	}
	guard, err := policy.NewGuard(mode)
	if err != nil {
		return nil, nil, quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "building result guard")
	}
	return access, guard, nil
}

// Wire builds the registry, opens the warehouse and vector-store handles and
// assembles the dispatcher and transports. Connection failures are not
// fatal: the warehouse reconnects on demand and a vector store that cannot
// be reached leaves vector operations disabled.
func Wire(ctx context.Context, cfg *config.Config, state StateFunc) (*App, error) {
	reg, err := BuildRegistry(cfg.Definitions.Dir)
	if err != nil {
		return nil, err
	}

	access, guard, err := buildPolicy(cfg.Dispatch)
	if err != nil {
		return nil, err
	}

	wh := warehouse.NewHandle(warehouse.Connector(cfg.Warehouse.Driver, cfg.Warehouse.DSN))
	if err := withTimeout(ctx, cfg.Warehouse.PingTimeout, wh.Connect); err != nil {
		slog.Warn("initial warehouse connection failed, will retry on first use", "error", err)
	}

	vs, err := wireVectorStore(ctx, cfg)
	if err != nil {
		_ = wh.Close()
		return nil, err
	}

	// A configured zero means no bound; the dispatcher reads zero as default.
	callTimeout := cfg.Dispatch.CallTimeout
	if callTimeout == 0 {
		callTimeout = -1
	}
	d, err := dispatch.New(dispatch.Config{
		Registry:    reg,
		Warehouse:   wh,
		Vector:      vs,
		CallTimeout: callTimeout,
		Access:      access,
		Guard:       guard,
	})
	if err != nil {
		_ = vs.Close()
		_ = wh.Close()
		return nil, quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "creating dispatcher")
	}

	app := &App{
		Registry:   reg,
		Warehouse:  wh,
		Vector:     vs,
		Dispatcher: d,
		RPC:        rpc.NewServer(d, "quarry", version),
	}

	if cfg.Transport.Mode == config.ModeHTTP {
		srv, err := server.New(server.Config{
			ListenAddr:  cfg.Transport.ListenAddr(),
			Path:        cfg.Transport.Path,
			CORSOrigins: cfg.Transport.CORSOrigins,
			RateLimit: server.RateLimitConfig{
				RequestsPerSecond: cfg.Transport.RateLimitRPS,
				Burst:             cfg.Transport.RateLimitBurst,
			},
			Version: version,
		}, d, app.RPC, app.healthReport(state))
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Server = srv
	}

	return app, nil
}

func wireVectorStore(ctx context.Context, cfg *config.Config) (*vectorsearch.Handle, error) {
	vsCfg := cfg.VectorStore
	if vsCfg.Name == "" {
		slog.Info("no vector store configured, vector operations disabled")
		return vectorsearch.NewHandle(nil), nil
	}

	clientCfg := vectorsearch.Config{
		Name:       vsCfg.Name,
		Endpoint:   vsCfg.Endpoint,
		Username:   vsCfg.Username,
		Password:   vsCfg.Password,
		DBPath:     vsCfg.DBPath,
		Dimensions: vsCfg.Dimensions,
	}
	if vsCfg.Backend == "sqlite-vec" {
		emb, err := newEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		clientCfg.Embedder = emb
	}

	client, err := vectorsearch.NewClient(vsCfg.Backend, clientCfg)
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "creating vector store client")
	}

	h := vectorsearch.NewHandle(client)
	if err := withTimeout(ctx, cfg.VectorStore.ConnectTimeout, h.Connect); err != nil {
		slog.Warn("vector store unavailable, vector operations disabled", "store", vsCfg.Name, "error", err)
	} else {
		slog.Info("vector store connected", "store", vsCfg.Name, "backend", vsCfg.Backend)
	}
	return h, nil
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	e := cfg.VectorStore.Embedder
	emb, err := embedding.New(embedding.Config{
		Provider:   e.Provider,
		Model:      e.Model,
		APIKey:     e.APIKey,
		Endpoint:   e.Endpoint,
		Dimensions: cfg.VectorStore.Dimensions,
	})
	if err != nil {
		return nil, quarryerr.Wrap(err, quarryerr.CodeCLISetupFailure, "creating embedder")
	}
	return emb, nil
}

func (a *App) healthReport(state StateFunc) server.HealthFunc {
	return func() health.Report {
		r := health.Report{
			Status:      "ok",
			Warehouse:   a.Warehouse.Metrics(),
			VectorStore: a.Vector.Metrics(),
		}
		if state != nil {
			r.State = state()
		}
		if !r.Warehouse.Available {
			r.Status = "degraded"
		}
		return r
	}
}

// Close releases the HTTP server, vector session and warehouse connection.
func (a *App) Close() error {
	var errs []error
	if a.Server != nil {
		errs = append(errs, a.Server.Close())
	}
	errs = append(errs, a.Vector.Close(), a.Warehouse.Close())
	return quarryerr.Join(errs...)
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
