// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package dispatch routes a named call to its registered operation,
// acquires the resource the operation needs and converts the outcome into
// an envelope. A failing or panicking handler never escapes as anything
// other than an error envelope.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/quarry/internal/policy"
	"github.com/sigil-dev/quarry/internal/registry"
	"github.com/sigil-dev/quarry/internal/vectorsearch"
	"github.com/sigil-dev/quarry/internal/warehouse"
	"github.com/sigil-dev/quarry/pkg/envelope"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// DefaultCallTimeout bounds a single call when Config.CallTimeout is unset.
const DefaultCallTimeout = 5 * time.Minute

// Config holds the Dispatcher's collaborators.
type Config struct {
	Registry  *registry.Registry
	Warehouse *warehouse.Handle
	Vector    *vectorsearch.Handle

	// CallTimeout bounds each call. Negative disables the bound; zero
	// selects DefaultCallTimeout.
	CallTimeout time.Duration

	// Access hides and rejects operations the deployment disables. Nil
	// permits every registered operation.
	Access *policy.Access

	// Guard screens tool results before they are returned. Nil disables
	// screening.
	Guard *policy.Guard
}

// Dispatcher executes operations by name.
type Dispatcher struct {
	registry  *registry.Registry
	warehouse *warehouse.Handle
	vector    *vectorsearch.Handle
	timeout   time.Duration
	access    *policy.Access
	guard     *policy.Guard
}

// New validates cfg and returns a Dispatcher. A nil Vector handle behaves
// as a disabled vector store.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, quarryerr.New(quarryerr.CodeDispatchInvalidInput, "registry is required")
	}
	vector := cfg.Vector
	if vector == nil {
		vector = vectorsearch.NewHandle(nil)
	}
	timeout := cfg.CallTimeout
	switch {
	case timeout == 0:
		timeout = DefaultCallTimeout
	case timeout < 0:
		timeout = 0
	}
	return &Dispatcher{
		registry:  cfg.Registry,
		warehouse: cfg.Warehouse,
		vector:    vector,
		timeout:   timeout,
		access:    cfg.Access,
		guard:     cfg.Guard,
	}, nil
}

// Registry returns the registry calls are resolved against.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Resolve returns the descriptor for name if it is registered and permitted.
func (d *Dispatcher) Resolve(name string) (registry.Descriptor, error) {
	desc, err := d.registry.Resolve(name)
	if err != nil {
		return registry.Descriptor{}, err
	}
	if err := d.access.Check(name); err != nil {
		return registry.Descriptor{}, err
	}
	return desc, nil
}

// List returns the permitted operations of the given types, in
// registration order.
func (d *Dispatcher) List(types ...registry.Type) []registry.Descriptor {
	all := d.registry.List(types...)
	out := make([]registry.Descriptor, 0, len(all))
	for _, desc := range all {
		if d.access.Permits(desc.Name) {
			out = append(out, desc)
		}
	}
	return out
}

// Dispatch runs the named operation and returns its envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) envelope.Envelope {
	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	start := time.Now()

	value, err := d.Call(ctx, name, args)
	elapsed := time.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "operation failed",
			"request_id", requestID,
			"operation", name,
			"code", string(quarryerr.CodeOf(err)),
			"duration", elapsed,
			"error", err,
		)
		return envelope.Failure(err)
	}

	slog.InfoContext(ctx, "operation completed",
		"request_id", requestID,
		"operation", name,
		"duration", elapsed,
	)
	return d.screen(ctx, name, envelope.Success(value))
}

// screen passes tool results through the guard. Prompt text is authored by
// the deployment and is not screened.
func (d *Dispatcher) screen(ctx context.Context, name string, env envelope.Envelope) envelope.Envelope {
	if d.guard.Mode() == policy.ModeOff {
		return env
	}
	if desc, err := d.registry.Resolve(name); err != nil || desc.Type != registry.TypeTool {
		return env
	}
	text, err := d.guard.Screen(ctx, name, env.Results)
	if err != nil {
		return envelope.Failure(err)
	}
	env.Results = text
	return env
}

// Call runs the named operation and returns its raw value.
func (d *Dispatcher) Call(ctx context.Context, name string, raw map[string]any) (any, error) {
	desc, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	args, err := registry.Bind(desc.Params, raw)
	if err != nil {
		return nil, quarryerr.With(err, quarryerr.FieldOperation(name))
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o = outcome{err: quarryerr.Errorf(quarryerr.CodeDispatchHandlerFailure, "operation %s panicked: %v", name, r)}
				slog.ErrorContext(ctx, "operation panicked", "operation", name, "panic", fmt.Sprint(r))
			}
			done <- o
		}()
		o.value, o.err = d.run(callCtx, desc, args)
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, d.timeoutError(name, o.err)
		}
		return o.value, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, d.timeoutError(name, callCtx.Err())
	}
}

func (d *Dispatcher) timeoutError(name string, err error) error {
	return quarryerr.With(
		quarryerr.Wrapf(err, quarryerr.CodeDispatchTimeout, "operation %s timed out after %s", name, d.timeout),
		quarryerr.FieldOperation(name),
	)
}

// run acquires the resource desc.Kind needs and invokes the handler.
func (d *Dispatcher) run(ctx context.Context, desc registry.Descriptor, args registry.Args) (any, error) {
	res := registry.Resources{Warehouse: d.warehouse}

	switch desc.Kind {
	case registry.KindQuery:
		if d.warehouse == nil {
			return nil, quarryerr.New(quarryerr.CodeWarehouseHandleClosed, "no warehouse configured")
		}
		conn, err := d.warehouse.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		res.Conn = conn
		return desc.Handler.Run(ctx, res, args)

	case registry.KindVectorQuery:
		out, err := d.vector.Invoke(ctx, func(ctx context.Context, s vectorsearch.Session) (any, error) {
			sres := res
			sres.Session = s
			return desc.Handler.Run(ctx, sres, args)
		})
		if err != nil {
			return nil, err
		}
		if f, ok := desc.Handler.(registry.Finisher); ok {
			return f.Finish(ctx, res, out)
		}
		return out, nil

	default:
		return desc.Handler.Run(ctx, res, args)
	}
}
