// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package warehouse

import (
	"context"
	"log/slog"
	"sync"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
	"github.com/sigil-dev/quarry/pkg/health"
)

// ConnectFunc establishes a fresh warehouse connection.
type ConnectFunc func(ctx context.Context) (Conn, error)

// Handle owns the process-wide warehouse connection. The connection is
// created lazily and replaced when it is found absent or dead. Handle is
// safe for concurrent use; concurrent callers that find the connection dead
// trigger a single reconnect.
type Handle struct {
	mu      sync.Mutex
	connect ConnectFunc
	conn    Conn
	closed  bool
	tracker *health.Tracker
}

// NewHandle returns a Handle that connects through connect on first use.
func NewHandle(connect ConnectFunc) *Handle {
	return &Handle{
		connect: connect,
		tracker: health.NewTracker(),
	}
}

// Connect performs the initial connection. A failure is returned and
// recorded but the handle stays usable: the next Acquire tries again.
func (h *Handle) Connect(ctx context.Context) error {
	_, err := h.Acquire(ctx)
	return err
}

// Acquire returns a live connection, creating one if none exists or the
// current one is no longer alive.
func (h *Handle) Acquire(ctx context.Context) (Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, quarryerr.New(quarryerr.CodeWarehouseHandleClosed, "warehouse handle is closed")
	}
	if h.conn != nil && h.conn.IsAlive(ctx) {
		return h.conn, nil
	}
	if h.conn != nil {
		slog.Warn("warehouse connection lost, reconnecting")
	}
	return h.replaceLocked(ctx)
}

// Reconnect discards the current connection and opens a new one.
func (h *Handle) Reconnect(ctx context.Context) (Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, quarryerr.New(quarryerr.CodeWarehouseHandleClosed, "warehouse handle is closed")
	}
	return h.replaceLocked(ctx)
}

// replaceLocked closes any existing connection and opens a new one. The
// caller MUST hold h.mu.
func (h *Handle) replaceLocked(ctx context.Context) (Conn, error) {
	if h.conn != nil {
		if err := h.conn.Close(); err != nil {
			slog.Debug("closing stale warehouse connection", "error", err)
		}
		h.conn = nil
		h.tracker.MarkDown()
	}

	conn, err := h.connect(ctx)
	if err != nil {
		h.tracker.RecordFailure(err)
		slog.Error("warehouse connect failed", "error", err)
		if quarryerr.CodeOf(err) == "" {
			err = quarryerr.Wrap(err, quarryerr.CodeWarehouseConnectFailure, "connecting to warehouse")
		}
		return nil, err
	}

	h.conn = conn
	h.tracker.RecordConnect()
	slog.Info("warehouse connection established")
	return conn, nil
}

// Close releases the connection. It is idempotent and may run while a
// handler still holds the connection; that handler then sees a driver error.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.tracker.MarkDown()
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	if err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeWarehouseConnectFailure, "closing warehouse connection")
	}
	return nil
}

// Metrics returns a snapshot of the handle's connection history.
func (h *Handle) Metrics() health.Metrics {
	return h.tracker.Metrics()
}
