// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package vectorsearch

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
	"github.com/sigil-dev/quarry/pkg/health"
)

// UnavailableMessage is returned for every call on a disabled handle.
const UnavailableMessage = "vector store is not available on this server"

// Op is one unit of work against a session.
type Op func(ctx context.Context, s Session) (any, error)

// Handle owns the vector-store session. Whether the subsystem is enabled is
// decided once by Connect; a disabled handle never performs I/O.
//
// Ops run under a shared hold on use. Refresh takes it exclusively, so a
// session is only replaced and closed once every op started on it has
// returned.
type Handle struct {
	use     sync.RWMutex
	mu      sync.Mutex
	client  Client
	session Session
	enabled bool
	closed  bool
	tracker *health.Tracker
}

// NewHandle returns a handle for client. It stays disabled until Connect
// succeeds. A nil client yields a permanently disabled handle.
func NewHandle(client Client) *Handle {
	return &Handle{client: client, tracker: health.NewTracker()}
}

// Connect performs the one initial connection attempt. On failure the
// handle is permanently disabled and the error is returned for logging.
// Subsequent calls are no-ops.
func (h *Handle) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.enabled || h.client == nil || h.closed {
		return nil
	}
	s, err := h.client.Connect(ctx)
	if err != nil {
		h.client = nil
		h.tracker.RecordFailure(err)
		return quarryerr.Wrap(err, quarryerr.CodeVectorStoreUnavailable, "connecting to vector store")
	}
	h.session = s
	h.enabled = true
	h.tracker.RecordConnect()
	return nil
}

// Enabled reports whether the initial connection succeeded.
func (h *Handle) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled && !h.closed
}

// Invoke runs op with the current session. When op fails with an expired
// session it refreshes the session once and retries once. Any other failure,
// or a failure of the retry, is returned as is.
func (h *Handle) Invoke(ctx context.Context, op Op) (any, error) {
	stale, out, err := h.run(ctx, op)
	if err == nil {
		return out, nil
	}
	if stale == nil || !IsSessionExpired(err) {
		return nil, err
	}

	slog.Warn("vector store session expired, refreshing", "error", err)
	if err := h.refresh(ctx, stale); err != nil {
		return nil, err
	}

	_, out, err = h.run(ctx, op)
	if err != nil {
		slog.Error("vector store retry failed", "error", err)
		return nil, quarryerr.Wrapf(err, quarryerr.CodeVectorRetryFailure, "after refresh, still failed")
	}
	return out, nil
}

// run executes op on the current session while holding use shared. The
// session is nil when none could be obtained.
func (h *Handle) run(ctx context.Context, op Op) (Session, any, error) {
	h.use.RLock()
	defer h.use.RUnlock()

	s, err := h.current(ctx)
	if err != nil {
		return nil, nil, err
	}
	out, err := op(ctx, s)
	return s, out, err
}

// current returns the live session, reconnecting if a previous refresh
// left none.
func (h *Handle) current(ctx context.Context) (Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.enabled || h.closed {
		return nil, quarryerr.New(quarryerr.CodeVectorStoreUnavailable, UnavailableMessage)
	}
	if h.session != nil {
		return h.session, nil
	}
	return h.reconnectLocked(ctx)
}

// refresh replaces stale with a new session once no op is using it. If
// another caller already replaced it, nothing is done.
func (h *Handle) refresh(ctx context.Context, stale Session) error {
	h.use.Lock()
	defer h.use.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return quarryerr.New(quarryerr.CodeVectorStoreUnavailable, UnavailableMessage)
	}
	if h.session != nil && h.session != stale {
		return nil
	}
	if h.session != nil {
		if err := h.session.Close(); err != nil {
			slog.Debug("closing expired vector store session", "error", err)
		}
		h.session = nil
		h.tracker.MarkDown()
	}
	_, err := h.reconnectLocked(ctx)
	return err
}

// reconnectLocked opens a new session. The caller MUST hold h.mu.
func (h *Handle) reconnectLocked(ctx context.Context) (Session, error) {
	s, err := h.client.Connect(ctx)
	if err != nil {
		h.tracker.RecordFailure(err)
		return nil, quarryerr.Wrap(err, quarryerr.CodeVectorUpstreamFailure, "refreshing vector store session")
	}
	h.session = s
	h.tracker.RecordConnect()
	return s, nil
}

// Close ends the session. It is idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.tracker.MarkDown()
	if h.session == nil {
		return nil
	}
	err := h.session.Close()
	h.session = nil
	if err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeVectorUpstreamFailure, "closing vector store session")
	}
	return nil
}

// Metrics returns a snapshot of the session history.
func (h *Handle) Metrics() health.Metrics {
	return h.tracker.Metrics()
}

// IsSessionExpired reports whether err signals an expired or rejected
// session: its text contains "401" or "session expired" in any case.
func IsSessionExpired(err error) bool {
	if err == nil {
		return false
	}
	if quarryerr.HasCode(err, quarryerr.CodeVectorSessionExpired) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(strings.ToLower(msg), "session expired")
}
