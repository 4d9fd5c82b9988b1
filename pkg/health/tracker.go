// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package health

import (
	"sync"
	"time"
)

// Tracker records connection outcomes for a resource handle. A handle is
// considered available after a successful connect until the next failure
// or until it is marked down.
type Tracker struct {
	mu            sync.RWMutex
	available     bool
	connects      int64
	failureCount  int64
	lastConnectAt time.Time
	lastFailureAt time.Time
	lastError     string
	nowFunc       func() time.Time // for testing
}

// NewTracker creates a Tracker that starts unavailable.
func NewTracker() *Tracker {
	return &Tracker{nowFunc: time.Now}
}

// RecordConnect marks the resource available and counts the connect.
func (t *Tracker) RecordConnect() {
	t.mu.Lock()
	t.available = true
	t.connects++
	t.lastConnectAt = t.nowFunc()
	t.mu.Unlock()
}

// RecordFailure marks the resource unavailable and remembers err.
func (t *Tracker) RecordFailure(err error) {
	t.mu.Lock()
	t.available = false
	t.failureCount++
	t.lastFailureAt = t.nowFunc()
	if err != nil {
		t.lastError = err.Error()
	}
	t.mu.Unlock()
}

// MarkDown flips the resource to unavailable without counting a failure.
func (t *Tracker) MarkDown() {
	t.mu.Lock()
	t.available = false
	t.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (t *Tracker) SetNowFunc(fn func() time.Time) {
	t.mu.Lock()
	t.nowFunc = fn
	t.mu.Unlock()
}

// Metrics returns a point-in-time snapshot. The result holds no references
// to tracker state.
func (t *Tracker) Metrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := Metrics{
		Available:    t.available,
		Connects:     t.connects,
		FailureCount: t.failureCount,
		LastError:    t.lastError,
	}
	if t.connects > 0 {
		at := t.lastConnectAt
		m.LastConnectAt = &at
	}
	if t.failureCount > 0 {
		at := t.lastFailureAt
		m.LastFailureAt = &at
	}
	return m
}
