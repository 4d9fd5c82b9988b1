// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build unix

package lifecycle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sigil-dev/quarry/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exitRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (r *exitRecorder) exit(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func (r *exitRecorder) get() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.codes...)
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func newManager(t *testing.T) (*lifecycle.Manager, *exitRecorder, string) {
	t.Helper()
	rec := &exitRecorder{}
	marker := filepath.Join(t.TempDir(), ".alive")
	m := lifecycle.New(lifecycle.Config{
		MarkerPath:   marker,
		Signals:      []os.Signal{syscall.SIGUSR1},
		DrainTimeout: time.Second,
		Exit:         rec.exit,
	})
	return m, rec, marker
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestState_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    lifecycle.State
		to      lifecycle.State
		allowed bool
	}{
		{"starting to running", lifecycle.StateStarting, lifecycle.StateRunning, true},
		{"running to shutting down", lifecycle.StateRunning, lifecycle.StateShuttingDown, true},
		{"shutting down to terminated", lifecycle.StateShuttingDown, lifecycle.StateTerminated, true},
		{"starting to shutting down", lifecycle.StateStarting, lifecycle.StateShuttingDown, true},
		{"running to terminated", lifecycle.StateRunning, lifecycle.StateTerminated, false},
		{"terminated to running", lifecycle.StateTerminated, lifecycle.StateRunning, false},
		{"shutting down to running", lifecycle.StateShuttingDown, lifecycle.StateRunning, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, lifecycle.ValidTransition(tt.from, tt.to))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 130, lifecycle.ExitCode(syscall.SIGINT, nil))
	assert.Equal(t, 143, lifecycle.ExitCode(syscall.SIGTERM, nil))
	assert.Equal(t, 0, lifecycle.ExitCode(nil, nil))
	assert.Equal(t, 0, lifecycle.ExitCode(nil, context.Canceled))
	assert.Equal(t, 1, lifecycle.ExitCode(nil, errors.New("listen tcp: address in use")))
}

func TestRun_EndOfInputExitsCleanly(t *testing.T) {
	m, rec, marker := newManager(t)

	var order []string
	m.OnShutdown("warehouse", closeFunc(func() error { order = append(order, "warehouse"); return nil }))
	m.OnShutdown("vector", closeFunc(func() error { order = append(order, "vector"); return nil }))

	markerSeen := false
	code := m.Run(context.Background(), func(context.Context) error {
		_, err := os.Stat(marker)
		markerSeen = err == nil
		return nil
	})

	assert.Equal(t, 0, code)
	assert.Equal(t, []int{0}, rec.get())
	assert.True(t, markerSeen)
	assert.NoFileExists(t, marker)
	assert.Equal(t, []string{"vector", "warehouse"}, order)
	assert.Equal(t, lifecycle.StateTerminated, m.State())
}

func TestRun_TransportFailureExitsOne(t *testing.T) {
	m, rec, _ := newManager(t)
	code := m.Run(context.Background(),
		func(context.Context) error { return errors.New("bind: address already in use") },
		blockUntilDone,
	)
	assert.Equal(t, 1, code)
	assert.Equal(t, []int{1}, rec.get())
}

func TestRun_ExplicitShutdown(t *testing.T) {
	m, rec, marker := newManager(t)
	m.Shutdown()

	code := m.Run(context.Background(), blockUntilDone)
	assert.Equal(t, 0, code)
	assert.Equal(t, []int{0}, rec.get())
	assert.NoFileExists(t, marker)
}

func TestRun_ContextCancelled(t *testing.T) {
	m, rec, _ := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := m.Run(ctx, blockUntilDone)
	assert.Equal(t, 0, code)
	assert.Equal(t, []int{0}, rec.get())
}

func TestRun_SignalExitsWithSignalCode(t *testing.T) {
	m, rec, marker := newManager(t)

	result := make(chan int, 1)
	go func() { result <- m.Run(context.Background(), blockUntilDone) }()

	require.Eventually(t, func() bool { return m.State() == lifecycle.StateRunning }, time.Second, 5*time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	select {
	case code := <-result:
		assert.Equal(t, 128+int(syscall.SIGUSR1), code)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after signal")
	}
	assert.Equal(t, []int{128 + int(syscall.SIGUSR1)}, rec.get())
	assert.NoFileExists(t, marker)
}

func TestRun_SecondShutdownForcesExit(t *testing.T) {
	m, rec, marker := newManager(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	m.OnShutdown("slow", closeFunc(func() error {
		close(entered)
		<-release
		return nil
	}))

	result := make(chan int, 1)
	go func() { result <- m.Run(context.Background(), blockUntilDone) }()

	m.Shutdown()
	<-entered
	assert.Equal(t, lifecycle.StateShuttingDown, m.State())

	m.Shutdown()
	assert.Equal(t, []int{1}, rec.get(), "second trigger exits 1 without waiting for the first")
	assert.NoFileExists(t, marker)

	close(release)
	<-result
	assert.Equal(t, []int{1, 0}, rec.get())
}
