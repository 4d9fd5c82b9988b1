// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package lifecycle runs the server's transports and owns process
// shutdown: signal handling, resource teardown, the liveness marker and
// the exit code.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// DefaultMarkerPath is where the liveness marker is written unless configured.
const DefaultMarkerPath = "/tmp/.alive"

// DefaultDrainTimeout bounds how long shutdown waits for transports to return.
const DefaultDrainTimeout = 10 * time.Second

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
)

// Transport serves requests until ctx is cancelled or its input ends.
// Returning nil before cancellation is an explicit shutdown request.
type Transport func(ctx context.Context) error

// Config configures a Manager.
type Config struct {
	// MarkerPath is the liveness marker created by Run and removed on
	// shutdown. Empty disables the marker.
	MarkerPath string

	// Signals that trigger shutdown. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal

	// DrainTimeout bounds the wait for transports after cancellation.
	DrainTimeout time.Duration

	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)
}

type closer struct {
	name string
	c    io.Closer
}

// trigger is one shutdown request: a signal, a transport ending, or an
// explicit Shutdown call.
type trigger struct {
	sig       os.Signal
	err       error
	transport bool
}

// Manager drives STARTING -> RUNNING -> SHUTTING_DOWN -> TERMINATED.
type Manager struct {
	cfg      Config
	state    machine
	triggers chan trigger

	mu       sync.Mutex
	closers  []closer
	shutdown bool
}

// New returns a Manager in StateStarting.
func New(cfg Config) *Manager {
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{unix.SIGINT, unix.SIGTERM}
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	return &Manager{cfg: cfg, triggers: make(chan trigger, 1)}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state.State()
}

// OnShutdown registers c to be closed during shutdown. Closers run in
// reverse registration order.
func (m *Manager) OnShutdown(name string, c io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, closer{name: name, c: c})
}

// Shutdown requests a clean shutdown. A request made while shutdown is
// already in progress forces exit 1.
func (m *Manager) Shutdown() {
	m.request(trigger{})
}

// Run moves to RUNNING, serves the transports until the first shutdown
// trigger, tears everything down and calls Exit with the resulting code,
// which it also returns.
func (m *Manager) Run(ctx context.Context, transports ...Transport) int {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, m.cfg.Signals...)
	defer signal.Stop(sigCh)

	if err := m.state.TransitionTo(StateRunning); err != nil {
		slog.Error("cannot start", "error", err)
		return m.exit(ExitFailed)
	}
	if err := m.createMarker(); err != nil {
		slog.Warn("cannot create liveness marker", "path", m.cfg.MarkerPath, "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for _, t := range transports {
		g.Go(func() error {
			err := t(gctx)
			m.request(trigger{err: err, transport: true})
			return err
		})
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				slog.Info("received signal", "signal", sig.String())
				m.request(trigger{sig: sig})
			case <-ctx.Done():
				m.request(trigger{err: ctx.Err(), transport: true})
				return
			case <-stop:
				return
			}
		}
	}()

	first := <-m.triggers
	if err := m.state.TransitionTo(StateShuttingDown); err != nil {
		slog.Error("shutdown transition rejected", "error", err)
	}
	slog.Info("shutting down", "reason", describe(first))

	cancel()
	m.closeAll()
	m.removeMarker()
	m.drain(g)

	if err := m.state.TransitionTo(StateTerminated); err != nil {
		slog.Error("terminate transition rejected", "error", err)
	}
	return m.exit(ExitCode(first.sig, first.err))
}

// ExitCode maps a shutdown cause to a process exit code: 128+signal for a
// signal, 1 for a transport failure, 0 otherwise.
func ExitCode(sig os.Signal, err error) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return ExitFailed
	}
	return ExitOK
}

func (m *Manager) request(t trigger) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		if t.transport {
			return
		}
		slog.Warn("second shutdown request, exiting immediately")
		m.removeMarker()
		m.exit(ExitFailed)
		return
	}
	m.shutdown = true
	m.mu.Unlock()
	m.triggers <- t
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	closers := make([]closer, len(m.closers))
	copy(closers, m.closers)
	m.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].c.Close(); err != nil {
			slog.Warn("error closing resource", "resource", closers[i].name, "error", err)
		}
	}
}

func (m *Manager) drain(g *errgroup.Group) {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("transport stopped with error", "error", err)
		}
	case <-time.After(m.cfg.DrainTimeout):
		slog.Warn("transports did not stop in time", "timeout", m.cfg.DrainTimeout)
	}
}

func (m *Manager) exit(code int) int {
	m.cfg.Exit(code)
	return code
}

func (m *Manager) createMarker() error {
	if m.cfg.MarkerPath == "" {
		return nil
	}
	if err := os.WriteFile(m.cfg.MarkerPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return quarryerr.Wrap(err, quarryerr.CodeLifecycleMarkerFailure, "writing liveness marker")
	}
	return nil
}

func (m *Manager) removeMarker() {
	if m.cfg.MarkerPath == "" {
		return
	}
	if err := os.Remove(m.cfg.MarkerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("cannot remove liveness marker", "path", m.cfg.MarkerPath, "error", err)
	}
}

func describe(t trigger) string {
	switch {
	case t.sig != nil:
		return "signal " + t.sig.String()
	case t.err != nil:
		return fmt.Sprintf("transport stopped: %v", t.err)
	case t.transport:
		return "input ended"
	default:
		return "requested"
	}
}
