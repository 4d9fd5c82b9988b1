// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package lifecycle

import (
	"sync"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// State is the process lifecycle state.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions as an adjacency list.
var validTransitions = map[State]map[State]bool{
	StateStarting: {
		StateRunning:      true,
		StateShuttingDown: true,
	},
	StateRunning: {
		StateShuttingDown: true,
	},
	StateShuttingDown: {
		StateTerminated: true,
	},
	StateTerminated: {},
}

// ValidTransition returns true if transitioning from one state to another is allowed.
func ValidTransition(from, to State) bool {
	return validTransitions[from][to]
}

// machine guards the current state.
type machine struct {
	mu    sync.RWMutex
	state State
}

func (m *machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *machine) TransitionTo(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !ValidTransition(m.state, next) {
		return quarryerr.Errorf(quarryerr.CodeLifecycleTransitionInvalid,
			"invalid state transition: %s -> %s", m.state, next)
	}
	m.state = next
	return nil
}
