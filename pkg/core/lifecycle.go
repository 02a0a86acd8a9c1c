package core

import (
	"fmt"
	"sync"
)

// ScenarioState is the coarse state of one scenario execution
type ScenarioState int

// ScenarioState values
const (
	StateNotStarted ScenarioState = iota
	StateNavigating
	StateRunning
	StatePassed
	StateFailed
)

// String returns the string representation of ScenarioState
func (s ScenarioState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateNavigating:
		return "navigating"
	case StateRunning:
		return "running"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for Passed and Failed.
func (s ScenarioState) IsTerminal() bool {
	return s == StatePassed || s == StateFailed
}

var transitions = map[ScenarioState][]ScenarioState{
	StateNotStarted: {StateNavigating, StateFailed},
	StateNavigating: {StateRunning, StatePassed, StateFailed},
	StateRunning:    {StateRunning, StatePassed, StateFailed},
}

// Lifecycle tracks a scenario through
// NotStarted -> Navigating -> Running(step) -> Passed | Failed.
// It is safe for concurrent reads while the owning goroutine advances it.
type Lifecycle struct {
	mu    sync.Mutex
	state ScenarioState
	step  int
}

// NewLifecycle returns a lifecycle in NotStarted.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{step: -1}
}

// State returns the current state and step index (-1 before Running).
func (l *Lifecycle) State() (ScenarioState, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.step
}

func (l *Lifecycle) move(to ScenarioState, step int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, next := range transitions[l.state] {
		if next != to {
			continue
		}
		if to == StateRunning && l.state == StateRunning && step <= l.step {
			return fmt.Errorf("illegal step transition %d -> %d", l.step, step)
		}
		l.state = to
		if to == StateRunning {
			l.step = step
		}
		return nil
	}
	return fmt.Errorf("illegal scenario transition %s -> %s", l.state, to)
}

// StartNavigation enters Navigating.
func (l *Lifecycle) StartNavigation() error {
	return l.move(StateNavigating, -1)
}

// Advance enters Running at step index i. Indices must increase.
func (l *Lifecycle) Advance(i int) error {
	return l.move(StateRunning, i)
}

// Pass enters Passed. Legal from Running, or from Navigating
// for a scenario with no steps.
func (l *Lifecycle) Pass() error {
	return l.move(StatePassed, -1)
}

// Fail enters Failed from any non-terminal state.
func (l *Lifecycle) Fail() error {
	return l.move(StateFailed, -1)
}
