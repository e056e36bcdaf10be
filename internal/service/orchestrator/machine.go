// internal/service/orchestrator/machine.go

package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"pulse/internal/domain/pipeline"
)

// State is the lifecycle state of one run
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// ErrIllegalTransition is returned when a run moves out of order
var ErrIllegalTransition = errors.New("illegal state transition")

// Machine tracks a run through idle, running(stage), and a terminal state.
// Stages must be entered strictly in order and a failure is terminal.
type Machine struct {
	mu    sync.Mutex
	state State
	stage pipeline.Stage
	index int
	err   *pipeline.Error
}

// NewMachine returns a machine in the idle state
func NewMachine() *Machine {
	return &Machine{state: StateIdle, index: -1}
}

// Advance moves the run into the next stage
func (m *Machine) Advance(stage pipeline.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle && m.state != StateRunning {
		return fmt.Errorf("%w: %s to stage %s", ErrIllegalTransition, m.state, stage)
	}

	next := m.index + 1
	if next >= len(pipeline.Stages) || pipeline.Stages[next] != stage {
		return fmt.Errorf("%w: stage %s after %q", ErrIllegalTransition, stage, m.stage)
	}

	m.state = StateRunning
	m.stage = stage
	m.index = next
	return nil
}

// Fail marks the current stage as failed
func (m *Machine) Fail(err *pipeline.Error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRunning {
		return fmt.Errorf("%w: fail from %s", ErrIllegalTransition, m.state)
	}

	m.state = StateFailed
	m.err = err
	return nil
}

// Complete finishes the run after the last stage
func (m *Machine) Complete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRunning || m.index != len(pipeline.Stages)-1 {
		return fmt.Errorf("%w: complete from %s at stage %q", ErrIllegalTransition, m.state, m.stage)
	}

	m.state = StateComplete
	return nil
}

// Cancel abandons a run that has not reached a terminal state
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle && m.state != StateRunning {
		return fmt.Errorf("%w: cancel from %s", ErrIllegalTransition, m.state)
	}

	m.state = StateCancelled
	return nil
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stage returns the stage most recently entered
func (m *Machine) Stage() pipeline.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Err returns the failure that ended the run, if any
func (m *Machine) Err() *pipeline.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Resume returns where a caller should retry from after a failure
func (m *Machine) Resume() pipeline.ResumePoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateFailed || m.err == nil {
		return pipeline.ResumeNone
	}
	return m.err.Resume
}
