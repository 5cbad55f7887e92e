// Package session orchestrates one comparison session: it fans a single
// audio stream out to every configured STT provider and funnels their
// normalized transcript events back to the client.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateIdle - No session in progress.
	StateIdle State = iota
	// StateStarting - Provider streams are being opened.
	StateStarting
	// StateRecording - Session is live, audio frames are accepted.
	StateRecording
	// StateStopping - Session is shutting down, audio is rejected.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRecording:
		return "RECORDING"
	case StateStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid state transitions.
var (
	ErrSessionActive  = errors.New("session already active")
	ErrNotRecording   = errors.New("session is not recording")
	ErrAlreadyStopped = errors.New("session already stopped")
)

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → STARTING → RECORDING → STOPPING → IDLE
//
// Rules:
//   - IDLE: Begin() starts a session; audio is rejected
//   - STARTING: audio is rejected until all provider connects settle
//   - RECORDING: AcceptAudio() succeeds; BeginStop() starts shutdown
//   - STOPPING: audio is rejected; Finish() returns to IDLE
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a new session lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Begin transitions IDLE → STARTING.
func (l *Lifecycle) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return ErrSessionActive
	}
	l.state = StateStarting
	return nil
}

// Ready transitions STARTING → RECORDING.
func (l *Lifecycle) Ready() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateStarting {
		return fmt.Errorf("cannot mark ready from %s", l.state)
	}
	l.state = StateRecording
	return nil
}

// AcceptAudio validates that an audio frame may be processed.
func (l *Lifecycle) AcceptAudio() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state != StateRecording {
		return ErrNotRecording
	}
	return nil
}

// BeginStop transitions STARTING or RECORDING → STOPPING.
// Returns ErrAlreadyStopped when the session is already stopping or idle,
// so a second stop is a detectable no-op.
func (l *Lifecycle) BeginStop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateStarting, StateRecording:
		l.state = StateStopping
		return nil
	default:
		return ErrAlreadyStopped
	}
}

// Finish transitions STOPPING → IDLE. Idempotent.
func (l *Lifecycle) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateIdle
}
