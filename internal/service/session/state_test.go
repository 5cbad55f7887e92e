package session

import (
	"errors"
	"testing"
)

func TestLifecycle_HappyPath(t *testing.T) {
	l := NewLifecycle()

	if l.State() != StateIdle {
		t.Errorf("expected IDLE, got %s", l.State())
	}
	if err := l.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if l.State() != StateStarting {
		t.Errorf("expected STARTING, got %s", l.State())
	}
	if err := l.Ready(); err != nil {
		t.Fatalf("Ready failed: %v", err)
	}
	if l.State() != StateRecording {
		t.Errorf("expected RECORDING, got %s", l.State())
	}
	if err := l.AcceptAudio(); err != nil {
		t.Errorf("AcceptAudio failed while recording: %v", err)
	}
	if err := l.BeginStop(); err != nil {
		t.Fatalf("BeginStop failed: %v", err)
	}
	if l.State() != StateStopping {
		t.Errorf("expected STOPPING, got %s", l.State())
	}
	l.Finish()
	if l.State() != StateIdle {
		t.Errorf("expected IDLE after Finish, got %s", l.State())
	}
}

func TestLifecycle_BeginTwice(t *testing.T) {
	l := NewLifecycle()
	l.Begin()

	if err := l.Begin(); !errors.Is(err, ErrSessionActive) {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}
}

func TestLifecycle_AudioRejectedOutsideRecording(t *testing.T) {
	l := NewLifecycle()

	if err := l.AcceptAudio(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording while idle, got %v", err)
	}

	l.Begin()
	if err := l.AcceptAudio(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording while starting, got %v", err)
	}

	l.Ready()
	l.BeginStop()
	if err := l.AcceptAudio(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording while stopping, got %v", err)
	}
}

func TestLifecycle_StopTwice(t *testing.T) {
	l := NewLifecycle()
	l.Begin()
	l.Ready()

	if err := l.BeginStop(); err != nil {
		t.Fatalf("first BeginStop failed: %v", err)
	}
	if err := l.BeginStop(); !errors.Is(err, ErrAlreadyStopped) {
		t.Errorf("expected ErrAlreadyStopped, got %v", err)
	}
}

func TestLifecycle_StopFromStarting(t *testing.T) {
	l := NewLifecycle()
	l.Begin()

	if err := l.BeginStop(); err != nil {
		t.Errorf("BeginStop from STARTING failed: %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateStarting, "STARTING"},
		{StateRecording, "RECORDING"},
		{StateStopping, "STOPPING"},
		{State(99), "UNKNOWN(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
