package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stt-comparison-service/internal/events"
	"stt-comparison-service/internal/models"
	"stt-comparison-service/internal/service/stt"
	"stt-comparison-service/internal/service/stt/mock"
	"stt-comparison-service/internal/service/transcript"
)

func disabledPublisher() *events.Publisher {
	return events.New(&events.Config{Enabled: false})
}

// drain collects outbound messages until the channel closes.
func drain(o *Orchestrator) <-chan []models.ServerMessage {
	out := make(chan []models.ServerMessage, 1)
	go func() {
		var msgs []models.ServerMessage
		for msg := range o.Events() {
			msgs = append(msgs, msg)
		}
		out <- msgs
	}()
	return out
}

// waitConnected blocks until n providers have joined the fan-out.
func waitConnected(t *testing.T, o *Orchestrator, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		o.mu.Lock()
		got := len(o.queues)
		o.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d connected providers", n)
}

func TestPolicyFor(t *testing.T) {
	if PolicyFor("assembly") != transcript.PolicyCumulative {
		t.Error("expected cumulative policy for assembly")
	}
	for _, vendor := range []string{"deepgram", "cartesia", "speechmatics", "google", "openai", "aws"} {
		if PolicyFor(vendor) != transcript.PolicyDelta {
			t.Errorf("expected delta policy for %s", vendor)
		}
	}
}

func TestOrchestrator_StartEmitsConnectedStatus(t *testing.T) {
	o := NewOrchestrator("sess-1", []stt.Adapter{mock.New("deepgram"), mock.New("google")}, disabledPublisher())
	collected := drain(o)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if o.State() != StateRecording {
		t.Errorf("expected RECORDING after start, got %s", o.State())
	}

	waitConnected(t, o, 2)
	o.Stop(context.Background())
	msgs := <-collected

	statuses := map[string]bool{}
	for _, msg := range msgs {
		if strings.HasSuffix(msg.Type, "_status") && msg.Status == "connected" {
			statuses[msg.Type] = true
		}
	}
	if !statuses["deepgram_status"] || !statuses["google_status"] {
		t.Errorf("expected connected status for both providers, got %v", statuses)
	}
}

func TestOrchestrator_AudioRejectedBeforeStart(t *testing.T) {
	o := NewOrchestrator("sess-2", []stt.Adapter{mock.New("deepgram")}, disabledPublisher())

	if err := o.SendAudio(make([]byte, 320)); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording, got %v", err)
	}
}

func TestOrchestrator_FullSession(t *testing.T) {
	adapter := mock.New("deepgram")
	o := NewOrchestrator("sess-3", []stt.Adapter{adapter}, disabledPublisher())
	collected := drain(o)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitConnected(t, o, 1)

	// Pace frames slower than the mock's emit delay so each interim
	// lands before the next frame.
	for i := 0; i < 8; i++ {
		if err := o.SendAudio(make([]byte, 320)); err != nil {
			t.Fatalf("SendAudio failed: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	summary, err := o.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	dg, ok := summary["deepgram"]
	if !ok {
		t.Fatal("expected deepgram in summary")
	}
	if dg.WordCount == 0 {
		t.Error("expected non-zero word count")
	}
	if dg.Transcript == "" {
		t.Error("expected non-empty transcript")
	}
	if dg.FirstResponseMs < 0 {
		t.Error("expected first response latency to be recorded")
	}

	msgs := <-collected
	var interims, finals int
	for _, msg := range msgs {
		if msg.Type != "deepgram_transcript" {
			continue
		}
		data := msg.Data.(models.TranscriptData)
		if data.IsFinal {
			finals++
		} else {
			interims++
		}
	}
	if interims == 0 {
		t.Error("expected interim transcript messages")
	}
	if finals != 1 {
		t.Errorf("expected exactly one final, got %d", finals)
	}
}

func TestOrchestrator_StopIdempotent(t *testing.T) {
	o := NewOrchestrator("sess-4", []stt.Adapter{mock.New("deepgram")}, disabledPublisher())
	drain(o)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := o.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	summary, err := o.Stop(context.Background())
	if err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
	if summary != nil {
		t.Error("second Stop should return nil summary")
	}

	if o.State() != StateIdle {
		t.Errorf("expected IDLE after stop, got %s", o.State())
	}
}

func TestOrchestrator_AudioRejectedAfterStop(t *testing.T) {
	o := NewOrchestrator("sess-5", []stt.Adapter{mock.New("deepgram")}, disabledPublisher())
	drain(o)

	o.Start(context.Background())
	o.Stop(context.Background())

	if err := o.SendAudio(make([]byte, 320)); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording after stop, got %v", err)
	}
}

// failingAdapter always fails to connect.
type failingAdapter struct{ vendor string }

func (f *failingAdapter) Vendor() string { return f.vendor }
func (f *failingAdapter) Start(context.Context, stt.Callback) error {
	return errors.New("dial refused")
}
func (f *failingAdapter) SendAudio(context.Context, []byte) error { return nil }
func (f *failingAdapter) Close() error                            { return nil }

func TestOrchestrator_ProviderConnectFailureIsIsolated(t *testing.T) {
	adapters := []stt.Adapter{
		mock.New("deepgram"),
		&failingAdapter{vendor: "cartesia"},
	}
	o := NewOrchestrator("sess-6", adapters, disabledPublisher())
	collected := drain(o)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitConnected(t, o, 1)

	// Healthy provider keeps working.
	o.SendAudio(make([]byte, 320))
	time.Sleep(100 * time.Millisecond)

	summary, _ := o.Stop(context.Background())
	if _, ok := summary["deepgram"]; !ok {
		t.Error("expected deepgram in summary despite cartesia failure")
	}
	if _, ok := summary["cartesia"]; ok {
		t.Error("failed provider should not appear in summary")
	}

	msgs := <-collected
	var sawError bool
	for _, msg := range msgs {
		if msg.Type == "cartesia_error" && msg.Error != "" {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected cartesia_error message")
	}
}

// blockedAdapter holds its connect open until the gate is released.
type blockedAdapter struct {
	vendor string
	gate   chan struct{}
	closes int32
}

func newBlockedAdapter(vendor string) *blockedAdapter {
	return &blockedAdapter{vendor: vendor, gate: make(chan struct{})}
}

func (b *blockedAdapter) Vendor() string { return b.vendor }
func (b *blockedAdapter) Start(ctx context.Context, _ stt.Callback) error {
	select {
	case <-b.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (b *blockedAdapter) SendAudio(context.Context, []byte) error { return nil }
func (b *blockedAdapter) Close() error {
	atomic.AddInt32(&b.closes, 1)
	return nil
}

func TestOrchestrator_SlowConnectDoesNotDelayStart(t *testing.T) {
	slow := newBlockedAdapter("speechmatics")
	defer close(slow.gate)

	o := NewOrchestrator("sess-7", []stt.Adapter{mock.New("deepgram"), slow}, disabledPublisher())
	drain(o)

	started := time.Now()
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 500*time.Millisecond {
		t.Fatalf("Start blocked on a pending connect: %v", elapsed)
	}
	if o.State() != StateRecording {
		t.Errorf("expected RECORDING while a connect is pending, got %s", o.State())
	}

	// The connected provider receives audio while the other is still
	// dialing.
	waitConnected(t, o, 1)
	for i := 0; i < 8; i++ {
		if err := o.SendAudio(make([]byte, 320)); err != nil {
			t.Fatalf("SendAudio failed: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	summary, err := o.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	dg, ok := summary["deepgram"]
	if !ok {
		t.Fatal("expected deepgram in summary")
	}
	if dg.WordCount == 0 {
		t.Error("expected deepgram to transcribe while speechmatics was connecting")
	}
	if _, ok := summary["speechmatics"]; ok {
		t.Error("provider that never finished connecting should not appear in summary")
	}
}

func TestOrchestrator_LateConnectAfterStopIsDiscarded(t *testing.T) {
	slow := newBlockedAdapter("aws")
	o := NewOrchestrator("sess-8", []stt.Adapter{slow}, disabledPublisher())
	drain(o)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	summary, err := o.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(summary) != 0 {
		t.Errorf("no provider finished connecting, summary should be empty, got %v", summary)
	}

	// Stop closed the adapter once; the connect that lands afterwards
	// must be torn down again instead of registering a frame queue.
	close(slow.gate)
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&slow.closes) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&slow.closes) < 2 {
		t.Fatal("late-connecting provider was not closed")
	}

	o.mu.Lock()
	registered := len(o.queues)
	o.mu.Unlock()
	if registered != 0 {
		t.Error("late connect must not join the fan-out")
	}
}

func TestGenerator_UniqueIDs(t *testing.T) {
	g := NewGenerator()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := g.Next()
		if seen[id] {
			t.Fatalf("duplicate session ID: %s", id)
		}
		seen[id] = true
	}
}
