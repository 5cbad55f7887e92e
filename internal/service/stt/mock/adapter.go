// Package mock provides a scripted STT adapter for running the
// comparison harness without vendor credentials. It simulates realistic
// streaming behavior: progressive interim transcripts followed by
// exactly one final per utterance.
package mock

import (
	"context"
	"sync"
	"time"

	"stt-comparison-service/internal/service/stt"
)

// SimulatedUtterance is one scripted utterance with progressive
// interim transcripts.
type SimulatedUtterance struct {
	Interims   []string
	Final      string
	Confidence float64
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Interims:   []string{"I want", "I want to", "I want to cancel"},
		Final:      "I want to cancel my subscription",
		Confidence: 0.94,
	},
	{
		Interims:   []string{"Yes", "Yes please"},
		Final:      "Yes please go ahead",
		Confidence: 0.97,
	},
	{
		Interims:   []string{"Can you", "Can you help", "Can you help me with"},
		Final:      "Can you help me with my account",
		Confidence: 0.91,
	},
	{
		Interims:   []string{"Thank you"},
		Final:      "Thank you very much",
		Confidence: 0.98,
	},
}

// Adapter implements stt.Adapter with scripted responses: one interim
// per audio frame until the script runs out, then the final.
type Adapter struct {
	vendor string
	delay  time.Duration

	mu           sync.Mutex
	cb           stt.Callback
	utterance    SimulatedUtterance
	interimIndex int
	finalSent    bool
	closed       bool
}

var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock adapter reporting under the given vendor name.
func New(vendor string) *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return &Adapter{
		vendor:    vendor,
		delay:     20 * time.Millisecond,
		utterance: DefaultUtterances[idx],
	}
}

// Vendor returns the configured vendor name.
func (a *Adapter) Vendor() string { return a.vendor }

// Start begins a mock transcription session.
func (a *Adapter) Start(_ context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio advances the script: one interim per frame, then the final
// once all interims are out (mimicking silence detection).
func (a *Adapter) SendAudio(_ context.Context, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.cb == nil {
		return nil
	}

	if a.interimIndex < len(a.utterance.Interims) {
		text := a.utterance.Interims[a.interimIndex]
		a.interimIndex++
		go a.emit(text, false, 0)
		return nil
	}

	if !a.finalSent {
		a.finalSent = true
		go a.emit(a.utterance.Final, true, a.utterance.Confidence)
	}
	return nil
}

// Close ends the mock session. If the final was never reached, it is
// emitted now so the utterance is not lost.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if !a.finalSent && a.cb != nil && a.interimIndex > 0 {
		a.finalSent = true
		cb := a.cb
		utt := a.utterance
		go func() {
			cb.OnTranscript(utt.Final, true, utt.Confidence)
		}()
	}
	return nil
}

func (a *Adapter) emit(text string, isFinal bool, confidence float64) {
	time.Sleep(a.delay)
	a.mu.Lock()
	cb := a.cb
	closed := a.closed
	a.mu.Unlock()
	if closed && !isFinal {
		return
	}
	if cb != nil {
		cb.OnTranscript(text, isFinal, confidence)
	}
}
