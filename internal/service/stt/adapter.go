// Package stt defines the capability set shared by all Speech-to-Text
// provider adapters.
package stt

import "context"

// Callback receives normalized transcript events from a provider.
// Implementations must tolerate calls from the adapter's read goroutine.
type Callback interface {
	// OnTranscript is called for every transcript update. isFinal marks
	// segments the vendor guarantees will not change further.
	// confidence is 0 for vendors that do not report one.
	OnTranscript(text string, isFinal bool, confidence float64)

	// OnError is called when the provider stream fails. The error is
	// scoped to this provider only.
	OnError(err error)
}

// Adapter is implemented once per vendor. Each adapter owns its
// connection setup, auth, audio framing and raw-response parsing, and
// forwards normalized events through the Callback.
type Adapter interface {
	// Vendor returns the provider identifier (e.g. "deepgram").
	Vendor() string

	// Start opens a streaming session. It fails on auth or network
	// errors; a failed Start leaves the adapter safe to Close.
	Start(ctx context.Context, cb Callback) error

	// SendAudio forwards one frame of PCM16 audio. Transient failures
	// are returned, not retried; the frame is dropped.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases vendor resources. Idempotent.
	Close() error
}

// AudioConfig declares the encoding metadata adapters announce at
// connect time.
type AudioConfig struct {
	SampleRateHz   int
	Channels       int
	LanguageCode   string
	InterimResults bool
}

// DefaultAudioConfig matches the browser capture pipeline: 16kHz mono
// PCM16 with interim results enabled.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRateHz:   16000,
		Channels:       1,
		LanguageCode:   "en-US",
		InterimResults: true,
	}
}
