// Package openai provides a streaming adapter for the OpenAI realtime
// transcription API. Unlike the raw-binary vendors, audio travels in a
// base64-wrapped JSON envelope.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"stt-comparison-service/internal/service/stt"
)

const (
	realtimeURL = "wss://api.openai.com/v1/realtime?intent=transcription"
	model       = "gpt-4o-mini-transcribe"
)

// realtimeEvent covers the subset of server events the adapter acts on.
type realtimeEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Adapter implements stt.Adapter against the realtime transcription
// endpoint. Deltas are forwarded as interim events and the completed
// transcript as final.
type Adapter struct {
	apiKey string
	cfg    stt.AudioConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New creates an OpenAI realtime adapter.
func New(apiKey string, cfg stt.AudioConfig) *Adapter {
	return &Adapter{apiKey: apiKey, cfg: cfg}
}

// Vendor returns the provider identifier.
func (a *Adapter) Vendor() string { return "openai" }

// Start dials the realtime endpoint with bearer auth and configures the
// transcription session (PCM16 input, server-side turn detection).
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	header := http.Header{
		"Authorization": {"Bearer " + a.apiKey},
		"OpenAI-Beta":   {"realtime=v1"},
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, realtimeURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("openai dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("openai dial: %w", err)
	}

	sessionUpdate := map[string]any{
		"type": "transcription_session.update",
		"session": map[string]any{
			"input_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": model,
			},
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           0.5,
				"prefix_padding_ms":   300,
				"silence_duration_ms": 500,
			},
		},
	}
	if err := conn.WriteJSON(sessionUpdate); err != nil {
		conn.Close()
		return fmt.Errorf("openai session update: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	go a.listen(conn, cb)
	return nil
}

func (a *Adapter) listen(conn *websocket.Conn, cb stt.Callback) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !a.isClosed() {
				cb.OnError(fmt.Errorf("openai stream: %w", err))
			}
			return
		}

		var ev realtimeEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "conversation.item.input_audio_transcription.delta":
			if strings.TrimSpace(ev.Delta) != "" {
				cb.OnTranscript(ev.Delta, false, 0)
			}
		case "conversation.item.input_audio_transcription.completed":
			if strings.TrimSpace(ev.Transcript) != "" {
				cb.OnTranscript(ev.Transcript, true, 0)
			}
		case "error":
			msg := "unknown error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			cb.OnError(fmt.Errorf("openai: %s", msg))
		}
	}
}

// SendAudio base64-wraps one PCM16 frame into an append envelope.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.conn == nil {
		return nil
	}
	env, _ := json.Marshal(map[string]string{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(audio),
	})
	return a.conn.WriteMessage(websocket.TextMessage, env)
}

// Close drops the connection. Idempotent; the transcription endpoint
// needs no teardown message.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
