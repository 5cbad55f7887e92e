// Package cartesia provides a streaming adapter for the Cartesia
// ink-whisper STT websocket API.
package cartesia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"stt-comparison-service/internal/service/stt"
)

const (
	apiHost    = "api.cartesia.ai"
	apiVersion = "2025-04-16"
	model      = "ink-whisper"
)

// sttMessage is Cartesia's flat response shape. Type is one of
// transcript, flush_done, done or error.
type sttMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
	Message string `json:"message,omitempty"`
}

// Adapter implements stt.Adapter against the Cartesia STT websocket.
// Auth rides in the query string; audio is raw binary; teardown uses
// the "finalize"/"done" text commands.
type Adapter struct {
	apiKey string
	cfg    stt.AudioConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New creates a Cartesia adapter.
func New(apiKey string, cfg stt.AudioConfig) *Adapter {
	return &Adapter{apiKey: apiKey, cfg: cfg}
}

// Vendor returns the provider identifier.
func (a *Adapter) Vendor() string { return "cartesia" }

// Start dials the STT websocket with encoding metadata and the API key
// in the query string.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	lang := a.cfg.LanguageCode
	if len(lang) > 2 {
		lang = lang[:2] // Cartesia takes bare ISO 639-1 codes.
	}

	q := url.Values{}
	q.Set("model", model)
	q.Set("language", lang)
	q.Set("encoding", "pcm_s16le")
	q.Set("sample_rate", fmt.Sprint(a.cfg.SampleRateHz))
	q.Set("api_key", a.apiKey)
	q.Set("cartesia_version", apiVersion)

	u := url.URL{Scheme: "wss", Host: apiHost, Path: "/stt/websocket", RawQuery: q.Encode()}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("cartesia dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("cartesia dial: %w", err)
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
				cb.OnError(fmt.Errorf("cartesia stream: %w", err))
			}
			return
		}

		var msg sttMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "transcript":
			cb.OnTranscript(msg.Text, msg.IsFinal, 0)
		case "error":
			cb.OnError(fmt.Errorf("cartesia: %s", msg.Message))
		case "flush_done", "done":
			// Teardown acknowledgements.
		}
	}
}

// SendAudio writes one PCM16 frame as raw binary.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.conn == nil {
		return nil
	}
	return a.conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Close finalizes pending audio, ends the session and drops the
// connection. Idempotent.
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
	_ = a.conn.WriteMessage(websocket.TextMessage, []byte("finalize"))
	_ = a.conn.WriteMessage(websocket.TextMessage, []byte("done"))
	return a.conn.Close()
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
