// Package assemblyai provides adapters for AssemblyAI Universal
// Streaming v3 and the prerecorded transcript API.
//
// Streaming turns are cumulative: every Turn event re-sends the whole
// utterance-so-far, and a turn is immutable once the next one begins.
// The accumulator's cumulative policy relies on that.
package assemblyai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"stt-comparison-service/internal/service/stt"
)

const streamingHost = "streaming.assemblyai.com"

// turnMessage covers the v3 event envelope. Type is one of Begin, Turn,
// Termination or Error.
type turnMessage struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	EndOfTurn  bool   `json:"end_of_turn,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Adapter implements stt.Adapter against Universal Streaming v3.
type Adapter struct {
	apiKey string
	cfg    stt.AudioConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New creates an AssemblyAI streaming adapter.
func New(apiKey string, cfg stt.AudioConfig) *Adapter {
	return &Adapter{apiKey: apiKey, cfg: cfg}
}

// Vendor returns the provider identifier.
func (a *Adapter) Vendor() string { return "assembly" }

// Start dials the v3 websocket with API-key header auth. Sample rate
// and encoding are declared in the query string.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	q := url.Values{}
	q.Set("sample_rate", fmt.Sprint(a.cfg.SampleRateHz))
	q.Set("encoding", "pcm_s16le")
	q.Set("format_turns", "true")

	u := url.URL{Scheme: "wss", Host: streamingHost, Path: "/v3/ws", RawQuery: q.Encode()}
	header := http.Header{"Authorization": {a.apiKey}}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("assemblyai dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("assemblyai dial: %w", err)
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
				cb.OnError(fmt.Errorf("assemblyai stream: %w", err))
			}
			return
		}

		var msg turnMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "Turn":
			if msg.Transcript != "" {
				cb.OnTranscript(msg.Transcript, msg.EndOfTurn, 0)
			}
		case "Error":
			cb.OnError(fmt.Errorf("assemblyai: %s", msg.Error))
		case "Begin", "Termination":
			// Session bookkeeping only.
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

// Close sends the Terminate control message and drops the connection.
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
	_ = a.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Terminate"}`))
	return a.conn.Close()
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
