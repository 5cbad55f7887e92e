// Package deepgram provides Deepgram adapters: live streaming over
// websocket plus a prerecorded REST client for batch scoring.
package deepgram

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

const (
	liveHost  = "api.deepgram.com"
	livePath  = "/v1/listen"
	liveModel = "nova-3"
)

// resultsMessage is the shape of a Deepgram live "Results" event.
type resultsMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Adapter implements stt.Adapter against the Deepgram live API.
// Audio frames are written as raw binary; results arrive as JSON with
// the nested channel/alternatives structure.
type Adapter struct {
	apiKey string
	cfg    stt.AudioConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	cb     stt.Callback
	closed bool
}

// New creates a Deepgram live adapter.
func New(apiKey string, cfg stt.AudioConfig) *Adapter {
	return &Adapter{apiKey: apiKey, cfg: cfg}
}

// Vendor returns the provider identifier.
func (a *Adapter) Vendor() string { return "deepgram" }

// Start dials the live endpoint with encoding metadata declared in the
// query string and API-key header auth.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	q := url.Values{}
	q.Set("model", liveModel)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprint(a.cfg.SampleRateHz))
	q.Set("channels", fmt.Sprint(a.cfg.Channels))
	q.Set("smart_format", "true")
	q.Set("interim_results", fmt.Sprint(a.cfg.InterimResults))

	u := url.URL{Scheme: "wss", Host: liveHost, Path: livePath, RawQuery: q.Encode()}
	header := http.Header{"Authorization": {"Token " + a.apiKey}}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("deepgram dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("deepgram dial: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.cb = cb
	a.mu.Unlock()

	go a.listen(conn, cb)
	return nil
}

// listen reads result messages until the connection ends.
func (a *Adapter) listen(conn *websocket.Conn, cb stt.Callback) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !a.isClosed() {
				cb.OnError(fmt.Errorf("deepgram stream: %w", err))
			}
			return
		}

		var msg resultsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			// Malformed payload: drop the event, keep the stream.
			continue
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}

		alt := msg.Channel.Alternatives[0]
		cb.OnTranscript(alt.Transcript, msg.IsFinal, alt.Confidence)
	}
}

// SendAudio writes one PCM16 frame as a binary websocket message.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.conn == nil {
		return nil
	}
	return a.conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Close signals end of stream and releases the connection. Idempotent.
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
	// Best effort: Deepgram finalizes pending audio on CloseStream.
	_ = a.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	return a.conn.Close()
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
