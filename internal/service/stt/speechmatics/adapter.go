// Package speechmatics provides a streaming adapter for the
// Speechmatics real-time API. Auth uses a short-lived JWT minted from
// the long-lived API key; results arrive as segmented arrays that are
// concatenated per event.
package speechmatics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"stt-comparison-service/internal/service/stt"
)

const (
	mgmtURL = "https://mp.speechmatics.com/v1/api_keys?type=rt"
	rtHost  = "eu2.rt.speechmatics.com"
	jwtTTL  = 3600
)

// rtMessage covers the real-time protocol's JSON events.
type rtMessage struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Results []struct {
		Alternatives []struct {
			Content string `json:"content"`
		} `json:"alternatives"`
	} `json:"results,omitempty"`
}

// Adapter implements stt.Adapter against the Speechmatics real-time
// websocket. Start blocks until RecognitionStarted so that audio is
// never written before the service accepts it.
type Adapter struct {
	apiKey     string
	cfg        stt.AudioConfig
	httpClient *http.Client

	mu     sync.Mutex
	conn   *websocket.Conn
	seqNo  int
	closed bool
}

// New creates a Speechmatics adapter.
func New(apiKey string, cfg stt.AudioConfig) *Adapter {
	return &Adapter{apiKey: apiKey, cfg: cfg, httpClient: http.DefaultClient}
}

// Vendor returns the provider identifier.
func (a *Adapter) Vendor() string { return "speechmatics" }

// Start mints a short-lived JWT, dials the real-time endpoint, sends
// StartRecognition and waits for RecognitionStarted.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	jwt, err := a.temporaryJWT(ctx)
	if err != nil {
		return fmt.Errorf("speechmatics auth: %w", err)
	}

	u := url.URL{Scheme: "wss", Host: rtHost, Path: "/v2"}
	header := http.Header{"Authorization": {"Bearer " + jwt}}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("speechmatics dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("speechmatics dial: %w", err)
	}

	start := map[string]any{
		"message": "StartRecognition",
		"audio_format": map[string]any{
			"type":        "raw",
			"encoding":    "pcm_s16le",
			"sample_rate": a.cfg.SampleRateHz,
		},
		"transcription_config": map[string]any{
			"language":        strings.ToLower(strings.SplitN(a.cfg.LanguageCode, "-", 2)[0]),
			"enable_partials": a.cfg.InterimResults,
			"operating_point": "enhanced",
			"max_delay":       2.0,
		},
	}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return fmt.Errorf("speechmatics handshake: %w", err)
	}

	// Audio sent before RecognitionStarted is rejected, so the
	// handshake completes inside Start.
	for {
		var msg rtMessage
		if err := conn.ReadJSON(&msg); err != nil {
			conn.Close()
			return fmt.Errorf("speechmatics handshake: %w", err)
		}
		if msg.Message == "Error" {
			conn.Close()
			return fmt.Errorf("speechmatics handshake: %s", msg.Reason)
		}
		if msg.Message == "RecognitionStarted" {
			break
		}
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
				cb.OnError(fmt.Errorf("speechmatics stream: %w", err))
			}
			return
		}

		var msg rtMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Message {
		case "AddPartialTranscript":
			cb.OnTranscript(joinResults(msg), false, 0)
		case "AddTranscript":
			cb.OnTranscript(joinResults(msg), true, 0)
		case "Error":
			cb.OnError(fmt.Errorf("speechmatics: %s", msg.Reason))
		}
	}
}

// joinResults concatenates the per-result best alternatives into one
// transcript string.
func joinResults(msg rtMessage) string {
	parts := make([]string, 0, len(msg.Results))
	for _, r := range msg.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, r.Alternatives[0].Content)
		}
	}
	return strings.Join(parts, " ")
}

// SendAudio writes one PCM16 frame as a binary AddAudio message and
// tracks the sequence number for EndOfStream.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.conn == nil {
		return nil
	}
	if err := a.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return err
	}
	a.seqNo++
	return nil
}

// Close sends EndOfStream with the last audio sequence number and drops
// the connection. Idempotent.
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
	end, _ := json.Marshal(map[string]any{"message": "EndOfStream", "last_seq_no": a.seqNo})
	_ = a.conn.WriteMessage(websocket.TextMessage, end)
	return a.conn.Close()
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// temporaryJWT trades the long-lived API key for a short-lived
// real-time token via the management API.
func (a *Adapter) temporaryJWT(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]int{"ttl": jwtTTL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mgmtURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var decoded struct {
		KeyValue string `json:"key_value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.KeyValue, nil
}
