// Package models defines the data structures for transcript events and
// the client session protocol.
package models

// TranscriptEvent is the normalized event crossing the
// adapter→orchestrator boundary, independent of vendor wire formats.
type TranscriptEvent struct {
	Vendor     string  `json:"vendor"`
	Text       string  `json:"text"`
	IsFinal    bool    `json:"is_final"`
	Confidence float64 `json:"confidence,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// ClientMessage is one inbound frame of the session protocol.
// Type is "start", "audio" or "stop"; Audio carries base64 PCM16 for
// audio frames.
type ClientMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
}

// ServerMessage is one outbound frame of the session protocol, e.g.
// {type: "<vendor>_transcript", data: {...}} or
// {type: "<vendor>_status", status: "connected"}.
type ServerMessage struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// TranscriptData is the normalized payload of a <vendor>_transcript
// message. Channel carries the legacy nested shape for the primary
// reference provider only.
type TranscriptData struct {
	Text       string   `json:"text"`
	IsFinal    bool     `json:"is_final"`
	Confidence float64  `json:"confidence,omitempty"`
	Channel    *Channel `json:"channel,omitempty"`
}

// Channel mirrors Deepgram's nested channel/alternatives response
// structure, kept for backward compatibility with the existing client.
type Channel struct {
	Alternatives []Alternative `json:"alternatives"`
}

// Alternative is one recognition hypothesis in the legacy shape.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// ProviderMetrics is the per-provider summary emitted when a session
// stops.
type ProviderMetrics struct {
	WordCount       int    `json:"word_count"`
	FirstResponseMs int64  `json:"first_response_ms"` // -1 when the provider never responded
	Transcript      string `json:"transcript"`
}

// TranscriptPartial is the interim event published to Kafka.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Vendor    string `json:"vendor"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal is the finalized event published to Kafka.
type TranscriptFinal struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	Vendor     string  `json:"vendor"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
