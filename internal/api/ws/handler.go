// Package ws exposes the live comparison session over a WebSocket.
//
// The client protocol is JSON text frames:
//
//	{"type": "start"}                      begin a session
//	{"type": "audio", "audio": "<base64>"} one PCM16 frame
//	{"type": "stop"}                       end the session
//
// The server replies with <vendor>_status, <vendor>_transcript and
// <vendor>_error messages, plus a final "metrics" message on stop.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"stt-comparison-service/internal/events"
	"stt-comparison-service/internal/models"
	"stt-comparison-service/internal/observability/logging"
	"stt-comparison-service/internal/service/session"
)

const outBufferSize = 64

// Handler upgrades connections and runs one comparison session per
// client at a time.
type Handler struct {
	factory   *session.Factory
	publisher *events.Publisher
	generator *session.Generator
	upgrader  websocket.Upgrader
}

// NewHandler creates the WebSocket session handler.
func NewHandler(factory *session.Factory, publisher *events.Publisher) *Handler {
	return &Handler{
		factory:   factory,
		publisher: publisher,
		generator: session.NewGenerator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			// The comparison UI is served from the same origin in
			// production and from localhost in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and processes the session protocol
// until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger := logging.WithComponent("ws")
		logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &client{
		handler: h,
		conn:    conn,
		out:     make(chan models.ServerMessage, outBufferSize),
		done:    make(chan struct{}),
	}
	c.run(r.Context())
}

// client is the per-connection state. All writes to the connection go
// through the writer goroutine; gorilla/websocket allows only one
// concurrent writer.
type client struct {
	handler *Handler
	conn    *websocket.Conn
	out     chan models.ServerMessage
	done    chan struct{}

	orchestrator *session.Orchestrator
}

func (c *client) run(ctx context.Context) {
	logger := logging.WithComponent("ws")

	go c.writeLoop()
	defer close(c.done)
	defer c.stopSession(ctx)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn().Err(err).Msg("Malformed client message ignored")
			continue
		}

		switch msg.Type {
		case "start":
			c.startSession(ctx)
		case "audio":
			c.handleAudio(msg.Audio)
		case "stop":
			c.stopSession(ctx)
		default:
			logger.Warn().Str("type", msg.Type).Msg("Unknown client message type ignored")
		}
	}
}

func (c *client) startSession(ctx context.Context) {
	if c.orchestrator != nil && c.orchestrator.State() != session.StateIdle {
		logger := logging.WithSession(c.orchestrator.ID())
		logger.Warn().Msg("Start ignored, session already active")
		return
	}

	id := c.handler.generator.Next()
	adapters := c.handler.factory.Build(ctx)
	orch := session.NewOrchestrator(id, adapters, c.handler.publisher)
	c.orchestrator = orch

	go c.forward(orch)

	// Start returns once the session accepts audio; provider connects
	// settle in the background, so the read loop is never held up.
	if err := orch.Start(ctx); err != nil {
		logger := logging.WithSession(id)
		logger.Error().Err(err).Msg("Session start failed")
		c.send(models.ServerMessage{Type: "error", Error: err.Error()})
	}
}

func (c *client) handleAudio(encoded string) {
	orch := c.orchestrator
	if orch == nil {
		return
	}
	logger := logging.WithSession(orch.ID())
	frame, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid audio payload ignored")
		return
	}
	if err := orch.SendAudio(frame); err != nil && !errors.Is(err, session.ErrNotRecording) {
		logger.Warn().Err(err).Msg("Audio frame rejected")
	}
}

func (c *client) stopSession(ctx context.Context) {
	orch := c.orchestrator
	if orch == nil {
		return
	}
	summary, err := orch.Stop(ctx)
	if err != nil {
		logger := logging.WithSession(orch.ID())
		logger.Error().Err(err).Msg("Session stop failed")
		return
	}
	if summary != nil {
		c.send(models.ServerMessage{Type: "metrics", Data: summary})
	}
}

// forward copies orchestrator events to the client until the session
// closes its event channel on stop.
func (c *client) forward(orch *session.Orchestrator) {
	for msg := range orch.Events() {
		c.send(decorate(msg))
	}
}

// decorate adds the legacy nested channel/alternatives shape to
// Deepgram transcript messages. The existing comparison UI reads
// Deepgram results through that path.
func decorate(msg models.ServerMessage) models.ServerMessage {
	if msg.Type != "deepgram_transcript" {
		return msg
	}
	data, ok := msg.Data.(models.TranscriptData)
	if !ok {
		return msg
	}
	data.Channel = &models.Channel{
		Alternatives: []models.Alternative{
			{Transcript: data.Text, Confidence: data.Confidence},
		},
	}
	msg.Data = data
	return msg
}

func (c *client) send(msg models.ServerMessage) {
	select {
	case c.out <- msg:
	case <-c.done:
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case msg := <-c.out:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
