package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stt-comparison-service/internal/events"
	"stt-comparison-service/internal/models"
	"stt-comparison-service/internal/observability/logging"
	"stt-comparison-service/internal/observability/metrics"
	"stt-comparison-service/internal/service/stt"
	"stt-comparison-service/internal/service/transcript"
)

const (
	// Per-provider audio queue depth. At 100ms frames this buffers
	// several seconds before a slow provider starts losing audio.
	frameQueueSize = 64

	// Outbound event buffer toward the client.
	eventBufferSize = 256
)

// PolicyFor returns the word-count policy for a provider. AssemblyAI
// re-sends the whole growing turn on every update; everyone else sends
// delta-style finals.
func PolicyFor(vendor string) transcript.Policy {
	if vendor == "assembly" {
		return transcript.PolicyCumulative
	}
	return transcript.PolicyDelta
}

// Orchestrator runs one comparison session: it opens every provider
// stream, fans inbound audio frames out to all of them, and funnels
// their normalized transcript events into a single outbound channel.
//
// A slow provider never stalls the others: each provider has its own
// buffered frame queue and sender goroutine, and frames are dropped for
// that provider alone when its queue is full.
type Orchestrator struct {
	id        string
	adapters  []stt.Adapter
	publisher *events.Publisher
	metrics   *metrics.Metrics
	lifecycle *Lifecycle
	logger    zerolog.Logger

	startTime time.Time

	mu            sync.Mutex
	stopped       bool
	accumulators  map[string]*transcript.Accumulator
	queues        map[string]chan []byte
	firstReported map[string]bool
	senders       sync.WaitGroup

	eventsMu     sync.Mutex
	eventsCh     chan models.ServerMessage
	eventsClosed bool
}

// NewOrchestrator creates an orchestrator for one session over the given
// provider adapters.
func NewOrchestrator(id string, adapters []stt.Adapter, publisher *events.Publisher) *Orchestrator {
	return &Orchestrator{
		id:            id,
		adapters:      adapters,
		publisher:     publisher,
		metrics:       metrics.DefaultMetrics,
		lifecycle:     NewLifecycle(),
		logger:        logging.WithSession(id),
		accumulators:  make(map[string]*transcript.Accumulator),
		queues:        make(map[string]chan []byte),
		firstReported: make(map[string]bool),
		eventsCh:      make(chan models.ServerMessage, eventBufferSize),
	}
}

// ID returns the session ID.
func (o *Orchestrator) ID() string { return o.id }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.lifecycle.State() }

// Events returns the outbound message channel. It is closed when the
// session stops.
func (o *Orchestrator) Events() <-chan models.ServerMessage {
	return o.eventsCh
}

// Start opens all provider streams concurrently and returns as soon as
// the session is accepting audio. Connects settle in the background:
// each provider joins the fan-out the moment its stream is up and gets
// a <vendor>_status or <vendor>_error message; a provider that fails or
// is slow to connect never holds up the rest.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.lifecycle.Begin(); err != nil {
		return err
	}
	o.startTime = time.Now()
	o.metrics.RecordSessionStart()

	for _, adapter := range o.adapters {
		go o.startProvider(ctx, adapter)
	}

	if err := o.lifecycle.Ready(); err != nil {
		// Stop raced with Start; providers are torn down there.
		return err
	}

	o.logger.Info().
		Int("providers", len(o.adapters)).
		Msg("Session started")
	return nil
}

func (o *Orchestrator) startProvider(ctx context.Context, adapter stt.Adapter) {
	vendor := adapter.Vendor()
	logger := logging.WithProvider(o.id, vendor)

	cb := &providerCallback{orchestrator: o, vendor: vendor}
	if err := adapter.Start(ctx, cb); err != nil {
		logger.Error().Err(err).Msg("Provider connect failed")
		o.metrics.RecordProviderError(vendor, "connect")
		o.emit(models.ServerMessage{
			Type:  vendor + "_error",
			Error: err.Error(),
		})
		return
	}

	queue := make(chan []byte, frameQueueSize)

	o.mu.Lock()
	if o.stopped {
		// The session ended while this connect was in flight. Tear the
		// stream down instead of registering a queue nobody will close.
		o.mu.Unlock()
		if err := adapter.Close(); err != nil {
			logger.Warn().Err(err).Msg("Provider close failed")
		}
		logger.Info().Msg("Provider connected after session end, discarding")
		return
	}
	o.accumulators[vendor] = transcript.New(PolicyFor(vendor), o.startTime)
	o.queues[vendor] = queue
	o.senders.Add(1)
	// Emitted before the registration lock is released so the status
	// cannot be lost to a concurrent stop closing the event channel.
	o.emit(models.ServerMessage{
		Type:   vendor + "_status",
		Status: "connected",
	})
	o.mu.Unlock()

	go o.sendLoop(ctx, adapter, queue)

	logger.Info().Msg("Provider connected")
	o.metrics.RecordProviderConnect(vendor)
}

// sendLoop drains one provider's frame queue. Exits when the queue is
// closed on stop.
func (o *Orchestrator) sendLoop(ctx context.Context, adapter stt.Adapter, queue <-chan []byte) {
	defer o.senders.Done()
	vendor := adapter.Vendor()
	logger := logging.WithProvider(o.id, vendor)
	for frame := range queue {
		if err := adapter.SendAudio(ctx, frame); err != nil {
			logger.Warn().Err(err).Msg("Audio send failed")
			o.metrics.RecordProviderError(vendor, "send")
		}
	}
}

// SendAudio fans one PCM16 frame out to every connected provider.
// Non-blocking: a provider whose queue is full loses this frame.
func (o *Orchestrator) SendAudio(frame []byte) error {
	if err := o.lifecycle.AcceptAudio(); err != nil {
		return err
	}
	o.metrics.RecordAudioReceived(len(frame))

	o.mu.Lock()
	defer o.mu.Unlock()
	for vendor, queue := range o.queues {
		select {
		case queue <- frame:
		default:
			o.metrics.RecordFrameDropped(vendor)
		}
	}
	return nil
}

// Stop shuts the session down: provider streams are closed best-effort,
// pending interim transcripts are flushed, and the per-provider summary
// is returned. Safe to call more than once; later calls return nil.
func (o *Orchestrator) Stop(ctx context.Context) (map[string]models.ProviderMetrics, error) {
	if err := o.lifecycle.BeginStop(); err != nil {
		return nil, nil
	}

	o.mu.Lock()
	o.stopped = true
	queues := o.queues
	o.queues = make(map[string]chan []byte)
	o.mu.Unlock()

	for _, queue := range queues {
		close(queue)
	}
	o.senders.Wait()

	for _, adapter := range o.adapters {
		if err := adapter.Close(); err != nil {
			logger := logging.WithProvider(o.id, adapter.Vendor())
			logger.Warn().Err(err).Msg("Provider close failed")
		}
	}

	summary := o.collectSummary()

	duration := time.Since(o.startTime)
	o.metrics.RecordSessionEnd(duration.Seconds())
	o.logger.Info().
		Dur("duration", duration).
		Int("providers", len(summary)).
		Msg("Session stopped")

	o.lifecycle.Finish()
	o.closeEvents()
	return summary, nil
}

// collectSummary flushes every accumulator and builds the per-provider
// metrics payload.
func (o *Orchestrator) collectSummary() map[string]models.ProviderMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	summary := make(map[string]models.ProviderMetrics, len(o.accumulators))
	for vendor, acc := range o.accumulators {
		acc.Flush()

		firstMs := int64(-1)
		if latency, ok := acc.FirstResponse(); ok {
			firstMs = latency.Milliseconds()
		}
		summary[vendor] = models.ProviderMetrics{
			WordCount:       acc.Words(),
			FirstResponseMs: firstMs,
			Transcript:      acc.Transcript(),
		}
	}
	return summary
}

// emit delivers one message to the outbound channel without blocking.
func (o *Orchestrator) emit(msg models.ServerMessage) {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()
	if o.eventsClosed {
		return
	}
	select {
	case o.eventsCh <- msg:
	default:
		o.logger.Warn().Str("type", msg.Type).Msg("Event buffer full, dropping message")
	}
}

func (o *Orchestrator) closeEvents() {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()
	if !o.eventsClosed {
		o.eventsClosed = true
		close(o.eventsCh)
	}
}

// providerCallback receives one provider's normalized transcript events
// and routes them into the accumulator, Kafka and the client stream.
type providerCallback struct {
	orchestrator *Orchestrator
	vendor       string
}

func (c *providerCallback) OnTranscript(text string, isFinal bool, confidence float64) {
	o := c.orchestrator

	o.mu.Lock()
	acc := o.accumulators[c.vendor]
	o.mu.Unlock()
	if acc == nil {
		return
	}

	if isFinal {
		acc.OnFinal(text)
	} else {
		acc.OnInterim(text)
	}
	o.metrics.RecordTranscript(c.vendor, isFinal)
	c.reportFirstResponse(acc)
	c.publish(text, isFinal, confidence)

	o.emit(models.ServerMessage{
		Type: c.vendor + "_transcript",
		Data: models.TranscriptData{
			Text:       text,
			IsFinal:    isFinal,
			Confidence: confidence,
		},
	})
}

func (c *providerCallback) OnError(err error) {
	o := c.orchestrator
	logger := logging.WithProvider(o.id, c.vendor)
	logger.Error().Err(err).Msg("Provider stream error")
	o.metrics.RecordProviderError(c.vendor, "stream")
	o.emit(models.ServerMessage{
		Type:  c.vendor + "_error",
		Error: err.Error(),
	})
}

// reportFirstResponse observes first-response latency exactly once.
func (c *providerCallback) reportFirstResponse(acc *transcript.Accumulator) {
	o := c.orchestrator
	latency, seen := acc.FirstResponse()
	if !seen {
		return
	}
	o.mu.Lock()
	reported := o.firstReported[c.vendor]
	o.firstReported[c.vendor] = true
	o.mu.Unlock()
	if !reported {
		o.metrics.RecordFirstResponse(c.vendor, latency.Seconds())
	}
}

func (c *providerCallback) publish(text string, isFinal bool, confidence float64) {
	o := c.orchestrator
	if o.publisher == nil {
		return
	}
	ctx := context.Background()
	logger := logging.WithProvider(o.id, c.vendor)
	if isFinal {
		ev := models.TranscriptFinal{
			EventType:  "session.transcript.final",
			SessionID:  o.id,
			Vendor:     c.vendor,
			Text:       text,
			Confidence: confidence,
			Timestamp:  time.Now().UnixMilli(),
		}
		if err := o.publisher.PublishFinal(ctx, o.id, c.vendor, ev); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish final")
		}
		return
	}
	ev := models.TranscriptPartial{
		EventType: "session.transcript.partial",
		SessionID: o.id,
		Vendor:    c.vendor,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := o.publisher.PublishPartial(ctx, o.id, c.vendor, ev); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish partial")
	}
}
