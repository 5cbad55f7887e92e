// Package events publishes normalized transcript events to Kafka.
//
// One live session produces interleaved streams from several providers
// at once. Events are keyed by session ID so a consumer sees a whole
// comparison run in order on one partition, and each message carries
// the vendor in its headers so per-provider consumers can filter
// without decoding payloads.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"stt-comparison-service/internal/observability/metrics"
)

// Publisher writes interim and finalized transcript events to separate
// topics. Interims are high-volume and disposable; finals are the
// record of the session.
type Publisher struct {
	writerPartial *kafka.Writer
	writerFinal   *kafka.Writer
	principal     string
	topicPartial  string
	topicFinal    string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
	Enabled      bool
}

// New creates the publisher. With Kafka disabled or no brokers
// configured it runs in log-only mode: every publish is logged and
// counted but nothing leaves the process.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicPartial: cfg.TopicPartial,
			topicFinal:   cfg.TopicFinal,
			enabled:      false,
			metrics:      m,
		}
	}

	// Longer dial timeout than the client default; broker DNS in
	// Kubernetes can be slow on cold start.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		// Interims arrive from every provider at the audio frame rate.
		// They are batched aggressively and acked by nobody: a lost
		// interim is superseded milliseconds later anyway.
		writerPartial: newWriter(cfg.Brokers, cfg.TopicPartial, transport, &writerProfile{
			batchSize:    64,
			batchTimeout: 25 * time.Millisecond,
			requiredAcks: kafka.RequireNone,
		}),
		// Finals are the durable result and are flushed promptly with
		// leader acknowledgement.
		writerFinal: newWriter(cfg.Brokers, cfg.TopicFinal, transport, &writerProfile{
			batchSize:    16,
			batchTimeout: 10 * time.Millisecond,
			requiredAcks: kafka.RequireOne,
		}),
		principal:    cfg.Principal,
		topicPartial: cfg.TopicPartial,
		topicFinal:   cfg.TopicFinal,
		enabled:      true,
		metrics:      m,
	}
}

// writerProfile separates the delivery tuning of the two topics.
type writerProfile struct {
	batchSize    int
	batchTimeout time.Duration
	requiredAcks kafka.RequiredAcks
}

func newWriter(brokers []string, topic string, transport *kafka.Transport, profile *writerProfile) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    profile.batchSize,
		BatchTimeout: profile.batchTimeout,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: profile.requiredAcks,
		Transport:    transport,
	}
}

// PublishPartial publishes an interim transcript event for one provider.
func (p *Publisher) PublishPartial(ctx context.Context, sessionID, vendor string, event any) error {
	return p.publish(ctx, p.writerPartial, p.topicPartial, "partial", sessionID, vendor, event)
}

// PublishFinal publishes a finalized transcript event for one provider.
func (p *Publisher) PublishFinal(ctx context.Context, sessionID, vendor string, event any) error {
	return p.publish(ctx, p.writerFinal, p.topicFinal, "final", sessionID, vendor, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, sessionID, vendor string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Str("vendor", vendor).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("sessionId", sessionID).
		Str("vendor", vendor).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	// Keyed by session, not session+vendor: all providers of one
	// comparison run stay ordered relative to each other.
	msg := kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "sessionId", Value: []byte(sessionID)},
			{Key: "vendor", Value: []byte(vendor)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("sessionId", sessionID).
			Str("vendor", vendor).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerPartial != nil {
		if e := p.writerPartial.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing partial writer")
			err = e
		}
	}
	if p.writerFinal != nil {
		if e := p.writerFinal.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing final writer")
			err = e
		}
	}
	return err
}
