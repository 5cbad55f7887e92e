// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stt_comparison"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Provider metrics
	ProviderConnects      *prometheus.CounterVec
	ProviderErrors        *prometheus.CounterVec
	ProviderFramesDropped *prometheus.CounterVec

	// Transcript metrics
	TranscriptsPartial *prometheus.CounterVec
	TranscriptsFinal   *prometheus.CounterVec
	FirstResponse      *prometheus.HistogramVec

	// Audio fan-out metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Batch scoring metrics
	BatchRequests *prometheus.CounterVec
	BatchErrors   *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of comparison sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active comparison sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of comparison sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Provider metrics
		ProviderConnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_connects_total",
			Help:      "Total number of provider stream connections opened",
		}, []string{"provider"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total number of provider errors",
		}, []string{"provider", "stage"}),
		ProviderFramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_frames_dropped_total",
			Help:      "Total audio frames dropped because a provider queue was full",
		}, []string{"provider"}),

		// Transcript metrics
		TranscriptsPartial: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of interim transcripts received",
		}, []string{"provider"}),
		TranscriptsFinal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts received",
		}, []string{"provider"}),
		FirstResponse: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_response_seconds",
			Help:      "Time from session start to first non-empty transcript",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),

		// Audio fan-out metrics
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received from clients",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received from clients",
		}),

		// Batch scoring metrics
		BatchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_requests_total",
			Help:      "Total number of batch transcription requests",
		}, []string{"provider"}),
		BatchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_errors_total",
			Help:      "Total number of batch transcription failures",
		}, []string{"provider", "error_type"}),
		BatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "End-to-end batch transcription duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"provider"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordProviderConnect records a provider stream being opened.
func (m *Metrics) RecordProviderConnect(provider string) {
	m.ProviderConnects.WithLabelValues(provider).Inc()
}

// RecordProviderError records a provider error at a given stage
// (connect, stream, send).
func (m *Metrics) RecordProviderError(provider, stage string) {
	m.ProviderErrors.WithLabelValues(provider, stage).Inc()
}

// RecordFrameDropped records a frame dropped for a slow provider.
func (m *Metrics) RecordFrameDropped(provider string) {
	m.ProviderFramesDropped.WithLabelValues(provider).Inc()
}

// RecordTranscript records a transcript event from a provider.
func (m *Metrics) RecordTranscript(provider string, isFinal bool) {
	if isFinal {
		m.TranscriptsFinal.WithLabelValues(provider).Inc()
	} else {
		m.TranscriptsPartial.WithLabelValues(provider).Inc()
	}
}

// RecordFirstResponse records a provider's first-response latency.
func (m *Metrics) RecordFirstResponse(provider string, seconds float64) {
	m.FirstResponse.WithLabelValues(provider).Observe(seconds)
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordBatchRequest records a batch transcription attempt.
func (m *Metrics) RecordBatchRequest(provider string, err error, errorType string, durationSeconds float64) {
	m.BatchRequests.WithLabelValues(provider).Inc()
	m.BatchDuration.WithLabelValues(provider).Observe(durationSeconds)
	if err != nil {
		m.BatchErrors.WithLabelValues(provider, errorType).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
