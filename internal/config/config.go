// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig
	Observability ObservabilityConfig
	STT           STTConfig
	Providers     ProvidersConfig
	Batch         BatchConfig
	Upload        UploadConfig
	Kafka         KafkaConfig
}

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	MetricsPort string
	PublicDir   string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// STTConfig holds the audio format shared by all streaming providers.
type STTConfig struct {
	LanguageCode   string
	SampleRateHz   int
	Channels       int
	InterimResults bool
}

// ProvidersConfig holds per-vendor credentials. A provider participates
// in sessions only when its credentials are set.
type ProvidersConfig struct {
	DeepgramAPIKey     string
	AssemblyAIAPIKey   string
	CartesiaAPIKey     string
	SpeechmaticsAPIKey string
	OpenAIAPIKey       string

	GoogleEnabled bool // relies on GOOGLE_APPLICATION_CREDENTIALS

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSRegion          string

	UseMock bool
}

// BatchConfig holds batch transcription settings.
type BatchConfig struct {
	PollInterval    time.Duration
	MaxPollAttempts int
}

// UploadConfig holds file upload limits.
type UploadConfig struct {
	Dir          string
	MaxFiles     int
	MaxFileBytes int64
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-stt-comparison")

	cfg := &Config{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
			PublicDir:   envOrDefault("PUBLIC_DIR", "public"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
		STT: STTConfig{
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			Channels:       envOrDefaultInt("STT_CHANNELS", 1),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
		},
		Providers: ProvidersConfig{
			DeepgramAPIKey:     os.Getenv("DEEPGRAM_API_KEY"),
			AssemblyAIAPIKey:   os.Getenv("ASSEMBLYAI_API_KEY"),
			CartesiaAPIKey:     os.Getenv("CARTESIA_API_KEY"),
			SpeechmaticsAPIKey: os.Getenv("SPEECHMATICS_API_KEY"),
			OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
			GoogleEnabled:      envOrDefaultBool("GOOGLE_STT_ENABLED", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""),
			AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			AWSSessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			AWSRegion:          envOrDefault("AWS_REGION", "us-east-1"),
			UseMock:            envOrDefaultBool("STT_USE_MOCK", false),
		},
		Batch: BatchConfig{
			PollInterval:    envOrDefaultDuration("BATCH_POLL_INTERVAL", 5*time.Second),
			MaxPollAttempts: envOrDefaultInt("BATCH_MAX_POLL_ATTEMPTS", 60),
		},
		Upload: UploadConfig{
			Dir:          envOrDefault("UPLOAD_DIR", "uploads"),
			MaxFiles:     envOrDefaultInt("UPLOAD_MAX_FILES", 10),
			MaxFileBytes: envOrDefaultInt64("UPLOAD_MAX_FILE_BYTES", 50*1024*1024),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envList("KAFKA_BROKERS"),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "stt.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "stt.transcript.final"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
