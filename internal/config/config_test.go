package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear relevant env vars
	envVars := []string{
		"SERVICE_PRINCIPAL", "HTTP_PORT", "METRICS_PORT", "LOG_LEVEL",
		"STT_LANGUAGE_CODE", "STT_SAMPLE_RATE_HZ", "STT_CHANNELS",
		"STT_INTERIM_RESULTS", "STT_USE_MOCK",
		"BATCH_POLL_INTERVAL", "BATCH_MAX_POLL_ATTEMPTS",
		"UPLOAD_DIR", "UPLOAD_MAX_FILES", "UPLOAD_MAX_FILE_BYTES",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-stt-comparison" {
		t.Errorf("expected default principal 'svc-stt-comparison', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default HTTP port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.MetricsPort != "9090" {
		t.Errorf("expected default metrics port '9090', got %s", cfg.Service.MetricsPort)
	}

	// STT defaults
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.Channels != 1 {
		t.Errorf("expected default channels 1, got %d", cfg.STT.Channels)
	}
	if cfg.STT.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.STT.InterimResults)
	}

	// Batch defaults
	if cfg.Batch.PollInterval != 5*time.Second {
		t.Errorf("expected default poll interval 5s, got %v", cfg.Batch.PollInterval)
	}
	if cfg.Batch.MaxPollAttempts != 60 {
		t.Errorf("expected default max poll attempts 60, got %d", cfg.Batch.MaxPollAttempts)
	}

	// Upload defaults
	if cfg.Upload.MaxFiles != 10 {
		t.Errorf("expected default max files 10, got %d", cfg.Upload.MaxFiles)
	}
	if cfg.Upload.MaxFileBytes != 50*1024*1024 {
		t.Errorf("expected default max file size 50MB, got %d", cfg.Upload.MaxFileBytes)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("STT_LANGUAGE_CODE", "es-ES")
	os.Setenv("STT_SAMPLE_RATE_HZ", "8000")
	os.Setenv("STT_INTERIM_RESULTS", "false")
	os.Setenv("BATCH_POLL_INTERVAL", "10s")
	os.Setenv("BATCH_MAX_POLL_ATTEMPTS", "30")
	os.Setenv("UPLOAD_MAX_FILES", "5")
	os.Setenv("UPLOAD_MAX_FILE_BYTES", "10485760")
	os.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")

	defer func() {
		os.Unsetenv("SERVICE_PRINCIPAL")
		os.Unsetenv("HTTP_PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("STT_LANGUAGE_CODE")
		os.Unsetenv("STT_SAMPLE_RATE_HZ")
		os.Unsetenv("STT_INTERIM_RESULTS")
		os.Unsetenv("BATCH_POLL_INTERVAL")
		os.Unsetenv("BATCH_MAX_POLL_ATTEMPTS")
		os.Unsetenv("UPLOAD_MAX_FILES")
		os.Unsetenv("UPLOAD_MAX_FILE_BYTES")
		os.Unsetenv("KAFKA_BROKERS")
	}()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.HTTPPort)
	}
	if cfg.STT.LanguageCode != "es-ES" {
		t.Errorf("expected language 'es-ES', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults != false {
		t.Errorf("expected interim results false, got %v", cfg.STT.InterimResults)
	}
	if cfg.Batch.PollInterval != 10*time.Second {
		t.Errorf("expected poll interval 10s, got %v", cfg.Batch.PollInterval)
	}
	if cfg.Batch.MaxPollAttempts != 30 {
		t.Errorf("expected max poll attempts 30, got %d", cfg.Batch.MaxPollAttempts)
	}
	if cfg.Upload.MaxFiles != 5 {
		t.Errorf("expected max files 5, got %d", cfg.Upload.MaxFiles)
	}
	if cfg.Upload.MaxFileBytes != 10485760 {
		t.Errorf("expected max file size 10485760, got %d", cfg.Upload.MaxFileBytes)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
	want := []string{"broker1:9092", "broker2:9092"}
	if len(cfg.Kafka.Brokers) != len(want) {
		t.Fatalf("expected %d brokers, got %d", len(want), len(cfg.Kafka.Brokers))
	}
	for i, b := range want {
		if cfg.Kafka.Brokers[i] != b {
			t.Errorf("broker %d: expected %s, got %s", i, b, cfg.Kafka.Brokers[i])
		}
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	os.Setenv("STT_SAMPLE_RATE_HZ", "not-a-number")
	os.Setenv("STT_INTERIM_RESULTS", "invalid")
	os.Setenv("BATCH_POLL_INTERVAL", "invalid")
	os.Setenv("UPLOAD_MAX_FILE_BYTES", "invalid")

	defer func() {
		os.Unsetenv("STT_SAMPLE_RATE_HZ")
		os.Unsetenv("STT_INTERIM_RESULTS")
		os.Unsetenv("BATCH_POLL_INTERVAL")
		os.Unsetenv("UPLOAD_MAX_FILE_BYTES")
	}()

	cfg := Load()

	if cfg.STT.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate on invalid input, got %d", cfg.STT.SampleRateHz)
	}
	if cfg.STT.InterimResults != true {
		t.Errorf("expected default interim results on invalid input, got %v", cfg.STT.InterimResults)
	}
	if cfg.Batch.PollInterval != 5*time.Second {
		t.Errorf("expected default poll interval on invalid input, got %v", cfg.Batch.PollInterval)
	}
	if cfg.Upload.MaxFileBytes != 50*1024*1024 {
		t.Errorf("expected default max file size on invalid input, got %d", cfg.Upload.MaxFileBytes)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	os.Unsetenv("KAFKA_PRINCIPAL")

	defer os.Unsetenv("SERVICE_PRINCIPAL")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
