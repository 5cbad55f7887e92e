package session

import (
	"context"

	"stt-comparison-service/internal/config"
	"stt-comparison-service/internal/observability/logging"
	"stt-comparison-service/internal/service/stt"
	"stt-comparison-service/internal/service/stt/assemblyai"
	"stt-comparison-service/internal/service/stt/awstranscribe"
	"stt-comparison-service/internal/service/stt/cartesia"
	"stt-comparison-service/internal/service/stt/deepgram"
	"stt-comparison-service/internal/service/stt/google"
	"stt-comparison-service/internal/service/stt/mock"
	"stt-comparison-service/internal/service/stt/openai"
	"stt-comparison-service/internal/service/stt/speechmatics"
)

// Factory builds the set of provider adapters for a new session.
// A provider participates only when its credentials are configured.
type Factory struct {
	cfg *config.Config
}

// NewFactory creates an adapter factory from service configuration.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// AudioConfig returns the audio format shared by all providers.
func (f *Factory) AudioConfig() stt.AudioConfig {
	return stt.AudioConfig{
		SampleRateHz:   f.cfg.STT.SampleRateHz,
		Channels:       f.cfg.STT.Channels,
		LanguageCode:   f.cfg.STT.LanguageCode,
		InterimResults: f.cfg.STT.InterimResults,
	}
}

// Build returns fresh adapters for one session. Adapters hold per-stream
// state, so each session gets its own set.
func (f *Factory) Build(ctx context.Context) []stt.Adapter {
	providers := f.cfg.Providers
	audioCfg := f.AudioConfig()
	logger := logging.WithComponent("session-factory")

	if providers.UseMock {
		return []stt.Adapter{
			mock.New("deepgram"),
			mock.New("assembly"),
			mock.New("google"),
		}
	}

	var adapters []stt.Adapter

	if providers.DeepgramAPIKey != "" {
		adapters = append(adapters, deepgram.New(providers.DeepgramAPIKey, audioCfg))
	}
	if providers.AssemblyAIAPIKey != "" {
		adapters = append(adapters, assemblyai.New(providers.AssemblyAIAPIKey, audioCfg))
	}
	if providers.CartesiaAPIKey != "" {
		adapters = append(adapters, cartesia.New(providers.CartesiaAPIKey, audioCfg))
	}
	if providers.SpeechmaticsAPIKey != "" {
		adapters = append(adapters, speechmatics.New(providers.SpeechmaticsAPIKey, audioCfg))
	}
	if providers.OpenAIAPIKey != "" {
		adapters = append(adapters, openai.New(providers.OpenAIAPIKey, audioCfg))
	}
	if providers.GoogleEnabled {
		adapter, err := google.New(ctx, audioCfg)
		if err != nil {
			logger.Error().Err(err).Msg("Google STT client init failed, provider disabled")
		} else {
			adapters = append(adapters, adapter)
		}
	}
	if providers.AWSAccessKeyID != "" && providers.AWSSecretAccessKey != "" {
		adapters = append(adapters, awstranscribe.New(awstranscribe.Credentials{
			AccessKeyID:     providers.AWSAccessKeyID,
			SecretAccessKey: providers.AWSSecretAccessKey,
			SessionToken:    providers.AWSSessionToken,
			Region:          providers.AWSRegion,
		}, audioCfg))
	}

	if len(adapters) == 0 {
		logger.Warn().Msg("No provider credentials configured, falling back to mock")
		adapters = append(adapters, mock.New("mock"))
	}

	return adapters
}
