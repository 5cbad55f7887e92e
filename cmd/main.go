package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"stt-comparison-service/internal/api/httpapi"
	"stt-comparison-service/internal/api/ws"
	"stt-comparison-service/internal/config"
	"stt-comparison-service/internal/events"
	"stt-comparison-service/internal/observability"
	"stt-comparison-service/internal/observability/logging"
	"stt-comparison-service/internal/service/batch"
	"stt-comparison-service/internal/service/session"
	"stt-comparison-service/internal/service/stt/assemblyai"
	"stt-comparison-service/internal/service/stt/deepgram"
	"stt-comparison-service/internal/upload"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	// Kafka publisher with separate topics for partial and final transcripts
	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	store, err := upload.NewStore(cfg.Upload.Dir, cfg.Upload.MaxFileBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init upload store")
	}

	// Batch providers and the browser key minter share the reference
	// provider's credentials.
	scorer := batch.NewScorer()
	var keys httpapi.KeyMinter
	if cfg.Providers.DeepgramAPIKey != "" {
		dg := deepgram.NewBatchClient(cfg.Providers.DeepgramAPIKey, nil)
		scorer.Register("deepgram", dg)
		keys = dg
	}
	if cfg.Providers.AssemblyAIAPIKey != "" {
		scorer.Register("assembly", assemblyai.NewBatchClient(
			cfg.Providers.AssemblyAIAPIKey, nil,
			cfg.Batch.PollInterval, cfg.Batch.MaxPollAttempts))
	}

	factory := session.NewFactory(cfg)
	wsHandler := ws.NewHandler(factory, publisher)
	api := httpapi.NewAPI(store, scorer, keys, cfg.Upload.MaxFiles)

	router := httpapi.NewRouter(httpapi.Deps{
		API:       api,
		WebSocket: wsHandler,
		PublicDir: cfg.Service.PublicDir,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      router,
		ReadTimeout:  0, // WebSocket sessions are long-lived
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	metricsServer := observability.NewServer(":"+cfg.Service.MetricsPort,
		observability.ReadyCheck{Name: "upload-dir", Check: func() error {
			_, err := os.Stat(cfg.Upload.Dir)
			return err
		}},
	)
	metricsServer.Start()

	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("STT comparison service started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Metrics shutdown error")
	}
}
