package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/infra"
	"server/internal/providers/tts"
	"server/internal/storage"
	"server/internal/synthworker"
)

// synthd is the speech-synthesis sidecar. It exposes a health probe, accepts
// one synthesis task per submission and reports task status for polling
// workers. Audio is written to the shared blob store so the worker only
// receives a storage key.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	blobs, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("synthd: failed to configure storage")
	}

	speech, err := tts.NewClient(tts.Options{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		VoiceID: cfg.ElevenLabsVoiceID,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("synthd: failed to configure tts client")
	}

	srv := synthworker.NewServer(speech, blobs, logger)
	server := infra.NewHTTPServer(cfg, srv.Handler())

	go func() {
		logger.Info().Msgf("synthd listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("synthd: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("synthd: failed to shutdown server")
	}
	logger.Info().Msg("synthd: server stopped")
}
