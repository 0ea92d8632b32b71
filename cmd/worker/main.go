package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/db"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/genai"
	"server/internal/providers/tts"
	"server/internal/storage"
	"server/internal/synthworker"
	"server/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to ensure schema")
	}

	blobs, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		TTSModel:   cfg.GeminiTTSModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}

	synthesizer, err := buildSynthesizer(cfg, geminiClient, blobs, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure synthesizer")
	}

	submissions := repo.NewSubmissionRepository(pool)
	orchestrator, err := workflow.NewOrchestrator(workflow.OrchestratorOptions{
		Submissions: submissions,
		Feed:        repo.NewFeedRepository(pool),
		Blobs:       blobs,
		Checkpoints: repo.NewCheckpointRepository(pool),
		Summarizer:  workflow.NewGeminiSummarizer(geminiClient),
		Synthesizer: synthesizer,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure orchestrator")
	}

	w := &claimWorker{
		submissions:  submissions,
		orchestrator: orchestrator,
		idleDelay:    cfg.WorkerIdleDelay,
		logger:       logger,
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func buildSynthesizer(cfg *infra.Config, gemini *genai.Client, blobs domain.BlobStore, logger infra.Logger) (workflow.Synthesizer, error) {
	switch cfg.Synthesizer {
	case "gemini":
		return workflow.NewGeminiSynthesizer(gemini, blobs, cfg.GeminiVoice), nil
	case "elevenlabs":
		client, err := tts.NewClient(tts.Options{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			VoiceID: cfg.ElevenLabsVoiceID,
		})
		if err != nil {
			return nil, err
		}
		return workflow.NewElevenLabsSynthesizer(client, blobs), nil
	case "delegated":
		client, err := synthworker.NewClient(cfg.SynthdURL, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			return nil, err
		}
		poller := workflow.NewPoller(client, workflow.PollerConfig{}, logger)
		return workflow.NewDelegatedSynthesizer(poller), nil
	default:
		return nil, fmt.Errorf("unsupported synthesizer %q", cfg.Synthesizer)
	}
}

type claimWorker struct {
	submissions  domain.SubmissionRepository
	orchestrator *workflow.Orchestrator
	idleDelay    time.Duration
	logger       infra.Logger
}

func (w *claimWorker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sub, err := w.submissions.ClaimPending(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				w.sleep(ctx)
				continue
			}
			w.logger.Error().Err(err).Msg("worker: failed to claim submission")
			w.sleep(ctx)
			continue
		}

		w.logger.Info().Str("submission_id", sub.ID).Msg("worker: picked submission")
		if err := w.orchestrator.Run(ctx, sub.ID); err != nil {
			w.logger.Error().Err(err).Str("submission_id", sub.ID).Msg("worker: run failed")
		}
	}
}

func (w *claimWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.idleDelay):
	}
}
