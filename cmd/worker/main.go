package main

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"github.com/trnhan/paperscore/config"
	"github.com/trnhan/paperscore/internal/database"
	"github.com/trnhan/paperscore/internal/logger"
	"github.com/trnhan/paperscore/internal/nlp"
	"github.com/trnhan/paperscore/internal/ocr"
	"github.com/trnhan/paperscore/internal/repository"
	"github.com/trnhan/paperscore/internal/retry"
	"github.com/trnhan/paperscore/internal/service"
	"github.com/trnhan/paperscore/internal/storage"
	"github.com/trnhan/paperscore/internal/worker"
)

func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
		),

		fx.Provide(
			repository.NewSchemeRepository,
			repository.NewSheetRepository,
			repository.NewResultRepository,
		),

		fx.Provide(
			storage.NewObjectStore,
			service.NewGeminiClient,
			nlp.NewKeywordExtractor,
			ocr.NewPageRenderer,
		),

		fx.Provide(
			func(cfg *config.Config, client *genai.Client) ocr.VisionClient {
				return ocr.NewGeminiVision(client, cfg.Gemini.VisionModel)
			},
			func(cfg *config.Config, store storage.ObjectStore, renderer ocr.PageRenderer, vision ocr.VisionClient) ocr.TextExtractor {
				retryCfg := retry.Config{
					MaxAttempts: cfg.Pipeline.MaxCallRetries,
					BaseDelay:   cfg.Pipeline.BaseRetryDelay,
				}
				return ocr.NewTextExtractor(store, renderer, vision, retryCfg, cfg.Pipeline.RasterDPI)
			},
			func(cfg *config.Config, client *genai.Client) nlp.Embedder {
				return nlp.NewGeminiEmbedder(client, cfg.Gemini.EmbeddingModel)
			},
			func(cfg *config.Config, client *genai.Client) service.FeedbackGenerator {
				return service.NewGeminiFeedback(client, cfg.Gemini.TextModel)
			},
			func(cfg *config.Config, embedder nlp.Embedder, keywords nlp.KeywordExtractor, feedback service.FeedbackGenerator) service.ScoringService {
				return service.NewScoringService(embedder, keywords, feedback, cfg.Scoring)
			},
		),

		fx.Provide(
			func(
				cfg *config.Config,
				schemes repository.SchemeRepository,
				sheets repository.SheetRepository,
				results repository.ResultRepository,
				extractor ocr.TextExtractor,
				keywords nlp.KeywordExtractor,
				scorer service.ScoringService,
			) *worker.Processor {
				return worker.NewProcessor(schemes, sheets, results, extractor, keywords, scorer,
					cfg.Pipeline.BatchWindowSize, cfg.Pipeline.MaxJobRetries, cfg.Pipeline.BaseRetryDelay)
			},
			worker.NewServer,
			worker.NewMux,
		),

		fx.Invoke(RunWorker),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker")
	}

	<-app.Done()
	log.Info().Msg("Worker shutting down gracefully...")
}

// RunWorker starts the asynq server under the fx lifecycle.
func RunWorker(lc fx.Lifecycle, srv *asynq.Server, mux *asynq.ServeMux, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Int("concurrency", cfg.Pipeline.Concurrency).Msg("Evaluation worker starting")
			if err := srv.Start(mux); err != nil {
				return err
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Worker shutting down...")
			srv.Shutdown()
			return nil
		},
	})
}
