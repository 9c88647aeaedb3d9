package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sproutling/internal/http/handlers"
	"sproutling/internal/http/httpapi"
	"sproutling/internal/infra"
	"sproutling/internal/providers/genai"
	"sproutling/internal/providers/seed"
	"sproutling/internal/stage"
	"sproutling/internal/storage"
	"sproutling/internal/store"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Background stages outlive requests; this context is only cancelled once
	// the HTTP server has stopped accepting work.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if pool == nil {
		logger.Warn().Msg("DATABASE_URL not set, running with persistence degraded to no-op")
	} else {
		defer pool.Close()
	}
	jobs := store.NewJobs(store.NewPG(pool, logger), logger)

	assets, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare asset storage")
	}

	client := genai.NewClient(genai.Options{
		APIKey:      cfg.GeminiAPIKey,
		BaseURL:     cfg.GeminiBaseURL,
		TextModel:   cfg.GeminiModel,
		ImageModel:  cfg.GeminiImageModel,
		Logger:      logger,
		MaxAttempts: cfg.ProviderMaxAttempts,
		BaseDelay:   cfg.ProviderBaseDelay,
	})
	analyzer := seed.NewAnalyzer(client)

	dispatcher := stage.NewDispatcher(ctx, jobs, logger)
	research := stage.NewResearchProcessor(jobs, analyzer, seed.NewResearcher(client, cfg.GeminiDeepModel), logger)
	guide := stage.NewGuideProcessor(jobs, analyzer, seed.NewGuidePlanner(client), assets, logger)
	guide.StepCount = cfg.GuideStepCount
	guide.ImageConcurrency = cfg.GuideImageConcurrency
	character := stage.NewCharacterProcessor(jobs, analyzer, seed.NewCharacterGenerator(client), assets, logger)
	orchestrator := stage.NewOrchestrator(jobs, dispatcher, research, guide, character, logger)

	app := handlers.NewApp(orchestrator, jobs, assets, logger)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Let in-flight stages reach a terminal state before the process exits.
	logger.Info().Msg("waiting for background stages")
	dispatcher.Wait()
	logger.Info().Msg("server stopped")
}
