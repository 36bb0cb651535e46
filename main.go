package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"floatchat/agent"
	"floatchat/config"
	"floatchat/database"
	"floatchat/llmclient"
	"floatchat/vectorindex"
	"floatchat/web"
	"floatchat/web/services"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info", "")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load config (which includes log level setting)
	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	store, err := database.NewPostgresStore(cfg.DatabaseURL, cfg.DataTable, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer store.Close()
	if err := store.SetReaderRole(cfg.DataReader); err != nil {
		logger.Fatal("Invalid DATA_READER_ROLE", zap.Error(err))
	}

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	llm := llmclient.New(cfg, logger)

	index, err := vectorindex.New(cfg, store.DB, llm, logger)
	if err != nil {
		logger.Fatal("Failed to initialize similarity index", zap.Error(err))
	}
	if err := index.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure similarity index schema", zap.Error(err))
	}
	if cfg.FloatSummariesPath != "" {
		if err := index.LoadSummaries(ctx, cfg.FloatSummariesPath); err != nil {
			logger.Warn("Failed to load float summaries", zap.String("path", cfg.FloatSummariesPath), zap.Error(err))
		}
	}

	conversations := agent.NewConversationStore(cfg.SessionIdleTimeout, cfg.SessionSweepInterval, cfg.HistoryMaxTurns, store, logger)
	floatAgent := agent.NewAgent(cfg, llm, llm, index, store, conversations, agent.SystemClock{}, logger)

	artifacts, err := services.NewArtifactService(cfg.ArtifactDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize artifact storage", zap.Error(err))
	}

	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.CleanupEnabled {
		cleanupService := web.NewCleanupService(artifacts, store, logger)
		go cleanupService.Start(ctx, cfg.CleanupInterval, cfg.ArtifactRetentionAge)
	}

	webServer := web.NewServer(web.Dependencies{
		Agent:     floatAgent,
		Sessions:  conversations,
		Artifacts: artifacts,
		Health:    store,
	}, logger, cfg)

	port := fmt.Sprintf(":%d", cfg.WebPort)
	logger.Info("Starting FloatChat web server", zap.String("port", port))
	if err := webServer.Start(ctx, port); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}
