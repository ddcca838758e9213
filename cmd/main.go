package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contract-assistant/internal/config"
	"contract-assistant/internal/draft"
	"contract-assistant/internal/export"
	"contract-assistant/internal/handler"
	"contract-assistant/internal/model"
	"contract-assistant/internal/retrieval"
	"contract-assistant/internal/service"
	"contract-assistant/internal/storage"
	"contract-assistant/internal/templates"
	"contract-assistant/internal/tools"
	"contract-assistant/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "config file path")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := logger.InitWithFile(cfg.Log.Level, cfg.Log.Format, logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx := context.Background()

	store, err := templates.Load(cfg.Templates.Path)
	if err != nil {
		logger.Fatalf("Failed to load templates: %v", err)
	}
	logger.Infof("Loaded %d contract templates from %s", store.Len(), cfg.Templates.Path)

	index, err := retrieval.LoadIndex(cfg.Templates.IndexPath)
	if err != nil {
		logger.Fatalf("Failed to load vector index (run cmd/indexer first): %v", err)
	}
	if err := index.Validate(store); err != nil {
		logger.Fatalf("Vector index does not match templates: %v", err)
	}
	if index.Model != cfg.Embedding.Model {
		logger.Warnf("Index built with %s but queries use %s", index.Model, cfg.Embedding.Model)
	}

	embedder, err := retrieval.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		logger.Fatalf("Failed to create embedder: %v", err)
	}
	matcher := retrieval.NewMatcher(retrieval.NewIndexRetriever(index, embedder, store), store)

	chatModel, err := model.NewChatModel(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create chat model: %v", err)
	}
	generator, err := draft.NewGenerator(ctx, chatModel, cfg.Draft.SystemPrompt, cfg.Draft.Timeout)
	if err != nil {
		logger.Fatalf("Failed to create draft generator: %v", err)
	}

	writer := export.NewWriter(cfg.Export.Dir, cfg.Export.FileName, cfg.Export.DownloadName)

	sessions := storage.NewMemoryStorage(cfg.Session.TTL, cfg.Session.CleanupInterval)
	if err := sessions.Init(); err != nil {
		logger.Fatalf("Failed to init session storage: %v", err)
	}
	defer sessions.Close()

	contractService := service.NewContractService(sessions, matcher, generator, writer, store, cfg.UI)
	contractHandler := handler.NewContractHandler(contractService)

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpHandler = tools.NewHTTPHandler(tools.NewMCPServer(matcher, version))
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(cfg, contractHandler, mcpHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
