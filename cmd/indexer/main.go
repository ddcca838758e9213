// Command indexer embeds the contract templates and writes the vector index
// loaded by the server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"contract-assistant/internal/config"
	"contract-assistant/internal/retrieval"
	"contract-assistant/internal/templates"
	"contract-assistant/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	var (
		configPath string
		outPath    string
		timeout    time.Duration
	)
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "config file path")
	flag.StringVar(&outPath, "out", "", "index output path (default templates.index_path)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "embedding timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	if outPath == "" {
		outPath = cfg.Templates.IndexPath
	}

	store, err := templates.Load(cfg.Templates.Path)
	if err != nil {
		logger.Fatalf("Failed to load templates: %v", err)
	}

	embedder, err := retrieval.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		logger.Fatalf("Failed to create embedder: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Infof("Embedding %d templates with %s", store.Len(), embedder.Model())
	index, err := retrieval.BuildIndex(ctx, embedder, embedder.Model(), store.All())
	if err != nil {
		logger.Fatalf("Failed to build index: %v", err)
	}

	if err := index.Save(outPath); err != nil {
		logger.Fatalf("Failed to save index: %v", err)
	}
	logger.Infof("Index with %d entries (dimension %d) written to %s", len(index.Entries), index.Dimension, outPath)
}
