package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/HarshPratapSingh1/ChatVerse/internal/server"
	"github.com/HarshPratapSingh1/ChatVerse/internal/stager"
	"github.com/HarshPratapSingh1/ChatVerse/internal/store"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/config"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	dataStore, err := store.NewBadgerStore(cfg.Storage.Dir, cfg.Storage.InMemory, logger)
	if err != nil {
		logger.Error("Failed to open record store", slog.Any("error", err))
		os.Exit(1)
	}
	defer dataStore.Close()

	attachmentStager, err := stager.New(cfg.Uploads.Dir, logger)
	if err != nil {
		logger.Error("Failed to prepare upload directory", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := server.NewApp(logger, ctx, cfg, dataStore, attachmentStager)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
