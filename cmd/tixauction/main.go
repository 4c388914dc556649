package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/tix-auction/docs"
	"github.com/kirinyoku/tix-auction/internal/app"
	"github.com/kirinyoku/tix-auction/internal/config"
)

// @title Tix Auction API
// @version 1.0
// @description Real-time ticket auctions: bidding, live countdown and settlement.
// @host localhost:8080
// @BasePath /
func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("unknown log level, using info", "level", cfg.LogLevel)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
