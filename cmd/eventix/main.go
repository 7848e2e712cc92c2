package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/eventix/eventix/docs"
	"github.com/eventix/eventix/internal/app"
	"github.com/eventix/eventix/internal/config"
)

// @title Eventix API
// @version 1.0
// @description Event ticketing service: browse events, book seats, receive live seat-count updates.
// @host localhost:5000
// @BasePath /
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
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
