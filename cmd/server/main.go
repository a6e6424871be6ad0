package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arturoeanton/godsplan/internal/app"
	"github.com/arturoeanton/godsplan/internal/logger"
	"github.com/arturoeanton/godsplan/pkg/config"

	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lggr, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: !cfg.IsProduction()})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = lggr.Sync() }()

	lggr.Infow("starting", "app", cfg.AppName, "storage", cfg.StorageBackend, "content", cfg.ContentBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	site, err := app.New(cfg, lggr)
	if err != nil {
		lggr.Errorw("failed to initialize", "err", err)
		os.Exit(1)
	}

	if err := site.Run(ctx, shutdownTimeout); err != nil {
		lggr.Errorw("server stopped with error", "err", err)
		os.Exit(1)
	}
	lggr.Info("stopped cleanly")
}
