package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lottohub-kr/lottosync/internal/app"
	"github.com/lottohub-kr/lottosync/internal/config"
	"github.com/lottohub-kr/lottosync/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "syncd start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("syncd starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := app.NewService(ctx, cfg, logger.Default())
	if err != nil {
		logger.ErrorObj("failed to initialize service", "error", err)
		return err
	}

	if err := service.Run(ctx); err != nil {
		return fmt.Errorf("service run: %w", err)
	}

	return nil
}
