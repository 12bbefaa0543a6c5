// Package main is the entry point for uploadd, the upload service that
// stores cropped images and hands back their descriptors.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/crop-uploader/internal/config"
	"github.com/fleveque/crop-uploader/internal/server"
	"github.com/fleveque/crop-uploader/internal/upload"
)

func main() {
	// We call run() separately so deferred cleanup functions execute properly
	// (deferred functions don't run when os.Exit is called directly).
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CROP_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// zap outputs JSON in production and human-readable format in development.
	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; the error is not actionable.
	defer func() { _ = logger.Sync() }()

	// uploadd always serves from the local store, whatever upload.backend
	// says; that setting is for clients.
	files, db, err := upload.OpenLocal(cfg.Storage, logger.Named("store"))
	if err != nil {
		return err
	}
	defer db.Close()

	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("no API keys configured; every /api/v1 request will be rejected")
	}

	srv := server.New(cfg, server.Deps{DB: db, Files: files}, logger)

	// Graceful shutdown: listen for SIGINT (Ctrl+C) or SIGTERM (docker stop).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Block until we receive a signal or the server errors out.
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Give in-flight uploads 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}
