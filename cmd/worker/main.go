package main

import (
	"context"
	"log"
	"os"

	"github.com/MelodyDuplaix/Projet-OCR/internal/bootstrap"
	"github.com/MelodyDuplaix/Projet-OCR/internal/delivery/worker"
	"github.com/MelodyDuplaix/Projet-OCR/internal/infrastructure/queue"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/config"
	"github.com/MelodyDuplaix/Projet-OCR/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	appLogger := logger.Initialize(cfg.Environment, cfg.LogLevel)
	cfg.LogConfig()

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, appLogger, bootstrap.Options{})
	if err != nil {
		appLogger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	app.PurgeUploads(ctx)

	srv, err := queue.NewAsynqServer(cfg.Queue(), logger.NewServiceLogger("worker"))
	if err != nil {
		appLogger.Error("failed to create queue server", "error", err)
		os.Exit(1)
	}
	worker.NewHandler(app.Service, app.Source, appLogger).Register(srv)

	// Run returns once SIGTERM or SIGINT drained the in-flight tasks
	if err := srv.Start(); err != nil {
		appLogger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
