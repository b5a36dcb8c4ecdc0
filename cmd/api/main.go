package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MelodyDuplaix/Projet-OCR/internal/bootstrap"
	"github.com/MelodyDuplaix/Projet-OCR/internal/delivery/api"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, appLogger, bootstrap.Options{})
	if err != nil {
		appLogger.Error("failed to start api", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	app.PurgeUploads(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.NewServiceLogger("api")))

	h := api.NewHandler(app.Service, app.Uploads, app.Batches, cfg.MaxFileSize, appLogger)
	h.AddHealthCheck("database", app.DB.Health)
	if app.Cache != nil {
		h.AddHealthCheck("redis", app.Cache.Health)
	}
	h.Register(router)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", "error", err)
	}
}

func requestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
