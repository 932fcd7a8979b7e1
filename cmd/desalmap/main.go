package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/desalination-map/internal/adapter/http"
	"github.com/couchcryptid/desalination-map/internal/app"
	"github.com/couchcryptid/desalination-map/internal/config"
	"github.com/couchcryptid/desalination-map/internal/observability"
)

func main() {
	debug := flag.Bool("debug", false, "run in debug mode (loopback on :5000, text logs, .env file)")
	flag.Parse()

	cfg, err := config.Load(*debug)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	p, closePublisher := app.NewPipeline(cfg, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, cfg.Palette, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.CheckReadiness(ctx); err != nil {
		// Keep serving so /readyz reports the problem.
		logger.Warn("geometry dataset unavailable", "path", cfg.GeometryPath, "error", err)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("serving plot", "url", "http://"+cfg.HTTPAddr+"/plot/", "source", cfg.SourceURL, "debug", cfg.Debug)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := closePublisher(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
