package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slidesmith-backend/internal/config"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/observability"
	"slidesmith-backend/internal/server"
)

func main() {
	cfg := config.Load()
	lg := logger.NewStructured(cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := observability.Setup(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	s, err := server.NewServer(cfg, server.WithLogger(lg))
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	defer s.Close()

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		lg.Info("slidesmith server listening", map[string]interface{}{
			"addr":     addr,
			"provider": cfg.DefaultProvider,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Error("graceful shutdown failed", nil)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		lg.WithError(err).Warn("tracer provider shutdown failed", nil)
	}
}
