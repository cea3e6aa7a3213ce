package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/tchan/internal/collector"
	"github.com/blockedby/tchan/internal/config"
	"github.com/blockedby/tchan/internal/export"
	"github.com/blockedby/tchan/internal/logger"
	"github.com/blockedby/tchan/internal/telegram"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Str("fetch_mode", cfg.FetchMode).Msg("starting collector service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Open sinks
	var (
		sinks  export.MultiSink
		stored collector.MessageStore
		checks = map[string]collector.HealthCheck{}
	)

	if cfg.DatabaseURL != "" {
		store, err := export.OpenStore(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		defer store.Close()
		sinks = append(sinks, store.Sink)
		stored = store.Store
		checks["database"] = store.Check
	}

	if cfg.NatsURL != "" {
		events, err := export.OpenNATS(ctx, cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer events.Close()
			sinks = append(sinks, events.Sink)
			checks["nats"] = events.Check
		}
	}

	if len(sinks) == 0 {
		log.Warn().Msg("no DATABASE_URL or NATS_URL configured, scrape jobs only count messages")
	}

	// 5. Initialize fetcher & scraper
	fetcher, release := telegram.NewFetcher(cfg, log)
	defer release()

	scraper := collector.NewScraper(fetcher, collector.Options{
		AnomalyThreshold:  cfg.AnomalyThreshold,
		MaxAnomalyRetries: cfg.MaxAnomalyRetries,
		AnomalyBackoff:    cfg.AnomalyBackoff,
	}, log)

	// 6. Initialize scrape manager & handler
	exporter := export.NewExporter(scraper, sinks, log)
	scrapeManager := collector.NewScrapeManager(exporter, log)
	handler := collector.NewHandler(scrapeManager, scraper, log)
	if stored != nil {
		handler.SetStore(stored)
	}
	for name, check := range checks {
		handler.AddHealthCheck(name, check)
	}

	// 7. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           collector.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Int("port", cfg.HTTPPort).Msg("starting http server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	// 8. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	scrapeManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("shutdown complete")
}
