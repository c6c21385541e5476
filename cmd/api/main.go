// Package main runs the listing match and ranking API.
package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/homescout/match-engine/internal/cache"
	"github.com/homescout/match-engine/internal/config"
	"github.com/homescout/match-engine/internal/enhance"
	httpapi "github.com/homescout/match-engine/internal/http"
	"github.com/homescout/match-engine/internal/logging"
	"github.com/homescout/match-engine/internal/rank"
	"github.com/homescout/match-engine/internal/scoring"
	"github.com/homescout/match-engine/internal/storage"
	"github.com/homescout/match-engine/internal/vision"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.Logging.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(); err != nil {
		return err
	}

	if cfg.Database.SeedFile != "" {
		listings, err := storage.LoadListingsFromFile(cfg.Database.SeedFile)
		if err != nil {
			return err
		}
		if err := store.UpsertListings(listings); err != nil {
			return err
		}
		n, _ := store.CountListings()
		logger.Info("listings seeded", "file", cfg.Database.SeedFile, "total", n)
	}

	tun := scoring.DefaultTunables()
	if cfg.Scoring.TunablesFile != "" {
		loaded, err := scoring.LoadTunablesFromFile(cfg.Scoring.TunablesFile)
		if err != nil {
			logger.Warn("using default tunables", "err", err)
		} else {
			tun = loaded
		}
	}

	var calcOpts []scoring.Option
	if cfg.Scoring.ReasonSeed != 0 {
		calcOpts = append(calcOpts, scoring.WithRand(rand.New(rand.NewSource(cfg.Scoring.ReasonSeed))))
	}
	calc := scoring.New(tun, scoring.DefaultLexicon(), calcOpts...)
	cat := rank.New()

	var orchestrator *enhance.Orchestrator
	if cfg.Vision.Endpoint != "" {
		analyzer := vision.NewClient(cfg.Vision.Endpoint, cfg.Vision.APIKey, cfg.Vision.Timeout)
		orchestrator = enhance.New(analyzer, calc, cat, enhance.Options{
			MaxCandidates:       cfg.Enhancement.MaxCandidates,
			MaxImagesPerListing: cfg.Enhancement.MaxImagesPerListing,
			CallsPerSecond:      cfg.Enhancement.CallsPerSecond,
			Burst:               cfg.Enhancement.Burst,
		}, logger)
	} else {
		logger.Info("vision endpoint not configured, enhancement disabled")
	}

	manager := cache.NewManager(cache.Deps{
		Source:       store,
		Store:        store,
		Calculator:   calc,
		Orchestrator: orchestrator,
		Categorizer:  cat,
		Logger:       logger,
	}, cache.WithTTL(cfg.Cache.TTL))

	janitor := cron.New()
	if _, err := janitor.AddFunc(cfg.Cache.CleanupCron, func() {
		n, err := manager.Cleanup(context.Background())
		if err != nil {
			logger.Error("cache cleanup failed", "err", err)
			return
		}
		logger.Info("cache cleanup ran", "removed", n)
	}); err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	api := httpapi.NewServer(manager, logger)
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
