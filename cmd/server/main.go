// Command server runs the image-generation site.
//
// Configuration comes from the environment, optionally layered over the YAML
// file named by CONFIG_PATH. See internal/config for the keys.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/fluxgate/internal/auth"
	"github.com/sakif/fluxgate/internal/config"
	"github.com/sakif/fluxgate/internal/handler"
	"github.com/sakif/fluxgate/internal/metrics"
	"github.com/sakif/fluxgate/internal/provider/fal"
	sqliteRepo "github.com/sakif/fluxgate/internal/repository/sqlite"
	"github.com/sakif/fluxgate/internal/route"
	"github.com/sakif/fluxgate/internal/server"
	"github.com/sakif/fluxgate/internal/service"
	"github.com/sakif/fluxgate/internal/static"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.Log.Level) // already validated
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// === STORAGE ===
	dbDir := filepath.Dir(cfg.Storage.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		return err
	}

	db, err := sqliteRepo.New(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// === METRICS ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(reg)

	// === PROVIDER ===
	client, err := fal.New(fal.Config{
		BaseURL:         cfg.Fal.BaseURL,
		Model:           cfg.Fal.Model,
		APIKey:          cfg.Fal.APIKey,
		Timeout:         cfg.Fal.Timeout,
		SafetyTolerance: cfg.Fal.SafetyTolerance,
	}, logger)
	if err != nil {
		return err
	}

	// === SERVICES ===
	sessions := auth.NewSessionManager(db, db, cfg.Session.TTL, logger)
	ledger := service.NewCreditLedger(db, sessions, recorder, logger)
	accounts := service.NewAccountService(db, sessions, auth.NewPasswordService(), ledger,
		service.AccountConfig{
			StartingCredits: cfg.Credits.Starting,
			GrantCredits:    cfg.Credits.Grant,
		}, recorder, logger)
	images := service.NewImageService(ledger, client,
		service.ImageConfig{
			Cost:            cfg.Credits.ImageCost,
			ProviderTimeout: cfg.Fal.Timeout,
		}, recorder, logger)

	if cfg.Seed.Enabled() {
		created, err := accounts.SeedUser(context.Background(), cfg.Seed.Email, cfg.Seed.Password, cfg.Seed.Credits)
		if err != nil {
			return err
		}
		if !created {
			logger.Info("seed account already exists", slog.String("email", cfg.Seed.Email))
		}
	}

	// === HTTP ===
	contentDir, err := filepath.Abs(cfg.HTTP.ContentDir)
	if err != nil {
		return err
	}
	api := handler.NewAPIHandler(accounts, images, cfg.Session.TTL, cfg.Session.CookieSecure, logger)
	dispatcher := handler.NewDispatcher(route.NewClassifier(contentDir), static.Dir{}, api, logger)

	srv := server.New(server.Config{
		Port:          cfg.HTTP.Port,
		ReadTimeout:   cfg.HTTP.ReadTimeout,
		WriteTimeout:  cfg.HTTP.WriteTimeout,
		IdleTimeout:   cfg.HTTP.IdleTimeout,
		SweepInterval: cfg.Session.SweepEvery,
	}, server.Deps{
		DB:       db,
		Sessions: sessions,
		Site:     dispatcher,
		Recorder: recorder,
		Gatherer: reg,
	}, logger)

	logger.Info("configuration loaded",
		slog.String("contentDir", contentDir),
		slog.String("database", cfg.Storage.DBPath),
		slog.String("model", cfg.Fal.Model),
		slog.Duration("sessionTTL", cfg.Session.TTL),
	)

	// Start blocks until SIGINT or SIGTERM.
	return srv.Start()
}
