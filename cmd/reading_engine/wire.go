package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/config"
	"github.com/visara/reading-engine/internal/credits"
	"github.com/visara/reading-engine/internal/db"
	"github.com/visara/reading-engine/internal/generation"
	"github.com/visara/reading-engine/internal/jobs"
	"github.com/visara/reading-engine/internal/llm"
	"github.com/visara/reading-engine/internal/logging"
	"github.com/visara/reading-engine/internal/notify"
	"github.com/visara/reading-engine/internal/redisc"
	"github.com/visara/reading-engine/internal/schema"
)

// app holds the wired service graph for one process.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	database *db.DB
	cache    *redisc.Client
	manager  *jobs.Manager
}

// buildApp loads configuration and wires every service the manager needs.
func buildApp(ctx context.Context, publicURL string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(development)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cache, err := redisc.Connect(cfg.RedisURL)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	client, err := llm.NewHTTPClient(cfg.Model, logger)
	if err != nil {
		database.Close()
		cache.Close()
		return nil, fmt.Errorf("failed to build model client: %w", err)
	}

	validator, err := schema.NewValidator(cfg.Tuning.MaxMissingSections, logger)
	if err != nil {
		database.Close()
		cache.Close()
		return nil, fmt.Errorf("failed to build validator: %w", err)
	}

	orchestrator := generation.New(client, validator, cfg.Tuning, logger)
	ledger := credits.NewClient(cfg.Credits, cache, logger)
	notifier := notify.New(cfg.Mail, cache, cfg.Jobs.NotifyDedupWindow, publicURL, logger)
	manager := jobs.NewManager(database, orchestrator, ledger, notifier, cache, cfg.Jobs, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		database: database,
		cache:    cache,
		manager:  manager,
	}, nil
}

func (a *app) close() {
	a.database.Close()
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close redis client", zap.Error(err))
	}
	_ = a.logger.Sync()
}
