package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/config"
	"github.com/farmsense/cava/backend/internal/observability"
	"github.com/farmsense/cava/backend/internal/service/ai"
	"github.com/farmsense/cava/backend/internal/service/extraction"
	"github.com/farmsense/cava/backend/internal/service/registration"
	"github.com/farmsense/cava/backend/internal/service/session"
	"github.com/farmsense/cava/backend/internal/store"
)

type engineOptions struct {
	Store     string
	DBPath    string
	RulesOnly bool
}

// engine is the registration service plus what it needs to shut down.
type engine struct {
	svc     *registration.Service
	farmers store.FarmerRepository
}

func (e *engine) Close() error {
	return e.farmers.Close()
}

// loadEngine reads the environment the same way the API server does.
func loadEngine(ctx context.Context) (*engine, *zap.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(config.LogConfig{Level: level, Format: "console"})
	if err != nil {
		return nil, nil, err
	}

	eng, err := newEngine(ctx, cfg, engineOptions{Store: storeKind, DBPath: dbPath, RulesOnly: rulesOnly}, logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

func newEngine(ctx context.Context, cfg *config.Config, opts engineOptions, logger *zap.Logger) (*engine, error) {
	if opts.RulesOnly {
		cfg.Registration.Provider = config.ProviderNone
	}

	var farmers store.FarmerRepository
	switch opts.Store {
	case "", "memory":
		farmers = store.NewMemoryStore()
	case "sqlite":
		path := opts.DBPath
		if path == "" {
			path = cfg.Storage.DBPath
		}
		db, err := store.NewSQLite(path, logger)
		if err != nil {
			return nil, err
		}
		farmers = db
	default:
		return nil, fmt.Errorf("unknown store %q: want memory or sqlite", opts.Store)
	}

	var arkSvc *ai.Service
	if cfg.Registration.Provider == config.ProviderArk {
		svc, err := ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			farmers.Close()
			return nil, err
		}
		arkSvc = svc
	}

	extractor, err := extraction.Select(ctx, cfg, arkSvc, logger)
	if err != nil {
		farmers.Close()
		return nil, err
	}

	sessions, err := session.NewStore(session.Config{
		MaxSessions: cfg.Registration.SessionMax,
		TTL:         cfg.Registration.SessionTTL,
	}, logger)
	if err != nil {
		farmers.Close()
		return nil, err
	}

	svc := registration.NewService(extractor, sessions, farmers, registration.Config{
		HistoryLimit: cfg.Registration.HistoryLimit,
	}, logger)
	return &engine{svc: svc, farmers: farmers}, nil
}
