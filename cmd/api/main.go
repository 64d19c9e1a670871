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

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/farmsense/cava/backend/internal/config"
	"github.com/farmsense/cava/backend/internal/handler"
	"github.com/farmsense/cava/backend/internal/observability"
	"github.com/farmsense/cava/backend/internal/service/ai"
	"github.com/farmsense/cava/backend/internal/service/chat"
	"github.com/farmsense/cava/backend/internal/service/extraction"
	"github.com/farmsense/cava/backend/internal/service/registration"
	"github.com/farmsense/cava/backend/internal/service/session"
	"github.com/farmsense/cava/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	farmers, err := store.NewSQLite(cfg.Storage.DBPath, logger)
	if err != nil {
		return err
	}
	defer farmers.Close()

	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn("AI service unavailable, advisor chat disabled", zap.Error(err))
			aiService = nil
		} else {
			logger.Info("AI service initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("Ark credentials not configured, advisor chat disabled")
	}

	extractor, err := extraction.Select(ctx, cfg, aiService, logger)
	if err != nil {
		return err
	}

	sessions, err := session.NewStore(session.Config{
		MaxSessions: cfg.Registration.SessionMax,
		TTL:         cfg.Registration.SessionTTL,
	}, logger)
	if err != nil {
		return err
	}

	registrationSvc := registration.NewService(extractor, sessions, farmers, registration.Config{
		HistoryLimit: cfg.Registration.HistoryLimit,
	}, logger)

	router := handler.NewRouter(handler.Dependencies{
		Registration:   registrationSvc,
		Farmers:        farmers,
		Chat:           chat.NewService(),
		AI:             aiService,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions.Run(gctx, 0)
		return nil
	})
	g.Go(func() error {
		return startServer(gctx, cfg.Server, router, logger)
	})
	return g.Wait()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("CAVA backend listening", zap.String("addr", addr))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
