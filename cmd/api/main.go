package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"propertyhub/auth"
	"propertyhub/config"
	"propertyhub/db"
	"propertyhub/listing"
	"propertyhub/logger"
	"propertyhub/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	store := listing.NewStore()
	queries := listing.NewQueryService(store)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
		collector.TrackProperties(cfg.Metrics.Namespace, store.Len)
	}

	var accounts accountService
	if cfg.Auth.Enabled {
		repo, closeRepo, err := accountRepository(ctx, cfg, zl)
		if err != nil {
			return err
		}
		defer closeRepo()

		accounts = auth.NewService(repo, cfg.Auth.JWTSecret).
			WithIssuer(cfg.Auth.Issuer).
			WithTokenTTL(cfg.Auth.TokenTTL)
	}

	server := NewServer(store, queries, accounts, collector, zl, ServerOptions{
		DefaultUser:  cfg.Server.DefaultUser,
		AuthRequired: cfg.Auth.Required,
		CORSOrigins:  cfg.CORS.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.Bool("auth_enabled", cfg.Auth.Enabled),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// accountRepository picks the Postgres repository when a database is
// configured and the in-memory one otherwise.
func accountRepository(ctx context.Context, cfg *config.Config, zl *zap.Logger) (auth.Repository, func(), error) {
	if cfg.Database.URL == "" {
		zl.Warn("no database configured, accounts are kept in memory")
		return auth.NewMemoryRepository(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap database pool: %w", err)
	}
	zl.Info("account storage ready", zap.Int32("max_conns", pool.Config().MaxConns))
	return auth.NewRepository(pool), pool.Close, nil
}
