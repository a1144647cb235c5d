package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/tabletop/internal/auth"
	"github.com/playperu/tabletop/internal/config"
	"github.com/playperu/tabletop/internal/database"
	"github.com/playperu/tabletop/internal/handler/health"
	"github.com/playperu/tabletop/internal/jobs"
	"github.com/playperu/tabletop/internal/metrics"
	"github.com/playperu/tabletop/internal/ratelimit"
	"github.com/playperu/tabletop/internal/registry"
	"github.com/playperu/tabletop/internal/server"
	"github.com/playperu/tabletop/internal/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Storage ---
	checks := map[string]health.Checker{}
	collections := service.MemoryCollections()
	if cfg.StoreDriver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("connecting to sqlite: %w", err)
		}
		defer db.Close()

		if collections, err = service.SQLiteCollections(ctx, db); err != nil {
			return fmt.Errorf("creating collections: %w", err)
		}
		checks["sqlite"] = dbChecker{db}
		logger.Info("connected to sqlite", "path", cfg.DBPath)
	}

	// --- Services ---
	reg := registry.New()
	service.Register(reg, collections, service.Settings{
		DivisionSize:      cfg.DivisionSize,
		FederationServers: cfg.FederationServers,
	}, logger)
	services, err := reg.Resolve()
	if err != nil {
		return fmt.Errorf("resolving services: %w", err)
	}
	logger.Info("services registered", "names", reg.Names())
	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, services, cfg.DefaultUserID); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)
	m := metrics.New()
	m.TrackKeys(limiter.Len)

	// --- Background jobs ---
	scheduler := jobs.New(logger, m)
	if err := scheduler.Add("ratelimit-sweep", cfg.RateLimitSweep, jobs.RateLimitSweep(limiter, logger)); err != nil {
		return err
	}
	if err := scheduler.Add("challenge-expiry", cfg.ChallengeSweep,
		jobs.ChallengeExpiry(services.Challenges, cfg.ChallengeTTL, time.Now, logger)); err != nil {
		return err
	}

	// --- HTTP Server ---
	handler, err := server.NewHandler(server.HandlerOptions{
		Logger:            logger,
		Services:          services,
		Resolver:          auth.NewResolver(cfg.APIToken, cfg.DefaultUserID),
		Limiter:           limiter,
		Metrics:           m,
		Health:            health.NewHandler(logger, cfg.Version, checks).Routes(),
		CORSOrigin:        cfg.CORSOrigin,
		PublicBaseURL:     cfg.PublicBaseURL,
		Version:           cfg.Version,
		ValidateResponses: cfg.ValidateResponses,
	})
	if err != nil {
		return fmt.Errorf("building routes: %w", err)
	}
	srv := server.New(cfg.HTTPAddr(), logger, handler)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr(), "store", cfg.StoreDriver)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	return g.Wait()
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
