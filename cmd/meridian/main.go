package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-training/meridian/internal/access"
	"github.com/meridian-training/meridian/internal/app"
	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/importer"
	"github.com/meridian-training/meridian/internal/legacy"
	"github.com/meridian-training/meridian/internal/observability"
	"github.com/meridian-training/meridian/internal/platform/cache"
	"github.com/meridian-training/meridian/internal/platform/db"
	"github.com/meridian-training/meridian/internal/roles"
	"github.com/meridian-training/meridian/internal/seeder"
	"github.com/meridian-training/meridian/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var decisions *access.DecisionCache
	if cfg.RedisAddr != "" {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, decision cache disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			decisions = access.NewDecisionCache(redisClient, cfg.AccessCacheTTL)
		}
	}

	mapping, err := legacy.Load()
	if err != nil {
		logger.Error("load legacy mapping", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo)
	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	usersService := users.NewService(users.NewRepository(pool))

	grantRepo := access.NewRepository(pool)
	policy := access.ExactMatch
	if cfg.WildcardSectionFallback {
		policy = access.WildcardFallback
	}
	accessService := access.NewService(logger, grantRepo, rolesService, catalogService, policy, decisions)
	reporter := access.NewReporter(catalogRepo, rolesRepo, grantRepo)

	importService := importer.NewService(logger, importer.NewRepository(pool), mapping, decisions)
	seedService := seeder.NewService(logger, seeder.NewRepository(pool), mapping, decisions)

	admin := app.AdminGuard(logger, cfg.AdminTokenHash)
	accessHandler := access.NewHandler(logger, accessService, reporter, seedService, usersService, metrics, admin)
	importHandler := importer.NewHandler(logger, importService, metrics, admin)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AccessHandler:  accessHandler,
		ImportHandler:  importHandler,
		CatalogHandler: catalogHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
