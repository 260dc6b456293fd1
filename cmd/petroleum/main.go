package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shakvilla/petroleum-saas-sub005/internal/access"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/app"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/audit"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/gateway"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/observability"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/platform/cache"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/platform/db"
	"github.com/Shakvilla/petroleum-saas-sub005/internal/tenant"
	"github.com/Shakvilla/petroleum-saas-sub005/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
	}

	flagCache, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, decision cache disabled", slog.Any("error", err))
		flagCache = nil
	} else {
		defer func() {
			if err := flagCache.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	registry := access.DefaultRegistry()
	engine := access.NewEngine(registry, logger)
	security := audit.NewSecurityLogger(pool, logger)

	var (
		store      gateway.Store
		flagStore  access.FlagStore
		directory  access.TenantDirectory
		principals access.PrincipalSource
	)
	if cfg.UsesPostgres() {
		store = gateway.NewPGStore(pool)
		flagStore = access.NewPGFlagStore(pool, logger)
		directory = access.NewPGTenantDirectory(pool)
		principals = access.NewPGPrincipalSource(pool)
	} else {
		store = gateway.NewMemoryStore()
		flagStore = &access.StaticFlagStore{}
		directory = &access.StaticTenantDirectory{}
		principals = &access.StaticPrincipalSource{}
	}

	flagService := access.NewFlagService(engine, flagStore, directory, flagCache, cfg.FlagCacheTTL, logger)
	accessMiddleware := access.Middleware{
		Engine:     engine,
		Principals: principals,
		Flags:      flagService,
		Logger:     logger,
		Metrics:    metrics,
	}
	accessHandler := access.NewHandler(engine, flagService, logger)

	gatewayService := gateway.NewService(store, registry, security, metrics, logger)
	gatewayHandler := gateway.NewHandler(gatewayService, engine, security, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, engine, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Resolver:         tenant.NewResolver(cfg.BaseDomains),
		AccessMiddleware: accessMiddleware,
		AccessHandler:    accessHandler,
		GatewayHandler:   gatewayHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
