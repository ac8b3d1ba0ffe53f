package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"fedreg/internal/audit"
	"fedreg/internal/directory"
	"fedreg/internal/issuer"
	"fedreg/internal/platform/config"
	"fedreg/internal/platform/httpserver"
	"fedreg/internal/platform/logger"
	platformmetrics "fedreg/internal/platform/metrics"
	"fedreg/internal/platform/middleware"
	platformredis "fedreg/internal/platform/redis"
	"fedreg/internal/registry"
	"fedreg/internal/registry/handler"
	"fedreg/internal/registry/metrics"
	"fedreg/internal/signer"
	"fedreg/internal/statement"
	"fedreg/internal/trust"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec := statement.NewCodec(signer.NewMockSigner())

	store, auditStore, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	dir := directory.NewService(store,
		directory.WithLogger(log),
		directory.WithStatementTTL(cfg.Registry.StatementTTL),
	)

	if cfg.Registry.SeedDemoEntities {
		if err := directory.SeedDemoEntities(ctx, store, codec, cfg.Registry.StatementTTL); err != nil {
			log.Error("failed to seed demo entities", "error", err)
			os.Exit(1)
		}
	}

	anchors := trust.NewAnchors(cfg.Registry.TrustAnchors...)
	repo := trust.NewDirectoryRepository(store, primaryAnchor(cfg))
	resolver := trust.NewResolver(repo, repo, anchors, trust.WithLogger(log))

	iss := issuer.New(codec, dir, cfg.Registry.BaseIdentifier, cfg.Registry.SigningSeed,
		issuer.WithLogger(log),
		issuer.WithStatementTTL(cfg.Registry.StatementTTL),
	)

	var engine registry.QueryEngine
	switch cfg.Registry.RecognitionStrategy {
	case registry.StrategyDirectory:
		engine = registry.NewDirectoryEngine(dir)
	default:
		engine = registry.NewTrustChainEngine(resolver, anchors, cfg.Registry.BaseIdentifier)
	}

	auditInbox := make(chan audit.Event, 256)
	auditWorker := audit.NewWorker(auditStore, auditInbox, log)

	service := registry.NewService(dir, resolver, iss, codec, engine, cfg.Registry.BaseIdentifier,
		registry.WithLogger(log),
		registry.WithMetrics(metrics.New()),
		registry.WithAudit(audit.NewPublisher(audit.NewBuffered(auditStore, auditInbox), log)),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Latency(platformmetrics.New()))
	router.Use(middleware.Logger(log))
	handler.New(service, log, cfg.AdminToken).Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Server.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := auditWorker.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		log.Info("starting registry", "addr", cfg.Server.Addr, "base_identifier", cfg.Registry.BaseIdentifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildStores selects the directory and audit backends from config. The
// returned cleanup closes whatever connections were opened.
func buildStores(ctx context.Context, cfg *config.Config) (directory.Store, audit.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		store := directory.NewPostgres(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}

		db, err := audit.OpenPostgres(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		auditStore := audit.NewPostgres(db)
		if err := auditStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			db.Close()
			return nil, nil, nil, err
		}
		return store, auditStore, func() { pool.Close(); db.Close() }, nil

	case "redis":
		client, err := platformredis.New(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if client == nil {
			return nil, nil, nil, errors.New("redis driver selected but FEDREG_REDIS_URL is empty")
		}
		return directory.NewRedis(client.Client), audit.NewInMemory(), func() { client.Close() }, nil

	default:
		return directory.NewInMemory(), audit.NewInMemory(), func() {}, nil
	}
}

// primaryAnchor picks the anchor recorded on synthesized chains.
func primaryAnchor(cfg *config.Config) string {
	if len(cfg.Registry.TrustAnchors) > 0 {
		return cfg.Registry.TrustAnchors[0]
	}
	return cfg.Registry.BaseIdentifier
}
