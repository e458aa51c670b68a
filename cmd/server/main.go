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

	"passport-id/internal/audit"
	"passport-id/internal/authflow"
	authHandler "passport-id/internal/authflow/handler"
	authMetrics "passport-id/internal/authflow/metrics"
	"passport-id/internal/authflow/workers/cleanup"
	"passport-id/internal/client"
	clientCache "passport-id/internal/client/cache"
	clientHandler "passport-id/internal/client/handler"
	clientStore "passport-id/internal/client/store"
	"passport-id/internal/platform/config"
	"passport-id/internal/platform/database"
	"passport-id/internal/platform/health"
	"passport-id/internal/platform/httpserver"
	"passport-id/internal/platform/kafka/producer"
	"passport-id/internal/platform/logger"
	httpMetrics "passport-id/internal/platform/metrics"
	"passport-id/internal/platform/redis"
	"passport-id/internal/platform/tracer"
	"passport-id/internal/scan"
	"passport-id/internal/seeder"
	httptransport "passport-id/internal/transport/http"
	"passport-id/migrations"
	"passport-id/pkg/platform/circuit"
)

const (
	auditBufferSize = 256
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// infra holds the optional backing services. Any of them may be nil.
type infra struct {
	db       *database.Pool
	redis    *redis.Client
	producer *producer.Producer
}

func (i *infra) close(log *slog.Logger) {
	if i.producer != nil {
		if err := i.producer.Close(); err != nil {
			log.Error("failed to close kafka producer", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Error("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}
}

// main wires the session manager, the scan client and the optional backing
// services, then serves the authorization API until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)

	log.Info("initializing passport-id",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"scan_service", cfg.Scan.BaseURL,
		"poll_interval", cfg.Scan.PollInterval,
		"poll_timeout", cfg.Scan.PollTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("passport-id stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	inf, err := buildInfra(cfg, log)
	if err != nil {
		return err
	}
	defer inf.close(log)

	healthHandler := health.New(cfg.Environment)
	if inf.db != nil {
		healthHandler.RegisterCheck("database", inf.db.Health)
	}
	if inf.redis != nil {
		healthHandler.RegisterCheck("redis", inf.redis.Health)
	}
	if inf.producer != nil {
		healthHandler.RegisterCheck("kafka", inf.producer.Healthy)
	}

	if inf.db != nil {
		if err := migrations.Apply(ctx, inf.db.DB()); err != nil {
			return err
		}
	}
	if inf.db != nil && cfg.Environment == "development" {
		if err := seeder.New(clientStore.NewPostgres(inf.db.DB()), log).SeedClients(ctx, cfg.Clients.Allowlist); err != nil {
			return err
		}
	}
	registry := buildRegistry(cfg, inf, log)
	gate := client.NewGate(registry, log)

	publisher := audit.NewPublisher(buildAuditStore(cfg, inf, log),
		audit.WithAsyncBuffer(auditBufferSize),
		audit.WithPublisherLogger(log),
	)
	defer publisher.Close()

	scanClient := scan.NewGuard(
		scan.NewHTTPClient(cfg.Scan.BaseURL, cfg.Scan.RequestTimeout,
			scan.WithTracer(tracer.NewOTel()),
		),
		circuit.New("scan-service",
			circuit.WithFailureThreshold(cfg.Scan.BreakerThreshold),
			circuit.WithCooldown(cfg.Scan.BreakerCooldown),
		),
		log,
	)

	mtr := authMetrics.New()
	manager := authflow.NewManager(gate, scanClient,
		authflow.Config{
			PollInterval:      cfg.Scan.PollInterval,
			PollTimeout:       cfg.Scan.PollTimeout,
			AuthorizeEndpoint: cfg.Scan.AuthorizeEndpoint,
		},
		authflow.WithLogger(log),
		authflow.WithMetrics(mtr),
		authflow.WithAuditPublisher(publisher),
	)
	defer manager.CloseAll()

	reaper, err := cleanup.New(manager,
		cleanup.WithIdleTTL(cfg.Session.IdleTTL),
		cleanup.WithCleanupInterval(cfg.Session.CleanupInterval),
		cleanup.WithCleanupLogger(log),
		cleanup.WithCleanupMetrics(mtr),
	)
	if err != nil {
		return err
	}

	apis := []httptransport.Registrar{authHandler.New(manager, log)}
	if admin := buildClientAdmin(cfg, inf, registry, log); admin != nil {
		apis = append(apis, admin)
	}
	router := httptransport.NewRouter(log, requestTimeout, httpMetrics.New(), healthHandler, apis...)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := reaper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildInfra(cfg config.Server, log *slog.Logger) (*infra, error) {
	inf := &infra{}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	inf.db = db

	rc, err := redis.New(cfg.Redis)
	if err != nil {
		inf.close(log)
		return nil, err
	}
	inf.redis = rc

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(cfg.Kafka, log)
		if err != nil {
			inf.close(log)
			return nil, err
		}
		inf.producer = p
	}
	return inf, nil
}

// buildRegistry picks the client allowlist source: the oauth_client table
// when a database is configured, fronted by redis when that is configured too,
// and the static list otherwise.
func buildRegistry(cfg config.Server, inf *infra, log *slog.Logger) client.Registry {
	if inf.db == nil {
		log.Info("using static client allowlist", "clients", cfg.Clients.Allowlist)
		return client.NewStatic(cfg.Clients.Allowlist)
	}
	var registry client.Registry = clientStore.NewPostgres(inf.db.DB())
	if inf.redis != nil {
		registry = clientCache.NewRedisRegistry(inf.redis.Client, registry, cfg.Clients.CacheTTL, log)
	}
	return registry
}

// buildClientAdmin mounts /admin/clients only when clients live in the
// database and an operator token is configured.
func buildClientAdmin(cfg config.Server, inf *infra, registry client.Registry, log *slog.Logger) *clientHandler.Handler {
	if inf.db == nil || cfg.AdminToken == "" {
		return nil
	}
	var cache clientHandler.CacheInvalidator
	if c, ok := registry.(*clientCache.RedisRegistry); ok {
		cache = c
	}
	return clientHandler.New(clientStore.NewPostgres(inf.db.DB()), cache, cfg.AdminToken, log)
}

func buildAuditStore(cfg config.Server, inf *infra, log *slog.Logger) audit.Store {
	if inf.producer != nil {
		log.Info("publishing audit events to kafka", "topic", cfg.Kafka.AuditTopic)
		return audit.NewKafkaStore(inf.producer, cfg.Kafka.AuditTopic)
	}
	return audit.NewLogStore(log)
}
