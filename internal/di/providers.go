package di

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/repository"
	"PowerLedger/internal/handler/api"
	mid "PowerLedger/internal/middleware"
	internalrepo "PowerLedger/internal/repository"
	"PowerLedger/internal/repository/memory"
	"PowerLedger/internal/repository/postgres"
	"PowerLedger/internal/service/ratelimit"
	"PowerLedger/internal/usecase"
	"PowerLedger/pkg/cache"
	pkgch "PowerLedger/pkg/clickhouse"
	"PowerLedger/pkg/config"
	xhttp "PowerLedger/pkg/http"
	pkgkafka "PowerLedger/pkg/kafka"
	applogger "PowerLedger/pkg/logger"
	"PowerLedger/pkg/metrics"
	"PowerLedger/pkg/server"
	"PowerLedger/pkg/ws"
)

const serviceName = "powerledger"

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. Repeated warnings and errors
// are shipped to the log topic when the collector is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        serviceName,
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideStore opens the configured ledger backend.
func ProvideStore(cfg *config.Config, l *applogger.Logger) (repository.Store, error) {
	if cfg.Storage.Type == "memory" {
		l.Info("using in-memory ledger store")
		return memory.NewStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pg := cfg.Storage.Postgres
	store, err := postgres.Open(ctx, postgres.Options{
		DSN:             pg.DSN,
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: pg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if pg.InitSchema {
		if err := store.InitSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	l.Info("postgres ledger store ready")
	return store, nil
}

// ProvideCache connects to Redis when enabled and falls back to a
// process-local cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Redis.MemoryMaxKeys)), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

// ProvideClickHouseClient creates a ClickHouse client and its schema, or nil
// when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.CapacityHistorySchema(client.Database())); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideCapacityHistory(ch *pkgch.Client, l *applogger.Logger) repository.CapacityHistory {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHCapacityHistory(ch, l)
}

func ProvideAuditForwarder(producer *pkgkafka.Producer, cfg *config.Config) repository.AuditForwarder {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaAuditForwarder(producer, cfg.Kafka.AuditTopic)
}

// ProvideRunner assembles the unit-of-work runner with its post-commit sinks.
func ProvideRunner(
	cfg *config.Config,
	store repository.Store,
	engine *usecase.RecalculationEngine,
	m repository.Metrics,
	l *applogger.Logger,
	history repository.CapacityHistory,
	forwarder repository.AuditForwarder,
	hub *ws.Hub,
) (*usecase.Runner, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := []usecase.RunnerOption{
		usecase.WithLocation(loc),
		usecase.WithBroadcaster(hub),
	}
	if history != nil {
		opts = append(opts, usecase.WithCapacityHistory(history))
	}
	if forwarder != nil {
		opts = append(opts, usecase.WithAuditForwarder(forwarder))
	}
	return usecase.NewRunner(store, engine, m, l, opts...), nil
}

// ProvideScheduler creates the reservation expiry scheduler. The cache
// provides the cross-replica run lock and the shared last report.
func ProvideScheduler(cfg *config.Config, scanner *usecase.ExpiryScanner, c cache.Service, l *applogger.Logger) (*usecase.Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return usecase.NewScheduler(scanner, usecase.SchedulerConfig{
		RunAt:      cfg.Scheduler.RunAt,
		RunOnStart: cfg.Scheduler.RunOnStart,
		Location:   loc,
		LockTTL:    cfg.Scheduler.LockTTL,
	}, l, usecase.WithLocker(c), usecase.WithReportStore(c))
}

func ProvideBackupsHandler(cfg *config.Config, l *applogger.Logger, snapshots *usecase.SnapshotCoordinator, rl *ratelimit.Limiter) *api.BackupsHandler {
	return api.NewBackupsHandler(l, snapshots, rl, mid.RateLimitConfig{
		Scope:        "backups",
		Capacity:     cfg.Snapshot.RateCapacity,
		RefillPerSec: cfg.Snapshot.RateRefillPerSec,
	}, cfg.Snapshot.ListLimit)
}

// ProvideSeedPlan converts the seed section into a SeedPlan.
func ProvideSeedPlan(cfg *config.Config) (usecase.SeedPlan, error) {
	plan := usecase.SeedPlan{}
	if !cfg.Seed.Enabled {
		return plan, nil
	}
	var err error
	if plan.CapacityKW, err = decimal.NewFromString(cfg.Seed.CapacityKW); err != nil {
		return plan, fmt.Errorf("seed.capacity_kw: %w", err)
	}
	if plan.BarCapacityKW, err = decimal.NewFromString(cfg.Seed.BarCapacityKW); err != nil {
		return plan, fmt.Errorf("seed.bar_capacity_kw: %w", err)
	}
	if plan.BarCapacityA, err = decimal.NewFromString(cfg.Seed.BarCapacityA); err != nil {
		return plan, fmt.Errorf("seed.bar_capacity_a: %w", err)
	}
	for _, s := range cfg.Seed.Stations {
		plan.Stations = append(plan.Stations, usecase.SeedStation{Code: s.Code, Name: s.Name, OrderIndex: s.OrderIndex})
	}
	return plan, nil
}

// ProvideHTTPServer creates the Echo server with every ledger route.
func ProvideHTTPServer(cfg *config.Config, handler *api.LedgerHandler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handler, l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler *usecase.Scheduler,
	stations *usecase.StationService,
	plan usecase.SeedPlan,
	hub *ws.Hub,
	store repository.Store,
	c cache.Service,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	rl *ratelimit.Limiter,
) *server.App {
	app := server.New(cfg, l, httpServer, store)
	if cfg.Scheduler.Enabled {
		app.Scheduler = scheduler
	}
	if cfg.Seed.Enabled {
		app.Seed = func(ctx context.Context) (int, error) { return stations.Seed(ctx, plan) }
	}
	app.Hub = hub
	app.Cache = c
	app.Producer = producer
	app.ClickHouse = ch
	app.Limiter = rl
	return app
}
