package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PowerLedger/internal/domain/repository"
	"PowerLedger/internal/service/ratelimit"
	"PowerLedger/internal/usecase"
	"PowerLedger/pkg/cache"
	pkgch "PowerLedger/pkg/clickhouse"
	"PowerLedger/pkg/config"
	xhttp "PowerLedger/pkg/http"
	pkgkafka "PowerLedger/pkg/kafka"
	applogger "PowerLedger/pkg/logger"
	"PowerLedger/pkg/ws"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	store      repository.Store

	// Optional components; nil when disabled.
	Scheduler  *usecase.Scheduler
	Seed       func(ctx context.Context) (int, error)
	Hub        *ws.Hub
	Cache      cache.Service
	Producer   *pkgkafka.Producer
	ClickHouse *pkgch.Client
	Limiter    *ratelimit.Limiter
}

const limiterPruneInterval = 5 * time.Minute

// New creates a new App instance with its required dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, store repository.Store) *App {
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: httpServer,
		store:      store,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.Seed != nil {
		seedCtx, cancel := context.WithTimeout(ctx, time.Minute)
		n, err := a.Seed(seedCtx)
		cancel()
		if err != nil {
			a.log.Error("seed failed", applogger.Error(err))
			return err
		}
		if n > 0 {
			a.log.Info("ledger seeded", applogger.Int("stations", n))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.Scheduler != nil {
		a.Scheduler.Start(ctx)
		a.log.Info("reservation expiry scheduler started",
			applogger.String("run_at", a.cfg.Scheduler.RunAt),
			applogger.String("timezone", a.cfg.Scheduler.Timezone))
	}

	if a.Limiter != nil {
		go a.pruneLimiter(ctx)
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Limiter.Prune(); n > 0 {
				a.log.Debug("rate limit buckets pruned", applogger.Int("count", n))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.Hub != nil {
		a.Hub.Close()
	}

	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", applogger.Error(err))
	}

	// The collector publishes through the producer, so flush it first.
	a.log.RemoveCollector()
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
