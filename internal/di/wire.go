//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PowerLedger/internal/handler/api"
	"PowerLedger/internal/service/ratelimit"
	"PowerLedger/internal/usecase"
	"PowerLedger/pkg/config"
	"PowerLedger/pkg/server"
	"PowerLedger/pkg/ws"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideStore,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideCapacityHistory,
		ProvideAuditForwarder,
		ws.NewHub,

		// Use cases
		usecase.NewRecalculationEngine,
		usecase.NewAdmissionController,
		ProvideRunner,
		usecase.NewStationService,
		usecase.NewCircuitService,
		usecase.NewSubCircuitService,
		usecase.NewRequestService,
		usecase.NewObservationService,
		usecase.NewNotificationService,
		usecase.NewSnapshotCoordinator,
		usecase.NewExpiryScanner,
		ProvideScheduler,
		ProvideSeedPlan,

		// HTTP
		ratelimit.New,
		api.NewStationsHandler,
		api.NewCircuitsHandler,
		api.NewSubCircuitsHandler,
		api.NewRequestsHandler,
		api.NewObservationsHandler,
		api.NewNotificationsHandler,
		ProvideBackupsHandler,
		api.NewSchedulerHandler,
		api.NewLedgerHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
