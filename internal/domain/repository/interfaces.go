package repository

import (
	"context"
	"database/sql"
	"time"

	"PowerLedger/internal/domain/models"
)

// Store runs units of work against the ledger. fn receives a Tx that is
// committed when fn returns nil and rolled back otherwise.
type Store interface {
	WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx Tx) error) error
	Health(ctx context.Context) error
	Close() error
}

// Tx exposes per-entity operations inside one transaction. Getters return
// an errs.NotFoundError when the row is absent. Create methods assign a new
// id when the entity's ID is zero and keep it verbatim otherwise.
type Tx interface {
	GetStation(ctx context.Context, id int64) (*models.Station, error)
	// GetStationForUpdate locks the station row until the transaction ends.
	GetStationForUpdate(ctx context.Context, id int64) (*models.Station, error)
	ListStations(ctx context.Context) ([]*models.Station, error)
	CreateStation(ctx context.Context, s *models.Station) error
	UpdateStation(ctx context.Context, s *models.Station) error

	GetBar(ctx context.Context, id int64) (*models.Bar, error)
	ListBars(ctx context.Context, f BarFilter) ([]*models.Bar, error)
	CreateBar(ctx context.Context, b *models.Bar) error

	GetCircuit(ctx context.Context, id int64) (*models.Circuit, error)
	ListCircuits(ctx context.Context, f CircuitFilter) ([]*models.Circuit, error)
	CreateCircuit(ctx context.Context, c *models.Circuit) error
	UpdateCircuit(ctx context.Context, c *models.Circuit) error
	// DeleteCircuit also removes the circuit's sub-circuits.
	DeleteCircuit(ctx context.Context, id int64) error

	GetSubCircuit(ctx context.Context, id int64) (*models.SubCircuit, error)
	ListSubCircuits(ctx context.Context, f SubCircuitFilter) ([]*models.SubCircuit, error)
	CreateSubCircuit(ctx context.Context, sc *models.SubCircuit) error
	UpdateSubCircuit(ctx context.Context, sc *models.SubCircuit) error
	DeleteSubCircuit(ctx context.Context, id int64) error

	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	ListNotifications(ctx context.Context, f NotificationFilter) ([]*models.Notification, error)
	CountNotifications(ctx context.Context, f NotificationFilter) (int, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	UpdateNotification(ctx context.Context, n *models.Notification) error

	ListObservations(ctx context.Context, f ObservationFilter) ([]*models.Observation, error)
	CreateObservation(ctx context.Context, o *models.Observation) error

	GetRequest(ctx context.Context, id int64) (*models.CapacityRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]*models.CapacityRequest, error)
	CreateRequest(ctx context.Context, r *models.CapacityRequest) error
	UpdateRequest(ctx context.Context, r *models.CapacityRequest) error

	ListAuditLogs(ctx context.Context, limit int) ([]*models.AuditLog, error)
	CreateAuditLog(ctx context.Context, a *models.AuditLog) error

	GetBackup(ctx context.Context, id int64) (*models.Backup, error)
	// ListBackups returns metadata only; Document is left empty.
	ListBackups(ctx context.Context, limit int) ([]*models.Backup, error)
	CreateBackup(ctx context.Context, b *models.Backup) error
	DeleteBackup(ctx context.Context, id int64) error

	// Savepoint runs fn so that its writes are undone on error while the
	// rest of the transaction stays usable.
	Savepoint(ctx context.Context, fn func() error) error

	// DeleteAll removes every row of t without cascading.
	DeleteAll(ctx context.Context, t Table) error
	// ResetSequence points t's id generator at max(id)+1, or 1 when empty.
	ResetSequence(ctx context.Context, t Table) error
}

// Table names a snapshot-covered table.
type Table string

const (
	TableStations      Table = "stations"
	TableBars          Table = "bars"
	TableCircuits      Table = "circuits"
	TableSubCircuits   Table = "sub_circuits"
	TableObservations  Table = "observations"
	TableNotifications Table = "notifications"
	TableRequests      Table = "requests"
	TableAuditLogs     Table = "audit_logs"
)

type BarFilter struct {
	StationID *int64
	BarType   *models.BarType
}

type CircuitFilter struct {
	BarIDs          []int64
	Statuses        []models.LoadStatus
	ExcludeStatuses []models.LoadStatus
	// ExpiresOnOrBefore keeps circuits with a reserve deadline set and <= the date.
	ExpiresOnOrBefore *models.Date
}

type SubCircuitFilter struct {
	CircuitIDs        []int64
	Statuses          []models.LoadStatus
	ExpiresOnOrBefore *models.Date
}

type NotificationFilter struct {
	Type             *models.NotificationType
	IsRead           *bool
	CircuitID        *int64
	ExtendedUntil    *models.Date
	IncludeDismissed bool
	Limit            int
}

type ObservationFilter struct {
	CircuitID    *int64
	SubCircuitID *int64
	BarID        *int64
	Limit        int
}

type RequestFilter struct {
	StationID *int64
	Status    *models.RequestStatus
	Limit     int
}

// AuditForwarder receives committed audit entries, e.g. for streaming.
type AuditForwarder interface {
	Forward(ctx context.Context, entries []*models.AuditLog) error
}

// CapacityHistory stores the series of recalculated station aggregates.
type CapacityHistory interface {
	Append(ctx context.Context, samples []models.CapacitySample) error
	Query(ctx context.Context, stationID int64, from, to time.Time, limit int) ([]models.CapacitySample, error)
}

// Broadcaster pushes live updates to subscribers of a channel. Delivery is best-effort.
type Broadcaster interface {
	Broadcast(channel string, payload interface{})
}

// Locker guards work that must run on one replica at a time. TryLock
// returns a token identifying this holder; Unlock only releases the lock
// while that token still owns it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// KeyValue holds small shared JSON documents. Get reports a missing key
// with the backend's miss error.
type KeyValue interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

type Metrics interface {
	RecordRecalculation(status models.StationStatus)
	RecordAdmission(canAdd, forced bool)
	RecordSchedulerRun(outcome string, created int, seconds float64)
	RecordRestore(outcome string, seconds float64)
	RecordBackup(sizeBytes int64)
	RecordError(kind string)
}
