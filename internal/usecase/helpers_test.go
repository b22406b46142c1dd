package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/internal/repository/memory"
	"PowerLedger/pkg/logger"
	"PowerLedger/pkg/metrics"
)

var operator = models.Actor{ID: 7, Name: "maria", Role: "operator"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func date(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordingHub struct {
	mu       sync.Mutex
	messages map[string][]interface{}
}

func (h *recordingHub) Broadcast(channel string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.messages == nil {
		h.messages = map[string][]interface{}{}
	}
	h.messages[channel] = append(h.messages[channel], payload)
}

func (h *recordingHub) count(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages[channel])
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *memory.Store
	clock     *fakeClock
	hub       *recordingHub
	runner    *Runner
	stations  *StationService
	circuits  *CircuitService
	subs      *SubCircuitService
	requests  *RequestService
	notes     *NotificationService
	snapshots *SnapshotCoordinator
	scanner   *ExpiryScanner

	station *models.Station
	bars    map[models.BarType]*models.Bar
}

// newFixture seeds one station with a 100 kW transformer and its three bars.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)}
	hub := &recordingHub{}
	log := logger.NewNop()
	m := metrics.Nop{}
	engine := NewRecalculationEngine()
	runner := NewRunner(store, engine, m, log, WithClock(clock.Now), WithBroadcaster(hub))
	admission := NewAdmissionController(m)

	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		store:     store,
		clock:     clock,
		hub:       hub,
		runner:    runner,
		stations:  NewStationService(runner, engine, nil, log),
		circuits:  NewCircuitService(runner, admission, log),
		subs:      NewSubCircuitService(runner, admission, log),
		requests:  NewRequestService(runner, admission, log),
		notes:     NewNotificationService(runner),
		snapshots: NewSnapshotCoordinator(runner, m, log),
		scanner:   NewExpiryScanner(runner, m, log),
		bars:      map[models.BarType]*models.Bar{},
	}

	n, err := f.stations.Seed(f.ctx, SeedPlan{
		Stations:      []SeedStation{{Code: "E01", Name: "Villa El Salvador", OrderIndex: 1}},
		CapacityKW:    dec("100"),
		BarCapacityKW: dec("60"),
		BarCapacityA:  dec("90"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	list, err := f.stations.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	f.station = list[0]

	bars, err := f.stations.ListBars(f.ctx, f.station.ID)
	require.NoError(t, err)
	for _, b := range bars {
		f.bars[b.BarType] = b
	}
	require.Len(t, f.bars, 3)
	return f
}

func (f *fixture) normalBar() int64 { return f.bars[models.BarNormal].ID }

func (f *fixture) addCircuit(name string, md string, status models.LoadStatus, expires *models.Date) *models.Circuit {
	f.t.Helper()
	c, err := f.circuits.Create(f.ctx, operator, f.normalBar(), CircuitInput{
		Denomination:     name,
		Name:             name,
		PiKW:             dec(md),
		Fd:               dec("1"),
		Status:           status,
		ReserveExpiresAt: expires,
		Force:            true,
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) reloadStation() *models.Station {
	f.t.Helper()
	st, err := f.stations.Get(f.ctx, f.station.ID)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) notifications() []*models.Notification {
	f.t.Helper()
	var out []*models.Notification
	err := f.runner.Read(f.ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = tx.ListNotifications(ctx, drepo.NotificationFilter{IncludeDismissed: true})
		return err
	})
	require.NoError(f.t, err)
	return out
}

func (f *fixture) auditActions() []string {
	f.t.Helper()
	var actions []string
	err := f.runner.Read(f.ctx, func(ctx context.Context, tx drepo.Tx) error {
		logs, err := tx.ListAuditLogs(ctx, 0)
		for _, l := range logs {
			actions = append(actions, l.Action)
		}
		return err
	})
	require.NoError(f.t, err)
	return actions
}
