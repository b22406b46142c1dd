package usecase

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
	"PowerLedger/pkg/metrics"
)

func dp(s string) *models.Date {
	d := date(s)
	return &d
}

func TestScanAlertsOncePerCircuit(t *testing.T) {
	f := newFixture(t)
	c := f.addCircuit("R-1", "10", models.StatusReserve, dp("2025-03-10"))
	f.addCircuit("N-1", "10", models.StatusOperativeNormal, dp("2025-03-01"))
	f.addCircuit("R-2", "10", models.StatusReserve, dp("2025-03-11"))

	report, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", report.RunDate.String())
	assert.Equal(t, 1, report.CircuitAlerts)
	assert.Equal(t, 1, report.Created())

	report, err = f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created())
	assert.Equal(t, 1, report.Skipped)

	notes := f.notifications()
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, models.NotificationReserveExpired, n.Type)
	require.NotNil(t, n.CircuitID)
	assert.Equal(t, c.ID, *n.CircuitID)
	require.NotNil(t, n.StationID)
	assert.Equal(t, f.station.ID, *n.StationID)
	assert.Contains(t, n.Message, "R-1")
	assert.Contains(t, n.Message, "expires today")
	assert.Positive(t, f.hub.count(ChannelNotifications))
}

func TestScanOverdueMessage(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("R-1", "10", models.StatusReserveEquipped, dp("2025-03-07"))

	_, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)

	notes := f.notifications()
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "expired 3 day(s) ago")
	assert.Contains(t, notes[0].Message, "2025-03-07")
}

func TestScanAttributesSubCircuitToParent(t *testing.T) {
	f := newFixture(t)
	parent := f.addCircuit("P-1", "10", models.StatusOperativeNormal, nil)
	_, err := f.subs.Create(f.ctx, operator, parent.ID, SubCircuitInput{
		Name:             "Lab pumps",
		PiKW:             dec("4"),
		Fd:               dec("1"),
		Status:           models.StatusReserve,
		ReserveExpiresAt: dp("2025-03-09"),
	})
	require.NoError(t, err)

	report, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.CircuitAlerts)
	assert.Equal(t, 1, report.SubCircuitAlerts)

	notes := f.notifications()
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].CircuitID)
	assert.Equal(t, parent.ID, *notes[0].CircuitID)
	assert.Contains(t, notes[0].Message, "sub-circuit Lab pumps")
}

func TestScanRealertsAfterDismiss(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("R-1", "10", models.StatusReserve, dp("2025-03-10"))

	_, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	notes := f.notifications()
	require.Len(t, notes, 1)

	_, err = f.notes.Dismiss(f.ctx, operator, notes[0].ID)
	require.NoError(t, err)

	report, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CircuitAlerts)
	assert.Len(t, f.notifications(), 2)
}

func TestScanRenewsLapsedExtension(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("R-1", "10", models.StatusReserve, dp("2025-03-09"))

	_, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	first := f.notifications()[0]

	_, err = f.notes.Extend(f.ctx, operator, first.ID, date("2025-03-12"))
	require.NoError(t, err)

	f.clock.Set(time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC))
	report, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created())
	assert.Equal(t, 1, report.Skipped)

	f.clock.Set(time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC))
	report, err = f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Renewed)
	assert.Equal(t, 0, report.CircuitAlerts)

	notes := f.notifications()
	require.Len(t, notes, 2)
	byID := map[int64]*models.Notification{}
	for _, n := range notes {
		byID[n.ID] = n
	}
	assert.True(t, byID[first.ID].IsDismissed)
	for id, n := range byID {
		if id == first.ID {
			continue
		}
		assert.False(t, n.IsDismissed)
		assert.Nil(t, n.ExtendedUntil)
		assert.Contains(t, n.Message, "lapsed today (2025-03-12)")
	}

	report, err = f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created())
}

func TestScanSkipsReleasedCircuitOnRenewal(t *testing.T) {
	f := newFixture(t)
	c := f.addCircuit("R-1", "10", models.StatusReserve, dp("2025-03-10"))

	_, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	_, err = f.notes.Extend(f.ctx, operator, f.notifications()[0].ID, date("2025-03-10"))
	require.NoError(t, err)
	_, err = f.circuits.ChangeStatus(f.ctx, operator, c.ID, models.StatusOperativeNormal, true)
	require.NoError(t, err)

	report, err := f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Renewed)
	assert.Len(t, f.notifications(), 1)
}

func TestScanCommitFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("R-1", "10", models.StatusReserve, dp("2025-03-09"))
	f.addCircuit("R-2", "10", models.StatusReserveEquipped, dp("2025-03-10"))
	before := f.hub.count(ChannelNotifications)

	f.store.FailNextCommit(errors.New("disk full"))
	report, err := f.scanner.Scan(f.ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, report)
	assert.Empty(t, f.notifications())
	assert.Equal(t, before, f.hub.count(ChannelNotifications))

	report, err = f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CircuitAlerts)
	assert.Len(t, f.notifications(), 2)
}

// rejectingStore fails notification inserts that reference one circuit.
type rejectingStore struct {
	drepo.Store
	circuitID int64
}

func (s *rejectingStore) WithinTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx drepo.Tx) error) error {
	return s.Store.WithinTx(ctx, opts, func(ctx context.Context, tx drepo.Tx) error {
		return fn(ctx, &rejectingTx{Tx: tx, circuitID: s.circuitID})
	})
}

type rejectingTx struct {
	drepo.Tx
	circuitID int64
}

func (t *rejectingTx) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.CircuitID != nil && *n.CircuitID == t.circuitID {
		return errors.New("insert rejected")
	}
	return t.Tx.CreateNotification(ctx, n)
}

func TestScanFailingItemDoesNotStopPass(t *testing.T) {
	f := newFixture(t)
	bad := f.addCircuit("R-1", "10", models.StatusReserve, dp("2025-03-09"))
	good := f.addCircuit("R-2", "10", models.StatusReserve, dp("2025-03-10"))

	store := &rejectingStore{Store: f.store, circuitID: bad.ID}
	runner := NewRunner(store, NewRecalculationEngine(), metrics.Nop{}, logger.NewNop(), WithClock(f.clock.Now))
	scanner := NewExpiryScanner(runner, metrics.Nop{}, logger.NewNop())

	report, err := scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.CircuitAlerts)

	notes := f.notifications()
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].CircuitID)
	assert.Equal(t, good.ID, *notes[0].CircuitID)

	// the failed item is picked up by the next healthy run
	report, err = f.scanner.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CircuitAlerts)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
}
