package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	"PowerLedger/internal/domain/repository"
)

func seed(t *testing.T, s *Store) (stationID, barID int64) {
	t.Helper()
	err := s.WithinTx(context.Background(), nil, func(ctx context.Context, tx repository.Tx) error {
		st := &models.Station{Code: "E01", Name: "Villa El Salvador", TransformerCapacityKW: decimal.NewFromInt(100)}
		if err := tx.CreateStation(ctx, st); err != nil {
			return err
		}
		bar := &models.Bar{StationID: st.ID, BarType: models.BarNormal}
		if err := tx.CreateBar(ctx, bar); err != nil {
			return err
		}
		stationID, barID = st.ID, bar.ID
		return nil
	})
	require.NoError(t, err)
	return stationID, barID
}

func TestRollbackOnError(t *testing.T) {
	s := NewStore()
	_, barID := seed(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, nil, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateCircuit(ctx, &models.Circuit{BarID: barID, Denomination: "C-1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s.FailNextCommit(errors.New("disk full"))
	err = s.WithinTx(ctx, nil, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateCircuit(ctx, &models.Circuit{BarID: barID, Denomination: "C-2"})
	})
	assert.Error(t, err)

	err = s.WithinTx(ctx, nil, func(ctx context.Context, tx repository.Tx) error {
		list, err := tx.ListCircuits(ctx, repository.CircuitFilter{})
		assert.Empty(t, list)
		return err
	})
	require.NoError(t, err)
}

func TestSavepointRestoresState(t *testing.T) {
	s := NewStore()
	_, barID := seed(t, s)

	err := s.WithinTx(context.Background(), nil, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.CreateCircuit(ctx, &models.Circuit{BarID: barID, Denomination: "kept"}))
		spErr := tx.Savepoint(ctx, func() error {
			if err := tx.CreateCircuit(ctx, &models.Circuit{BarID: barID, Denomination: "dropped"}); err != nil {
				return err
			}
			return errors.New("item failed")
		})
		assert.Error(t, spErr)

		list, err := tx.ListCircuits(ctx, repository.CircuitFilter{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "kept", list[0].Denomination)
		return nil
	})
	require.NoError(t, err)
}

func TestSavepointCopiesOnlyWrittenTables(t *testing.T) {
	s := NewStore()
	stationID, barID := seed(t, s)

	err := s.WithinTx(context.Background(), nil, func(ctx context.Context, tx repository.Tx) error {
		mtx := tx.(*Tx)
		require.NoError(t, tx.CreateBackup(ctx, &models.Backup{FileName: "b.json", Document: []byte(`{}`)}))

		var touched []repository.Table
		spErr := tx.Savepoint(ctx, func() error {
			n := &models.Notification{StationID: &stationID, Type: models.NotificationReserveExpired}
			if err := tx.CreateNotification(ctx, n); err != nil {
				return err
			}
			// a nested savepoint that succeeds hands its tables to the outer one
			require.NoError(t, tx.Savepoint(ctx, func() error {
				return tx.CreateCircuit(ctx, &models.Circuit{BarID: barID, Denomination: "inner"})
			}))
			for table := range mtx.sp.saved {
				touched = append(touched, table)
			}
			return errors.New("item failed")
		})
		assert.Error(t, spErr)
		assert.ElementsMatch(t, []repository.Table{repository.TableNotifications, repository.TableCircuits}, touched)
		assert.Nil(t, mtx.sp)

		notes, err := tx.ListNotifications(ctx, repository.NotificationFilter{IncludeDismissed: true})
		require.NoError(t, err)
		assert.Empty(t, notes)
		circuits, err := tx.ListCircuits(ctx, repository.CircuitFilter{})
		require.NoError(t, err)
		assert.Empty(t, circuits)
		backups, err := tx.ListBackups(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, backups, 1)

		n := &models.Notification{StationID: &stationID, Type: models.NotificationReserveExpired}
		require.NoError(t, tx.CreateNotification(ctx, n))
		assert.Equal(t, int64(1), n.ID, "sequence is rolled back with the savepoint")
		return nil
	})
	require.NoError(t, err)
}

func TestExplicitIDsAndResetSequence(t *testing.T) {
	s := NewStore()
	_, barID := seed(t, s)

	err := s.WithinTx(context.Background(), nil, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.CreateCircuit(ctx, &models.Circuit{ID: 40, BarID: barID, Denomination: "restored"}))
		assert.Error(t, tx.CreateCircuit(ctx, &models.Circuit{ID: 40, BarID: barID, Denomination: "dup"}))

		next := &models.Circuit{BarID: barID, Denomination: "next"}
		require.NoError(t, tx.CreateCircuit(ctx, next))
		assert.Equal(t, int64(1), next.ID)

		require.NoError(t, tx.ResetSequence(ctx, repository.TableCircuits))
		after := &models.Circuit{BarID: barID, Denomination: "after"}
		require.NoError(t, tx.CreateCircuit(ctx, after))
		assert.Equal(t, int64(41), after.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestReferentialChecks(t *testing.T) {
	s := NewStore()
	_, barID := seed(t, s)

	err := s.WithinTx(context.Background(), nil, func(ctx context.Context, tx repository.Tx) error {
		assert.Error(t, tx.CreateCircuit(ctx, &models.Circuit{BarID: 999, Denomination: "orphan"}))
		assert.Error(t, tx.DeleteAll(ctx, repository.TableStations), "bars still reference stations")

		require.NoError(t, tx.DeleteAll(ctx, repository.TableBars))
		require.NoError(t, tx.DeleteAll(ctx, repository.TableStations))
		_, err := tx.GetBar(ctx, barID)
		assert.True(t, errors.Is(err, errs.ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestNotificationFilters(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	until := models.NewDate(base)

	err := s.WithinTx(context.Background(), nil, func(ctx context.Context, tx repository.Tx) error {
		for i, n := range []*models.Notification{
			{Type: models.NotificationReserveExpired, Message: "old", CreatedAt: base},
			{Type: models.NotificationReserveExpired, Message: "new", CreatedAt: base.Add(time.Hour), ExtendedUntil: &until},
			{Type: models.NotificationSystem, Message: "gone", CreatedAt: base.Add(2 * time.Hour), IsDismissed: true},
		} {
			require.NoError(t, tx.CreateNotification(ctx, n), i)
		}

		visible, err := tx.ListNotifications(ctx, repository.NotificationFilter{})
		require.NoError(t, err)
		require.Len(t, visible, 2)
		assert.Equal(t, "new", visible[0].Message)

		all, err := tx.ListNotifications(ctx, repository.NotificationFilter{IncludeDismissed: true})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		lapsing, err := tx.ListNotifications(ctx, repository.NotificationFilter{ExtendedUntil: &until})
		require.NoError(t, err)
		require.Len(t, lapsing, 1)
		assert.Equal(t, "new", lapsing[0].Message)

		one, err := tx.ListNotifications(ctx, repository.NotificationFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, one, 1)
		return nil
	})
	require.NoError(t, err)
}
