package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
)

func (f *fixture) storeBackup(doc []byte) *models.Backup {
	f.t.Helper()
	b := &models.Backup{
		CreatedBy: operator.ID,
		FileName:  "backup_manual.json",
		Document:  doc,
		SizeBytes: int64(len(doc)),
		CreatedAt: f.clock.Now(),
	}
	err := f.runner.Run(f.ctx, operator, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		return tx.CreateBackup(ctx, b)
	})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) circuitIDs() []int64 {
	f.t.Helper()
	list, err := f.circuits.ListByBar(f.ctx, f.normalBar())
	require.NoError(f.t, err)
	ids := make([]int64, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "10", models.StatusOperativeNormal, nil)
	f.addCircuit("C-2", "20", models.StatusOperativeNormal, nil)
	c3 := f.addCircuit("C-3", "30", models.StatusReserve, dp("2025-04-01"))

	desc := "before maintenance"
	b, err := f.snapshots.Create(f.ctx, operator, false, &desc)
	require.NoError(t, err)
	assert.Equal(t, "backup_20250310_093000.json", b.FileName)
	assert.Equal(t, int64(len(b.Document)), b.SizeBytes)

	require.NoError(t, f.circuits.Delete(f.ctx, operator, c3.ID))
	extra := f.addCircuit("C-4", "5", models.StatusOperativeNormal, nil)
	assert.Equal(t, int64(4), extra.ID)

	res, err := f.snapshots.Restore(f.ctx, operator, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, res.BackupID)
	assert.False(t, res.IncludesAudit)
	assert.Equal(t, 3, res.Restored["circuits"])
	assert.Equal(t, 3, res.Restored["bars"])
	assert.Equal(t, 1, res.Restored["stations"])

	assert.ElementsMatch(t, []int64{1, 2, 3}, f.circuitIDs())
	st := f.reloadStation()
	assert.Equal(t, "60.00", st.MaxDemandKW.StringFixed(2))
	assert.Equal(t, "40.00", st.AvailablePowerKW.StringFixed(2))

	next := f.addCircuit("C-5", "1", models.StatusOperativeNormal, nil)
	assert.Equal(t, int64(4), next.ID, "sequence continues after the restored maximum")

	actions := f.auditActions()
	assert.Contains(t, actions, "CREATE_BACKUP")
	assert.Contains(t, actions, "RESTORE_BACKUP")
}

func TestSnapshotRejectsUnknownVersion(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "10", models.StatusOperativeNormal, nil)
	b, err := f.snapshots.Create(f.ctx, operator, false, nil)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(b.Document, &doc))
	doc["version"] = 2
	doc["circuits"] = []interface{}{}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	bad := f.storeBackup(raw)

	_, err = f.snapshots.Restore(f.ctx, operator, bad.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Contains(t, err.Error(), "unsupported snapshot version 2")
	assert.Len(t, f.circuitIDs(), 1)
}

func TestSnapshotRestoreFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "10", models.StatusOperativeNormal, nil)
	f.addCircuit("C-2", "20", models.StatusOperativeNormal, nil)
	before := f.reloadStation()

	doc := &snapshotDocument{
		CreatedAt: f.clock.Now(),
		Stations:  []*models.Station{f.station},
		Bars:      []*models.Bar{f.bars[models.BarNormal]},
		Circuits: []*models.Circuit{{
			ID:           9,
			BarID:        999,
			Denomination: "ORPHAN",
			PiKW:         dec("1"),
			Fd:           dec("1"),
			MdKW:         dec("1"),
			Status:       models.StatusOperativeNormal,
		}},
	}
	raw, err := encodeSnapshot(doc)
	require.NoError(t, err)
	b := f.storeBackup(raw)

	_, err = f.snapshots.Restore(f.ctx, operator, b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConsistency))

	var ce *errs.ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "insert circuits", ce.Step)

	assert.ElementsMatch(t, []int64{1, 2}, f.circuitIDs())
	after := f.reloadStation()
	assert.True(t, before.AvailablePowerKW.Equal(after.AvailablePowerKW))
	bars, err := f.stations.ListBars(f.ctx, f.station.ID)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.NotContains(t, f.auditActions(), "RESTORE_BACKUP")
}

func TestSnapshotRestoreMissingBackup(t *testing.T) {
	f := newFixture(t)
	_, err := f.snapshots.Restore(f.ctx, operator, 42)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestSnapshotListAndDelete(t *testing.T) {
	f := newFixture(t)
	first, err := f.snapshots.Create(f.ctx, operator, true, nil)
	require.NoError(t, err)
	assert.True(t, first.IncludesAudit)
	second, err := f.snapshots.Create(f.ctx, operator, false, nil)
	require.NoError(t, err)

	list, err := f.snapshots.List(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, f.snapshots.Delete(f.ctx, operator, first.ID))
	_, err = f.snapshots.Get(f.ctx, first.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	got, err := f.snapshots.Get(f.ctx, second.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Document)
	assert.Contains(t, f.auditActions(), "DELETE_BACKUP")

	err = f.snapshots.Delete(f.ctx, operator, first.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestSnapshotWritesDecimalsAsNumbers(t *testing.T) {
	f := newFixture(t)
	_, err := f.circuits.Create(f.ctx, operator, f.normalBar(), CircuitInput{
		Denomination: "C-1", PiKW: dec("40"), Fd: dec("0.8"), Status: models.StatusOperativeNormal,
	})
	require.NoError(t, err)

	b, err := f.snapshots.Create(f.ctx, operator, false, nil)
	require.NoError(t, err)

	var doc struct {
		Stations []map[string]json.RawMessage `json:"stations"`
		Circuits []map[string]json.RawMessage `json:"circuits"`
	}
	require.NoError(t, json.Unmarshal(b.Document, &doc))
	require.Len(t, doc.Circuits, 1)
	assert.Equal(t, "40.00", string(doc.Circuits[0]["pi_kw"]))
	assert.Equal(t, "0.8000", string(doc.Circuits[0]["fd"]))
	assert.Equal(t, "32.00", string(doc.Circuits[0]["md_kw"]))
	assert.Equal(t, `"C-1"`, string(doc.Circuits[0]["denomination"]))
	require.Len(t, doc.Stations, 1)
	assert.Equal(t, "68.00", string(doc.Stations[0]["available_power_kw"]))

	// quoted decimals from older documents still decode
	legacy, err := decodeSnapshot([]byte(`{"version":1,"circuits":[{"id":1,"pi_kw":"40","fd":"0.8","md_kw":"32"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "0.8000", legacy.Circuits[0].Fd.StringFixed(4))
}

func TestSnapshotRestoreReproducesLeafRows(t *testing.T) {
	f := newFixture(t)
	c := f.addCircuit("C-1", "10", models.StatusOperativeNormal, nil)
	f.addCircuit("C-2", "20", models.StatusReserve, dp("2025-04-01"))
	_, err := f.subs.Create(f.ctx, operator, c.ID, SubCircuitInput{
		Name: "lighting", PiKW: dec("3"), Fd: dec("0.75"), Status: models.StatusOperativeNormal,
	})
	require.NoError(t, err)
	_, err = NewObservationService(f.runner).Create(f.ctx, operator, ObservationInput{
		CircuitID: &c.ID, Severity: models.SeverityWarning, Content: "hot terminal",
	})
	require.NoError(t, err)

	first, err := f.snapshots.Create(f.ctx, operator, false, nil)
	require.NoError(t, err)
	_, err = f.snapshots.Restore(f.ctx, operator, first.ID)
	require.NoError(t, err)
	second, err := f.snapshots.Create(f.ctx, operator, false, nil)
	require.NoError(t, err)

	var a, b map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(first.Document, &a))
	require.NoError(t, json.Unmarshal(second.Document, &b))
	for _, table := range []string{"bars", "circuits", "sub_circuits", "observations", "requests"} {
		assert.JSONEq(t, string(a[table]), string(b[table]), table)
	}
}
