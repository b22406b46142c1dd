package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
)

func TestUpdateCapacityRecalculates(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "85", models.StatusOperativeNormal, nil)
	assert.Equal(t, models.StationYellow, f.reloadStation().Status)

	st, err := f.stations.UpdateCapacity(f.ctx, operator, f.station.ID, dec("200"))
	require.NoError(t, err)
	assert.Equal(t, "115.00", st.AvailablePowerKW.StringFixed(2))
	assert.Equal(t, models.StationGreen, st.Status)

	// lowering below demand is allowed and turns the station red
	st, err = f.stations.UpdateCapacity(f.ctx, operator, f.station.ID, dec("50"))
	require.NoError(t, err)
	assert.Equal(t, "-35.00", st.AvailablePowerKW.StringFixed(2))
	assert.Equal(t, models.StationRed, st.Status)

	_, err = f.stations.UpdateCapacity(f.ctx, operator, f.station.ID, dec("-1"))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.stations.UpdateCapacity(f.ctx, operator, 999, dec("10"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestHistoryRequiresSink(t *testing.T) {
	f := newFixture(t)
	_, err := f.stations.History(f.ctx, f.station.ID, f.clock.Now(), f.clock.Now(), 10)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	n, err := f.stations.Seed(f.ctx, SeedPlan{
		Stations:   []SeedStation{{Code: "E02", Name: "Chorrillos"}},
		CapacityKW: dec("100"),
	})
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := f.stations.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
