package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
)

func TestCheckCapacityDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "90", models.StatusOperativeNormal, nil)

	check, err := f.circuits.CheckCapacity(f.ctx, f.normalBar(), dec("15"))
	require.NoError(t, err)
	assert.False(t, check.CanAdd)
	assert.Equal(t, "10.00", check.AvailableBefore.StringFixed(2))
	assert.Equal(t, "-5.00", check.AvailableAfter.StringFixed(2))
	assert.Equal(t, "Villa El Salvador", check.StationName)
	assert.Contains(t, check.Message, "5.00 kW")

	ok, err := f.circuits.CheckCapacity(f.ctx, f.normalBar(), dec("10"))
	require.NoError(t, err)
	assert.True(t, ok.CanAdd)
	assert.True(t, ok.AvailableAfter.IsZero())

	st := f.reloadStation()
	assert.Equal(t, "90.00", st.MaxDemandKW.StringFixed(2))
}

func TestCreateRejectedWithoutForce(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "90", models.StatusOperativeNormal, nil)
	before := len(f.auditActions())

	_, err := f.circuits.Create(f.ctx, operator, f.normalBar(), CircuitInput{
		Denomination: "C-2",
		PiKW:         dec("15"),
		Fd:           dec("1"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCapacityExceeded))

	var ce *errs.CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, f.station.ID, ce.StationID)
	assert.Equal(t, "-5.00", ce.AvailableAfter.StringFixed(2))

	circuits, err := f.circuits.ListByBar(f.ctx, f.normalBar())
	require.NoError(t, err)
	assert.Len(t, circuits, 1)
	st := f.reloadStation()
	assert.Equal(t, "10.00", st.AvailablePowerKW.StringFixed(2))
	assert.Len(t, f.auditActions(), before)
}

func TestCreateForcedOverdraw(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "90", models.StatusOperativeNormal, nil)

	_, err := f.circuits.Create(f.ctx, operator, f.normalBar(), CircuitInput{
		Denomination: "C-2",
		PiKW:         dec("15"),
		Fd:           dec("1"),
		Force:        true,
	})
	require.NoError(t, err)

	st := f.reloadStation()
	assert.Equal(t, "-5.00", st.AvailablePowerKW.StringFixed(2))
	assert.Equal(t, models.StationRed, st.Status)
}

func TestReserveLoadIsAdmitted(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "90", models.StatusOperativeNormal, nil)

	_, err := f.circuits.Create(f.ctx, operator, f.normalBar(), CircuitInput{
		Denomination: "R-1",
		PiKW:         dec("20"),
		Fd:           dec("1"),
		Status:       models.StatusReserve,
	})
	assert.True(t, errors.Is(err, errs.ErrCapacityExceeded))

	_, err = f.circuits.Create(f.ctx, operator, f.normalBar(), CircuitInput{
		Denomination: "X-1",
		PiKW:         dec("20"),
		Fd:           dec("1"),
		Status:       models.StatusInactive,
	})
	require.NoError(t, err, "inactive load adds nothing")
}

func TestChangeStatusReactivationIsAdmitted(t *testing.T) {
	f := newFixture(t)
	f.addCircuit("C-1", "90", models.StatusOperativeNormal, nil)
	idle := f.addCircuit("C-2", "20", models.StatusInactive, nil)

	_, err := f.circuits.ChangeStatus(f.ctx, operator, idle.ID, models.StatusOperativeNormal, false)
	assert.True(t, errors.Is(err, errs.ErrCapacityExceeded))

	c, err := f.circuits.ChangeStatus(f.ctx, operator, idle.ID, models.StatusOperativeNormal, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOperativeNormal, c.Status)
	assert.Equal(t, "-10.00", f.reloadStation().AvailablePowerKW.StringFixed(2))
}

func TestUPSCircuitNeedsSecondaryBar(t *testing.T) {
	f := newFixture(t)
	in := CircuitInput{Denomination: "UPS-1", PiKW: dec("5"), Fd: dec("1"), IsUPS: true}

	_, err := f.circuits.Create(f.ctx, operator, f.normalBar(), in)
	require.Error(t, err)
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "secondary_bar_id", ve.Field)

	same := f.normalBar()
	in.SecondaryBarID = &same
	_, err = f.circuits.Create(f.ctx, operator, f.normalBar(), in)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	emergency := f.bars[models.BarEmergency].ID
	in.SecondaryBarID = &emergency
	c, err := f.circuits.Create(f.ctx, operator, f.normalBar(), in)
	require.NoError(t, err)
	require.NotNil(t, c.SecondaryBarID)
	assert.Equal(t, emergency, *c.SecondaryBarID)
	assert.Equal(t, "5.00", f.reloadStation().MaxDemandKW.StringFixed(2))
}

func TestReserveSinceFollowsStatus(t *testing.T) {
	f := newFixture(t)
	c := f.addCircuit("C-1", "10", models.StatusOperativeNormal, nil)
	assert.Nil(t, c.ReserveSince)

	c, err := f.circuits.ChangeStatus(f.ctx, operator, c.ID, models.StatusReserve, false)
	require.NoError(t, err)
	require.NotNil(t, c.ReserveSince)
	assert.Equal(t, "2025-03-10", c.ReserveSince.String())

	// moving between reserve statuses keeps the original date
	f.clock.Set(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))
	c, err = f.circuits.ChangeStatus(f.ctx, operator, c.ID, models.StatusReserveEquipped, false)
	require.NoError(t, err)
	require.NotNil(t, c.ReserveSince)
	assert.Equal(t, "2025-03-10", c.ReserveSince.String())

	c, err = f.circuits.ChangeStatus(f.ctx, operator, c.ID, models.StatusOperativeNormal, false)
	require.NoError(t, err)
	assert.Nil(t, c.ReserveSince)

	reserved := f.addCircuit("R-1", "5", models.StatusReserve, dp("2025-04-01"))
	assert.Nil(t, reserved.ReserveSince)
	got, err := f.circuits.Get(f.ctx, reserved.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReserveSince)
}
