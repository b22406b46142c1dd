package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
)

// CapacityCheck is the admission verdict for a proposed load.
type CapacityCheck struct {
	CanAdd          bool            `json:"can_add"`
	StationID       int64           `json:"station_id"`
	StationName     string          `json:"station_name"`
	AvailableBefore decimal.Decimal `json:"available_before"`
	AvailableAfter  decimal.Decimal `json:"available_after"`
	Message         string          `json:"message"`
}

// Err turns a negative verdict into a CapacityError.
func (c *CapacityCheck) Err() error {
	if c.CanAdd {
		return nil
	}
	return &errs.CapacityError{
		StationID:       c.StationID,
		AvailableBefore: c.AvailableBefore,
		AvailableAfter:  c.AvailableAfter,
		Message:         c.Message,
	}
}

// AdmissionController decides whether new load fits a station's headroom.
type AdmissionController struct {
	metrics drepo.Metrics
}

// NewAdmissionController creates an AdmissionController.
func NewAdmissionController(metrics drepo.Metrics) *AdmissionController {
	return &AdmissionController{metrics: metrics}
}

func (a *AdmissionController) verdict(st *models.Station, proposedMD decimal.Decimal) *CapacityCheck {
	after := st.AvailablePowerKW.Sub(proposedMD).Round(models.PowerPlaces)
	check := &CapacityCheck{
		CanAdd:          !after.IsNegative(),
		StationID:       st.ID,
		StationName:     st.Name,
		AvailableBefore: st.AvailablePowerKW,
		AvailableAfter:  after,
	}
	if check.CanAdd {
		check.Message = "sufficient capacity"
	} else {
		check.Message = fmt.Sprintf("exceeds available capacity by %s kW", after.Abs().StringFixed(models.PowerPlaces))
	}
	return check
}

// Check compares the owning station's available power with proposedMD. It
// does not write anything.
func (a *AdmissionController) Check(ctx context.Context, tx drepo.Tx, barID int64, proposedMD decimal.Decimal) (*CapacityCheck, error) {
	bar, err := tx.GetBar(ctx, barID)
	if err != nil {
		return nil, err
	}
	st, err := tx.GetStation(ctx, bar.StationID)
	if err != nil {
		return nil, err
	}
	return a.verdict(st, proposedMD), nil
}

// Admit locks the owning station row for the rest of the transaction and,
// unless force is set, fails with a CapacityError when proposedMD does not
// fit. Concurrent admissions on one station are therefore serialized.
func (a *AdmissionController) Admit(ctx context.Context, tx drepo.Tx, barID int64, proposedMD decimal.Decimal, force bool) (*CapacityCheck, error) {
	bar, err := tx.GetBar(ctx, barID)
	if err != nil {
		return nil, err
	}
	st, err := tx.GetStationForUpdate(ctx, bar.StationID)
	if err != nil {
		return nil, err
	}
	check := a.verdict(st, proposedMD)
	a.metrics.RecordAdmission(check.CanAdd, force)
	if force {
		return check, nil
	}
	return check, check.Err()
}
