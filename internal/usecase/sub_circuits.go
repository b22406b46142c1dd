package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
)

const entitySubCircuit = "sub_circuit"

// SubCircuitInput describes a new sub-circuit. A nil MdKW is derived from pi*fd.
type SubCircuitInput struct {
	Name             string
	Description      *string
	ITM              *string
	MM2              *string
	PiKW             decimal.Decimal
	Fd               decimal.Decimal
	MdKW             *decimal.Decimal
	Status           models.LoadStatus
	ReserveExpiresAt *models.Date
	Force            bool
}

// SubCircuitPatch carries the fields to change; nil means unchanged.
type SubCircuitPatch struct {
	Name               *string
	Description        *string
	ITM                *string
	MM2                *string
	PiKW               *decimal.Decimal
	Fd                 *decimal.Decimal
	MdKW               *decimal.Decimal
	ReserveExpiresAt   *models.Date
	ClearReserveExpiry bool
	Force              bool
}

// SubCircuitService is the mutation surface for sub-circuits.
type SubCircuitService struct {
	runner    *Runner
	admission *AdmissionController
	log       *logger.Logger
}

// NewSubCircuitService creates a SubCircuitService.
func NewSubCircuitService(runner *Runner, admission *AdmissionController, log *logger.Logger) *SubCircuitService {
	return &SubCircuitService{runner: runner, admission: admission, log: log}
}

// parentOf resolves the circuit and owning station of a sub-circuit.
func parentOf(ctx context.Context, tx drepo.Tx, circuitID int64) (*models.Circuit, int64, error) {
	c, err := tx.GetCircuit(ctx, circuitID)
	if err != nil {
		return nil, 0, err
	}
	bar, err := tx.GetBar(ctx, c.BarID)
	if err != nil {
		return nil, 0, err
	}
	return c, bar.StationID, nil
}

func (s *SubCircuitService) Get(ctx context.Context, id int64) (*models.SubCircuit, error) {
	var sc *models.SubCircuit
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		sc, err = tx.GetSubCircuit(ctx, id)
		return err
	})
	return sc, err
}

// ListByCircuit returns the sub-circuits of circuitID.
func (s *SubCircuitService) ListByCircuit(ctx context.Context, circuitID int64) ([]*models.SubCircuit, error) {
	var out []*models.SubCircuit
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		if _, err := tx.GetCircuit(ctx, circuitID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListSubCircuits(ctx, drepo.SubCircuitFilter{CircuitIDs: []int64{circuitID}})
		return err
	})
	return out, err
}

// Create admits and inserts a sub-circuit under circuitID.
func (s *SubCircuitService) Create(ctx context.Context, actor models.Actor, circuitID int64, in SubCircuitInput) (*models.SubCircuit, error) {
	if in.Status == "" {
		in.Status = models.StatusOperativeNormal
	}
	if err := validStatus(in.Status); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, errs.Invalid("name", "is required")
	}
	load, err := resolveLoad(in.PiKW, in.Fd, in.MdKW)
	if err != nil {
		return nil, err
	}

	var created *models.SubCircuit
	err = s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		c, stationID, err := parentOf(ctx, tx, circuitID)
		if err != nil {
			return err
		}
		if _, err := s.admission.Admit(ctx, tx, c.BarID, subCircuitLoad(c.Status, in.Status, load.MdKW), in.Force); err != nil {
			return err
		}
		sc := &models.SubCircuit{
			CircuitID:        circuitID,
			Name:             in.Name,
			Description:      in.Description,
			ITM:              in.ITM,
			MM2:              in.MM2,
			PiKW:             load.PiKW,
			Fd:               load.Fd,
			MdKW:             load.MdKW,
			Status:           in.Status,
			ReserveExpiresAt: in.ReserveExpiresAt,
			CreatedAt:        w.Now,
			UpdatedAt:        w.Now,
		}
		if err := tx.CreateSubCircuit(ctx, sc); err != nil {
			return err
		}
		if _, err := w.Recalculate(ctx, tx, stationID); err != nil {
			return err
		}
		w.Audit("CREATE_SUB_CIRCUIT", entitySubCircuit, sc.ID, map[string]interface{}{
			"name":       sc.Name,
			"circuit_id": circuitID,
			"md_kw":      sc.MdKW,
			"forced":     in.Force,
		})
		created = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sub-circuit created",
		logger.Int64("sub_circuit_id", created.ID),
		logger.Int64("circuit_id", circuitID),
		logger.Decimal("md_kw", created.MdKW))
	return created, nil
}

// Update applies p with the same md rules as circuits.
func (s *SubCircuitService) Update(ctx context.Context, actor models.Actor, id int64, p SubCircuitPatch) (*models.SubCircuit, error) {
	var updated *models.SubCircuit
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		sc, err := tx.GetSubCircuit(ctx, id)
		if err != nil {
			return err
		}
		c, stationID, err := parentOf(ctx, tx, sc.CircuitID)
		if err != nil {
			return err
		}
		before := subCircuitLoad(c.Status, sc.Status, sc.MdKW)

		var fields []string
		if p.PiKW != nil || p.Fd != nil || p.MdKW != nil {
			pi, fd := sc.PiKW, sc.Fd
			if p.PiKW != nil {
				pi = *p.PiKW
				fields = append(fields, "pi_kw")
			}
			if p.Fd != nil {
				fd = *p.Fd
				fields = append(fields, "fd")
			}
			load, err := resolveLoad(pi, fd, p.MdKW)
			if err != nil {
				return err
			}
			sc.PiKW, sc.Fd, sc.MdKW = load.PiKW, load.Fd, load.MdKW
			fields = append(fields, "md_kw")
		}
		if p.Name != nil {
			if *p.Name == "" {
				return errs.Invalid("name", "must not be empty")
			}
			sc.Name = *p.Name
			fields = append(fields, "name")
		}
		if p.Description != nil {
			sc.Description = p.Description
			fields = append(fields, "description")
		}
		if p.ITM != nil {
			sc.ITM = p.ITM
			fields = append(fields, "itm")
		}
		if p.MM2 != nil {
			sc.MM2 = p.MM2
			fields = append(fields, "mm2")
		}
		if p.ClearReserveExpiry {
			sc.ReserveExpiresAt = nil
			fields = append(fields, "reserve_expires_at")
		} else if p.ReserveExpiresAt != nil {
			sc.ReserveExpiresAt = p.ReserveExpiresAt
			fields = append(fields, "reserve_expires_at")
		}

		if delta := subCircuitLoad(c.Status, sc.Status, sc.MdKW).Sub(before); delta.IsPositive() {
			if _, err := s.admission.Admit(ctx, tx, c.BarID, delta, p.Force); err != nil {
				return err
			}
		}
		sc.UpdatedAt = w.Now
		if err := tx.UpdateSubCircuit(ctx, sc); err != nil {
			return err
		}
		if _, err := w.Recalculate(ctx, tx, stationID); err != nil {
			return err
		}
		w.Audit("UPDATE_SUB_CIRCUIT", entitySubCircuit, sc.ID, map[string]interface{}{"updated_fields": fields})
		updated = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeStatus moves the sub-circuit to status, keeping reserve_since in step.
func (s *SubCircuitService) ChangeStatus(ctx context.Context, actor models.Actor, id int64, status models.LoadStatus, force bool) (*models.SubCircuit, error) {
	if err := validStatus(status); err != nil {
		return nil, err
	}
	var updated *models.SubCircuit
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		sc, err := tx.GetSubCircuit(ctx, id)
		if err != nil {
			return err
		}
		c, stationID, err := parentOf(ctx, tx, sc.CircuitID)
		if err != nil {
			return err
		}
		old := sc.Status
		delta := subCircuitLoad(c.Status, status, sc.MdKW).Sub(subCircuitLoad(c.Status, old, sc.MdKW))
		if delta.IsPositive() {
			if _, err := s.admission.Admit(ctx, tx, c.BarID, delta, force); err != nil {
				return err
			}
		}

		sc.ReserveSince = models.ApplyStatusTransition(old, sc.ReserveSince, status, w.Today)
		sc.Status = status
		sc.UpdatedAt = w.Now
		if err := tx.UpdateSubCircuit(ctx, sc); err != nil {
			return err
		}
		if _, err := w.Recalculate(ctx, tx, stationID); err != nil {
			return err
		}
		w.Audit("CHANGE_SUB_CIRCUIT_STATUS", entitySubCircuit, sc.ID, map[string]interface{}{
			"old_status": old,
			"new_status": status,
		})
		updated = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the sub-circuit and recalculates the station.
func (s *SubCircuitService) Delete(ctx context.Context, actor models.Actor, id int64) error {
	return s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		sc, err := tx.GetSubCircuit(ctx, id)
		if err != nil {
			return err
		}
		_, stationID, err := parentOf(ctx, tx, sc.CircuitID)
		if err != nil {
			return err
		}
		if _, err := tx.GetStationForUpdate(ctx, stationID); err != nil {
			return err
		}
		if err := tx.DeleteSubCircuit(ctx, id); err != nil {
			return err
		}
		if _, err := w.Recalculate(ctx, tx, stationID); err != nil {
			return err
		}
		w.Audit("DELETE_SUB_CIRCUIT", entitySubCircuit, id, map[string]interface{}{
			"name":       sc.Name,
			"circuit_id": sc.CircuitID,
		})
		return nil
	})
}
