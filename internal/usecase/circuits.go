package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
)

const entityCircuit = "circuit"

// CircuitInput describes a new circuit. A nil MdKW is derived from pi*fd.
type CircuitInput struct {
	SecondaryBarID    *int64
	Denomination      string
	Name              string
	Description       *string
	LocalItem         *string
	PiKW              decimal.Decimal
	Fd                decimal.Decimal
	MdKW              *decimal.Decimal
	Status            models.LoadStatus
	IsUPS             bool
	ReserveExpiresAt  *models.Date
	ClientLastContact *models.Date
	Force             bool
}

// CircuitPatch carries the fields to change; nil means unchanged.
type CircuitPatch struct {
	Denomination       *string
	Name               *string
	Description        *string
	LocalItem          *string
	PiKW               *decimal.Decimal
	Fd                 *decimal.Decimal
	MdKW               *decimal.Decimal
	ReserveExpiresAt   *models.Date
	ClearReserveExpiry bool
	ClientLastContact  *models.Date
	Force              bool
}

// CircuitService is the mutation surface for circuits.
type CircuitService struct {
	runner    *Runner
	admission *AdmissionController
	log       *logger.Logger
}

// NewCircuitService creates a CircuitService.
func NewCircuitService(runner *Runner, admission *AdmissionController, log *logger.Logger) *CircuitService {
	return &CircuitService{runner: runner, admission: admission, log: log}
}

func (s *CircuitService) Get(ctx context.Context, id int64) (*models.Circuit, error) {
	var c *models.Circuit
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		c, err = tx.GetCircuit(ctx, id)
		return err
	})
	return c, err
}

// ListByBar returns the circuits whose primary bar is barID.
func (s *CircuitService) ListByBar(ctx context.Context, barID int64) ([]*models.Circuit, error) {
	var out []*models.Circuit
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		if _, err := tx.GetBar(ctx, barID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListCircuits(ctx, drepo.CircuitFilter{BarIDs: []int64{barID}})
		return err
	})
	return out, err
}

// CheckCapacity answers whether proposedMD fits on barID's station right now.
func (s *CircuitService) CheckCapacity(ctx context.Context, barID int64, proposedMD decimal.Decimal) (*CapacityCheck, error) {
	var check *CapacityCheck
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		check, err = s.admission.Check(ctx, tx, barID, proposedMD)
		return err
	})
	return check, err
}

func validateUPS(isUPS bool, barID int64, secondary *int64) error {
	if !isUPS {
		return nil
	}
	if secondary == nil {
		return errs.Invalid("secondary_bar_id", "required for a UPS circuit")
	}
	if *secondary == barID {
		return errs.Invalid("secondary_bar_id", "must differ from the primary bar")
	}
	return nil
}

// Create admits and inserts a circuit on barID, then recalculates the station.
// A circuit created directly in a reserve status gets no reserve_since.
func (s *CircuitService) Create(ctx context.Context, actor models.Actor, barID int64, in CircuitInput) (*models.Circuit, error) {
	if in.Status == "" {
		in.Status = models.StatusOperativeNormal
	}
	if err := validStatus(in.Status); err != nil {
		return nil, err
	}
	if in.Denomination == "" {
		return nil, errs.Invalid("denomination", "is required")
	}
	load, err := resolveLoad(in.PiKW, in.Fd, in.MdKW)
	if err != nil {
		return nil, err
	}
	if err := validateUPS(in.IsUPS, barID, in.SecondaryBarID); err != nil {
		return nil, err
	}

	var created *models.Circuit
	err = s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		bar, err := tx.GetBar(ctx, barID)
		if err != nil {
			return err
		}
		var secondary *int64
		if in.IsUPS {
			if _, err := tx.GetBar(ctx, *in.SecondaryBarID); err != nil {
				return err
			}
			secondary = in.SecondaryBarID
		}
		if _, err := s.admission.Admit(ctx, tx, barID, circuitLoad(in.Status, load.MdKW, nil), in.Force); err != nil {
			return err
		}

		c := &models.Circuit{
			BarID:             barID,
			SecondaryBarID:    secondary,
			Denomination:      in.Denomination,
			Name:              in.Name,
			Description:       in.Description,
			LocalItem:         in.LocalItem,
			PiKW:              load.PiKW,
			Fd:                load.Fd,
			MdKW:              load.MdKW,
			Status:            in.Status,
			IsUPS:             in.IsUPS,
			ReserveExpiresAt:  in.ReserveExpiresAt,
			ClientLastContact: in.ClientLastContact,
			CreatedAt:         w.Now,
			UpdatedAt:         w.Now,
		}
		if err := tx.CreateCircuit(ctx, c); err != nil {
			return err
		}
		if _, err := w.Recalculate(ctx, tx, bar.StationID); err != nil {
			return err
		}
		w.Audit("CREATE_CIRCUIT", entityCircuit, c.ID, map[string]interface{}{
			"name":         c.Name,
			"denomination": c.Denomination,
			"bar_id":       barID,
			"pi_kw":        c.PiKW,
			"md_kw":        c.MdKW,
			"is_ups":       c.IsUPS,
			"forced":       in.Force,
		})
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("circuit created",
		logger.Int64("circuit_id", created.ID),
		logger.Int64("bar_id", barID),
		logger.Decimal("md_kw", created.MdKW),
		logger.Bool("forced", in.Force))
	return created, nil
}

// Update applies p. md is re-derived when pi or fd change without an
// explicit md. Any increase of the circuit's contribution is admitted first.
func (s *CircuitService) Update(ctx context.Context, actor models.Actor, id int64, p CircuitPatch) (*models.Circuit, error) {
	var updated *models.Circuit
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		c, err := tx.GetCircuit(ctx, id)
		if err != nil {
			return err
		}
		subs, err := tx.ListSubCircuits(ctx, drepo.SubCircuitFilter{CircuitIDs: []int64{id}})
		if err != nil {
			return err
		}
		before := circuitLoad(c.Status, c.MdKW, subs)

		var fields []string
		if p.PiKW != nil || p.Fd != nil || p.MdKW != nil {
			pi, fd := c.PiKW, c.Fd
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
			c.PiKW, c.Fd, c.MdKW = load.PiKW, load.Fd, load.MdKW
			fields = append(fields, "md_kw")
		}
		if p.Denomination != nil {
			if *p.Denomination == "" {
				return errs.Invalid("denomination", "must not be empty")
			}
			c.Denomination = *p.Denomination
			fields = append(fields, "denomination")
		}
		if p.Name != nil {
			c.Name = *p.Name
			fields = append(fields, "name")
		}
		if p.Description != nil {
			c.Description = p.Description
			fields = append(fields, "description")
		}
		if p.LocalItem != nil {
			c.LocalItem = p.LocalItem
			fields = append(fields, "local_item")
		}
		if p.ClearReserveExpiry {
			c.ReserveExpiresAt = nil
			fields = append(fields, "reserve_expires_at")
		} else if p.ReserveExpiresAt != nil {
			c.ReserveExpiresAt = p.ReserveExpiresAt
			fields = append(fields, "reserve_expires_at")
		}
		if p.ClientLastContact != nil {
			c.ClientLastContact = p.ClientLastContact
			fields = append(fields, "client_last_contact")
		}

		if delta := circuitLoad(c.Status, c.MdKW, subs).Sub(before); delta.IsPositive() {
			if _, err := s.admission.Admit(ctx, tx, c.BarID, delta, p.Force); err != nil {
				return err
			}
		}
		c.UpdatedAt = w.Now
		if err := tx.UpdateCircuit(ctx, c); err != nil {
			return err
		}
		bar, err := tx.GetBar(ctx, c.BarID)
		if err != nil {
			return err
		}
		if _, err := w.Recalculate(ctx, tx, bar.StationID); err != nil {
			return err
		}
		w.Audit("UPDATE_CIRCUIT", entityCircuit, c.ID, map[string]interface{}{"updated_fields": fields})
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeStatus moves the circuit to status, keeping reserve_since in step.
// Bringing load back from inactive is admitted first unless forced.
func (s *CircuitService) ChangeStatus(ctx context.Context, actor models.Actor, id int64, status models.LoadStatus, force bool) (*models.Circuit, error) {
	if err := validStatus(status); err != nil {
		return nil, err
	}
	var updated *models.Circuit
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		c, err := tx.GetCircuit(ctx, id)
		if err != nil {
			return err
		}
		subs, err := tx.ListSubCircuits(ctx, drepo.SubCircuitFilter{CircuitIDs: []int64{id}})
		if err != nil {
			return err
		}
		old := c.Status
		delta := circuitLoad(status, c.MdKW, subs).Sub(circuitLoad(old, c.MdKW, subs))
		if delta.IsPositive() {
			if _, err := s.admission.Admit(ctx, tx, c.BarID, delta, force); err != nil {
				return err
			}
		}

		c.ReserveSince = models.ApplyStatusTransition(old, c.ReserveSince, status, w.Today)
		c.Status = status
		c.UpdatedAt = w.Now
		if err := tx.UpdateCircuit(ctx, c); err != nil {
			return err
		}
		bar, err := tx.GetBar(ctx, c.BarID)
		if err != nil {
			return err
		}
		if _, err := w.Recalculate(ctx, tx, bar.StationID); err != nil {
			return err
		}
		w.Audit("CHANGE_CIRCUIT_STATUS", entityCircuit, c.ID, map[string]interface{}{
			"old_status": old,
			"new_status": status,
		})
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the circuit with its sub-circuits and recalculates the station.
func (s *CircuitService) Delete(ctx context.Context, actor models.Actor, id int64) error {
	return s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		c, err := tx.GetCircuit(ctx, id)
		if err != nil {
			return err
		}
		bar, err := tx.GetBar(ctx, c.BarID)
		if err != nil {
			return err
		}
		if _, err := tx.GetStationForUpdate(ctx, bar.StationID); err != nil {
			return err
		}
		if err := tx.DeleteCircuit(ctx, id); err != nil {
			return err
		}
		if _, err := w.Recalculate(ctx, tx, bar.StationID); err != nil {
			return err
		}
		w.Audit("DELETE_CIRCUIT", entityCircuit, id, map[string]interface{}{
			"name":         c.Name,
			"denomination": c.Denomination,
			"bar_id":       c.BarID,
		})
		return nil
	})
}
