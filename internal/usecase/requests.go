package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
)

const entityRequest = "request"

// RequestInput describes a capacity-expansion request.
type RequestInput struct {
	StationID             int64
	BarType               models.BarType
	CircuitID             *int64
	LocalItem             *string
	RequestedLoadKW       decimal.Decimal
	Fd                    decimal.Decimal
	SubCircuitName        *string
	SubCircuitDescription *string
	SubCircuitITM         *string
	SubCircuitMM2         *string
	Justification         *string
}

// ApprovalResult reports what an approval created.
type ApprovalResult struct {
	Request    *models.CapacityRequest `json:"request"`
	Circuit    *models.Circuit         `json:"circuit,omitempty"`
	SubCircuit *models.SubCircuit      `json:"sub_circuit,omitempty"`
	Station    *models.Station         `json:"station"`
}

// RequestService handles capacity-expansion requests.
type RequestService struct {
	runner    *Runner
	admission *AdmissionController
	log       *logger.Logger
}

// NewRequestService creates a RequestService.
func NewRequestService(runner *Runner, admission *AdmissionController, log *logger.Logger) *RequestService {
	return &RequestService{runner: runner, admission: admission, log: log}
}

func (s *RequestService) List(ctx context.Context, f drepo.RequestFilter) ([]*models.CapacityRequest, error) {
	var out []*models.CapacityRequest
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = tx.ListRequests(ctx, f)
		return err
	})
	return out, err
}

func (s *RequestService) Get(ctx context.Context, id int64) (*models.CapacityRequest, error) {
	var out *models.CapacityRequest
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = tx.GetRequest(ctx, id)
		return err
	})
	return out, err
}

// Create files a pending request on behalf of actor.
func (s *RequestService) Create(ctx context.Context, actor models.Actor, in RequestInput) (*models.CapacityRequest, error) {
	if !in.BarType.Valid() {
		return nil, errs.Invalid("bar_type", "unknown bar type %q", in.BarType)
	}
	load, err := resolveLoad(in.RequestedLoadKW, in.Fd, nil)
	if err != nil {
		return nil, err
	}
	var out *models.CapacityRequest
	err = s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		if _, err := tx.GetStation(ctx, in.StationID); err != nil {
			return err
		}
		if in.CircuitID != nil {
			if _, err := tx.GetCircuit(ctx, *in.CircuitID); err != nil {
				return err
			}
		}
		r := &models.CapacityRequest{
			RequesterID:           actor.ID,
			StationID:             in.StationID,
			BarType:               in.BarType,
			CircuitID:             in.CircuitID,
			LocalItem:             in.LocalItem,
			RequestedLoadKW:       load.PiKW,
			Fd:                    load.Fd,
			SubCircuitName:        in.SubCircuitName,
			SubCircuitDescription: in.SubCircuitDescription,
			SubCircuitITM:         in.SubCircuitITM,
			SubCircuitMM2:         in.SubCircuitMM2,
			Justification:         in.Justification,
			Status:                models.RequestPending,
			CreatedAt:             w.Now,
			UpdatedAt:             w.Now,
		}
		if err := tx.CreateRequest(ctx, r); err != nil {
			return err
		}
		w.Audit("CREATE_REQUEST", entityRequest, r.ID, map[string]interface{}{
			"station_id": r.StationID,
			"bar_type":   r.BarType,
		})
		out = r
		return nil
	})
	return out, err
}

func pending(r *models.CapacityRequest, verb string) error {
	if r.Status != models.RequestPending {
		return errs.Invalid("status", "only pending requests can be %s", verb)
	}
	return nil
}

// Approve turns a pending request into new load: a sub-circuit under the
// request's circuit, or otherwise a new circuit on the station's bar of the
// requested type. The load is admitted unless force is set.
func (s *RequestService) Approve(ctx context.Context, actor models.Actor, id int64, force bool) (*ApprovalResult, error) {
	res := &ApprovalResult{}
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		r, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := pending(r, "approved"); err != nil {
			return err
		}
		bt := r.BarType
		bars, err := tx.ListBars(ctx, drepo.BarFilter{StationID: &r.StationID, BarType: &bt})
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			return errs.Invalid("bar_type", "station %d has no %s bar", r.StationID, r.BarType)
		}
		bar := bars[0]
		md := models.DeriveMD(r.RequestedLoadKW, r.Fd)
		label := fmt.Sprintf("Expansion request #%d", r.ID)
		details := map[string]interface{}{"station_id": r.StationID, "forced": force}
		stationID := r.StationID

		if r.CircuitID != nil {
			parent, parentStation, err := parentOf(ctx, tx, *r.CircuitID)
			if err != nil {
				return err
			}
			stationID = parentStation
			if _, err := s.admission.Admit(ctx, tx, parent.BarID, subCircuitLoad(parent.Status, models.StatusOperativeNormal, md), force); err != nil {
				return err
			}
			sc := &models.SubCircuit{
				CircuitID:   parent.ID,
				Name:        label,
				Description: r.SubCircuitDescription,
				ITM:         r.SubCircuitITM,
				MM2:         r.SubCircuitMM2,
				PiKW:        r.RequestedLoadKW,
				Fd:          r.Fd,
				MdKW:        md,
				Status:      models.StatusOperativeNormal,
				CreatedAt:   w.Now,
				UpdatedAt:   w.Now,
			}
			if r.SubCircuitName != nil && *r.SubCircuitName != "" {
				sc.Name = *r.SubCircuitName
			}
			if sc.Description == nil {
				sc.Description = r.Justification
			}
			if err := tx.CreateSubCircuit(ctx, sc); err != nil {
				return err
			}
			res.SubCircuit = sc
			details["sub_circuit_id"] = sc.ID
		} else {
			if _, err := s.admission.Admit(ctx, tx, bar.ID, md, force); err != nil {
				return err
			}
			c := &models.Circuit{
				BarID:        bar.ID,
				Denomination: fmt.Sprintf("AMP-%d", r.ID),
				Name:         label,
				Description:  r.Justification,
				LocalItem:    r.LocalItem,
				PiKW:         r.RequestedLoadKW,
				Fd:           r.Fd,
				MdKW:         md,
				Status:       models.StatusOperativeNormal,
				CreatedAt:    w.Now,
				UpdatedAt:    w.Now,
			}
			if err := tx.CreateCircuit(ctx, c); err != nil {
				return err
			}
			res.Circuit = c
			details["circuit_id"] = c.ID
		}

		reviewer := actor.ID
		reviewedAt := w.Now
		r.Status = models.RequestApproved
		r.ReviewedBy = &reviewer
		r.ReviewedAt = &reviewedAt
		r.UpdatedAt = w.Now
		if err := tx.UpdateRequest(ctx, r); err != nil {
			return err
		}
		st, err := w.Recalculate(ctx, tx, stationID)
		if err != nil {
			return err
		}
		w.Audit("APPROVE_REQUEST", entityRequest, r.ID, details)
		res.Request = r
		res.Station = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("capacity request approved",
		logger.Int64("request_id", id),
		logger.Int64("station_id", res.Station.ID),
		logger.String("station_status", string(res.Station.Status)))
	return res, nil
}

// Reject closes a pending request with a reason.
func (s *RequestService) Reject(ctx context.Context, actor models.Actor, id int64, reason string) (*models.CapacityRequest, error) {
	if reason == "" {
		return nil, errs.Invalid("rejection_reason", "is required")
	}
	var out *models.CapacityRequest
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		r, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := pending(r, "rejected"); err != nil {
			return err
		}
		reviewer := actor.ID
		reviewedAt := w.Now
		r.Status = models.RequestRejected
		r.RejectionReason = &reason
		r.ReviewedBy = &reviewer
		r.ReviewedAt = &reviewedAt
		r.UpdatedAt = w.Now
		if err := tx.UpdateRequest(ctx, r); err != nil {
			return err
		}
		w.Audit("REJECT_REQUEST", entityRequest, r.ID, map[string]interface{}{"reason": reason})
		out = r
		return nil
	})
	return out, err
}
