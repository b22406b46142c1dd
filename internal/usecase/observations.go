package usecase

import (
	"context"
	"strings"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
)

// ObservationInput is a field note; at least one link is required.
type ObservationInput struct {
	CircuitID    *int64
	SubCircuitID *int64
	BarID        *int64
	Severity     models.ObservationSeverity
	Content      string
}

// ObservationService records field notes against bars and loads.
type ObservationService struct {
	runner *Runner
}

func NewObservationService(runner *Runner) *ObservationService {
	return &ObservationService{runner: runner}
}

func (s *ObservationService) List(ctx context.Context, f drepo.ObservationFilter) ([]*models.Observation, error) {
	var out []*models.Observation
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = tx.ListObservations(ctx, f)
		return err
	})
	return out, err
}

func (s *ObservationService) Create(ctx context.Context, actor models.Actor, in ObservationInput) (*models.Observation, error) {
	switch in.Severity {
	case models.SeverityUrgent, models.SeverityWarning, models.SeverityRecommendation:
	default:
		return nil, errs.Invalid("severity", "unknown severity %q", in.Severity)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errs.Invalid("content", "is required")
	}
	if in.CircuitID == nil && in.SubCircuitID == nil && in.BarID == nil {
		return nil, errs.Invalid("", "an observation must reference a circuit, sub-circuit or bar")
	}

	var out *models.Observation
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		if in.CircuitID != nil {
			if _, err := tx.GetCircuit(ctx, *in.CircuitID); err != nil {
				return err
			}
		}
		if in.SubCircuitID != nil {
			if _, err := tx.GetSubCircuit(ctx, *in.SubCircuitID); err != nil {
				return err
			}
		}
		if in.BarID != nil {
			if _, err := tx.GetBar(ctx, *in.BarID); err != nil {
				return err
			}
		}
		o := &models.Observation{
			CircuitID:    in.CircuitID,
			SubCircuitID: in.SubCircuitID,
			BarID:        in.BarID,
			UserID:       actor.ID,
			Severity:     in.Severity,
			Content:      content,
			CreatedAt:    w.Now,
		}
		if err := tx.CreateObservation(ctx, o); err != nil {
			return err
		}
		w.Audit("CREATE_OBSERVATION", "observation", o.ID, map[string]interface{}{"severity": o.Severity})
		out = o
		return nil
	})
	return out, err
}
