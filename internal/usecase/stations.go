package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
)

const entityStation = "station"

// SeedStation is one station provisioned on an empty ledger.
type SeedStation struct {
	Code       string
	Name       string
	OrderIndex int
}

// SeedPlan provisions stations, each with one bar per bar type.
type SeedPlan struct {
	Stations      []SeedStation
	CapacityKW    decimal.Decimal
	BarCapacityKW decimal.Decimal
	BarCapacityA  decimal.Decimal
}

var seedBars = []struct {
	name    string
	barType models.BarType
}{
	{"Normal bar", models.BarNormal},
	{"Emergency bar", models.BarEmergency},
	{"Continuity bar", models.BarContinuity},
}

// StationService exposes stations, bars and their capacity figures.
type StationService struct {
	runner  *Runner
	engine  *RecalculationEngine
	history drepo.CapacityHistory
	log     *logger.Logger
}

// NewStationService creates a StationService. history may be nil.
func NewStationService(runner *Runner, engine *RecalculationEngine, history drepo.CapacityHistory, log *logger.Logger) *StationService {
	return &StationService{runner: runner, engine: engine, history: history, log: log}
}

func (s *StationService) List(ctx context.Context) ([]*models.Station, error) {
	var out []*models.Station
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = tx.ListStations(ctx)
		return err
	})
	return out, err
}

func (s *StationService) Get(ctx context.Context, id int64) (*models.Station, error) {
	var st *models.Station
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		st, err = tx.GetStation(ctx, id)
		return err
	})
	return st, err
}

// ListBars returns the bars of a station.
func (s *StationService) ListBars(ctx context.Context, stationID int64) ([]*models.Bar, error) {
	var out []*models.Bar
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		if _, err := tx.GetStation(ctx, stationID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListBars(ctx, drepo.BarFilter{StationID: &stationID})
		return err
	})
	return out, err
}

func (s *StationService) Summary(ctx context.Context, id int64) (*StationSummary, error) {
	var out *StationSummary
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = s.engine.StationSummary(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *StationService) BarSummary(ctx context.Context, barID int64) (*BarSummary, error) {
	var out *BarSummary
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = s.engine.BarSummary(ctx, tx, barID)
		return err
	})
	return out, err
}

// UpdateCapacity sets the transformer ceiling and recalculates. Lowering it
// never blocks; an over-committed station simply turns red.
func (s *StationService) UpdateCapacity(ctx context.Context, actor models.Actor, id int64, capacityKW decimal.Decimal) (*models.Station, error) {
	if capacityKW.IsNegative() {
		return nil, errs.Invalid("transformer_capacity_kw", "must not be negative")
	}
	var out *models.Station
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		st, err := tx.GetStationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		old := st.TransformerCapacityKW
		st.TransformerCapacityKW = capacityKW.Round(models.PowerPlaces)
		st.UpdatedAt = w.Now
		if err := tx.UpdateStation(ctx, st); err != nil {
			return err
		}
		if out, err = w.Recalculate(ctx, tx, id); err != nil {
			return err
		}
		w.Audit("UPDATE_STATION", entityStation, id, map[string]interface{}{
			"old_capacity_kw": old,
			"new_capacity_kw": st.TransformerCapacityKW,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("station capacity updated",
		logger.Int64("station_id", id),
		logger.Decimal("capacity_kw", out.TransformerCapacityKW),
		logger.String("status", string(out.Status)))
	return out, nil
}

// Recalculate re-derives one station on demand.
func (s *StationService) Recalculate(ctx context.Context, actor models.Actor, id int64) (*models.Station, error) {
	var out *models.Station
	err := s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		var err error
		out, err = w.Recalculate(ctx, tx, id)
		return err
	})
	return out, err
}

// History returns recorded aggregates of a station, oldest first.
func (s *StationService) History(ctx context.Context, id int64, from, to time.Time, limit int) ([]models.CapacitySample, error) {
	if s.history == nil {
		return nil, errs.Invalid("history", "capacity history is not enabled")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.history.Query(ctx, id, from, to, limit)
}

// Seed provisions plan on an empty ledger. It is a no-op when any station exists.
func (s *StationService) Seed(ctx context.Context, plan SeedPlan) (int, error) {
	created := 0
	err := s.runner.Run(ctx, models.SystemActor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		existing, err := tx.ListStations(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		for _, ss := range plan.Stations {
			st := &models.Station{
				Code:                  ss.Code,
				Name:                  ss.Name,
				OrderIndex:            ss.OrderIndex,
				TransformerCapacityKW: plan.CapacityKW.Round(models.PowerPlaces),
				CreatedAt:             w.Now,
				UpdatedAt:             w.Now,
			}
			if err := tx.CreateStation(ctx, st); err != nil {
				return err
			}
			for _, sb := range seedBars {
				b := &models.Bar{
					StationID:  st.ID,
					Name:       sb.name,
					BarType:    sb.barType,
					Status:     "operative",
					CapacityKW: plan.BarCapacityKW,
					CapacityA:  plan.BarCapacityA,
					CreatedAt:  w.Now,
					UpdatedAt:  w.Now,
				}
				if err := tx.CreateBar(ctx, b); err != nil {
					return err
				}
			}
			if _, err := w.Recalculate(ctx, tx, st.ID); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.log.Info("ledger seeded", logger.Int("stations", created))
	}
	return created, nil
}
