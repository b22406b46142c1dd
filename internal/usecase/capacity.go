package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
)

// yellowRatio is the available/capacity fraction below which a station turns yellow.
var yellowRatio = decimal.RequireFromString("0.2")

// RecalculationEngine re-derives station aggregates from the live load tree.
type RecalculationEngine struct{}

// NewRecalculationEngine creates a RecalculationEngine.
func NewRecalculationEngine() *RecalculationEngine {
	return &RecalculationEngine{}
}

// Aggregate is the result of folding a station's load tree.
type Aggregate struct {
	MaxDemandKW      decimal.Decimal
	AvailablePowerKW decimal.Decimal
	Status           models.StationStatus
}

// StatusFor classifies a station by its remaining headroom. A zero-capacity
// station that is not over-committed is green.
func StatusFor(capacity, available decimal.Decimal) models.StationStatus {
	if available.IsNegative() {
		return models.StationRed
	}
	if capacity.IsPositive() && available.Div(capacity).LessThan(yellowRatio) {
		return models.StationYellow
	}
	return models.StationGreen
}

// Fold sums the demand of circuits that are not inactive plus the
// operative_normal sub-circuits of those circuits. Sub-circuits whose parent
// is not in circuits are ignored.
func Fold(capacity decimal.Decimal, circuits []*models.Circuit, subs []*models.SubCircuit) Aggregate {
	live := make(map[int64]struct{}, len(circuits))
	demand := decimal.Zero
	for _, c := range circuits {
		if c.Status == models.StatusInactive {
			continue
		}
		live[c.ID] = struct{}{}
		demand = demand.Add(c.MdKW)
	}
	for _, sc := range subs {
		if sc.Status != models.StatusOperativeNormal {
			continue
		}
		if _, ok := live[sc.CircuitID]; !ok {
			continue
		}
		demand = demand.Add(sc.MdKW)
	}
	demand = demand.Round(models.PowerPlaces)
	available := capacity.Sub(demand).Round(models.PowerPlaces)
	return Aggregate{
		MaxDemandKW:      demand,
		AvailablePowerKW: available,
		Status:           StatusFor(capacity, available),
	}
}

// loadTree reads the circuits and sub-circuits counted for a set of bars.
func loadTree(ctx context.Context, tx drepo.Tx, barIDs []int64) ([]*models.Circuit, []*models.SubCircuit, error) {
	if len(barIDs) == 0 {
		return nil, nil, nil
	}
	circuits, err := tx.ListCircuits(ctx, drepo.CircuitFilter{
		BarIDs:          barIDs,
		ExcludeStatuses: []models.LoadStatus{models.StatusInactive},
	})
	if err != nil {
		return nil, nil, err
	}
	if len(circuits) == 0 {
		return circuits, nil, nil
	}
	ids := make([]int64, len(circuits))
	for i, c := range circuits {
		ids[i] = c.ID
	}
	subs, err := tx.ListSubCircuits(ctx, drepo.SubCircuitFilter{
		CircuitIDs: ids,
		Statuses:   []models.LoadStatus{models.StatusOperativeNormal},
	})
	if err != nil {
		return nil, nil, err
	}
	return circuits, subs, nil
}

func barIDs(bars []*models.Bar) []int64 {
	ids := make([]int64, len(bars))
	for i, b := range bars {
		ids[i] = b.ID
	}
	return ids
}

// Recalculate folds the station's tree and writes the aggregates back.
func (e *RecalculationEngine) Recalculate(ctx context.Context, tx drepo.Tx, stationID int64, now time.Time) (*models.Station, error) {
	st, err := tx.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	bars, err := tx.ListBars(ctx, drepo.BarFilter{StationID: &stationID})
	if err != nil {
		return nil, fmt.Errorf("recalculate station %d: %w", stationID, err)
	}
	circuits, subs, err := loadTree(ctx, tx, barIDs(bars))
	if err != nil {
		return nil, fmt.Errorf("recalculate station %d: %w", stationID, err)
	}

	agg := Fold(st.TransformerCapacityKW, circuits, subs)
	st.MaxDemandKW = agg.MaxDemandKW
	st.AvailablePowerKW = agg.AvailablePowerKW
	st.Status = agg.Status
	st.UpdatedAt = now
	if err := tx.UpdateStation(ctx, st); err != nil {
		return nil, fmt.Errorf("recalculate station %d: %w", stationID, err)
	}
	return st, nil
}

// BarSummary is the power picture of one bar.
type BarSummary struct {
	BarID        int64           `json:"bar_id"`
	BarName      string          `json:"bar_name"`
	BarType      models.BarType  `json:"bar_type"`
	CapacityKW   decimal.Decimal `json:"capacity_kw"`
	CapacityA    decimal.Decimal `json:"capacity_a"`
	TotalPIKW    decimal.Decimal `json:"total_pi_kw"`
	TotalMDKW    decimal.Decimal `json:"total_md_kw"`
	AvailableKW  decimal.Decimal `json:"available_kw"`
	CircuitCount int             `json:"circuit_count"`
}

// StationSummary is the power picture of a station and its bars.
type StationSummary struct {
	Station *models.Station `json:"station"`
	Bars    []BarSummary    `json:"bars"`
}

func summarizeBar(b *models.Bar, circuits []*models.Circuit, subs []*models.SubCircuit) BarSummary {
	s := BarSummary{
		BarID:      b.ID,
		BarName:    b.Name,
		BarType:    b.BarType,
		CapacityKW: b.CapacityKW,
		CapacityA:  b.CapacityA,
		TotalPIKW:  decimal.Zero,
		TotalMDKW:  decimal.Zero,
	}
	live := map[int64]struct{}{}
	for _, c := range circuits {
		if c.BarID != b.ID || c.Status == models.StatusInactive {
			continue
		}
		live[c.ID] = struct{}{}
		s.CircuitCount++
		s.TotalPIKW = s.TotalPIKW.Add(c.PiKW)
		s.TotalMDKW = s.TotalMDKW.Add(c.MdKW)
	}
	for _, sc := range subs {
		if _, ok := live[sc.CircuitID]; !ok || sc.Status != models.StatusOperativeNormal {
			continue
		}
		s.TotalPIKW = s.TotalPIKW.Add(sc.PiKW)
		s.TotalMDKW = s.TotalMDKW.Add(sc.MdKW)
	}
	s.AvailableKW = b.CapacityKW.Sub(s.TotalMDKW)
	return s
}

// BarSummary reports the load counted on one bar against its own ceiling.
func (e *RecalculationEngine) BarSummary(ctx context.Context, tx drepo.Tx, barID int64) (*BarSummary, error) {
	b, err := tx.GetBar(ctx, barID)
	if err != nil {
		return nil, err
	}
	circuits, subs, err := loadTree(ctx, tx, []int64{barID})
	if err != nil {
		return nil, fmt.Errorf("bar summary %d: %w", barID, err)
	}
	s := summarizeBar(b, circuits, subs)
	return &s, nil
}

// StationSummary reports the station aggregates with a per-bar breakdown.
func (e *RecalculationEngine) StationSummary(ctx context.Context, tx drepo.Tx, stationID int64) (*StationSummary, error) {
	st, err := tx.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	bars, err := tx.ListBars(ctx, drepo.BarFilter{StationID: &stationID})
	if err != nil {
		return nil, fmt.Errorf("station summary %d: %w", stationID, err)
	}
	circuits, subs, err := loadTree(ctx, tx, barIDs(bars))
	if err != nil {
		return nil, fmt.Errorf("station summary %d: %w", stationID, err)
	}
	out := &StationSummary{Station: st, Bars: make([]BarSummary, 0, len(bars))}
	for _, b := range bars {
		out.Bars = append(out.Bars, summarizeBar(b, circuits, subs))
	}
	return out, nil
}
