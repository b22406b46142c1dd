package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
	"PowerLedger/pkg/metrics"
)

type fakeForwarder struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (f *fakeForwarder) Forward(_ context.Context, entries []*models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.actions = append(f.actions, e.Action)
	}
	return f.err
}

type fakeHistory struct {
	mu      sync.Mutex
	samples []models.CapacitySample
}

func (h *fakeHistory) Append(_ context.Context, samples []models.CapacitySample) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, samples...)
	return nil
}

func (h *fakeHistory) Query(_ context.Context, stationID int64, from, to time.Time, limit int) ([]models.CapacitySample, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.CapacitySample
	for _, s := range h.samples {
		if s.StationID == stationID && !s.At.Before(from) && !s.At.After(to) {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestRunnerPublishesAfterCommit(t *testing.T) {
	f := newFixture(t)
	fwd := &fakeForwarder{}
	hist := &fakeHistory{}
	hub := &recordingHub{}
	log := logger.NewNop()
	runner := NewRunner(f.store, NewRecalculationEngine(), metrics.Nop{}, log,
		WithClock(f.clock.Now), WithAuditForwarder(fwd), WithCapacityHistory(hist), WithBroadcaster(hub))
	circuits := NewCircuitService(runner, NewAdmissionController(metrics.Nop{}), log)

	_, err := circuits.Create(f.ctx, operator, f.normalBar(), CircuitInput{
		Denomination: "C-1", PiKW: dec("40"), Fd: dec("0.8"), Status: models.StatusOperativeNormal,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"CREATE_CIRCUIT"}, fwd.actions)
	require.Len(t, hist.samples, 1)
	assert.Equal(t, "32.00", hist.samples[0].MaxDemandKW.StringFixed(2))
	assert.Equal(t, models.StationGreen, hist.samples[0].Status)
	assert.Equal(t, 1, hub.count(ChannelStations))

	stations := NewStationService(runner, NewRecalculationEngine(), hist, log)
	now := f.clock.Now()
	got, err := stations.History(f.ctx, f.station.ID, now.Add(-time.Hour), now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRunnerRollbackPublishesNothing(t *testing.T) {
	f := newFixture(t)
	fwd := &fakeForwarder{}
	runner := NewRunner(f.store, NewRecalculationEngine(), metrics.Nop{}, logger.NewNop(),
		WithClock(f.clock.Now), WithAuditForwarder(fwd))

	boom := errors.New("boom")
	err := runner.Run(f.ctx, operator, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		if _, err := w.Recalculate(ctx, tx, f.station.ID); err != nil {
			return err
		}
		w.Audit("RECALCULATE", entityStation, f.station.ID, nil)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, fwd.actions)
	assert.Empty(t, f.auditActions())
}

func TestRunnerForwardFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	fwd := &fakeForwarder{err: errors.New("broker down")}
	runner := NewRunner(f.store, NewRecalculationEngine(), metrics.Nop{}, logger.NewNop(),
		WithClock(f.clock.Now), WithAuditForwarder(fwd))
	stations := NewStationService(runner, NewRecalculationEngine(), nil, logger.NewNop())

	st, err := stations.UpdateCapacity(f.ctx, operator, f.station.ID, dec("80"))
	require.NoError(t, err)
	assert.Equal(t, "80.00", st.TransformerCapacityKW.StringFixed(2))
	assert.Equal(t, []string{"UPDATE_STATION"}, fwd.actions)
	assert.Contains(t, f.auditActions(), "UPDATE_STATION")
}
