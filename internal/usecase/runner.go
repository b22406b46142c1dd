package usecase

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
)

// Channels used for live broadcasts.
const (
	ChannelStations      = "stations"
	ChannelNotifications = "notifications"
)

// Runner executes one unit of work per call and fans its results out after
// commit: audit forwarding, capacity history, live broadcast.
type Runner struct {
	store    drepo.Store
	engine   *RecalculationEngine
	forward  drepo.AuditForwarder
	history  drepo.CapacityHistory
	hub      drepo.Broadcaster
	metrics  drepo.Metrics
	log      *logger.Logger
	location *time.Location
	now      func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

func WithAuditForwarder(f drepo.AuditForwarder) RunnerOption {
	return func(r *Runner) { r.forward = f }
}

func WithCapacityHistory(h drepo.CapacityHistory) RunnerOption {
	return func(r *Runner) { r.history = h }
}

func WithBroadcaster(b drepo.Broadcaster) RunnerOption {
	return func(r *Runner) { r.hub = b }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithLocation sets the zone that decides what "today" is.
func WithLocation(loc *time.Location) RunnerOption {
	return func(r *Runner) {
		if loc != nil {
			r.location = loc
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(store drepo.Store, engine *RecalculationEngine, metrics drepo.Metrics, log *logger.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:    store,
		engine:   engine,
		metrics:  metrics,
		log:      log,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the current instant in the runner's zone.
func (r *Runner) Now() time.Time { return r.now().In(r.location) }

// Today returns the current calendar day in the runner's zone.
func (r *Runner) Today() models.Date { return models.NewDate(r.Now()) }

// Work collects what a unit of work did so it can be published after commit.
type Work struct {
	Actor models.Actor
	Now   time.Time
	Today models.Date

	engine        *RecalculationEngine
	audits        []*models.AuditLog
	stations      map[int64]*models.Station
	order         []int64
	notifications []*models.Notification
}

// Audit queues an audit entry; it is written in the same transaction.
func (w *Work) Audit(action, entityType string, entityID int64, details interface{}) {
	entry := &models.AuditLog{
		UserID:     w.Actor.ID,
		UserRole:   w.Actor.Role,
		UserName:   w.Actor.Name,
		ActionDate: w.Now,
		Action:     action,
		EntityType: entityType,
	}
	if entityID > 0 {
		id := entityID
		entry.EntityID = &id
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = b
		}
	}
	w.audits = append(w.audits, entry)
}

// Recalculate re-derives the station's aggregates inside tx and remembers
// the result for post-commit publishing.
func (w *Work) Recalculate(ctx context.Context, tx drepo.Tx, stationID int64) (*models.Station, error) {
	st, err := w.engine.Recalculate(ctx, tx, stationID, w.Now)
	if err != nil {
		return nil, err
	}
	if _, seen := w.stations[stationID]; !seen {
		w.order = append(w.order, stationID)
	}
	w.stations[stationID] = st
	return st, nil
}

// Notified records a notification created in this unit of work.
func (w *Work) Notified(n *models.Notification) {
	w.notifications = append(w.notifications, n)
}

// Run executes fn in one transaction on behalf of actor.
func (r *Runner) Run(ctx context.Context, actor models.Actor, fn func(ctx context.Context, tx drepo.Tx, w *Work) error) error {
	return r.RunWithOptions(ctx, actor, nil, fn)
}

// RunWithOptions is Run with explicit transaction options.
func (r *Runner) RunWithOptions(ctx context.Context, actor models.Actor, opts *sql.TxOptions, fn func(ctx context.Context, tx drepo.Tx, w *Work) error) error {
	now := r.Now()
	var w *Work
	err := r.store.WithinTx(ctx, opts, func(ctx context.Context, tx drepo.Tx) error {
		w = &Work{
			Actor:    actor,
			Now:      now,
			Today:    models.NewDate(now),
			engine:   r.engine,
			stations: map[int64]*models.Station{},
		}
		if err := fn(ctx, tx, w); err != nil {
			return err
		}
		for _, a := range w.audits {
			if err := tx.CreateAuditLog(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.publish(ctx, w)
	return nil
}

func (r *Runner) publish(ctx context.Context, w *Work) {
	for _, id := range w.order {
		st := w.stations[id]
		r.metrics.RecordRecalculation(st.Status)
	}

	if r.forward != nil && len(w.audits) > 0 {
		if err := r.forward.Forward(ctx, w.audits); err != nil {
			r.metrics.RecordError("audit_forward")
			r.log.Warn("failed to forward audit entries", logger.Int("count", len(w.audits)), logger.Error(err))
		}
	}

	if r.history != nil && len(w.order) > 0 {
		samples := make([]models.CapacitySample, 0, len(w.order))
		for _, id := range w.order {
			st := w.stations[id]
			samples = append(samples, models.CapacitySample{
				StationID:             st.ID,
				At:                    w.Now,
				TransformerCapacityKW: st.TransformerCapacityKW,
				MaxDemandKW:           st.MaxDemandKW,
				AvailablePowerKW:      st.AvailablePowerKW,
				Status:                st.Status,
			})
		}
		if err := r.history.Append(ctx, samples); err != nil {
			r.metrics.RecordError("capacity_history")
			r.log.Warn("failed to append capacity history", logger.Int("stations", len(samples)), logger.Error(err))
		}
	}

	if r.hub != nil {
		for _, id := range w.order {
			r.hub.Broadcast(ChannelStations, w.stations[id])
		}
		for _, n := range w.notifications {
			r.hub.Broadcast(ChannelNotifications, n)
		}
	}
}

// Read runs fn in a read-only transaction.
func (r *Runner) Read(ctx context.Context, fn func(ctx context.Context, tx drepo.Tx) error) error {
	return r.store.WithinTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}
