package usecase

import (
	"context"
	"fmt"
	"time"

	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
)

// ScanReport summarizes one expiry scan.
type ScanReport struct {
	RunDate          models.Date `json:"run_date"`
	CircuitAlerts    int         `json:"circuit_alerts"`
	SubCircuitAlerts int         `json:"sub_circuit_alerts"`
	Renewed          int         `json:"renewed"`
	Skipped          int         `json:"skipped"`
	Failed           int         `json:"failed"`
}

// Created is the number of notifications the scan wrote.
func (r *ScanReport) Created() int {
	return r.CircuitAlerts + r.SubCircuitAlerts + r.Renewed
}

// ExpiryScanner raises reserve_no_contact notifications for reservations
// whose deadline has passed. One scan is one transaction; a failing item is
// rolled back to its savepoint and skipped.
type ExpiryScanner struct {
	runner  *Runner
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewExpiryScanner creates an ExpiryScanner.
func NewExpiryScanner(runner *Runner, metrics drepo.Metrics, log *logger.Logger) *ExpiryScanner {
	return &ExpiryScanner{runner: runner, metrics: metrics, log: log}
}

func expiryMessage(subject string, deadline, today models.Date) string {
	overdue := deadline.DaysUntil(today)
	if overdue <= 0 {
		return fmt.Sprintf("Reservation of %s expires today (%s). Extend the deadline or release the reservation.", subject, deadline)
	}
	return fmt.Sprintf("Reservation of %s expired %d day(s) ago (deadline: %s). Extend the deadline or release the reservation.",
		subject, overdue, deadline)
}

func lapsedMessage(subject string, today models.Date) string {
	return fmt.Sprintf("Extended reservation of %s lapsed today (%s). Extend again or release the reservation.", subject, today)
}

// hasActiveAlert reports whether circuitID already carries an alert that
// suppresses a new one today.
func hasActiveAlert(ctx context.Context, tx drepo.Tx, circuitID int64, today models.Date) (bool, error) {
	typ := models.NotificationReserveExpired
	list, err := tx.ListNotifications(ctx, drepo.NotificationFilter{Type: &typ, CircuitID: &circuitID})
	if err != nil {
		return false, err
	}
	for _, n := range list {
		if n.ActiveOn(today) {
			return true, nil
		}
	}
	return false, nil
}

// stationOf resolves a circuit's station, or nil when the bar is gone.
func stationOf(ctx context.Context, tx drepo.Tx, c *models.Circuit) *int64 {
	bar, err := tx.GetBar(ctx, c.BarID)
	if err != nil {
		return nil
	}
	id := bar.StationID
	return &id
}

func newAlert(circuitID int64, stationID *int64, msg string, now time.Time) *models.Notification {
	cid := circuitID
	return &models.Notification{
		StationID: stationID,
		CircuitID: &cid,
		Type:      models.NotificationReserveExpired,
		Message:   msg,
		CreatedAt: now,
	}
}

// Scan runs the three passes for the runner's current day.
func (s *ExpiryScanner) Scan(ctx context.Context) (*ScanReport, error) {
	start := time.Now()
	report := &ScanReport{RunDate: s.runner.Today()}
	err := s.runner.Run(ctx, models.SystemActor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		*report = ScanReport{RunDate: w.Today}
		if err := s.scanCircuits(ctx, tx, w, report); err != nil {
			return err
		}
		if err := s.scanSubCircuits(ctx, tx, w, report); err != nil {
			return err
		}
		return s.renewLapsedExtensions(ctx, tx, w, report)
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		s.metrics.RecordSchedulerRun("failed", 0, elapsed)
		s.log.Error("reservation expiry scan rolled back",
			logger.String("run_date", report.RunDate.String()),
			logger.Error(err))
		return nil, fmt.Errorf("expiry scan: %w", err)
	}
	s.metrics.RecordSchedulerRun("ok", report.Created(), elapsed)
	s.log.Info("reservation expiry scan finished",
		logger.String("run_date", report.RunDate.String()),
		logger.Int("circuit_alerts", report.CircuitAlerts),
		logger.Int("sub_circuit_alerts", report.SubCircuitAlerts),
		logger.Int("renewed", report.Renewed),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed))
	return report, nil
}

// item runs fn under a savepoint; a failure is logged and counted, not returned.
func (s *ExpiryScanner) item(ctx context.Context, tx drepo.Tx, report *ScanReport, kind string, id int64, fn func() error) {
	if err := tx.Savepoint(ctx, fn); err != nil {
		report.Failed++
		s.metrics.RecordError("expiry_item")
		s.log.Warn("expiry scan item failed",
			logger.String("kind", kind),
			logger.Int64("id", id),
			logger.Error(err))
	}
}

func (s *ExpiryScanner) scanCircuits(ctx context.Context, tx drepo.Tx, w *Work, report *ScanReport) error {
	today := w.Today
	circuits, err := tx.ListCircuits(ctx, drepo.CircuitFilter{
		Statuses:          models.ReserveStatuses,
		ExpiresOnOrBefore: &today,
	})
	if err != nil {
		return err
	}
	for _, c := range circuits {
		c := c
		s.item(ctx, tx, report, "circuit", c.ID, func() error {
			active, err := hasActiveAlert(ctx, tx, c.ID, today)
			if err != nil {
				return err
			}
			if active {
				report.Skipped++
				return nil
			}
			n := newAlert(c.ID, stationOf(ctx, tx, c),
				expiryMessage("circuit "+c.DisplayName(), *c.ReserveExpiresAt, today), w.Now)
			if err := tx.CreateNotification(ctx, n); err != nil {
				return err
			}
			report.CircuitAlerts++
			w.Notified(n)
			return nil
		})
	}
	return nil
}

// scanSubCircuits attributes sub-circuit alerts to the parent circuit.
func (s *ExpiryScanner) scanSubCircuits(ctx context.Context, tx drepo.Tx, w *Work, report *ScanReport) error {
	today := w.Today
	subs, err := tx.ListSubCircuits(ctx, drepo.SubCircuitFilter{
		Statuses:          models.ReserveStatuses,
		ExpiresOnOrBefore: &today,
	})
	if err != nil {
		return err
	}
	for _, sc := range subs {
		sc := sc
		s.item(ctx, tx, report, "sub_circuit", sc.ID, func() error {
			active, err := hasActiveAlert(ctx, tx, sc.CircuitID, today)
			if err != nil {
				return err
			}
			if active {
				report.Skipped++
				return nil
			}
			var stationID *int64
			if parent, err := tx.GetCircuit(ctx, sc.CircuitID); err == nil {
				stationID = stationOf(ctx, tx, parent)
			}
			n := newAlert(sc.CircuitID, stationID,
				expiryMessage("sub-circuit "+sc.Name, *sc.ReserveExpiresAt, today), w.Now)
			if err := tx.CreateNotification(ctx, n); err != nil {
				return err
			}
			report.SubCircuitAlerts++
			w.Notified(n)
			return nil
		})
	}
	return nil
}

// renewLapsedExtensions replaces alerts whose extension ends today with a
// fresh one while the circuit is still reserved.
func (s *ExpiryScanner) renewLapsedExtensions(ctx context.Context, tx drepo.Tx, w *Work, report *ScanReport) error {
	today := w.Today
	typ := models.NotificationReserveExpired
	lapsing, err := tx.ListNotifications(ctx, drepo.NotificationFilter{Type: &typ, ExtendedUntil: &today})
	if err != nil {
		return err
	}
	for _, old := range lapsing {
		old := old
		if old.CircuitID == nil {
			continue
		}
		s.item(ctx, tx, report, "notification", old.ID, func() error {
			c, err := tx.GetCircuit(ctx, *old.CircuitID)
			if err != nil {
				return err
			}
			if !c.Status.IsReserve() {
				return nil
			}
			old.IsDismissed = true
			if err := tx.UpdateNotification(ctx, old); err != nil {
				return err
			}
			n := newAlert(c.ID, stationOf(ctx, tx, c), lapsedMessage("circuit "+c.DisplayName(), today), w.Now)
			if err := tx.CreateNotification(ctx, n); err != nil {
				return err
			}
			report.Renewed++
			w.Notified(n)
			return nil
		})
	}
	return nil
}
