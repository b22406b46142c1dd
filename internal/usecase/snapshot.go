package usecase

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/logger"
)

// restoreDeleteOrder clears children before parents.
var restoreDeleteOrder = []drepo.Table{
	drepo.TableObservations,
	drepo.TableNotifications,
	drepo.TableRequests,
	drepo.TableSubCircuits,
	drepo.TableCircuits,
	drepo.TableBars,
	drepo.TableStations,
}

var restoreSequences = []drepo.Table{
	drepo.TableStations,
	drepo.TableBars,
	drepo.TableCircuits,
	drepo.TableSubCircuits,
	drepo.TableObservations,
	drepo.TableNotifications,
	drepo.TableRequests,
}

// RestoreResult describes a completed restore.
type RestoreResult struct {
	BackupID      int64          `json:"backup_id"`
	FileName      string         `json:"file_name"`
	IncludesAudit bool           `json:"includes_audit"`
	Restored      map[string]int `json:"restored"`
}

// SnapshotCoordinator captures the whole ledger into a backup and restores
// it atomically.
type SnapshotCoordinator struct {
	runner  *Runner
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewSnapshotCoordinator(runner *Runner, metrics drepo.Metrics, log *logger.Logger) *SnapshotCoordinator {
	return &SnapshotCoordinator{runner: runner, metrics: metrics, log: log}
}

// List returns backup metadata, newest first.
func (s *SnapshotCoordinator) List(ctx context.Context, limit int) ([]*models.Backup, error) {
	var out []*models.Backup
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = tx.ListBackups(ctx, limit)
		return err
	})
	return out, err
}

// Get returns one backup including its document.
func (s *SnapshotCoordinator) Get(ctx context.Context, id int64) (*models.Backup, error) {
	var out *models.Backup
	err := s.runner.Read(ctx, func(ctx context.Context, tx drepo.Tx) error {
		var err error
		out, err = tx.GetBackup(ctx, id)
		return err
	})
	return out, err
}

func capture(ctx context.Context, tx drepo.Tx, includeAudit bool, now time.Time) (*snapshotDocument, error) {
	d := &snapshotDocument{CreatedAt: now, IncludesAudit: includeAudit}
	var err error
	if d.Stations, err = tx.ListStations(ctx); err != nil {
		return nil, err
	}
	if d.Bars, err = tx.ListBars(ctx, drepo.BarFilter{}); err != nil {
		return nil, err
	}
	if d.Circuits, err = tx.ListCircuits(ctx, drepo.CircuitFilter{}); err != nil {
		return nil, err
	}
	if d.SubCircuits, err = tx.ListSubCircuits(ctx, drepo.SubCircuitFilter{}); err != nil {
		return nil, err
	}
	if d.Observations, err = tx.ListObservations(ctx, drepo.ObservationFilter{}); err != nil {
		return nil, err
	}
	if d.Notifications, err = tx.ListNotifications(ctx, drepo.NotificationFilter{IncludeDismissed: true}); err != nil {
		return nil, err
	}
	if d.Requests, err = tx.ListRequests(ctx, drepo.RequestFilter{}); err != nil {
		return nil, err
	}
	if includeAudit {
		if d.AuditLogs, err = tx.ListAuditLogs(ctx, 0); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Create snapshots every ledger table, and the audit trail when
// includeAudit is set, into a new backup.
func (s *SnapshotCoordinator) Create(ctx context.Context, actor models.Actor, includeAudit bool, description *string) (*models.Backup, error) {
	var out *models.Backup
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	err := s.runner.RunWithOptions(ctx, actor, opts, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		doc, err := capture(ctx, tx, includeAudit, w.Now)
		if err != nil {
			return err
		}
		body, err := encodeSnapshot(doc)
		if err != nil {
			return err
		}
		b := &models.Backup{
			CreatedBy:     actor.ID,
			FileName:      w.Now.Format(backupFileLayout),
			Description:   description,
			Document:      body,
			IncludesAudit: includeAudit,
			SizeBytes:     int64(len(body)),
			CreatedAt:     w.Now,
		}
		if err := tx.CreateBackup(ctx, b); err != nil {
			return err
		}
		w.Audit("CREATE_BACKUP", "backup", b.ID, map[string]interface{}{
			"file_name":      b.FileName,
			"includes_audit": includeAudit,
			"size_bytes":     b.SizeBytes,
			"tables":         doc.Counts(),
		})
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordBackup(out.SizeBytes)
	s.log.Info("backup created",
		logger.Int64("backup_id", out.ID),
		logger.String("file_name", out.FileName),
		logger.Int64("size_bytes", out.SizeBytes))
	return out, nil
}

// Restore replaces the ledger with the backup's contents in one
// serializable transaction. Ids are preserved and every station is
// recalculated afterwards. Any failure leaves the ledger untouched.
func (s *SnapshotCoordinator) Restore(ctx context.Context, actor models.Actor, id int64) (*RestoreResult, error) {
	start := time.Now()
	var out *RestoreResult
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	err := s.runner.RunWithOptions(ctx, actor, opts, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		b, err := tx.GetBackup(ctx, id)
		if err != nil {
			return err
		}
		doc, err := decodeSnapshot(b.Document)
		if err != nil {
			return err
		}
		if err := s.replace(ctx, tx, w, doc); err != nil {
			return err
		}
		out = &RestoreResult{
			BackupID:      b.ID,
			FileName:      b.FileName,
			IncludesAudit: doc.IncludesAudit,
			Restored:      doc.Counts(),
		}
		w.Audit("RESTORE_BACKUP", "backup", b.ID, map[string]interface{}{
			"file_name": b.FileName,
			"restored":  out.Restored,
		})
		return nil
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := "failed"
		if errors.Is(err, errs.ErrValidation) || errors.Is(err, errs.ErrNotFound) {
			outcome = "rejected"
		}
		s.metrics.RecordRestore(outcome, elapsed)
		s.log.Error("backup restore failed", logger.Int64("backup_id", id), logger.Error(err))
		return nil, err
	}
	s.metrics.RecordRestore("ok", elapsed)
	s.log.Info("backup restored",
		logger.Int64("backup_id", id),
		logger.Any("restored", out.Restored))
	return out, nil
}

func (s *SnapshotCoordinator) replace(ctx context.Context, tx drepo.Tx, w *Work, d *snapshotDocument) error {
	deletes := restoreDeleteOrder
	if d.IncludesAudit {
		deletes = append([]drepo.Table{drepo.TableAuditLogs}, deletes...)
	}
	for _, t := range deletes {
		if err := tx.DeleteAll(ctx, t); err != nil {
			return errs.Consistency("delete "+string(t), err)
		}
	}

	if err := insertRows(ctx, "stations", d.Stations, tx.CreateStation); err != nil {
		return err
	}
	if err := insertRows(ctx, "bars", d.Bars, tx.CreateBar); err != nil {
		return err
	}
	if err := insertRows(ctx, "circuits", d.Circuits, tx.CreateCircuit); err != nil {
		return err
	}
	if err := insertRows(ctx, "sub_circuits", d.SubCircuits, tx.CreateSubCircuit); err != nil {
		return err
	}
	if err := insertRows(ctx, "observations", d.Observations, tx.CreateObservation); err != nil {
		return err
	}
	if err := insertRows(ctx, "notifications", d.Notifications, tx.CreateNotification); err != nil {
		return err
	}
	if err := insertRows(ctx, "requests", d.Requests, tx.CreateRequest); err != nil {
		return err
	}
	if d.IncludesAudit {
		if err := insertRows(ctx, "audit_logs", d.AuditLogs, tx.CreateAuditLog); err != nil {
			return err
		}
	}

	for _, st := range d.Stations {
		if _, err := w.Recalculate(ctx, tx, st.ID); err != nil {
			return errs.Consistency("recalculate", err)
		}
	}

	seqs := restoreSequences
	if d.IncludesAudit {
		seqs = append(seqs, drepo.TableAuditLogs)
	}
	for _, t := range seqs {
		if err := tx.ResetSequence(ctx, t); err != nil {
			return errs.Consistency("reset sequence "+string(t), err)
		}
	}
	return nil
}

func insertRows[T any](ctx context.Context, table string, rows []*T, create func(context.Context, *T) error) error {
	for _, r := range rows {
		if r == nil {
			continue
		}
		if err := create(ctx, r); err != nil {
			return errs.Consistency("insert "+table, err)
		}
	}
	return nil
}

// Delete removes a backup.
func (s *SnapshotCoordinator) Delete(ctx context.Context, actor models.Actor, id int64) error {
	return s.runner.Run(ctx, actor, func(ctx context.Context, tx drepo.Tx, w *Work) error {
		b, err := tx.GetBackup(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteBackup(ctx, id); err != nil {
			return err
		}
		w.Audit("DELETE_BACKUP", "backup", id, map[string]string{"file_name": b.FileName})
		return nil
	})
}
