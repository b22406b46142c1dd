package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	"PowerLedger/internal/domain/repository"
)

// Tx implements repository.Tx on a *sql.Tx.
type Tx struct {
	tx         *sql.Tx
	savepoints int
}

var _ repository.Tx = (*Tx)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// insert writes one row and stores the generated id into *id. A positive *id
// is written verbatim.
func (t *Tx) insert(ctx context.Context, table repository.Table, id *int64, cols []string, args []interface{}) error {
	if *id > 0 {
		cols = append([]string{"id"}, cols...)
		args = append([]interface{}{*id}, args...)
	}
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", table, strings.Join(cols, ", "), strings.Join(ph, ", "))
	if err := t.tx.QueryRowContext(ctx, q, args...).Scan(id); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// exec runs an update/delete and maps "no rows affected" to NotFound.
func (t *Tx) exec(ctx context.Context, entity string, id int64, q string, args ...interface{}) error {
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", entity, id, err)
	}
	if n == 0 {
		return errs.NotFound(entity, id)
	}
	return nil
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound(entity, id)
	}
	return fmt.Errorf("get %s %d: %w", entity, id, err)
}

// where accumulates positional conditions.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func limitClause(n int) string {
	if n > 0 {
		return fmt.Sprintf(" LIMIT %d", n)
	}
	return ""
}

func statusArray(list []models.LoadStatus) interface{} {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return pq.Array(out)
}

// stations

const stationCols = `id, code, name, order_index, transformer_capacity_kw, max_demand_kw, available_power_kw, status, created_at, updated_at`

func scanStation(r rowScanner) (*models.Station, error) {
	var s models.Station
	err := r.Scan(&s.ID, &s.Code, &s.Name, &s.OrderIndex, &s.TransformerCapacityKW,
		&s.MaxDemandKW, &s.AvailablePowerKW, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (t *Tx) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	s, err := scanStation(t.tx.QueryRowContext(ctx, `SELECT `+stationCols+` FROM stations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "station", id)
	}
	return s, nil
}

func (t *Tx) GetStationForUpdate(ctx context.Context, id int64) (*models.Station, error) {
	s, err := scanStation(t.tx.QueryRowContext(ctx, `SELECT `+stationCols+` FROM stations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "station", id)
	}
	return s, nil
}

func (t *Tx) ListStations(ctx context.Context) ([]*models.Station, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+stationCols+` FROM stations ORDER BY order_index, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var out []*models.Station
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *Tx) CreateStation(ctx context.Context, s *models.Station) error {
	return t.insert(ctx, repository.TableStations, &s.ID,
		[]string{"code", "name", "order_index", "transformer_capacity_kw", "max_demand_kw", "available_power_kw", "status", "created_at", "updated_at"},
		[]interface{}{s.Code, s.Name, s.OrderIndex, s.TransformerCapacityKW, s.MaxDemandKW, s.AvailablePowerKW, s.Status, s.CreatedAt, s.UpdatedAt})
}

func (t *Tx) UpdateStation(ctx context.Context, s *models.Station) error {
	return t.exec(ctx, "station", s.ID,
		`UPDATE stations SET code = $2, name = $3, order_index = $4, transformer_capacity_kw = $5,
		 max_demand_kw = $6, available_power_kw = $7, status = $8, updated_at = $9 WHERE id = $1`,
		s.ID, s.Code, s.Name, s.OrderIndex, s.TransformerCapacityKW, s.MaxDemandKW, s.AvailablePowerKW, s.Status, s.UpdatedAt)
}

// bars

const barCols = `id, station_id, name, bar_type, status, capacity_kw, capacity_a, created_at, updated_at`

func scanBar(r rowScanner) (*models.Bar, error) {
	var b models.Bar
	err := r.Scan(&b.ID, &b.StationID, &b.Name, &b.BarType, &b.Status, &b.CapacityKW, &b.CapacityA, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (t *Tx) GetBar(ctx context.Context, id int64) (*models.Bar, error) {
	b, err := scanBar(t.tx.QueryRowContext(ctx, `SELECT `+barCols+` FROM bars WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "bar", id)
	}
	return b, nil
}

func (t *Tx) ListBars(ctx context.Context, f repository.BarFilter) ([]*models.Bar, error) {
	var w where
	if f.StationID != nil {
		w.add("station_id = $%d", *f.StationID)
	}
	if f.BarType != nil {
		w.add("bar_type = $%d", string(*f.BarType))
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT `+barCols+` FROM bars`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var out []*models.Bar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *Tx) CreateBar(ctx context.Context, b *models.Bar) error {
	return t.insert(ctx, repository.TableBars, &b.ID,
		[]string{"station_id", "name", "bar_type", "status", "capacity_kw", "capacity_a", "created_at", "updated_at"},
		[]interface{}{b.StationID, b.Name, b.BarType, b.Status, b.CapacityKW, b.CapacityA, b.CreatedAt, b.UpdatedAt})
}

// circuits

const circuitCols = `id, bar_id, secondary_bar_id, denomination, name, description, local_item, pi_kw, fd, md_kw,
	status, is_ups, reserve_since, reserve_expires_at, client_last_contact, created_at, updated_at`

func scanCircuit(r rowScanner) (*models.Circuit, error) {
	var c models.Circuit
	err := r.Scan(&c.ID, &c.BarID, &c.SecondaryBarID, &c.Denomination, &c.Name, &c.Description, &c.LocalItem,
		&c.PiKW, &c.Fd, &c.MdKW, &c.Status, &c.IsUPS, &c.ReserveSince, &c.ReserveExpiresAt, &c.ClientLastContact,
		&c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (t *Tx) GetCircuit(ctx context.Context, id int64) (*models.Circuit, error) {
	c, err := scanCircuit(t.tx.QueryRowContext(ctx, `SELECT `+circuitCols+` FROM circuits WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "circuit", id)
	}
	return c, nil
}

func (t *Tx) ListCircuits(ctx context.Context, f repository.CircuitFilter) ([]*models.Circuit, error) {
	var w where
	if f.BarIDs != nil {
		w.add("bar_id = ANY($%d)", pq.Array(f.BarIDs))
	}
	if len(f.Statuses) > 0 {
		w.add("status = ANY($%d)", statusArray(f.Statuses))
	}
	if len(f.ExcludeStatuses) > 0 {
		w.add("status <> ALL($%d)", statusArray(f.ExcludeStatuses))
	}
	if f.ExpiresOnOrBefore != nil {
		w.raw("reserve_expires_at IS NOT NULL")
		w.add("reserve_expires_at <= $%d", *f.ExpiresOnOrBefore)
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT `+circuitCols+` FROM circuits`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query circuits: %w", err)
	}
	defer rows.Close()

	var out []*models.Circuit
	for rows.Next() {
		c, err := scanCircuit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan circuit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func circuitValues(c *models.Circuit) []interface{} {
	return []interface{}{c.BarID, c.SecondaryBarID, c.Denomination, c.Name, c.Description, c.LocalItem,
		c.PiKW, c.Fd, c.MdKW, c.Status, c.IsUPS, c.ReserveSince, c.ReserveExpiresAt, c.ClientLastContact,
		c.CreatedAt, c.UpdatedAt}
}

func (t *Tx) CreateCircuit(ctx context.Context, c *models.Circuit) error {
	return t.insert(ctx, repository.TableCircuits, &c.ID,
		[]string{"bar_id", "secondary_bar_id", "denomination", "name", "description", "local_item", "pi_kw", "fd", "md_kw",
			"status", "is_ups", "reserve_since", "reserve_expires_at", "client_last_contact", "created_at", "updated_at"},
		circuitValues(c))
}

func (t *Tx) UpdateCircuit(ctx context.Context, c *models.Circuit) error {
	args := append([]interface{}{c.ID}, circuitValues(c)...)
	return t.exec(ctx, "circuit", c.ID,
		`UPDATE circuits SET bar_id = $2, secondary_bar_id = $3, denomination = $4, name = $5, description = $6,
		 local_item = $7, pi_kw = $8, fd = $9, md_kw = $10, status = $11, is_ups = $12, reserve_since = $13,
		 reserve_expires_at = $14, client_last_contact = $15, created_at = $16, updated_at = $17 WHERE id = $1`,
		args...)
}

func (t *Tx) DeleteCircuit(ctx context.Context, id int64) error {
	return t.exec(ctx, "circuit", id, `DELETE FROM circuits WHERE id = $1`, id)
}

// sub-circuits

const subCircuitCols = `id, circuit_id, name, description, itm, mm2, pi_kw, fd, md_kw, status,
	reserve_since, reserve_expires_at, created_at, updated_at`

func scanSubCircuit(r rowScanner) (*models.SubCircuit, error) {
	var sc models.SubCircuit
	err := r.Scan(&sc.ID, &sc.CircuitID, &sc.Name, &sc.Description, &sc.ITM, &sc.MM2, &sc.PiKW, &sc.Fd, &sc.MdKW,
		&sc.Status, &sc.ReserveSince, &sc.ReserveExpiresAt, &sc.CreatedAt, &sc.UpdatedAt)
	return &sc, err
}

func (t *Tx) GetSubCircuit(ctx context.Context, id int64) (*models.SubCircuit, error) {
	sc, err := scanSubCircuit(t.tx.QueryRowContext(ctx, `SELECT `+subCircuitCols+` FROM sub_circuits WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "sub-circuit", id)
	}
	return sc, nil
}

func (t *Tx) ListSubCircuits(ctx context.Context, f repository.SubCircuitFilter) ([]*models.SubCircuit, error) {
	var w where
	if f.CircuitIDs != nil {
		w.add("circuit_id = ANY($%d)", pq.Array(f.CircuitIDs))
	}
	if len(f.Statuses) > 0 {
		w.add("status = ANY($%d)", statusArray(f.Statuses))
	}
	if f.ExpiresOnOrBefore != nil {
		w.raw("reserve_expires_at IS NOT NULL")
		w.add("reserve_expires_at <= $%d", *f.ExpiresOnOrBefore)
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT `+subCircuitCols+` FROM sub_circuits`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub-circuits: %w", err)
	}
	defer rows.Close()

	var out []*models.SubCircuit
	for rows.Next() {
		sc, err := scanSubCircuit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sub-circuit: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func subCircuitValues(sc *models.SubCircuit) []interface{} {
	return []interface{}{sc.CircuitID, sc.Name, sc.Description, sc.ITM, sc.MM2, sc.PiKW, sc.Fd, sc.MdKW, sc.Status,
		sc.ReserveSince, sc.ReserveExpiresAt, sc.CreatedAt, sc.UpdatedAt}
}

func (t *Tx) CreateSubCircuit(ctx context.Context, sc *models.SubCircuit) error {
	return t.insert(ctx, repository.TableSubCircuits, &sc.ID,
		[]string{"circuit_id", "name", "description", "itm", "mm2", "pi_kw", "fd", "md_kw", "status",
			"reserve_since", "reserve_expires_at", "created_at", "updated_at"},
		subCircuitValues(sc))
}

func (t *Tx) UpdateSubCircuit(ctx context.Context, sc *models.SubCircuit) error {
	args := append([]interface{}{sc.ID}, subCircuitValues(sc)...)
	return t.exec(ctx, "sub-circuit", sc.ID,
		`UPDATE sub_circuits SET circuit_id = $2, name = $3, description = $4, itm = $5, mm2 = $6, pi_kw = $7,
		 fd = $8, md_kw = $9, status = $10, reserve_since = $11, reserve_expires_at = $12, created_at = $13,
		 updated_at = $14 WHERE id = $1`,
		args...)
}

func (t *Tx) DeleteSubCircuit(ctx context.Context, id int64) error {
	return t.exec(ctx, "sub-circuit", id, `DELETE FROM sub_circuits WHERE id = $1`, id)
}

// notifications

const notificationCols = `id, station_id, circuit_id, type, message, is_read, is_dismissed, extended_until, auto_delete_at, created_at`

func scanNotification(r rowScanner) (*models.Notification, error) {
	var n models.Notification
	err := r.Scan(&n.ID, &n.StationID, &n.CircuitID, &n.Type, &n.Message, &n.IsRead, &n.IsDismissed,
		&n.ExtendedUntil, &n.AutoDeleteAt, &n.CreatedAt)
	return &n, err
}

func (t *Tx) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	n, err := scanNotification(t.tx.QueryRowContext(ctx, `SELECT `+notificationCols+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "notification", id)
	}
	return n, nil
}

func notificationWhere(f repository.NotificationFilter) *where {
	w := &where{}
	if !f.IncludeDismissed {
		w.raw("is_dismissed = false")
	}
	if f.Type != nil {
		w.add("type = $%d", string(*f.Type))
	}
	if f.IsRead != nil {
		w.add("is_read = $%d", *f.IsRead)
	}
	if f.CircuitID != nil {
		w.add("circuit_id = $%d", *f.CircuitID)
	}
	if f.ExtendedUntil != nil {
		w.add("extended_until = $%d", *f.ExtendedUntil)
	}
	return w
}

func (t *Tx) ListNotifications(ctx context.Context, f repository.NotificationFilter) ([]*models.Notification, error) {
	w := notificationWhere(f)
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+notificationCols+` FROM notifications`+w.String()+` ORDER BY created_at DESC, id DESC`+limitClause(f.Limit),
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (t *Tx) CountNotifications(ctx context.Context, f repository.NotificationFilter) (int, error) {
	w := notificationWhere(f)
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

func (t *Tx) CreateNotification(ctx context.Context, n *models.Notification) error {
	return t.insert(ctx, repository.TableNotifications, &n.ID,
		[]string{"station_id", "circuit_id", "type", "message", "is_read", "is_dismissed", "extended_until", "auto_delete_at", "created_at"},
		[]interface{}{n.StationID, n.CircuitID, n.Type, n.Message, n.IsRead, n.IsDismissed, n.ExtendedUntil, n.AutoDeleteAt, n.CreatedAt})
}

func (t *Tx) UpdateNotification(ctx context.Context, n *models.Notification) error {
	return t.exec(ctx, "notification", n.ID,
		`UPDATE notifications SET station_id = $2, circuit_id = $3, type = $4, message = $5, is_read = $6,
		 is_dismissed = $7, extended_until = $8, auto_delete_at = $9 WHERE id = $1`,
		n.ID, n.StationID, n.CircuitID, n.Type, n.Message, n.IsRead, n.IsDismissed, n.ExtendedUntil, n.AutoDeleteAt)
}

// observations

const observationCols = `id, circuit_id, sub_circuit_id, bar_id, user_id, severity, content, created_at`

func (t *Tx) ListObservations(ctx context.Context, f repository.ObservationFilter) ([]*models.Observation, error) {
	var w where
	if f.CircuitID != nil {
		w.add("circuit_id = $%d", *f.CircuitID)
	}
	if f.SubCircuitID != nil {
		w.add("sub_circuit_id = $%d", *f.SubCircuitID)
	}
	if f.BarID != nil {
		w.add("bar_id = $%d", *f.BarID)
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT `+observationCols+` FROM observations`+w.String()+` ORDER BY id`+limitClause(f.Limit), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.CircuitID, &o.SubCircuitID, &o.BarID, &o.UserID, &o.Severity, &o.Content, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (t *Tx) CreateObservation(ctx context.Context, o *models.Observation) error {
	return t.insert(ctx, repository.TableObservations, &o.ID,
		[]string{"circuit_id", "sub_circuit_id", "bar_id", "user_id", "severity", "content", "created_at"},
		[]interface{}{o.CircuitID, o.SubCircuitID, o.BarID, o.UserID, o.Severity, o.Content, o.CreatedAt})
}

// capacity requests

const requestCols = `id, requester_id, station_id, bar_type, circuit_id, local_item, requested_load_kw, fd,
	sub_circuit_name, sub_circuit_description, sub_circuit_itm, sub_circuit_mm2, justification, status,
	rejection_reason, reviewed_by, reviewed_at, created_at, updated_at`

func scanRequest(r rowScanner) (*models.CapacityRequest, error) {
	var cr models.CapacityRequest
	err := r.Scan(&cr.ID, &cr.RequesterID, &cr.StationID, &cr.BarType, &cr.CircuitID, &cr.LocalItem,
		&cr.RequestedLoadKW, &cr.Fd, &cr.SubCircuitName, &cr.SubCircuitDescription, &cr.SubCircuitITM,
		&cr.SubCircuitMM2, &cr.Justification, &cr.Status, &cr.RejectionReason, &cr.ReviewedBy, &cr.ReviewedAt,
		&cr.CreatedAt, &cr.UpdatedAt)
	return &cr, err
}

func (t *Tx) GetRequest(ctx context.Context, id int64) (*models.CapacityRequest, error) {
	cr, err := scanRequest(t.tx.QueryRowContext(ctx, `SELECT `+requestCols+` FROM requests WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	return cr, nil
}

func (t *Tx) ListRequests(ctx context.Context, f repository.RequestFilter) ([]*models.CapacityRequest, error) {
	var w where
	if f.StationID != nil {
		w.add("station_id = $%d", *f.StationID)
	}
	if f.Status != nil {
		w.add("status = $%d", string(*f.Status))
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT `+requestCols+` FROM requests`+w.String()+` ORDER BY id`+limitClause(f.Limit), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []*models.CapacityRequest
	for rows.Next() {
		cr, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func requestValues(r *models.CapacityRequest) []interface{} {
	return []interface{}{r.RequesterID, r.StationID, r.BarType, r.CircuitID, r.LocalItem, r.RequestedLoadKW, r.Fd,
		r.SubCircuitName, r.SubCircuitDescription, r.SubCircuitITM, r.SubCircuitMM2, r.Justification, r.Status,
		r.RejectionReason, r.ReviewedBy, r.ReviewedAt, r.CreatedAt, r.UpdatedAt}
}

func (t *Tx) CreateRequest(ctx context.Context, r *models.CapacityRequest) error {
	return t.insert(ctx, repository.TableRequests, &r.ID,
		[]string{"requester_id", "station_id", "bar_type", "circuit_id", "local_item", "requested_load_kw", "fd",
			"sub_circuit_name", "sub_circuit_description", "sub_circuit_itm", "sub_circuit_mm2", "justification", "status",
			"rejection_reason", "reviewed_by", "reviewed_at", "created_at", "updated_at"},
		requestValues(r))
}

func (t *Tx) UpdateRequest(ctx context.Context, r *models.CapacityRequest) error {
	args := append([]interface{}{r.ID}, requestValues(r)...)
	return t.exec(ctx, "request", r.ID,
		`UPDATE requests SET requester_id = $2, station_id = $3, bar_type = $4, circuit_id = $5, local_item = $6,
		 requested_load_kw = $7, fd = $8, sub_circuit_name = $9, sub_circuit_description = $10, sub_circuit_itm = $11,
		 sub_circuit_mm2 = $12, justification = $13, status = $14, rejection_reason = $15, reviewed_by = $16,
		 reviewed_at = $17, created_at = $18, updated_at = $19 WHERE id = $1`,
		args...)
}

// audit logs

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (t *Tx) ListAuditLogs(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, user_id, user_role, user_name, action_date, action, entity_type, entity_id, details, is_flagged, flag_reason
		 FROM audit_logs ORDER BY id`+limitClause(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditLog
	for rows.Next() {
		var a models.AuditLog
		var details []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.UserRole, &a.UserName, &a.ActionDate, &a.Action, &a.EntityType,
			&a.EntityID, &details, &a.IsFlagged, &a.FlagReason); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		a.Details = details
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (t *Tx) CreateAuditLog(ctx context.Context, a *models.AuditLog) error {
	return t.insert(ctx, repository.TableAuditLogs, &a.ID,
		[]string{"user_id", "user_role", "user_name", "action_date", "action", "entity_type", "entity_id", "details", "is_flagged", "flag_reason"},
		[]interface{}{a.UserID, a.UserRole, a.UserName, a.ActionDate, a.Action, a.EntityType, a.EntityID, nullJSON(a.Details), a.IsFlagged, a.FlagReason})
}

// backups

func (t *Tx) GetBackup(ctx context.Context, id int64) (*models.Backup, error) {
	var b models.Backup
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, created_by, file_name, description, document, includes_audit, size_bytes, created_at FROM backups WHERE id = $1`, id,
	).Scan(&b.ID, &b.CreatedBy, &b.FileName, &b.Description, &b.Document, &b.IncludesAudit, &b.SizeBytes, &b.CreatedAt)
	if err != nil {
		return nil, notFound(err, "backup", id)
	}
	return &b, nil
}

func (t *Tx) ListBackups(ctx context.Context, limit int) ([]*models.Backup, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, created_by, file_name, description, includes_audit, size_bytes, created_at
		 FROM backups ORDER BY created_at DESC, id DESC`+limitClause(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	var out []*models.Backup
	for rows.Next() {
		var b models.Backup
		if err := rows.Scan(&b.ID, &b.CreatedBy, &b.FileName, &b.Description, &b.IncludesAudit, &b.SizeBytes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (t *Tx) CreateBackup(ctx context.Context, b *models.Backup) error {
	return t.insert(ctx, "backups", &b.ID,
		[]string{"created_by", "file_name", "description", "document", "includes_audit", "size_bytes", "created_at"},
		[]interface{}{b.CreatedBy, b.FileName, b.Description, b.Document, b.IncludesAudit, b.SizeBytes, b.CreatedAt})
}

func (t *Tx) DeleteBackup(ctx context.Context, id int64) error {
	return t.exec(ctx, "backup", id, `DELETE FROM backups WHERE id = $1`, id)
}

func (t *Tx) Savepoint(ctx context.Context, fn func() error) error {
	t.savepoints++
	name := fmt.Sprintf("sp_%d", t.savepoints)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %v: %w", rbErr, err)
		}
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// snapshot support

func knownTable(table repository.Table) error {
	switch table {
	case repository.TableStations, repository.TableBars, repository.TableCircuits, repository.TableSubCircuits,
		repository.TableObservations, repository.TableNotifications, repository.TableRequests, repository.TableAuditLogs:
		return nil
	}
	return fmt.Errorf("unknown table %q", table)
}

func (t *Tx) DeleteAll(ctx context.Context, table repository.Table) error {
	if err := knownTable(table); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+string(table)); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (t *Tx) ResetSequence(ctx context.Context, table repository.Table) error {
	if err := knownTable(table); err != nil {
		return err
	}
	q := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`, table, table)
	if _, err := t.tx.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("reset sequence %s: %w", table, err)
	}
	return nil
}
