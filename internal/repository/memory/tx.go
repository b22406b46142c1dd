package memory

import (
	"context"
	"fmt"
	"sort"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
	"PowerLedger/internal/domain/repository"
)

// Tx implements repository.Tx over a private copy of the store state.
type Tx struct {
	st *state
	sp *savepoint
}

var _ repository.Tx = (*Tx)(nil)

func duplicate(t repository.Table, id int64) error {
	return fmt.Errorf("insert into %s: duplicate key id=%d", t, id)
}

func missingParent(t repository.Table, parent string, id int64) error {
	return fmt.Errorf("insert into %s: %s %d does not exist", t, parent, id)
}

func sortedByID[T any](m map[int64]*T, keep func(*T) bool) []*T {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		cp := *m[id]
		out = append(out, &cp)
	}
	return out
}

func limit[T any](items []*T, n int) []*T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func containsStatus(list []models.LoadStatus, s models.LoadStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsID(list []int64, id int64) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// stations

func (t *Tx) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	s, ok := t.st.stations[id]
	if !ok {
		return nil, errs.NotFound("station", id)
	}
	cp := *s
	return &cp, nil
}

func (t *Tx) GetStationForUpdate(ctx context.Context, id int64) (*models.Station, error) {
	return t.GetStation(ctx, id)
}

func (t *Tx) ListStations(ctx context.Context) ([]*models.Station, error) {
	out := sortedByID(t.st.stations, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (t *Tx) CreateStation(ctx context.Context, s *models.Station) error {
	t.touch(repository.TableStations)
	if _, ok := t.st.stations[s.ID]; ok && s.ID > 0 {
		return duplicate(repository.TableStations, s.ID)
	}
	s.ID = t.st.nextID(repository.TableStations, s.ID)
	if _, ok := t.st.stations[s.ID]; ok {
		return duplicate(repository.TableStations, s.ID)
	}
	cp := *s
	t.st.stations[s.ID] = &cp
	return nil
}

func (t *Tx) UpdateStation(ctx context.Context, s *models.Station) error {
	t.touch(repository.TableStations)
	if _, ok := t.st.stations[s.ID]; !ok {
		return errs.NotFound("station", s.ID)
	}
	cp := *s
	t.st.stations[s.ID] = &cp
	return nil
}

// bars

func (t *Tx) GetBar(ctx context.Context, id int64) (*models.Bar, error) {
	b, ok := t.st.bars[id]
	if !ok {
		return nil, errs.NotFound("bar", id)
	}
	cp := *b
	return &cp, nil
}

func (t *Tx) ListBars(ctx context.Context, f repository.BarFilter) ([]*models.Bar, error) {
	return sortedByID(t.st.bars, func(b *models.Bar) bool {
		if f.StationID != nil && b.StationID != *f.StationID {
			return false
		}
		return f.BarType == nil || b.BarType == *f.BarType
	}), nil
}

func (t *Tx) CreateBar(ctx context.Context, b *models.Bar) error {
	t.touch(repository.TableBars)
	if _, ok := t.st.stations[b.StationID]; !ok {
		return missingParent(repository.TableBars, "station", b.StationID)
	}
	if _, ok := t.st.bars[b.ID]; ok && b.ID > 0 {
		return duplicate(repository.TableBars, b.ID)
	}
	b.ID = t.st.nextID(repository.TableBars, b.ID)
	if _, ok := t.st.bars[b.ID]; ok {
		return duplicate(repository.TableBars, b.ID)
	}
	cp := *b
	t.st.bars[b.ID] = &cp
	return nil
}

// circuits

func (t *Tx) GetCircuit(ctx context.Context, id int64) (*models.Circuit, error) {
	c, ok := t.st.circuits[id]
	if !ok {
		return nil, errs.NotFound("circuit", id)
	}
	cp := *c
	return &cp, nil
}

func (t *Tx) ListCircuits(ctx context.Context, f repository.CircuitFilter) ([]*models.Circuit, error) {
	return sortedByID(t.st.circuits, func(c *models.Circuit) bool {
		if f.BarIDs != nil && !containsID(f.BarIDs, c.BarID) {
			return false
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, c.Status) {
			return false
		}
		if containsStatus(f.ExcludeStatuses, c.Status) {
			return false
		}
		if f.ExpiresOnOrBefore != nil {
			if c.ReserveExpiresAt == nil || c.ReserveExpiresAt.After(*f.ExpiresOnOrBefore) {
				return false
			}
		}
		return true
	}), nil
}

func (t *Tx) checkCircuitParents(c *models.Circuit) error {
	if _, ok := t.st.bars[c.BarID]; !ok {
		return missingParent(repository.TableCircuits, "bar", c.BarID)
	}
	if c.SecondaryBarID != nil {
		if _, ok := t.st.bars[*c.SecondaryBarID]; !ok {
			return missingParent(repository.TableCircuits, "bar", *c.SecondaryBarID)
		}
	}
	return nil
}

func (t *Tx) CreateCircuit(ctx context.Context, c *models.Circuit) error {
	t.touch(repository.TableCircuits)
	if err := t.checkCircuitParents(c); err != nil {
		return err
	}
	if _, ok := t.st.circuits[c.ID]; ok && c.ID > 0 {
		return duplicate(repository.TableCircuits, c.ID)
	}
	c.ID = t.st.nextID(repository.TableCircuits, c.ID)
	if _, ok := t.st.circuits[c.ID]; ok {
		return duplicate(repository.TableCircuits, c.ID)
	}
	cp := *c
	t.st.circuits[c.ID] = &cp
	return nil
}

func (t *Tx) UpdateCircuit(ctx context.Context, c *models.Circuit) error {
	t.touch(repository.TableCircuits)
	if _, ok := t.st.circuits[c.ID]; !ok {
		return errs.NotFound("circuit", c.ID)
	}
	if err := t.checkCircuitParents(c); err != nil {
		return err
	}
	cp := *c
	t.st.circuits[c.ID] = &cp
	return nil
}

func (t *Tx) DeleteCircuit(ctx context.Context, id int64) error {
	t.touch(repository.TableCircuits, repository.TableSubCircuits, repository.TableObservations, repository.TableNotifications, repository.TableRequests)
	if _, ok := t.st.circuits[id]; !ok {
		return errs.NotFound("circuit", id)
	}
	for scID, sc := range t.st.subCircuits {
		if sc.CircuitID == id {
			t.deleteSubCircuit(scID)
		}
	}
	for oid, o := range t.st.observations {
		if o.CircuitID != nil && *o.CircuitID == id {
			delete(t.st.observations, oid)
		}
	}
	for _, n := range t.st.notifications {
		if n.CircuitID != nil && *n.CircuitID == id {
			n.CircuitID = nil
		}
	}
	for _, r := range t.st.requests {
		if r.CircuitID != nil && *r.CircuitID == id {
			r.CircuitID = nil
		}
	}
	delete(t.st.circuits, id)
	return nil
}

// sub-circuits

func (t *Tx) GetSubCircuit(ctx context.Context, id int64) (*models.SubCircuit, error) {
	sc, ok := t.st.subCircuits[id]
	if !ok {
		return nil, errs.NotFound("sub-circuit", id)
	}
	cp := *sc
	return &cp, nil
}

func (t *Tx) ListSubCircuits(ctx context.Context, f repository.SubCircuitFilter) ([]*models.SubCircuit, error) {
	return sortedByID(t.st.subCircuits, func(sc *models.SubCircuit) bool {
		if f.CircuitIDs != nil && !containsID(f.CircuitIDs, sc.CircuitID) {
			return false
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, sc.Status) {
			return false
		}
		if f.ExpiresOnOrBefore != nil {
			if sc.ReserveExpiresAt == nil || sc.ReserveExpiresAt.After(*f.ExpiresOnOrBefore) {
				return false
			}
		}
		return true
	}), nil
}

func (t *Tx) CreateSubCircuit(ctx context.Context, sc *models.SubCircuit) error {
	t.touch(repository.TableSubCircuits)
	if _, ok := t.st.circuits[sc.CircuitID]; !ok {
		return missingParent(repository.TableSubCircuits, "circuit", sc.CircuitID)
	}
	if _, ok := t.st.subCircuits[sc.ID]; ok && sc.ID > 0 {
		return duplicate(repository.TableSubCircuits, sc.ID)
	}
	sc.ID = t.st.nextID(repository.TableSubCircuits, sc.ID)
	if _, ok := t.st.subCircuits[sc.ID]; ok {
		return duplicate(repository.TableSubCircuits, sc.ID)
	}
	cp := *sc
	t.st.subCircuits[sc.ID] = &cp
	return nil
}

func (t *Tx) UpdateSubCircuit(ctx context.Context, sc *models.SubCircuit) error {
	t.touch(repository.TableSubCircuits)
	if _, ok := t.st.subCircuits[sc.ID]; !ok {
		return errs.NotFound("sub-circuit", sc.ID)
	}
	cp := *sc
	t.st.subCircuits[sc.ID] = &cp
	return nil
}

func (t *Tx) DeleteSubCircuit(ctx context.Context, id int64) error {
	if _, ok := t.st.subCircuits[id]; !ok {
		return errs.NotFound("sub-circuit", id)
	}
	t.deleteSubCircuit(id)
	return nil
}

func (t *Tx) deleteSubCircuit(id int64) {
	t.touch(repository.TableSubCircuits, repository.TableObservations)
	for oid, o := range t.st.observations {
		if o.SubCircuitID != nil && *o.SubCircuitID == id {
			delete(t.st.observations, oid)
		}
	}
	delete(t.st.subCircuits, id)
}

// notifications

func (t *Tx) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	n, ok := t.st.notifications[id]
	if !ok {
		return nil, errs.NotFound("notification", id)
	}
	cp := *n
	return &cp, nil
}

func (t *Tx) matchNotifications(f repository.NotificationFilter) []*models.Notification {
	out := sortedByID(t.st.notifications, func(n *models.Notification) bool {
		if !f.IncludeDismissed && n.IsDismissed {
			return false
		}
		if f.Type != nil && n.Type != *f.Type {
			return false
		}
		if f.IsRead != nil && n.IsRead != *f.IsRead {
			return false
		}
		if f.CircuitID != nil && (n.CircuitID == nil || *n.CircuitID != *f.CircuitID) {
			return false
		}
		if f.ExtendedUntil != nil && (n.ExtendedUntil == nil || !n.ExtendedUntil.Equal(*f.ExtendedUntil)) {
			return false
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (t *Tx) ListNotifications(ctx context.Context, f repository.NotificationFilter) ([]*models.Notification, error) {
	return limit(t.matchNotifications(f), f.Limit), nil
}

func (t *Tx) CountNotifications(ctx context.Context, f repository.NotificationFilter) (int, error) {
	return len(t.matchNotifications(f)), nil
}

func (t *Tx) CreateNotification(ctx context.Context, n *models.Notification) error {
	t.touch(repository.TableNotifications)
	if _, ok := t.st.notifications[n.ID]; ok && n.ID > 0 {
		return duplicate(repository.TableNotifications, n.ID)
	}
	n.ID = t.st.nextID(repository.TableNotifications, n.ID)
	if _, ok := t.st.notifications[n.ID]; ok {
		return duplicate(repository.TableNotifications, n.ID)
	}
	cp := *n
	t.st.notifications[n.ID] = &cp
	return nil
}

func (t *Tx) UpdateNotification(ctx context.Context, n *models.Notification) error {
	t.touch(repository.TableNotifications)
	if _, ok := t.st.notifications[n.ID]; !ok {
		return errs.NotFound("notification", n.ID)
	}
	cp := *n
	t.st.notifications[n.ID] = &cp
	return nil
}

// observations

func (t *Tx) ListObservations(ctx context.Context, f repository.ObservationFilter) ([]*models.Observation, error) {
	out := sortedByID(t.st.observations, func(o *models.Observation) bool {
		if f.CircuitID != nil && (o.CircuitID == nil || *o.CircuitID != *f.CircuitID) {
			return false
		}
		if f.SubCircuitID != nil && (o.SubCircuitID == nil || *o.SubCircuitID != *f.SubCircuitID) {
			return false
		}
		return f.BarID == nil || (o.BarID != nil && *o.BarID == *f.BarID)
	})
	return limit(out, f.Limit), nil
}

func (t *Tx) CreateObservation(ctx context.Context, o *models.Observation) error {
	t.touch(repository.TableObservations)
	if o.CircuitID != nil {
		if _, ok := t.st.circuits[*o.CircuitID]; !ok {
			return missingParent(repository.TableObservations, "circuit", *o.CircuitID)
		}
	}
	if o.SubCircuitID != nil {
		if _, ok := t.st.subCircuits[*o.SubCircuitID]; !ok {
			return missingParent(repository.TableObservations, "sub-circuit", *o.SubCircuitID)
		}
	}
	if o.BarID != nil {
		if _, ok := t.st.bars[*o.BarID]; !ok {
			return missingParent(repository.TableObservations, "bar", *o.BarID)
		}
	}
	if _, ok := t.st.observations[o.ID]; ok && o.ID > 0 {
		return duplicate(repository.TableObservations, o.ID)
	}
	o.ID = t.st.nextID(repository.TableObservations, o.ID)
	if _, ok := t.st.observations[o.ID]; ok {
		return duplicate(repository.TableObservations, o.ID)
	}
	cp := *o
	t.st.observations[o.ID] = &cp
	return nil
}

// capacity requests

func (t *Tx) GetRequest(ctx context.Context, id int64) (*models.CapacityRequest, error) {
	r, ok := t.st.requests[id]
	if !ok {
		return nil, errs.NotFound("request", id)
	}
	cp := *r
	return &cp, nil
}

func (t *Tx) ListRequests(ctx context.Context, f repository.RequestFilter) ([]*models.CapacityRequest, error) {
	out := sortedByID(t.st.requests, func(r *models.CapacityRequest) bool {
		if f.StationID != nil && r.StationID != *f.StationID {
			return false
		}
		return f.Status == nil || r.Status == *f.Status
	})
	return limit(out, f.Limit), nil
}

func (t *Tx) CreateRequest(ctx context.Context, r *models.CapacityRequest) error {
	t.touch(repository.TableRequests)
	if _, ok := t.st.stations[r.StationID]; !ok {
		return missingParent(repository.TableRequests, "station", r.StationID)
	}
	if _, ok := t.st.requests[r.ID]; ok && r.ID > 0 {
		return duplicate(repository.TableRequests, r.ID)
	}
	r.ID = t.st.nextID(repository.TableRequests, r.ID)
	if _, ok := t.st.requests[r.ID]; ok {
		return duplicate(repository.TableRequests, r.ID)
	}
	cp := *r
	t.st.requests[r.ID] = &cp
	return nil
}

func (t *Tx) UpdateRequest(ctx context.Context, r *models.CapacityRequest) error {
	t.touch(repository.TableRequests)
	if _, ok := t.st.requests[r.ID]; !ok {
		return errs.NotFound("request", r.ID)
	}
	cp := *r
	t.st.requests[r.ID] = &cp
	return nil
}

// audit logs

func (t *Tx) ListAuditLogs(ctx context.Context, n int) ([]*models.AuditLog, error) {
	return limit(sortedByID(t.st.auditLogs, nil), n), nil
}

func (t *Tx) CreateAuditLog(ctx context.Context, a *models.AuditLog) error {
	t.touch(repository.TableAuditLogs)
	if _, ok := t.st.auditLogs[a.ID]; ok && a.ID > 0 {
		return duplicate(repository.TableAuditLogs, a.ID)
	}
	a.ID = t.st.nextID(repository.TableAuditLogs, a.ID)
	if _, ok := t.st.auditLogs[a.ID]; ok {
		return duplicate(repository.TableAuditLogs, a.ID)
	}
	cp := *a
	t.st.auditLogs[a.ID] = &cp
	return nil
}

// backups

func (t *Tx) GetBackup(ctx context.Context, id int64) (*models.Backup, error) {
	b, ok := t.st.backups[id]
	if !ok {
		return nil, errs.NotFound("backup", id)
	}
	cp := *b
	return &cp, nil
}

func (t *Tx) ListBackups(ctx context.Context, n int) ([]*models.Backup, error) {
	out := sortedByID(t.st.backups, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	for _, b := range out {
		b.Document = nil
	}
	return limit(out, n), nil
}

func (t *Tx) CreateBackup(ctx context.Context, b *models.Backup) error {
	t.touch(tableBackups)
	b.ID = t.st.nextID(tableBackups, b.ID)
	if _, ok := t.st.backups[b.ID]; ok {
		return duplicate(tableBackups, b.ID)
	}
	cp := *b
	t.st.backups[b.ID] = &cp
	return nil
}

func (t *Tx) DeleteBackup(ctx context.Context, id int64) error {
	t.touch(tableBackups)
	if _, ok := t.st.backups[id]; !ok {
		return errs.NotFound("backup", id)
	}
	delete(t.st.backups, id)
	return nil
}

// Savepoint copies a table the first time fn writes to it, so undoing fn
// costs only the tables it touched.
func (t *Tx) Savepoint(ctx context.Context, fn func() error) error {
	outer := t.sp
	sp := &savepoint{seq: cloneSeq(t.st.seq), saved: map[repository.Table]func(*state){}}
	t.sp = sp
	err := fn()
	t.sp = outer
	if err != nil {
		for _, restore := range sp.saved {
			restore(t.st)
		}
		t.st.seq = sp.seq
		return err
	}
	if outer != nil {
		for table, restore := range sp.saved {
			if _, ok := outer.saved[table]; !ok {
				outer.saved[table] = restore
			}
		}
	}
	return nil
}

// savepoint records how to undo the tables written since it was taken.
type savepoint struct {
	seq   map[repository.Table]int64
	saved map[repository.Table]func(*state)
}

// touch saves the listed tables before their first write under a savepoint.
func (t *Tx) touch(tables ...repository.Table) {
	if t.sp == nil {
		return
	}
	for _, table := range tables {
		if _, ok := t.sp.saved[table]; ok {
			continue
		}
		if restore := t.st.saveTable(table); restore != nil {
			t.sp.saved[table] = restore
		}
	}
}

// snapshot support

func (t *Tx) DeleteAll(ctx context.Context, table repository.Table) error {
	blocked := func(child repository.Table, n int) error {
		if n > 0 {
			return fmt.Errorf("delete from %s: %d rows in %s still reference it", table, n, child)
		}
		return nil
	}
	t.touch(table)
	switch table {
	case repository.TableStations:
		if err := blocked(repository.TableBars, len(t.st.bars)); err != nil {
			return err
		}
		if err := blocked(repository.TableRequests, len(t.st.requests)); err != nil {
			return err
		}
		t.st.stations = map[int64]*models.Station{}
	case repository.TableBars:
		if err := blocked(repository.TableCircuits, len(t.st.circuits)); err != nil {
			return err
		}
		t.st.bars = map[int64]*models.Bar{}
	case repository.TableCircuits:
		if err := blocked(repository.TableSubCircuits, len(t.st.subCircuits)); err != nil {
			return err
		}
		t.st.circuits = map[int64]*models.Circuit{}
	case repository.TableSubCircuits:
		if err := blocked(repository.TableObservations, len(t.st.observations)); err != nil {
			return err
		}
		t.st.subCircuits = map[int64]*models.SubCircuit{}
	case repository.TableObservations:
		t.st.observations = map[int64]*models.Observation{}
	case repository.TableNotifications:
		t.st.notifications = map[int64]*models.Notification{}
	case repository.TableRequests:
		t.st.requests = map[int64]*models.CapacityRequest{}
	case repository.TableAuditLogs:
		t.st.auditLogs = map[int64]*models.AuditLog{}
	default:
		return fmt.Errorf("delete from %s: unknown table", table)
	}
	return nil
}

func (t *Tx) ResetSequence(ctx context.Context, table repository.Table) error {
	var maxID int64
	bump := func(id int64) {
		if id > maxID {
			maxID = id
		}
	}
	switch table {
	case repository.TableStations:
		for id := range t.st.stations {
			bump(id)
		}
	case repository.TableBars:
		for id := range t.st.bars {
			bump(id)
		}
	case repository.TableCircuits:
		for id := range t.st.circuits {
			bump(id)
		}
	case repository.TableSubCircuits:
		for id := range t.st.subCircuits {
			bump(id)
		}
	case repository.TableObservations:
		for id := range t.st.observations {
			bump(id)
		}
	case repository.TableNotifications:
		for id := range t.st.notifications {
			bump(id)
		}
	case repository.TableRequests:
		for id := range t.st.requests {
			bump(id)
		}
	case repository.TableAuditLogs:
		for id := range t.st.auditLogs {
			bump(id)
		}
	default:
		return fmt.Errorf("reset sequence %s: unknown table", table)
	}
	t.st.seq[table] = maxID
	return nil
}
