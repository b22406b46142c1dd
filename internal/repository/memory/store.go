// Package memory is an in-process ledger store. Transactions run one at a
// time against a private copy of the state, which replaces the live state on
// commit.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"PowerLedger/internal/domain/models"
	"PowerLedger/internal/domain/repository"
)

type state struct {
	stations      map[int64]*models.Station
	bars          map[int64]*models.Bar
	circuits      map[int64]*models.Circuit
	subCircuits   map[int64]*models.SubCircuit
	notifications map[int64]*models.Notification
	observations  map[int64]*models.Observation
	requests      map[int64]*models.CapacityRequest
	auditLogs     map[int64]*models.AuditLog
	backups       map[int64]*models.Backup
	seq           map[repository.Table]int64
}

const tableBackups repository.Table = "backups"

func newState() *state {
	return &state{
		stations:      map[int64]*models.Station{},
		bars:          map[int64]*models.Bar{},
		circuits:      map[int64]*models.Circuit{},
		subCircuits:   map[int64]*models.SubCircuit{},
		notifications: map[int64]*models.Notification{},
		observations:  map[int64]*models.Observation{},
		requests:      map[int64]*models.CapacityRequest{},
		auditLogs:     map[int64]*models.AuditLog{},
		backups:       map[int64]*models.Backup{},
		seq:           map[repository.Table]int64{},
	}
}

func cloneMap[T any](src map[int64]*T) map[int64]*T {
	dst := make(map[int64]*T, len(src))
	for k, v := range src {
		cp := *v
		dst[k] = &cp
	}
	return dst
}

func cloneSeq(src map[repository.Table]int64) map[repository.Table]int64 {
	seq := make(map[repository.Table]int64, len(src))
	for k, v := range src {
		seq[k] = v
	}
	return seq
}

// saveTable copies one table and returns the function that puts the copy
// back. It returns nil for an unknown table.
func (s *state) saveTable(t repository.Table) func(*state) {
	switch t {
	case repository.TableStations:
		saved := cloneMap(s.stations)
		return func(s *state) { s.stations = saved }
	case repository.TableBars:
		saved := cloneMap(s.bars)
		return func(s *state) { s.bars = saved }
	case repository.TableCircuits:
		saved := cloneMap(s.circuits)
		return func(s *state) { s.circuits = saved }
	case repository.TableSubCircuits:
		saved := cloneMap(s.subCircuits)
		return func(s *state) { s.subCircuits = saved }
	case repository.TableObservations:
		saved := cloneMap(s.observations)
		return func(s *state) { s.observations = saved }
	case repository.TableNotifications:
		saved := cloneMap(s.notifications)
		return func(s *state) { s.notifications = saved }
	case repository.TableRequests:
		saved := cloneMap(s.requests)
		return func(s *state) { s.requests = saved }
	case repository.TableAuditLogs:
		saved := cloneMap(s.auditLogs)
		return func(s *state) { s.auditLogs = saved }
	case tableBackups:
		saved := cloneMap(s.backups)
		return func(s *state) { s.backups = saved }
	}
	return nil
}

func (s *state) clone() *state {
	seq := cloneSeq(s.seq)
	return &state{
		stations:      cloneMap(s.stations),
		bars:          cloneMap(s.bars),
		circuits:      cloneMap(s.circuits),
		subCircuits:   cloneMap(s.subCircuits),
		notifications: cloneMap(s.notifications),
		observations:  cloneMap(s.observations),
		requests:      cloneMap(s.requests),
		auditLogs:     cloneMap(s.auditLogs),
		backups:       cloneMap(s.backups),
		seq:           seq,
	}
}

// Store implements repository.Store in memory.
type Store struct {
	mu      sync.Mutex
	current *state
	// failCommit, when set, makes the next commit fail. Used by tests.
	failCommit error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{current: newState()}
}

// FailNextCommit makes the next transaction fail at commit time with err.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	s.failCommit = err
	s.mu.Unlock()
}

func (s *Store) WithinTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Tx{st: s.current.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.failCommit != nil {
		err := s.failCommit
		s.failCommit = nil
		return fmt.Errorf("commit: %w", err)
	}
	s.current = tx.st
	return nil
}

func (s *Store) Health(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// nextID hands out ids for t. Like a database sequence, explicit ids do
// not advance the counter; ResetSequence does.
func (s *state) nextID(t repository.Table, explicit int64) int64 {
	if explicit > 0 {
		return explicit
	}
	s.seq[t]++
	return s.seq[t]
}
