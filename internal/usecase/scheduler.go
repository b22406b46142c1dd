package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/pkg/cache"
	"PowerLedger/pkg/logger"
)

const (
	schedulerLockKey   = "lock:reservation-expiry"
	schedulerReportKey = "expiry:last-report"
)

// SchedulerConfig controls when the expiry scan runs.
type SchedulerConfig struct {
	// RunAt is the local time of day, "HH:MM".
	RunAt      string
	RunOnStart bool
	Location   *time.Location
	LockTTL    time.Duration
}

// Scheduler triggers the ExpiryScanner once at start and then every day at
// RunAt. With a Locker set only one replica scans per trigger.
type Scheduler struct {
	scanner *ExpiryScanner
	locker  drepo.Locker
	reports drepo.KeyValue
	log     *logger.Logger
	now     func() time.Time

	hour, minute int
	runOnStart   bool
	location     *time.Location
	lockTTL      time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   *ScanReport
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithLocker enables the cross-replica run lock.
func WithLocker(l drepo.Locker) SchedulerOption {
	return func(s *Scheduler) { s.locker = l }
}

// WithReportStore shares the last scan report between replicas.
func WithReportStore(kv drepo.KeyValue) SchedulerOption {
	return func(s *Scheduler) { s.reports = kv }
}

// NewScheduler validates cfg and creates a Scheduler.
func NewScheduler(scanner *ExpiryScanner, cfg SchedulerConfig, log *logger.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(cfg.RunAt, "%d:%d", &hour, &minute); err != nil {
		return nil, fmt.Errorf("invalid scheduler run_at %q: %w", cfg.RunAt, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid scheduler run_at %q", cfg.RunAt)
	}
	s := &Scheduler{
		scanner:    scanner,
		log:        log,
		now:        time.Now,
		hour:       hour,
		minute:     minute,
		runOnStart: cfg.RunOnStart,
		location:   cfg.Location,
		lockTTL:    cfg.LockTTL,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 10 * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NextRun returns the first trigger strictly after t.
func (s *Scheduler) NextRun(t time.Time) time.Time {
	local := t.In(s.location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.location)
	}
	return next
}

// RunOnce performs one scan. It returns (nil, nil) when another replica
// holds the run lock.
func (s *Scheduler) RunOnce(ctx context.Context) (*ScanReport, error) {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, schedulerLockKey, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire scheduler lock: %w", err)
		}
		if !ok {
			s.log.Info("reservation expiry scan skipped, lock held elsewhere")
			return nil, nil
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), schedulerLockKey, token); err != nil {
				s.log.Warn("failed to release scheduler lock", logger.Duration("ttl", s.lockTTL), logger.Error(err))
			}
		}()
	}
	report, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	if s.reports != nil {
		if err := s.reports.Set(ctx, schedulerReportKey, report, 0); err != nil {
			s.log.Warn("failed to store scan report", logger.Error(err))
		}
	}
	return report, nil
}

// LastReport returns the most recent scan report, preferring the shared
// store. It returns nil when no scan has completed yet.
func (s *Scheduler) LastReport(ctx context.Context) (*ScanReport, error) {
	if s.reports != nil {
		var report ScanReport
		err := s.reports.Get(ctx, schedulerReportKey, &report)
		switch {
		case err == nil:
			return &report, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			return nil, fmt.Errorf("failed to read scan report: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

// Start launches the trigger loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop cancels the loop and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if s.runOnStart {
		s.trigger(ctx)
	}
	for {
		next := s.NextRun(s.now())
		s.log.Debug("next reservation expiry scan scheduled", logger.String("at", next.Format(time.RFC3339)))
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("reservation expiry scan failed", logger.Error(err))
	}
}
