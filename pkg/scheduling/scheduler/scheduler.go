package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/runtime/task"
	"github.com/vnykmshr/taskflow/pkg/scheduling/workerpool"
)

// PayloadFunc builds the payload for one scheduled firing. It is
// called once per firing so repeating entries produce distinct tasks.
type PayloadFunc func() any

// Entry describes one scheduled entry.
type Entry struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // zero for one-time and cron entries
	Created  time.Time
}

// Scheduler submits tasks to a worker pool on time-based triggers.
type Scheduler interface {
	// Schedule fires once at runAt.
	Schedule(id string, payload PayloadFunc, runAt time.Time) error

	// ScheduleAfter fires once after delay.
	ScheduleAfter(id string, payload PayloadFunc, delay time.Duration) error

	// ScheduleRepeating fires immediately and then every interval.
	ScheduleRepeating(id string, payload PayloadFunc, interval time.Duration) error

	// ScheduleCron fires per the cron expression. The expression uses
	// six fields, seconds first.
	ScheduleCron(id string, cronExpr string, payload PayloadFunc) error

	// Cancel removes an entry. It reports whether the entry existed.
	Cancel(id string) bool

	// CancelAll removes every entry.
	CancelAll()

	// List returns the entries ordered by next run time.
	List() []Entry

	// Start begins firing entries. A scheduler that has been stopped
	// cannot be restarted; Start then fails with ErrInvalidState.
	Start() error

	// Stop halts firing and returns a channel closed once the
	// scheduler (and its own pool, if it created one) has shut down.
	// Stopping is permanent.
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	// WorkerPool receives the fired tasks. When nil the scheduler
	// creates its own pool with Handler, which must then be set.
	WorkerPool workerpool.Pool

	// Handler for the scheduler-owned pool. Ignored when WorkerPool
	// is provided.
	Handler workerpool.Handler

	// PoolSize for the scheduler-owned pool. Defaults to 4.
	PoolSize int

	// Location resolves cron expressions. Defaults to time.Local.
	Location *time.Location

	// TickInterval is how often ready entries are checked.
	// Defaults to 50ms.
	TickInterval time.Duration

	// MaxEntries caps the number of scheduled entries. Defaults to 10000.
	MaxEntries int
}

type scheduledEntry struct {
	id           string
	payload      PayloadFunc
	runAt        time.Time
	interval     time.Duration
	cronSchedule cron.Schedule
	created      time.Time
}

type scheduler struct {
	pool         workerpool.Pool
	ownPool      bool
	location     *time.Location
	tickInterval time.Duration
	maxEntries   int
	cronParser   cron.Parser

	mu      sync.RWMutex
	entries map[string]*scheduledEntry
	ticker  *time.Ticker
	done    chan struct{}
	running bool
	stopped bool
}

// New creates a scheduler submitting into the given pool.
func New(pool workerpool.Pool) (Scheduler, error) {
	return NewWithConfig(Config{WorkerPool: pool})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) (Scheduler, error) {
	pool := cfg.WorkerPool
	ownPool := false
	if pool == nil {
		if cfg.Handler == nil {
			return nil, validation.ValidateNotNil("scheduler", "handler", nil)
		}
		size := cfg.PoolSize
		if size <= 0 {
			size = 4
		}
		var err error
		pool, err = workerpool.NewWithConfig(workerpool.Config{
			Size:           size,
			Handler:        cfg.Handler,
			QueueCapacity:  -1,
			ResultCapacity: -1,
		})
		if err != nil {
			return nil, err
		}
		ownPool = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	return &scheduler{
		pool:         pool,
		ownPool:      ownPool,
		location:     location,
		tickInterval: tickInterval,
		maxEntries:   maxEntries,
		cronParser:   cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		entries:      make(map[string]*scheduledEntry),
		done:         make(chan struct{}),
	}, nil
}

func (s *scheduler) validateEntry(id string, payload PayloadFunc) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if payload == nil {
		return validation.ValidateNotNil("scheduler", "payload", nil)
	}
	return nil
}

// addEntry registers an entry, enforcing ID uniqueness and the entry
// cap. Must not be called with mu held.
func (s *scheduler) addEntry(e *scheduledEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.id]; exists {
		return tferrors.NewValidationError("scheduler", "id", e.id, "entry already exists").
			WithHint("cancel the existing entry or use a different ID")
	}
	if len(s.entries) >= s.maxEntries {
		return tferrors.NewValidationError("scheduler", "entries", len(s.entries), "entry limit reached")
	}
	s.entries[e.id] = e
	return nil
}

func (s *scheduler) Schedule(id string, payload PayloadFunc, runAt time.Time) error {
	if err := s.validateEntry(id, payload); err != nil {
		return err
	}
	if runAt.IsZero() {
		return tferrors.NewValidationError("scheduler", "runAt", runAt, "run time cannot be zero")
	}
	return s.addEntry(&scheduledEntry{
		id:      id,
		payload: payload,
		runAt:   runAt,
		created: time.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, payload PayloadFunc, delay time.Duration) error {
	return s.Schedule(id, payload, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, payload PayloadFunc, interval time.Duration) error {
	if err := s.validateEntry(id, payload); err != nil {
		return err
	}
	if interval <= 0 {
		return tferrors.NewValidationError("scheduler", "interval", interval, "must be positive")
	}
	return s.addEntry(&scheduledEntry{
		id:       id,
		payload:  payload,
		runAt:    time.Now(),
		interval: interval,
		created:  time.Now(),
	})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, payload PayloadFunc) error {
	if err := s.validateEntry(id, payload); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("scheduler", "cronExpr", cronExpr); err != nil {
		return err
	}

	schedule, err := s.cronParser.Parse(cronExpr)
	if err != nil {
		return tferrors.NewValidationError("scheduler", "cronExpr", cronExpr, "invalid cron expression").
			WithHint(err.Error())
	}

	return s.addEntry(&scheduledEntry{
		id:           id,
		payload:      payload,
		runAt:        schedule.Next(time.Now().In(s.location)),
		cronSchedule: schedule,
		created:      time.Now(),
	})
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		delete(s.entries, id)
		return true
	}
	return false
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*scheduledEntry)
}

func (s *scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, Entry{
			ID:       e.id,
			RunAt:    e.runAt,
			Interval: e.interval,
			Created:  e.created,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RunAt.Before(entries[j].RunAt)
	})
	return entries
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return tferrors.NewOperationError("scheduler", "Start", tferrors.ErrInvalidState).
			WithContext("scheduler is stopped and cannot be restarted")
	}
	if s.running {
		return tferrors.NewOperationError("scheduler", "Start", tferrors.ErrInvalidState).
			WithContext("scheduler already running")
	}

	s.running = true
	s.ticker = time.NewTicker(s.tickInterval)
	go s.run()
	return nil
}

func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.done)
		s.ticker.Stop()
	}
	s.stopped = true
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if s.ownPool {
			<-s.pool.Shutdown()
		}
	}()
	return stopped
}

func (s *scheduler) run() {
	for {
		select {
		case <-s.done:
			return
		case now := <-s.ticker.C:
			s.fireReady(now)
		}
	}
}

// fireReady submits every due entry and reschedules the repeating ones.
func (s *scheduler) fireReady(now time.Time) {
	s.mu.Lock()
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return
	}

	ready := make([]*scheduledEntry, 0, len(s.entries))
	for id, e := range s.entries {
		if e.runAt.After(now) {
			continue
		}
		ready = append(ready, e)

		switch {
		case e.interval > 0:
			e.runAt = now.Add(e.interval)
		case e.cronSchedule != nil:
			e.runAt = e.cronSchedule.Next(now.In(s.location))
		default:
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, e := range ready {
		// A pool that stays full past one tick drops this firing;
		// repeating entries fire again on their next trigger.
		ctx, cancel := context.WithTimeout(context.Background(), s.tickInterval)
		_ = s.pool.SubmitWithContext(ctx, task.New(e.payload()))
		cancel()
	}
}
