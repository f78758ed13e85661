package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/common/validation"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// ErrScheduleExhausted is returned by Reschedule when a task's schedule
// has no further activation.
var ErrScheduleExhausted = errors.New("schedule has no further activation")

// DispatchFunc receives a task whose due time has arrived. It usually
// offers the task to a pool's queue and applies the rejection policy.
type DispatchFunc func(t *task.Task) error

// Entry describes a task waiting in the scheduler.
type Entry struct {
	ID        task.ID
	Due       time.Time
	Priority  int
	Periodic  bool
	Submitted time.Time
}

// Config holds scheduler configuration.
type Config struct {
	Dispatch DispatchFunc   // Required
	Clock    timeutil.Clock // Time source (default: timeutil.RealClock())
	Location *time.Location // For cron scheduling (default: time.Local)
	MaxTasks int            // Maximum number of scheduled tasks (default: 10000)
	Logger   *zap.Logger    // Default: zap.NewNop()
}

// Scheduler holds delayed and periodic tasks in a min-heap ordered by due
// time and hands each one to the dispatch function once it is due. It
// sleeps until the earliest due time rather than polling.
type Scheduler struct {
	dispatch   DispatchFunc
	clock      timeutil.Clock
	location   *time.Location
	maxTasks   int
	logger     *zap.Logger
	cronParser cron.Parser

	mu      sync.Mutex
	entries entryHeap
	byID    map[task.ID]*entry
	seq     uint64
	running bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

// New creates a scheduler. It does not run until Start is called.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Dispatch == nil {
		return nil, validation.ValidateNotNil("scheduler", "Dispatch", nil)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock()
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10000
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		dispatch:   cfg.Dispatch,
		clock:      clock,
		location:   location,
		maxTasks:   maxTasks,
		logger:     logger.Named("scheduler"),
		cronParser: NewCronParser(),
		byID:       make(map[task.ID]*entry),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}, nil
}

// ScheduleOnce dispatches t once after delay. A non-positive delay makes
// the task due immediately.
func (s *Scheduler) ScheduleOnce(t *task.Task, delay time.Duration) error {
	if t == nil {
		return validation.ValidateNotNil("scheduler", "task", nil)
	}
	t.SetDue(s.clock.Now().Add(delay))
	return s.add(t, true)
}

// ScheduleRepeating dispatches t first after initialDelay and then every
// period, measured from the previous due time.
func (s *Scheduler) ScheduleRepeating(t *task.Task, initialDelay, period time.Duration) error {
	if t == nil {
		return validation.ValidateNotNil("scheduler", "task", nil)
	}
	if period <= 0 {
		return gferrors.NewValidationError("scheduler", "period", period, "must be positive").
			WithHint("repeating tasks need a period greater than 0")
	}
	t.SetSchedule(task.Every(period))
	t.SetDue(s.clock.Now().Add(initialDelay))
	return s.add(t, true)
}

// ScheduleCron dispatches t at every activation of a six-field cron
// expression (seconds first) evaluated in the configured location.
func (s *Scheduler) ScheduleCron(t *task.Task, expr string) error {
	if t == nil {
		return validation.ValidateNotNil("scheduler", "task", nil)
	}
	if err := validation.ValidateNotEmpty("scheduler", "cron expression", expr); err != nil {
		return err
	}

	sched, err := s.cronParser.Parse(expr)
	if err != nil {
		return gferrors.NewValidationError("scheduler", "cron expression", expr, err.Error()).
			WithHint("use six fields with seconds first, e.g. \"*/5 * * * * *\"")
	}

	cs := cronSchedule{sched: sched, location: s.location}
	first := cs.Next(s.clock.Now())
	if first.IsZero() {
		return gferrors.NewValidationError("scheduler", "cron expression", expr, "has no future activation").
			WithHint("check the day of month against the month")
	}
	t.SetSchedule(cs)
	t.SetDue(first)
	return s.add(t, true)
}

// Reschedule re-inserts a periodic task after a run. The next due time
// follows the previous one, so a run that overran its period is due
// immediately. The task limit does not apply to rescheduling.
func (s *Scheduler) Reschedule(t *task.Task) error {
	sched := t.Schedule()
	if sched == nil {
		return fmt.Errorf("task %s is not periodic", t.ID())
	}
	next := sched.Next(t.Due())
	if next.IsZero() {
		return fmt.Errorf("task %s: %w", t.ID(), ErrScheduleExhausted)
	}
	t.SetDue(next)
	return s.add(t, false)
}

func (s *Scheduler) add(t *task.Task, limited bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID()]; exists {
		return fmt.Errorf("task with ID %q already scheduled, cancel the existing task first", t.ID())
	}
	if limited && len(s.byID) >= s.maxTasks {
		return fmt.Errorf("cannot schedule task: maximum number of tasks (%d) reached: %w",
			s.maxTasks, gferrors.ErrCapacityExceeded)
	}

	s.seq++
	e := &entry{t: t, due: t.Due(), seq: s.seq}
	heap.Push(&s.entries, e)
	s.byID[t.ID()] = e

	if e.index == 0 {
		s.signal()
	}
	return nil
}

// Cancel removes the task with the given ID. It reports whether the task
// was waiting; the task itself is not resolved.
func (s *Scheduler) Cancel(id task.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.byID[id]
	if !exists {
		return false
	}
	heap.Remove(&s.entries, e.index)
	delete(s.byID, id)
	return true
}

// CancelAll removes every waiting task and returns them in due order.
func (s *Scheduler) CancelAll() []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*task.Task, 0, len(s.entries))
	for s.entries.Len() > 0 {
		tasks = append(tasks, heap.Pop(&s.entries).(*entry).t)
	}
	s.byID = make(map[task.ID]*entry)
	return tasks
}

// List returns the waiting tasks sorted by due time.
func (s *Scheduler) List() []Entry {
	s.mu.Lock()
	entries := make([]*entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].less(entries[j]) })

	list := make([]Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, Entry{
			ID:        e.t.ID(),
			Due:       e.due,
			Priority:  e.t.Priority(),
			Periodic:  e.t.Periodic(),
			Submitted: e.t.Submitted(),
		})
	}
	return list
}

// Len returns the number of waiting tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Start launches the dispatch loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}
	select {
	case <-s.done:
		return fmt.Errorf("scheduler stopped: %w", gferrors.ErrClosed)
	default:
	}

	s.running = true
	go s.run()
	return nil
}

// Stop ends the dispatch loop. Waiting tasks stay in the scheduler; use
// CancelAll to collect them. The returned channel closes once the loop has
// exited.
func (s *Scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
	default:
		close(s.done)
		if !s.running {
			close(s.stopped)
		}
	}
	s.running = false
	return s.stopped
}

// Wake makes the loop re-evaluate the head of the heap. It is needed when
// the clock moves without real time passing.
func (s *Scheduler) Wake() {
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)

	for {
		s.promoteDue()

		var fire <-chan time.Time
		if wait, ok := s.nextWait(); ok {
			timer.Reset(wait)
			fire = timer.C
		}

		select {
		case <-s.done:
			stopTimer(timer)
			return
		case <-fire:
		case <-s.wake:
			stopTimer(timer)
		}
	}
}

func (s *Scheduler) nextWait() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries.Len() == 0 {
		return 0, false
	}
	wait := s.entries[0].due.Sub(s.clock.Now())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// promoteDue pops every due entry under the lock and dispatches them
// outside it.
func (s *Scheduler) promoteDue() {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*task.Task
	for s.entries.Len() > 0 && !s.entries[0].due.After(now) {
		e := heap.Pop(&s.entries).(*entry)
		delete(s.byID, e.t.ID())
		due = append(due, e.t)
	}
	s.mu.Unlock()

	for _, t := range due {
		if t.State() != task.Pending {
			continue
		}
		s.dispatchSafe(t)
	}
}

func (s *Scheduler) dispatchSafe(t *task.Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatch panicked",
				zap.String("task", string(t.ID())),
				zap.Any("panic", r))
		}
	}()

	if err := s.dispatch(t); err != nil {
		s.logger.Debug("dispatch refused",
			zap.String("task", string(t.ID())),
			zap.Error(err))
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

type entry struct {
	t     *task.Task
	due   time.Time
	seq   uint64
	index int
}

func (e *entry) less(o *entry) bool {
	if !e.due.Equal(o.due) {
		return e.due.Before(o.due)
	}
	if e.t.Priority() != o.t.Priority() {
		return e.t.Priority() > o.t.Priority()
	}
	return e.seq < o.seq
}

type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
