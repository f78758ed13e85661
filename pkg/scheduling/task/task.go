package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	gfcontext "github.com/vnykmshr/executors/pkg/common/context"
	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
)

// ID identifies a task. It is opaque to callers.
type ID string

// State is the lifecycle state of a Task.
type State int32

const (
	// Pending tasks wait in the scheduler or a queue.
	Pending State = iota
	// Running tasks are owned by a worker.
	Running
	// Completed tasks returned without error.
	Completed
	// Failed tasks returned an error or panicked.
	Failed
	// Cancelled tasks were removed before or during execution.
	Cancelled
	// Rejected tasks were refused by the rejection policy.
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= Completed
}

// Task is a unit of submitted work with its lifecycle state.
type Task struct {
	id        ID
	work      Work
	submitted time.Time
	priority  int

	mu       sync.Mutex
	due      time.Time
	schedule Schedule

	state  atomic.Int32
	runs   atomic.Int64
	future *Future

	ctx       context.Context
	release   context.CancelFunc
	canceller func(*Task)
}

// Option configures a Task at construction.
type Option func(*Task)

// WithID overrides the generated identifier.
func WithID(id ID) Option {
	return func(t *Task) { t.id = id }
}

// WithPriority sets the priority. Higher values run first among tasks
// with the same due time.
func WithPriority(priority int) Option {
	return func(t *Task) { t.priority = priority }
}

// WithSubmitted sets the submission timestamp (defaults to time.Now()).
func WithSubmitted(at time.Time) Option {
	return func(t *Task) { t.submitted = at }
}

// WithDue sets the desired execution time. Zero means immediate.
func WithDue(at time.Time) Option {
	return func(t *Task) { t.due = at }
}

// WithSchedule makes the task repeating.
func WithSchedule(s Schedule) Option {
	return func(t *Task) { t.schedule = s }
}

// WithStop ties the task's cancellation signal to stop, in addition to the
// context the task was created with.
func WithStop(stop context.Context) Option {
	return func(t *Task) {
		t.ctx, t.release = gfcontext.WithStop(t.ctx, stop)
	}
}

// WithCanceller registers the function used to remove a pending task from
// wherever it currently waits when it is cancelled.
func WithCanceller(fn func(*Task)) Option {
	return func(t *Task) { t.canceller = fn }
}

// New creates a pending task. ctx is the parent of the cancellation signal
// handed to Work.Execute.
func New(ctx context.Context, work Work, opts ...Option) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &Task{
		id:   ID(uuid.NewString()),
		work: work,
		ctx:  ctx,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.release == nil {
		t.ctx, t.release = context.WithCancel(t.ctx)
	}
	if t.submitted.IsZero() {
		t.submitted = time.Now()
	}
	if t.due.IsZero() {
		t.due = t.submitted
	}
	t.future = &Future{task: t, done: make(chan struct{})}
	return t
}

// ID returns the task identifier.
func (t *Task) ID() ID { return t.id }

// Work returns the work function.
func (t *Task) Work() Work { return t.work }

// Submitted returns the submission timestamp.
func (t *Task) Submitted() time.Time { return t.submitted }

// Priority returns the task priority.
func (t *Task) Priority() int { return t.priority }

// Schedule returns the repeat schedule, nil for one-shot tasks.
func (t *Task) Schedule() Schedule {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.schedule
}

// SetSchedule makes a pending task repeating. Like SetDue it is reserved
// to the component holding the task.
func (t *Task) SetSchedule(s Schedule) {
	t.mu.Lock()
	t.schedule = s
	t.mu.Unlock()
}

// Periodic reports whether the task repeats.
func (t *Task) Periodic() bool { return t.Schedule() != nil }

// Exhausted reports whether a periodic task's schedule has no activation
// after its current due time. Such a task finishes after its last run.
func (t *Task) Exhausted() bool {
	s := t.Schedule()
	return s != nil && s.Next(t.Due()).IsZero()
}

// Due returns the desired execution time of the next run.
func (t *Task) Due() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.due
}

// SetDue moves the next run. Only the component currently holding the
// pending task may call it.
func (t *Task) SetDue(at time.Time) {
	t.mu.Lock()
	t.due = at
	t.mu.Unlock()
}

// State returns the current state.
func (t *Task) State() State { return State(t.state.Load()) }

// Runs returns how many times the work has been started.
func (t *Task) Runs() int64 { return t.runs.Load() }

// Future returns the result handle shared with the submitter.
func (t *Task) Future() *Future { return t.future }

// Context returns the cancellation signal for the work function.
func (t *Task) Context() context.Context { return t.ctx }

// Less orders tasks by due time, then priority (higher first). Callers
// break remaining ties by insertion order.
func Less(a, b *Task) bool {
	ad, bd := a.Due(), b.Due()
	if !ad.Equal(bd) {
		return ad.Before(bd)
	}
	return a.priority > b.priority
}

// Start moves a pending task to Running. It fails when the task was
// cancelled or otherwise finished while waiting.
func (t *Task) Start() bool {
	if !t.state.CompareAndSwap(int32(Pending), int32(Running)) {
		return false
	}
	t.runs.Add(1)
	return true
}

// Finish records the outcome of a one-shot run and resolves the future.
// An error matching ErrCancelled moves the task to Cancelled. It returns
// false when the task was cancelled while running.
func (t *Task) Finish(value any, err error) bool {
	next := Completed
	switch {
	case errors.Is(err, gferrors.ErrCancelled):
		next = Cancelled
	case err != nil:
		next = Failed
	}
	if !t.state.CompareAndSwap(int32(Running), int32(next)) {
		return false
	}
	t.future.resolve(value, err)
	t.release()
	return true
}

// Rearm returns a periodic task to Pending after a run. It returns false
// when the task was cancelled while running.
func (t *Task) Rearm() bool {
	return t.state.CompareAndSwap(int32(Running), int32(Pending))
}

// Discard finishes a pending task without running it, moving it to
// Cancelled or Rejected and resolving the future with err.
func (t *Task) Discard(to State, err error) bool {
	if to != Cancelled && to != Rejected {
		return false
	}
	if !t.state.CompareAndSwap(int32(Pending), int32(to)) {
		return false
	}
	t.future.resolve(nil, err)
	t.release()
	return true
}

// Cancel stops the task. A pending task is removed from its queue or
// scheduler; a running task has its context cancelled and its future
// resolved immediately, the work function is expected to notice. It
// returns false when the task had already finished.
func (t *Task) Cancel() bool {
	for {
		switch State(t.state.Load()) {
		case Pending:
			if t.state.CompareAndSwap(int32(Pending), int32(Cancelled)) {
				if t.canceller != nil {
					t.canceller(t)
				}
				t.future.resolve(nil, gferrors.ErrCancelled)
				t.release()
				return true
			}
		case Running:
			if t.state.CompareAndSwap(int32(Running), int32(Cancelled)) {
				t.release()
				t.future.resolve(nil, gferrors.ErrCancelled)
				return true
			}
		default:
			return false
		}
	}
}
