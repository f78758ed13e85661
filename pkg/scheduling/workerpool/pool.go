package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobsa/timeutil"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/common/validation"
	"github.com/vnykmshr/executors/pkg/scheduling/queue"
	"github.com/vnykmshr/executors/pkg/scheduling/scheduler"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// Options modify a single submission.
type Options struct {
	// Delay postpones the first run.
	Delay time.Duration

	// Period makes the task repeat at a fixed rate after its first run.
	Period time.Duration

	// Priority orders tasks with the same due time in a priority queue.
	Priority int
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Live      int
	Busy      int
	Queued    int
	Scheduled int

	Submitted int64
	Completed int64
	Failed    int64
	Rejected  int64
	Cancelled int64
}

// Pool executes submitted work on a set of workers that grows and shrinks
// according to its sizing policy. Delayed and periodic work waits in a
// scheduler until due and then takes the same path as immediate work.
type Pool struct {
	cfg      Config
	logger   *zap.Logger
	hooks    Hooks
	clock    timeutil.Clock
	queue    queue.Queue
	stealing *queue.Stealing
	sched    *scheduler.Scheduler

	// runCtx parents every task context; non-graceful shutdown cancels it.
	runCtx  context.Context
	stopRun context.CancelFunc

	// state is held for reading while a task is being placed and for
	// writing while shutdown begins, so no task slips past shutdown.
	state   sync.RWMutex
	closing atomic.Bool

	// mu guards the worker registry and the count of inline runs.
	mu         sync.Mutex
	workers    map[int]*worker
	inline     int
	nextID     int
	draining   bool
	terminated bool
	done       chan struct{}

	busy      atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	cancelled atomic.Int64
}

// New creates a pool from cfg. Fixed, Single and WorkStealing pools start
// their workers immediately.
func New(cfg Config) (*Pool, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	p := &Pool{
		cfg:     cfg,
		logger:  cfg.Logger.Named("workerpool").With(zap.String("pool", cfg.Name)),
		hooks:   cfg.Hooks,
		clock:   cfg.Clock,
		queue:   cfg.newQueue(),
		runCtx:  runCtx,
		stopRun: stopRun,
		workers: make(map[int]*worker),
		done:    make(chan struct{}),
	}
	if s, ok := p.queue.(*queue.Stealing); ok {
		p.stealing = s
	}

	sched, err := scheduler.New(scheduler.Config{
		Dispatch: p.dispatch,
		Clock:    cfg.Clock,
		MaxTasks: cfg.MaxScheduled,
		Logger:   p.logger,
	})
	if err != nil {
		stopRun()
		return nil, err
	}
	if err := sched.Start(); err != nil {
		stopRun()
		return nil, err
	}
	p.sched = sched

	switch cfg.Sizing {
	case Fixed, Single, WorkStealing:
		for i := 0; i < cfg.CoreWorkers; i++ {
			p.addWorker(nil, true)
		}
	}

	p.logger.Debug("pool started",
		zap.Stringer("sizing", cfg.Sizing),
		zap.Int("core_workers", cfg.CoreWorkers),
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Stringer("queue", cfg.QueueKind),
		zap.Stringer("rejection", cfg.Rejection))
	return p, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew(cfg Config) *Pool {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// NewFixed creates a pool of n workers over an unbounded FIFO queue.
// n <= 0 uses GOMAXPROCS.
func NewFixed(n int) *Pool {
	return MustNew(Config{Sizing: Fixed, CoreWorkers: n})
}

// NewCached creates a pool that starts workers on demand and retires them
// after a minute of idleness.
func NewCached() *Pool {
	return MustNew(Config{Sizing: Cached})
}

// NewSingle creates a pool executing tasks one at a time in submission order.
func NewSingle() *Pool {
	return MustNew(Config{Sizing: Single})
}

// NewScheduled creates a pool of n workers over a priority queue, meant
// for delayed and periodic work.
func NewScheduled(n int) *Pool {
	return MustNew(Config{Name: "scheduled", Sizing: Fixed, CoreWorkers: n, QueueKind: queue.Priority})
}

// NewSingleScheduled creates a single-worker pool over a priority queue.
func NewSingleScheduled() *Pool {
	return MustNew(Config{Name: "single-scheduled", Sizing: Single, QueueKind: queue.Priority})
}

// NewWorkStealing creates n workers, each with its own deque, that steal
// from each other when idle. n <= 0 uses GOMAXPROCS.
func NewWorkStealing(n int) *Pool {
	return MustNew(Config{Sizing: WorkStealing, CoreWorkers: n})
}

// Name returns the pool name used in logs and metrics.
func (p *Pool) Name() string { return p.cfg.Name }

// Config returns the effective configuration.
func (p *Pool) Config() Config { return p.cfg }

// Submit runs work as soon as a worker is available.
func (p *Pool) Submit(work task.Work) (*task.Future, error) {
	return p.SubmitWithOptions(context.Background(), work, Options{})
}

// SubmitWithContext is like Submit; ctx is the parent of the context the
// work receives, so cancelling it cancels the task.
func (p *Pool) SubmitWithContext(ctx context.Context, work task.Work) (*task.Future, error) {
	return p.SubmitWithOptions(ctx, work, Options{})
}

// Schedule runs work once after delay.
func (p *Pool) Schedule(work task.Work, delay time.Duration) (*task.Future, error) {
	return p.SubmitWithOptions(context.Background(), work, Options{Delay: delay})
}

// ScheduleAtFixedRate runs work after initialDelay and then every period.
// Runs never overlap; a run that overruns its period delays the next one.
// The future resolves only when the task is cancelled or the pool shuts down.
func (p *Pool) ScheduleAtFixedRate(work task.Work, initialDelay, period time.Duration) (*task.Future, error) {
	if period <= 0 {
		return nil, gferrors.NewValidationError("workerpool", "period", period, "must be positive").
			WithHint("use Schedule for one-shot delayed work")
	}
	return p.SubmitWithOptions(context.Background(), work, Options{Delay: initialDelay, Period: period})
}

// ScheduleCron runs work at every activation of a six-field cron
// expression with seconds first.
func (p *Pool) ScheduleCron(expr string, work task.Work) (*task.Future, error) {
	if work == nil {
		return nil, validation.ValidateNotNil("workerpool", "work", nil)
	}
	if err := scheduler.ValidateCron(expr); err != nil {
		return nil, gferrors.NewValidationError("workerpool", "cron expression", expr, err.Error())
	}
	t := p.newTask(context.Background(), work, 0)
	return p.submit(t, func() error { return p.sched.ScheduleCron(t, expr) })
}

// SubmitWithOptions is the general submission method.
func (p *Pool) SubmitWithOptions(ctx context.Context, work task.Work, opts Options) (*task.Future, error) {
	if work == nil {
		return nil, validation.ValidateNotNil("workerpool", "work", nil)
	}
	if opts.Period < 0 {
		return nil, gferrors.NewValidationError("workerpool", "Period", opts.Period, "cannot be negative")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cannot submit task: context canceled: %w", err)
	}

	t := p.newTask(ctx, work, opts.Priority)
	switch {
	case opts.Period > 0:
		return p.submit(t, func() error { return p.sched.ScheduleRepeating(t, opts.Delay, opts.Period) })
	case opts.Delay > 0:
		return p.submit(t, func() error { return p.sched.ScheduleOnce(t, opts.Delay) })
	default:
		return p.submit(t, nil)
	}
}

func (p *Pool) newTask(ctx context.Context, work task.Work, priority int) *task.Task {
	return task.New(ctx, work,
		task.WithStop(p.runCtx),
		task.WithPriority(priority),
		task.WithSubmitted(p.clock.Now()),
		task.WithCanceller(p.cancelPending),
	)
}

// submit places t either in the scheduler (schedule != nil) or on the
// execution path. Work the rejection policy hands back to the caller runs
// after the state lock is released.
func (p *Pool) submit(t *task.Task, schedule func() error) (*task.Future, error) {
	overflow, err := p.place(t, schedule)
	if err == nil && overflow != nil {
		err = overflow()
	}
	if err != nil {
		return nil, err
	}
	return t.Future(), nil
}

func (p *Pool) place(t *task.Task, schedule func() error) (func() error, error) {
	p.state.RLock()
	defer p.state.RUnlock()

	if p.closing.Load() {
		t.Discard(task.Rejected, gferrors.ErrShutdownInProgress)
		return nil, fmt.Errorf("cannot submit task: %w", gferrors.ErrShutdownInProgress)
	}

	p.submitted.Add(1)
	p.hooks.taskSubmitted(t)

	if schedule == nil {
		return p.execute(t)
	}
	if err := schedule(); err != nil {
		return nil, p.refuse(t, fmt.Errorf("%w: %w", gferrors.ErrRejected, err))
	}
	return nil, nil
}

// execute hands t to a worker or the queue, applying the rejection policy
// when neither can take it. The caller holds state for reading and runs
// the returned overflow function, if any, once it has released it.
func (p *Pool) execute(t *task.Task) (func() error, error) {
	if p.addWorker(t, true) {
		return nil, nil
	}
	if err := p.queue.Offer(t); err == nil {
		if p.LiveWorkers() == 0 {
			p.addWorker(nil, false)
		}
		return nil, nil
	}
	if p.addWorker(t, false) {
		return nil, nil
	}
	return p.reject(t)
}

// dispatch receives tasks from the scheduler once they are due.
func (p *Pool) dispatch(t *task.Task) error {
	overflow, err := p.placeDue(t)
	if err == nil && overflow != nil {
		err = overflow()
	}
	return err
}

func (p *Pool) placeDue(t *task.Task) (func() error, error) {
	p.state.RLock()
	defer p.state.RUnlock()

	if p.closing.Load() {
		p.discard(t)
		return nil, gferrors.ErrShutdownInProgress
	}
	return p.execute(t)
}

// reschedule returns a periodic task to the scheduler after a run.
func (p *Pool) reschedule(t *task.Task) {
	p.state.RLock()
	defer p.state.RUnlock()

	if p.closing.Load() {
		p.discard(t)
		return
	}
	if err := p.sched.Reschedule(t); err != nil {
		p.logger.Warn("periodic task dropped", zap.String("task_id", string(t.ID())), zap.Error(err))
		p.refuse(t, fmt.Errorf("%w: %w", gferrors.ErrRejected, err))
	}
}

// cancelPending removes a task cancelled through its future from wherever
// it waits.
func (p *Pool) cancelPending(t *task.Task) {
	p.sched.Cancel(t.ID())
	p.queue.Remove(t)
	p.cancelled.Add(1)
	p.hooks.taskCancelled(t)
}

// discard cancels a pending task the pool will no longer run.
func (p *Pool) discard(t *task.Task) {
	if t.Discard(task.Cancelled, gferrors.ErrCancelled) {
		p.cancelled.Add(1)
		p.hooks.taskCancelled(t)
	}
}

// refuse rejects a pending task and returns err for the submitter.
func (p *Pool) refuse(t *task.Task, err error) error {
	if t.Discard(task.Rejected, err) {
		p.rejected.Add(1)
		p.hooks.taskRejected(t, err)
		p.logger.Debug("task rejected", zap.String("task_id", string(t.ID())), zap.Error(err))
	}
	return err
}

// addWorker starts a worker with first as its initial task. core limits
// the pool to CoreWorkers instead of MaxWorkers.
func (p *Pool) addWorker(first *task.Task, core bool) bool {
	limit := p.cfg.MaxWorkers
	if core {
		limit = p.cfg.CoreWorkers
	}

	p.mu.Lock()
	if p.draining || len(p.workers) >= limit {
		p.mu.Unlock()
		return false
	}
	id := p.nextID
	p.nextID++
	w := &worker{id: id, pool: p}
	if p.stealing != nil {
		w.slot = id % p.stealing.Slots()
	}
	p.workers[id] = w
	p.mu.Unlock()

	p.hooks.workerSpawned(id)
	p.logger.Debug("worker spawned", zap.Int("worker_id", id))
	go w.run(first)
	return true
}

// removeWorker deregisters w. An idle worker is only removed while the
// pool is above its core size.
func (p *Pool) removeWorker(w *worker, idle bool) bool {
	p.mu.Lock()
	if idle && len(p.workers) <= p.cfg.CoreWorkers {
		p.mu.Unlock()
		return false
	}
	delete(p.workers, w.id)
	replace := len(p.workers) == 0 && !p.draining && p.queue.Len() > 0
	p.terminateLocked()
	p.mu.Unlock()

	if replace {
		p.addWorker(nil, false)
	}
	return true
}

// terminateLocked closes done once the queue is closed, the last worker
// is gone and no task runs on a caller's goroutine.
func (p *Pool) terminateLocked() {
	if p.draining && len(p.workers) == 0 && p.inline == 0 && !p.terminated {
		p.terminated = true
		close(p.done)
	}
}

// RunInline executes t on the calling goroutine. It is meant for rejection
// handlers that want the caller to absorb the overflow. Shutdown waits for
// inline runs like it waits for workers.
func (p *Pool) RunInline(t *task.Task) error {
	if !p.beginInline() {
		return fmt.Errorf("cannot run task: %w", gferrors.ErrShutdownInProgress)
	}
	defer p.endInline()

	if p.runTask(t, -1) {
		p.reschedule(t)
	}
	return nil
}

func (p *Pool) beginInline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing.Load() || p.draining {
		return false
	}
	p.inline++
	return true
}

func (p *Pool) endInline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inline--
	p.terminateLocked()
}

// Shutdown stops the pool. A graceful shutdown lets queued tasks finish; a
// non-graceful one cancels them and interrupts running tasks through their
// context. Delayed and periodic tasks are cancelled in both cases. It waits
// up to ShutdownTimeout for workers to exit.
func (p *Pool) Shutdown(graceful bool) error {
	ctx := context.Background()
	if p.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
		defer cancel()
	}
	return p.ShutdownContext(ctx, graceful)
}

// ShutdownContext is like Shutdown but waits until ctx is done. When the
// wait is cut short, running tasks are interrupted and an error matching
// ErrTimedOut is returned; workers keep exiting in the background.
func (p *Pool) ShutdownContext(ctx context.Context, graceful bool) error {
	if !graceful {
		p.stopRun()
	}

	p.state.Lock()
	first := !p.closing.Swap(true)
	p.state.Unlock()

	if first {
		p.logger.Debug("shutting down", zap.Bool("graceful", graceful))
		// The driver may be running an overflow task on its goroutine.
		select {
		case <-p.sched.Stop():
		case <-ctx.Done():
		}
		for _, t := range p.sched.CancelAll() {
			p.discard(t)
		}
	}

	if !graceful {
		for _, t := range p.queue.Drain() {
			p.discard(t)
		}
	}

	if first {
		if p.queue.Len() > 0 && p.LiveWorkers() == 0 {
			p.addWorker(nil, false)
		}
		p.queue.Close()
		p.mu.Lock()
		p.draining = true
		p.terminateLocked()
		p.mu.Unlock()
	}

	select {
	case <-p.done:
		p.stopRun()
		p.logger.Debug("pool terminated", zap.Int64("completed", p.completed.Load()))
		return nil
	case <-ctx.Done():
		p.stopRun()
		live := p.LiveWorkers()
		p.logger.Warn("shutdown grace period exceeded", zap.Int("live_workers", live))
		return gferrors.NewOperationError("workerpool", "shutdown",
			fmt.Errorf("%w: %w", gferrors.ErrTimedOut, ctx.Err())).
			WithContext(fmt.Sprintf("%d workers still running", live))
	}
}

// Done is closed once the pool has shut down and every worker has exited.
func (p *Pool) Done() <-chan struct{} { return p.done }

// IsShutdown reports whether shutdown has begun.
func (p *Pool) IsShutdown() bool { return p.closing.Load() }

// Size returns the number of live workers.
func (p *Pool) Size() int { return p.LiveWorkers() }

// LiveWorkers returns the number of live workers.
func (p *Pool) LiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// QueueSize returns the number of tasks waiting in the queue.
func (p *Pool) QueueSize() int { return p.queue.Len() }

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *Pool) ActiveWorkers() int { return int(p.busy.Load()) }

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	return Stats{
		Live:      p.LiveWorkers(),
		Busy:      p.ActiveWorkers(),
		Queued:    p.queue.Len(),
		Scheduled: p.sched.Len(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Cancelled: p.cancelled.Load(),
	}
}
