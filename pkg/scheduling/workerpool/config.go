package workerpool

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/jacobsa/timeutil"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/common/validation"
	"github.com/vnykmshr/executors/pkg/scheduling/queue"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

const (
	// DefaultCachedMaxWorkers bounds the growth of a Cached pool.
	DefaultCachedMaxWorkers = 4096

	// DefaultIdleTimeout is how long a worker above core waits for work
	// before it retires.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultMaxScheduled bounds the delayed and periodic tasks a pool holds.
	DefaultMaxScheduled = 10000
)

// Sizing selects how a pool grows, shrinks and queues work.
type Sizing int

const (
	// Fixed keeps CoreWorkers prestarted workers over an unbounded queue.
	Fixed Sizing = iota
	// Cached starts with no workers, hands each task to an idle worker or
	// a new one, and retires workers idle for IdleTimeout.
	Cached
	// Single runs every task on one worker in submission order.
	Single
	// WorkStealing runs CoreWorkers workers over per-worker deques. There
	// is no ordering guarantee.
	WorkStealing
	// Custom takes every parameter from the Config.
	Custom
)

func (s Sizing) String() string {
	switch s {
	case Fixed:
		return "fixed"
	case Cached:
		return "cached"
	case Single:
		return "single"
	case WorkStealing:
		return "work-stealing"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("Sizing(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Sizing) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Sizing) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "fixed", "":
		*s = Fixed
	case "cached":
		*s = Cached
	case "single":
		*s = Single
	case "work-stealing", "workstealing", "stealing":
		*s = WorkStealing
	case "custom", "manual":
		*s = Custom
	default:
		return fmt.Errorf("unknown sizing policy %q", text)
	}
	return nil
}

// RejectionPolicy decides what happens to a task the pool cannot accept.
type RejectionPolicy int

const (
	// Abort fails the submission with ErrRejected.
	Abort RejectionPolicy = iota
	// CallerRuns executes the task on the submitting goroutine.
	CallerRuns
	// DiscardOldest evicts the head of the queue and enqueues the new task.
	DiscardOldest
	// Discard drops the new task; its future resolves with ErrRejected.
	Discard
	// CustomRejection delegates to Config.RejectionHandler.
	CustomRejection
)

func (r RejectionPolicy) String() string {
	switch r {
	case Abort:
		return "abort"
	case CallerRuns:
		return "caller-runs"
	case DiscardOldest:
		return "discard-oldest"
	case Discard:
		return "discard"
	case CustomRejection:
		return "custom"
	default:
		return fmt.Sprintf("RejectionPolicy(%d)", int(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r RejectionPolicy) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RejectionPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "abort", "":
		*r = Abort
	case "caller-runs", "callerruns":
		*r = CallerRuns
	case "discard-oldest", "discardoldest":
		*r = DiscardOldest
	case "discard", "discard-new":
		*r = Discard
	case "custom":
		*r = CustomRejection
	default:
		return fmt.Errorf("unknown rejection policy %q", text)
	}
	return nil
}

// RejectionHandler handles a task the pool could not accept. Returning nil
// means the handler took ownership of the task (for example by calling
// p.RunInline); returning an error rejects it.
type RejectionHandler func(t *task.Task, p *Pool) error

// Config holds configuration options for creating a worker pool.
type Config struct {
	// Name labels logs and metrics.
	Name string

	// Sizing selects the growth policy. It decides the defaults of the
	// fields below.
	Sizing Sizing

	// CoreWorkers is the number of workers that never retire.
	// Fixed and WorkStealing default to GOMAXPROCS.
	CoreWorkers int

	// MaxWorkers is the upper bound of live workers.
	MaxWorkers int

	// IdleTimeout is how long a worker above CoreWorkers waits for a task
	// before retiring (default: 60s).
	IdleTimeout time.Duration

	// QueueKind selects the queue for Fixed, Single and Custom pools.
	// Priority orders tasks by due time and priority.
	QueueKind queue.Kind

	// QueueCapacity bounds FIFO and Priority queues. Zero means unbounded.
	QueueCapacity int

	// Queue overrides QueueKind with a caller-provided queue (Custom only).
	Queue queue.Queue

	// Rejection is the policy applied when the pool is saturated.
	Rejection RejectionPolicy

	// RejectionHandler is required when Rejection is CustomRejection.
	RejectionHandler RejectionHandler

	// TaskTimeout is the maximum duration of a single run.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// ShutdownTimeout is the grace period of Shutdown. Zero waits until
	// every worker has exited.
	ShutdownTimeout time.Duration

	// MaxScheduled bounds the delayed and periodic tasks held at once
	// (default: 10000).
	MaxScheduled int

	// PanicHandler is called when a work function panics, after recovery.
	PanicHandler func(t *task.Task, recovered interface{})

	// Hooks receive lifecycle events.
	Hooks Hooks

	// Logger receives diagnostics (default: zap.NewNop()).
	Logger *zap.Logger

	// Clock stamps submissions and drives delays (default: timeutil.RealClock()).
	// Idle retirement and TaskTimeout always use real time.
	Clock timeutil.Clock
}

// ManualConfig returns the hand-built pool of the classic demonstration:
// one core worker growing to two, a 100s keep-alive, a FIFO queue holding a
// single task and a handler that runs overflow on the caller.
func ManualConfig() Config {
	return Config{
		Name:          "manual",
		Sizing:        Custom,
		CoreWorkers:   1,
		MaxWorkers:    2,
		IdleTimeout:   100 * time.Second,
		QueueKind:     queue.FIFO,
		QueueCapacity: 1,
		Rejection:     CustomRejection,
		RejectionHandler: func(t *task.Task, p *Pool) error {
			return p.RunInline(t)
		},
	}
}

// applyDefaults fills the fields a sizing policy implies.
func (c *Config) applyDefaults() {
	switch c.Sizing {
	case Fixed:
		if c.CoreWorkers <= 0 {
			c.CoreWorkers = runtime.GOMAXPROCS(0)
		}
		c.MaxWorkers = c.CoreWorkers
		c.QueueCapacity = 0
	case Cached:
		c.CoreWorkers = 0
		if c.MaxWorkers <= 0 {
			c.MaxWorkers = DefaultCachedMaxWorkers
		}
		c.QueueKind = queue.Synchronous
	case Single:
		c.CoreWorkers = 1
		c.MaxWorkers = 1
		c.QueueCapacity = 0
	case WorkStealing:
		if c.CoreWorkers <= 0 {
			c.CoreWorkers = runtime.GOMAXPROCS(0)
		}
		c.MaxWorkers = c.CoreWorkers
		c.QueueKind = queue.WorkStealing
	case Custom:
		if c.MaxWorkers <= 0 {
			c.MaxWorkers = c.CoreWorkers
		}
	}

	if c.Name == "" {
		c.Name = c.Sizing.String()
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxScheduled <= 0 {
		c.MaxScheduled = DefaultMaxScheduled
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = timeutil.RealClock()
	}
}

// WithDefaults returns c with the fields implied by its sizing policy
// filled in, as New would see it.
func (c Config) WithDefaults() Config {
	c.applyDefaults()
	return c
}

// Validate reports the first invalid field after defaults are applied.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("workerpool", "MaxWorkers", c.MaxWorkers); err != nil {
		return err
	}
	if c.CoreWorkers < 0 || c.CoreWorkers > c.MaxWorkers {
		return gferrors.NewValidationError("workerpool", "CoreWorkers", c.CoreWorkers,
			fmt.Sprintf("must be between 0 and MaxWorkers (%d)", c.MaxWorkers))
	}
	if err := validation.ValidateAtLeast("workerpool", "QueueCapacity", c.QueueCapacity, 0); err != nil {
		return err
	}
	if err := validation.ValidateDuration("workerpool", "TaskTimeout", c.TaskTimeout); err != nil {
		return err
	}
	if err := validation.ValidateDuration("workerpool", "ShutdownTimeout", c.ShutdownTimeout); err != nil {
		return err
	}
	if c.Queue != nil && c.Sizing != Custom {
		return gferrors.NewValidationError("workerpool", "Queue", c.Sizing, "explicit queues need Custom sizing").
			WithHint("set Sizing to Custom or use QueueKind")
	}
	if c.QueueKind == queue.WorkStealing && c.Sizing != WorkStealing && c.Queue == nil {
		return gferrors.NewValidationError("workerpool", "QueueKind", c.QueueKind, "work stealing needs WorkStealing sizing")
	}
	if c.Rejection == CustomRejection && c.RejectionHandler == nil {
		return gferrors.NewValidationError("workerpool", "RejectionHandler", nil, "required by the custom rejection policy").
			WithHint("provide a RejectionHandler or choose another policy")
	}
	return nil
}

func (c Config) newQueue() queue.Queue {
	if c.Queue != nil {
		return c.Queue
	}
	return queue.New(c.QueueKind, c.QueueCapacity, c.CoreWorkers)
}
