package workerpool

import (
	"time"

	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// Result describes one run of a task.
type Result struct {
	// Task is the task that ran
	Task *task.Task

	// Value is what the work function returned
	Value any

	// Err is the classified outcome, nil on success
	Err error

	// Duration is how long the run took
	Duration time.Duration

	// WorkerID identifies which worker executed the run, -1 for runs on
	// the caller's goroutine
	WorkerID int
}

// Hooks are optional callbacks invoked on pool events. They run on the
// goroutine that produced the event and must not block.
type Hooks struct {
	// OnTaskSubmitted is called once a task has been accepted.
	OnTaskSubmitted func(t *task.Task)

	// OnTaskStarted is called before each run.
	OnTaskStarted func(workerID int, t *task.Task)

	// OnTaskCompleted is called after a run that returned no error.
	OnTaskCompleted func(result Result)

	// OnTaskFailed is called after a run that returned an error or panicked.
	OnTaskFailed func(result Result)

	// OnTaskRejected is called when the rejection policy refuses a task.
	OnTaskRejected func(t *task.Task, err error)

	// OnTaskCancelled is called when a task is cancelled, whether pending,
	// running or discarded by shutdown.
	OnTaskCancelled func(t *task.Task)

	// OnWorkerSpawned is called when a worker starts.
	OnWorkerSpawned func(workerID int)

	// OnWorkerRetired is called when a worker exits.
	OnWorkerRetired func(workerID int)
}

// MergeHooks returns hooks that invoke every non-nil callback of hs in order.
func MergeHooks(hs ...Hooks) Hooks {
	var merged Hooks
	for _, h := range hs {
		h := h
		if fn := h.OnTaskSubmitted; fn != nil {
			prev := merged.OnTaskSubmitted
			merged.OnTaskSubmitted = func(t *task.Task) {
				if prev != nil {
					prev(t)
				}
				fn(t)
			}
		}
		if fn := h.OnTaskStarted; fn != nil {
			prev := merged.OnTaskStarted
			merged.OnTaskStarted = func(id int, t *task.Task) {
				if prev != nil {
					prev(id, t)
				}
				fn(id, t)
			}
		}
		if fn := h.OnTaskCompleted; fn != nil {
			prev := merged.OnTaskCompleted
			merged.OnTaskCompleted = func(r Result) {
				if prev != nil {
					prev(r)
				}
				fn(r)
			}
		}
		if fn := h.OnTaskFailed; fn != nil {
			prev := merged.OnTaskFailed
			merged.OnTaskFailed = func(r Result) {
				if prev != nil {
					prev(r)
				}
				fn(r)
			}
		}
		if fn := h.OnTaskRejected; fn != nil {
			prev := merged.OnTaskRejected
			merged.OnTaskRejected = func(t *task.Task, err error) {
				if prev != nil {
					prev(t, err)
				}
				fn(t, err)
			}
		}
		if fn := h.OnTaskCancelled; fn != nil {
			prev := merged.OnTaskCancelled
			merged.OnTaskCancelled = func(t *task.Task) {
				if prev != nil {
					prev(t)
				}
				fn(t)
			}
		}
		if fn := h.OnWorkerSpawned; fn != nil {
			prev := merged.OnWorkerSpawned
			merged.OnWorkerSpawned = func(id int) {
				if prev != nil {
					prev(id)
				}
				fn(id)
			}
		}
		if fn := h.OnWorkerRetired; fn != nil {
			prev := merged.OnWorkerRetired
			merged.OnWorkerRetired = func(id int) {
				if prev != nil {
					prev(id)
				}
				fn(id)
			}
		}
	}
	return merged
}

func (h Hooks) taskSubmitted(t *task.Task) {
	if h.OnTaskSubmitted != nil {
		h.OnTaskSubmitted(t)
	}
}

func (h Hooks) taskStarted(workerID int, t *task.Task) {
	if h.OnTaskStarted != nil {
		h.OnTaskStarted(workerID, t)
	}
}

func (h Hooks) taskFinished(r Result) {
	if r.Err == nil {
		if h.OnTaskCompleted != nil {
			h.OnTaskCompleted(r)
		}
		return
	}
	if h.OnTaskFailed != nil {
		h.OnTaskFailed(r)
	}
}

func (h Hooks) taskRejected(t *task.Task, err error) {
	if h.OnTaskRejected != nil {
		h.OnTaskRejected(t, err)
	}
}

func (h Hooks) taskCancelled(t *task.Task) {
	if h.OnTaskCancelled != nil {
		h.OnTaskCancelled(t)
	}
}

func (h Hooks) workerSpawned(id int) {
	if h.OnWorkerSpawned != nil {
		h.OnWorkerSpawned(id)
	}
}

func (h Hooks) workerRetired(id int) {
	if h.OnWorkerRetired != nil {
		h.OnWorkerRetired(id)
	}
}
