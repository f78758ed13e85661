package workerpool

import (
	"fmt"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// reject applies the rejection policy to a task that neither a worker nor
// the queue could take. The caller holds state for reading; policies that
// run code on the caller's goroutine return it as overflow so it runs once
// the lock is released.
func (p *Pool) reject(t *task.Task) (overflow func() error, err error) {
	cause := fmt.Errorf("%w: pool %q saturated (%d workers, %d queued)",
		gferrors.ErrRejected, p.cfg.Name, p.LiveWorkers(), p.queue.Len())

	switch p.cfg.Rejection {
	case CallerRuns:
		return func() error { return p.callerRuns(t) }, nil

	case DiscardOldest:
		if oldest, ok := p.queue.EvictOldest(); ok {
			p.refuse(oldest, fmt.Errorf("%w: evicted by a newer task", gferrors.ErrRejected))
			if err := p.queue.Offer(t); err == nil {
				if p.LiveWorkers() == 0 {
					p.addWorker(nil, false)
				}
				return nil, nil
			}
		}
		return nil, p.refuse(t, cause)

	case Discard:
		p.refuse(t, cause)
		return nil, nil

	case CustomRejection:
		return func() error {
			if err := p.cfg.RejectionHandler(t, p); err != nil {
				return p.refuse(t, fmt.Errorf("%w: %w", gferrors.ErrRejected, err))
			}
			return nil
		}, nil

	default:
		return nil, p.refuse(t, cause)
	}
}

// callerRuns runs t on the submitting goroutine, or rejects it when the
// pool began shutting down after t was refused a worker.
func (p *Pool) callerRuns(t *task.Task) error {
	if err := p.RunInline(t); err != nil {
		return p.refuse(t, fmt.Errorf("%w: %w", gferrors.ErrRejected, err))
	}
	return nil
}
