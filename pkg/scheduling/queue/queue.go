package queue

import (
	"context"
	"sync"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// Queue holds pending tasks between submission and execution.
type Queue interface {
	// Offer enqueues t. It never blocks: a full queue returns
	// ErrCapacityExceeded and a closed queue returns ErrClosed.
	Offer(t *task.Task) error

	// Take blocks until a task is available, the queue is closed and empty
	// (ErrClosed) or ctx is done (ctx.Err()).
	Take(ctx context.Context) (*task.Task, error)

	// Remove deletes a pending task. It reports whether t was queued.
	Remove(t *task.Task) bool

	// EvictOldest removes and returns the earliest offered task, which is
	// not the head when the queue orders by priority.
	EvictOldest() (*task.Task, bool)

	// Drain removes and returns every queued task in dequeue order.
	Drain() []*task.Task

	// Len returns the number of queued tasks.
	Len() int

	// Cap returns the capacity, 0 when unbounded or hand-off only.
	Cap() int

	// Close rejects further offers and wakes every waiting Take. Queued
	// tasks remain available to Take until the queue is empty.
	Close()
}

// store is the ordering discipline behind a Blocking queue. Calls are
// serialised by the queue mutex.
type store interface {
	push(t *task.Task)
	pop() *task.Task
	oldest() *task.Task
	remove(t *task.Task) bool
	len() int
}

// Blocking is a mutex-protected queue whose Take blocks on an empty queue.
type Blocking struct {
	mu       sync.Mutex
	store    store
	capacity int
	handoff  bool
	waiters  waitList
	closed   bool
}

// NewFIFO creates a first-in first-out queue. A capacity of 0 or less
// means unbounded.
func NewFIFO(capacity int) *Blocking {
	return &Blocking{store: newListStore(), capacity: max(capacity, 0)}
}

// NewPriority creates a queue ordered by due time, then priority, then
// insertion order. A capacity of 0 or less means unbounded.
func NewPriority(capacity int) *Blocking {
	return &Blocking{store: newHeapStore(), capacity: max(capacity, 0)}
}

// NewSynchronous creates a hand-off queue: Offer only succeeds while a
// taker is blocked waiting for work.
func NewSynchronous() *Blocking {
	return &Blocking{store: newListStore(), handoff: true}
}

// Offer implements Queue.
func (q *Blocking) Offer(t *task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return gferrors.ErrClosed
	}
	if q.handoff && q.waiters.len() == 0 {
		return gferrors.ErrCapacityExceeded
	}
	if q.capacity > 0 && q.store.len() >= q.capacity {
		return gferrors.ErrCapacityExceeded
	}

	q.store.push(t)
	q.waiters.wakeOne()
	return nil
}

// Take implements Queue.
func (q *Blocking) Take(ctx context.Context) (*task.Task, error) {
	for {
		q.mu.Lock()
		if t := q.store.pop(); t != nil {
			q.mu.Unlock()
			return t, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, gferrors.ErrClosed
		}
		w := q.waiters.add()
		q.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			q.mu.Lock()
			stillWaiting := q.waiters.drop(w)
			q.mu.Unlock()
			if stillWaiting {
				return nil, ctx.Err()
			}
			// Woken concurrently with the deadline: consume the hand-over.
		}
	}
}

// Remove implements Queue.
func (q *Blocking) Remove(t *task.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.remove(t)
}

// EvictOldest implements Queue.
func (q *Blocking) EvictOldest() (*task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.store.oldest()
	return t, t != nil
}

// Drain implements Queue.
func (q *Blocking) Drain() []*task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := make([]*task.Task, 0, q.store.len())
	for t := q.store.pop(); t != nil; t = q.store.pop() {
		drained = append(drained, t)
	}
	return drained
}

// Len implements Queue.
func (q *Blocking) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.len()
}

// Cap implements Queue.
func (q *Blocking) Cap() int { return q.capacity }

// Close implements Queue.
func (q *Blocking) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.waiters.wakeAll()
}

// waitList tracks blocked takers that have not been woken yet. Each waiter
// owns a one-slot channel so a wake never blocks the waker.
type waitList struct {
	chans []chan struct{}
}

func (l *waitList) add() chan struct{} {
	w := make(chan struct{}, 1)
	l.chans = append(l.chans, w)
	return w
}

func (l *waitList) len() int { return len(l.chans) }

func (l *waitList) wakeOne() {
	if len(l.chans) == 0 {
		return
	}
	w := l.chans[0]
	l.chans[0] = nil
	l.chans = l.chans[1:]
	w <- struct{}{}
}

func (l *waitList) wakeAll() {
	for _, w := range l.chans {
		w <- struct{}{}
	}
	l.chans = nil
}

// drop removes w if it has not been woken, reporting whether it was found.
func (l *waitList) drop(w chan struct{}) bool {
	for i, c := range l.chans {
		if c == w {
			l.chans = append(l.chans[:i], l.chans[i+1:]...)
			return true
		}
	}
	return false
}
