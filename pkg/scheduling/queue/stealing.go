package queue

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// Stealing is a set of private deques, one per worker slot. Offers are
// spread round-robin; a worker takes from the head of its own deque and,
// when that is empty, steals from the tail of a peer. There is no ordering
// guarantee across deques.
type Stealing struct {
	deques []*deque
	next   atomic.Uint64
	size   atomic.Int64

	// mu guards waiters and closed. It is taken before any deque lock.
	mu      sync.Mutex
	waiters waitList
	closed  bool
}

type deque struct {
	mu    sync.Mutex
	items *list.List
}

// entry is a deque element; seq is the offer order across all deques.
type entry struct {
	t   *task.Task
	seq uint64
}

// NewStealing creates a work-stealing queue with n private deques.
func NewStealing(n int) *Stealing {
	if n <= 0 {
		n = 1
	}
	s := &Stealing{deques: make([]*deque, n)}
	for i := range s.deques {
		s.deques[i] = &deque{items: list.New()}
	}
	return s
}

// Slots returns the number of private deques.
func (s *Stealing) Slots() int { return len(s.deques) }

// Offer implements Queue. The stealing queue is unbounded.
func (s *Stealing) Offer(t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return gferrors.ErrClosed
	}

	seq := s.next.Add(1) - 1
	d := s.deques[seq%uint64(len(s.deques))]
	d.mu.Lock()
	d.items.PushBack(entry{t: t, seq: seq})
	s.size.Add(1)
	d.mu.Unlock()

	s.waiters.wakeOne()
	return nil
}

// Take implements Queue, starting from a rotating slot.
func (s *Stealing) Take(ctx context.Context) (*task.Task, error) {
	return s.TakeFor(ctx, int(s.next.Load()%uint64(len(s.deques))))
}

// TakeFor takes a task for the worker owning slot, stealing from peers
// when its own deque is empty.
func (s *Stealing) TakeFor(ctx context.Context, slot int) (*task.Task, error) {
	slot %= len(s.deques)
	for {
		if t := s.tryTake(slot); t != nil {
			return t, nil
		}

		s.mu.Lock()
		if s.size.Load() > 0 {
			s.mu.Unlock()
			continue
		}
		if s.closed {
			s.mu.Unlock()
			return nil, gferrors.ErrClosed
		}
		w := s.waiters.add()
		s.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			s.mu.Lock()
			stillWaiting := s.waiters.drop(w)
			s.mu.Unlock()
			if stillWaiting {
				return nil, ctx.Err()
			}
		}
	}
}

func (s *Stealing) tryTake(slot int) *task.Task {
	if t := s.deques[slot].popFront(&s.size); t != nil {
		return t
	}
	n := len(s.deques)
	for i := 1; i < n; i++ {
		if t := s.deques[(slot+i)%n].popBack(&s.size); t != nil {
			return t
		}
	}
	return nil
}

// Remove implements Queue.
func (s *Stealing) Remove(t *task.Task) bool {
	for _, d := range s.deques {
		if d.remove(t, &s.size) {
			return true
		}
	}
	return false
}

// EvictOldest implements Queue. Each deque holds its tasks in offer order,
// so the earliest offered task is the front with the lowest sequence.
func (s *Stealing) EvictOldest() (*task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		var oldest *deque
		var seq uint64
		for _, d := range s.deques {
			if front, ok := d.front(); ok && (oldest == nil || front < seq) {
				oldest, seq = d, front
			}
		}
		if oldest == nil {
			return nil, false
		}
		// A taker may have popped the front since it was inspected.
		if t := oldest.popFrontIf(seq, &s.size); t != nil {
			return t, true
		}
	}
}

// Drain implements Queue.
func (s *Stealing) Drain() []*task.Task {
	var drained []*task.Task
	for _, d := range s.deques {
		for t := d.popFront(&s.size); t != nil; t = d.popFront(&s.size) {
			drained = append(drained, t)
		}
	}
	return drained
}

// Len implements Queue.
func (s *Stealing) Len() int { return int(s.size.Load()) }

// Cap implements Queue.
func (s *Stealing) Cap() int { return 0 }

// Close implements Queue.
func (s *Stealing) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.waiters.wakeAll()
}

func (d *deque) popFront(size *atomic.Int64) *task.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.items.Front()
	if e == nil {
		return nil
	}
	size.Add(-1)
	return d.items.Remove(e).(entry).t
}

func (d *deque) front() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.items.Front()
	if e == nil {
		return 0, false
	}
	return e.Value.(entry).seq, true
}

func (d *deque) popFrontIf(seq uint64, size *atomic.Int64) *task.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.items.Front()
	if e == nil || e.Value.(entry).seq != seq {
		return nil
	}
	size.Add(-1)
	return d.items.Remove(e).(entry).t
}

func (d *deque) popBack(size *atomic.Int64) *task.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.items.Back()
	if e == nil {
		return nil
	}
	size.Add(-1)
	return d.items.Remove(e).(entry).t
}

func (d *deque) remove(t *task.Task, size *atomic.Int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for e := d.items.Front(); e != nil; e = e.Next() {
		if e.Value.(entry).t == t {
			d.items.Remove(e)
			size.Add(-1)
			return true
		}
	}
	return false
}
