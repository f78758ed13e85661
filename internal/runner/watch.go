package runner

import (
	"sync"

	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// runWatch closes done once every tracked periodic task has run quota
// times.
type runWatch struct {
	quota int64

	mu      sync.Mutex
	runs    map[task.ID]int64
	tracked map[task.ID]bool
	sum     int64
	ch      chan struct{}
	closed  bool
}

func newRunWatch(quota int) *runWatch {
	if quota <= 0 {
		quota = 1
	}
	return &runWatch{
		quota:   int64(quota),
		runs:    make(map[task.ID]int64),
		tracked: make(map[task.ID]bool),
		ch:      make(chan struct{}),
	}
}

// observe counts a finished run of t.
func (w *runWatch) observe(t *task.Task) {
	if !t.Periodic() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs[t.ID()]++
	w.sum++
	w.checkLocked()
}

// track adds a periodic task to wait for.
func (w *runWatch) track(id task.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracked[id] = true
	w.checkLocked()
}

func (w *runWatch) checkLocked() {
	if w.closed || len(w.tracked) == 0 {
		return
	}
	for id := range w.tracked {
		if w.runs[id] < w.quota {
			return
		}
	}
	w.closed = true
	close(w.ch)
}

func (w *runWatch) done() <-chan struct{} { return w.ch }

func (w *runWatch) total() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sum
}
