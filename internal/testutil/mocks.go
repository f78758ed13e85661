package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// CallbackTracker records invocations of a callback.
type CallbackTracker struct {
	mu    sync.Mutex
	count int
	value interface{}
}

// NewCallbackTracker creates an empty tracker.
func NewCallbackTracker() *CallbackTracker {
	return &CallbackTracker{}
}

// Mark records a call, optionally remembering the last value.
func (c *CallbackTracker) Mark(value ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if len(value) > 0 {
		c.value = value[0]
	}
}

// CallCount returns the number of Mark calls.
func (c *CallbackTracker) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Value returns the last value passed to Mark.
func (c *CallbackTracker) Value() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// AssertCallCount fails the test unless Mark was called want times.
func (c *CallbackTracker) AssertCallCount(t *testing.T, want int) {
	t.Helper()
	if got := c.CallCount(); got != want {
		t.Fatalf("call count = %d, want %d", got, want)
	}
}

// Gate blocks work functions until it is opened, so tests can hold workers
// busy and observe pool state.
type Gate struct {
	open    chan struct{}
	once    sync.Once
	entered atomic.Int32
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{open: make(chan struct{})}
}

// Wait blocks until the gate opens or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.entered.Add(1)
	select {
	case <-g.open:
		return nil
	default:
	}
	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open releases every current and future waiter.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.open) })
}

// Entered returns how many calls to Wait have started.
func (g *Gate) Entered() int {
	return int(g.entered.Load())
}

// WaitEntered waits until n calls to Wait have started.
func (g *Gate) WaitEntered(t *testing.T, n int) {
	t.Helper()
	Eventually(t, func() bool { return g.Entered() >= n }, TestTimeout, time.Millisecond)
}
