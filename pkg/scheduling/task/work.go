package task

import (
	"context"
	"time"
)

// Work is the unit of work carried by a Task.
//
// Execute must watch ctx.Done() if it wants to honour cancellation and
// non-graceful shutdown; the engine never terminates a running Execute.
type Work interface {
	Execute(ctx context.Context) (any, error)
}

// Func adapts a function producing a value to Work.
type Func func(ctx context.Context) (any, error)

// Execute implements Work.
func (f Func) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}

// Action adapts a side-effect-only function to Work.
type Action func(ctx context.Context) error

// Execute implements Work. The produced value is always nil.
func (a Action) Execute(ctx context.Context) (any, error) {
	return nil, a(ctx)
}

// Schedule computes the next due time of a repeating task from the previous
// one. A zero time means there is no further activation. cron.Schedule
// from github.com/robfig/cron/v3 satisfies it.
type Schedule interface {
	Next(prev time.Time) time.Time
}

// Every is a fixed-rate Schedule: each run is due one period after the
// previous due time.
type Every time.Duration

// Next implements Schedule.
func (e Every) Next(prev time.Time) time.Time {
	return prev.Add(time.Duration(e))
}
