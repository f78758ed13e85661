/*
Package scheduler holds delayed and periodic tasks until they are due and
then hands them to a dispatch function, usually a worker pool's queue.

Tasks wait in a min-heap ordered by due time, then priority (higher first),
then insertion order. A single goroutine sleeps until the earliest due time
and wakes early when a new head is inserted, so there is no polling tick.

Basic Usage:

	s, err := scheduler.New(scheduler.Config{
		Dispatch: func(t *task.Task) error { return q.Offer(t) },
	})
	if err != nil {
		return err
	}
	s.Start()
	defer func() { <-s.Stop() }()

	t := task.New(ctx, task.Action(sendReport))
	s.ScheduleOnce(t, 2*time.Second)

Periodic Tasks:

ScheduleRepeating and ScheduleCron attach a task.Schedule to the task. The
scheduler dispatches each run once; whoever executes the run calls
Reschedule afterwards, which computes the next due time from the previous
one (fixed rate). Runs of one task therefore never overlap.

	s.ScheduleRepeating(t, 0, time.Minute)
	s.ScheduleCron(t, "0 0/5 * * * *") // every five minutes, seconds first

Clocks:

The time source is a timeutil.Clock. Tests pass a *timeutil.SimulatedClock,
advance it, and call Wake so the loop re-reads the clock.
*/
package scheduler
