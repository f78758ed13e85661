package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noop() Work {
	return Action(func(context.Context) error { return nil })
}

func TestNew_Defaults(t *testing.T) {
	before := time.Now()
	tk := New(context.Background(), noop())

	assert.NotEmpty(t, tk.ID())
	assert.Equal(t, Pending, tk.State())
	assert.False(t, tk.Periodic())
	assert.False(t, tk.Submitted().Before(before))
	assert.True(t, tk.Due().Equal(tk.Submitted()), "immediate task is due at submission")
	assert.NotNil(t, tk.Future())
	assert.False(t, tk.Future().Resolved())
}

func TestNew_Options(t *testing.T) {
	at := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	tk := New(nil, noop(),
		WithID("fixed"),
		WithPriority(7),
		WithSubmitted(at),
		WithDue(at.Add(2*time.Second)),
		WithSchedule(Every(time.Second)),
	)

	assert.Equal(t, ID("fixed"), tk.ID())
	assert.Equal(t, 7, tk.Priority())
	assert.Equal(t, at, tk.Submitted())
	assert.Equal(t, at.Add(2*time.Second), tk.Due())
	assert.True(t, tk.Periodic())
	assert.Equal(t, at.Add(3*time.Second), tk.Schedule().Next(tk.Due()))
}

func TestState_String(t *testing.T) {
	states := map[State]string{
		Pending:   "pending",
		Running:   "running",
		Completed: "completed",
		Failed:    "failed",
		Cancelled: "cancelled",
		Rejected:  "rejected",
		State(42): "unknown",
	}
	for s, want := range states {
		assert.Equal(t, want, s.String())
	}
	assert.False(t, Running.Terminal())
	assert.True(t, Cancelled.Terminal())
}

func TestLess(t *testing.T) {
	at := time.Now()
	early := New(nil, noop(), WithDue(at))
	late := New(nil, noop(), WithDue(at.Add(time.Millisecond)))
	high := New(nil, noop(), WithDue(at), WithPriority(5))

	assert.True(t, Less(early, late))
	assert.False(t, Less(late, early))
	assert.True(t, Less(high, early), "higher priority wins on equal due time")
	assert.False(t, Less(early, high))
}

func TestLifecycle_Completed(t *testing.T) {
	tk := New(context.Background(), noop())

	require.True(t, tk.Start())
	assert.Equal(t, Running, tk.State())
	assert.False(t, tk.Start(), "running task cannot start twice")

	require.True(t, tk.Finish(42, nil))
	assert.Equal(t, Completed, tk.State())
	assert.Equal(t, int64(1), tk.Runs())

	v, err := tk.Future().Await(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Error(t, tk.Context().Err(), "context released after finish")
}

func TestLifecycle_Failed(t *testing.T) {
	tk := New(context.Background(), noop())
	boom := errors.New("boom")

	require.True(t, tk.Start())
	require.True(t, tk.Finish(nil, boom))
	assert.Equal(t, Failed, tk.State())

	_, err := tk.Future().Await(time.Second)
	assert.ErrorIs(t, err, boom)
}

func TestLifecycle_Rearm(t *testing.T) {
	tk := New(context.Background(), noop(), WithSchedule(Every(time.Millisecond)))

	for i := 0; i < 3; i++ {
		require.True(t, tk.Start())
		require.True(t, tk.Rearm())
		assert.Equal(t, Pending, tk.State())
	}
	assert.Equal(t, int64(3), tk.Runs())
	assert.False(t, tk.Future().Resolved(), "periodic runs do not resolve the future")

	require.True(t, tk.Cancel())
	assert.Equal(t, Cancelled, tk.State())
	_, err := tk.Future().Await(time.Second)
	assert.ErrorIs(t, err, gferrors.ErrCancelled)
}

// until repeats every period up to and including last.
type until struct {
	period time.Duration
	last   time.Time
}

func (u until) Next(prev time.Time) time.Time {
	next := prev.Add(u.period)
	if next.After(u.last) {
		return time.Time{}
	}
	return next
}

func TestExhausted(t *testing.T) {
	at := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	tk := New(context.Background(), noop(),
		WithDue(at),
		WithSchedule(until{period: time.Second, last: at.Add(time.Second)}))
	assert.False(t, tk.Exhausted())

	tk.SetDue(at.Add(time.Second))
	assert.True(t, tk.Exhausted())

	assert.False(t, New(context.Background(), noop()).Exhausted(), "one-shot tasks have no schedule")
}

func TestCancel_Pending(t *testing.T) {
	var removed atomic.Int32
	tk := New(context.Background(), noop(), WithCanceller(func(*Task) { removed.Add(1) }))

	require.True(t, tk.Cancel())
	assert.Equal(t, Cancelled, tk.State())
	assert.Equal(t, int32(1), removed.Load())
	assert.False(t, tk.Start(), "cancelled task never runs")
	assert.False(t, tk.Cancel(), "second cancel is a no-op")

	_, err := tk.Future().Await(time.Second)
	assert.ErrorIs(t, err, gferrors.ErrCancelled)
}

func TestCancel_Running(t *testing.T) {
	tk := New(context.Background(), noop())
	require.True(t, tk.Start())

	require.True(t, tk.Cancel())
	assert.Error(t, tk.Context().Err(), "running work sees its context cancelled")

	assert.False(t, tk.Finish("late", nil), "worker result loses against cancellation")
	v, err := tk.Future().Await(time.Second)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, gferrors.ErrCancelled)
}

func TestCancel_Finished(t *testing.T) {
	tk := New(context.Background(), noop())
	require.True(t, tk.Start())
	require.True(t, tk.Finish(nil, nil))

	assert.False(t, tk.Cancel())
	assert.Equal(t, Completed, tk.State())
}

func TestDiscard(t *testing.T) {
	tk := New(context.Background(), noop())
	assert.False(t, tk.Discard(Completed, nil), "only cancelled or rejected are allowed")

	require.True(t, tk.Discard(Rejected, gferrors.ErrRejected))
	assert.Equal(t, Rejected, tk.State())
	assert.False(t, tk.Discard(Cancelled, gferrors.ErrCancelled))

	_, err := tk.Future().Await(time.Second)
	assert.ErrorIs(t, err, gferrors.ErrRejected)
}

func TestWithStop(t *testing.T) {
	stop, cancel := context.WithCancel(context.Background())
	tk := New(context.Background(), noop(), WithStop(stop))

	require.True(t, tk.Start())
	cancel()

	select {
	case <-tk.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not reach the task context")
	}
	require.True(t, tk.Finish(nil, gferrors.ErrCancelled))
	assert.Equal(t, Cancelled, tk.State())
}

// Exactly one of the racing transitions may resolve the future.
func TestCancelFinishRace(t *testing.T) {
	for i := 0; i < 200; i++ {
		tk := New(context.Background(), noop())
		require.True(t, tk.Start())

		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			if tk.Finish(i, nil) {
				wins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if tk.Cancel() {
				wins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if tk.Cancel() {
				wins.Add(1)
			}
		}()
		wg.Wait()

		require.Equal(t, int32(1), wins.Load())
		require.True(t, tk.Future().Resolved())
		require.True(t, tk.State().Terminal())
	}
}
