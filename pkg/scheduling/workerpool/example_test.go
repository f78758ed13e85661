package workerpool_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
	"github.com/vnykmshr/executors/pkg/scheduling/workerpool"
)

func Example() {
	pool := workerpool.NewFixed(2)
	defer pool.Shutdown(true)

	future, err := pool.Submit(task.Func(func(ctx context.Context) (any, error) {
		return 6 * 7, nil
	}))
	if err != nil {
		fmt.Println("submit:", err)
		return
	}

	answer, err := task.AwaitAs[int](future, time.Second)
	fmt.Println(answer, err)
	// Output: 42 <nil>
}

func ExampleNewSingle() {
	pool := workerpool.NewSingle()

	for i := 1; i <= 3; i++ {
		i := i
		_, _ = pool.Submit(task.Action(func(ctx context.Context) error {
			fmt.Println("task", i)
			return nil
		}))
	}
	_ = pool.Shutdown(true)
	// Output:
	// task 1
	// task 2
	// task 3
}

func ExampleConfig_rejection() {
	release := make(chan struct{})
	pool := workerpool.MustNew(workerpool.Config{
		Sizing:        workerpool.Custom,
		CoreWorkers:   1,
		MaxWorkers:    1,
		QueueCapacity: 1,
		Rejection:     workerpool.Abort,
	})

	block := task.Action(func(ctx context.Context) error {
		<-release
		return nil
	})
	started := make(chan struct{})
	_, _ = pool.Submit(task.Action(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	_, _ = pool.Submit(block)

	_, err := pool.Submit(block)
	fmt.Println(errors.Is(err, gferrors.ErrRejected))

	close(release)
	_ = pool.Shutdown(true)
	// Output: true
}

func ExamplePool_ScheduleAtFixedRate() {
	pool := workerpool.NewSingleScheduled()
	defer pool.Shutdown(true)

	ticks := make(chan struct{}, 3)
	future, err := pool.ScheduleAtFixedRate(task.Action(func(ctx context.Context) error {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return nil
	}), 0, 10*time.Millisecond)
	if err != nil {
		fmt.Println("schedule:", err)
		return
	}

	for i := 0; i < 3; i++ {
		<-ticks
	}
	future.Cancel()
	_, err = future.Await(time.Second)
	fmt.Println(errors.Is(err, gferrors.ErrCancelled))
	// Output: true
}
