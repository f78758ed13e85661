package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/executors/internal/testutil"
	"github.com/vnykmshr/executors/pkg/metrics"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

func TestLoggingHooks(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := newPool(t, Config{Sizing: Single, Hooks: LoggingHooks(zap.New(core))})

	ok, err := p.Submit(noop())
	require.NoError(t, err)
	bad, err := p.Submit(task.Action(func(context.Context) error { return errors.New("bad input") }))
	require.NoError(t, err)
	boom, err := p.Submit(task.Action(func(context.Context) error { panic("boom") }))
	require.NoError(t, err)
	for _, f := range []*task.Future{ok, bad, boom} {
		_, _ = await(t, f)
	}
	require.NoError(t, p.Shutdown(true))

	assert.Equal(t, 3, logs.FilterMessage("task submitted").Len())
	assert.Equal(t, 1, logs.FilterMessage("task completed").Len())

	failed := logs.FilterMessage("task failed").All()
	require.Len(t, failed, 2)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, failed[1].Level)
	assert.Equal(t, "events", failed[0].LoggerName)
	assert.Equal(t, string(bad.ID()), failed[0].ContextMap()["task_id"])
}

func TestPoolLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := newPool(t, Config{Name: "reports", Sizing: Fixed, CoreWorkers: 1, Logger: zap.New(core)})

	f, err := p.Submit(task.Action(func(context.Context) error { panic("logged") }))
	require.NoError(t, err)
	_, err = await(t, f)
	assert.Error(t, err)

	panics := logs.FilterMessage("task panicked").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "workerpool", panics[0].LoggerName)
	assert.Equal(t, "reports", panics[0].ContextMap()["pool"])
	assert.Zero(t, logs.FilterLevelExact(zapcore.DebugLevel).Len())
}

func TestNewWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewWithMetrics(Config{Name: "ingest", Sizing: Fixed, CoreWorkers: 2}, metrics.Config{
		Enabled:  true,
		Registry: reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { stop(t, p.Pool) })

	r := p.Registry()
	require.NotNil(t, r)
	assert.True(t, p.MetricsEnabled())
	assert.Equal(t, 2.0, promtest.ToFloat64(r.WorkersLive.WithLabelValues("ingest")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.WorkersSpawned.WithLabelValues("ingest")))

	for i := 0; i < 3; i++ {
		f, err := p.Submit(noop())
		require.NoError(t, err)
		_, err = await(t, f)
		require.NoError(t, err)
	}
	f, err := p.Submit(task.Action(func(context.Context) error { return errors.New("nope") }))
	require.NoError(t, err)
	_, _ = await(t, f)

	testutil.Eventually(t, func() bool {
		return promtest.ToFloat64(r.TasksCompleted.WithLabelValues("ingest")) == 3 &&
			promtest.ToFloat64(r.TasksFailed.WithLabelValues("ingest")) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 4.0, promtest.ToFloat64(r.TasksSubmitted.WithLabelValues("ingest")))
	assert.Equal(t, 4.0, promtest.ToFloat64(r.TasksStarted.WithLabelValues("ingest")))

	p.DisableMetrics()
	assert.False(t, p.MetricsEnabled())
	f, err = p.Submit(noop())
	require.NoError(t, err)
	_, err = await(t, f)
	require.NoError(t, err)
	assert.Equal(t, 4.0, promtest.ToFloat64(r.TasksSubmitted.WithLabelValues("ingest")))
}

func TestNewWithMetrics_Disabled(t *testing.T) {
	p, err := NewWithMetrics(Config{Sizing: Single}, metrics.Config{Enabled: false})
	require.NoError(t, err)
	t.Cleanup(func() { stop(t, p.Pool) })

	assert.False(t, p.MetricsEnabled())
	assert.Nil(t, p.Registry())
	f, err := p.Submit(noop())
	require.NoError(t, err)
	_, err = await(t, f)
	assert.NoError(t, err)
}

func TestNewWithMetrics_InvalidConfig(t *testing.T) {
	_, err := NewWithMetrics(Config{Sizing: Custom}, metrics.Config{Enabled: true, Registry: prometheus.NewRegistry()})
	assert.Error(t, err)
}

func TestNewWithRegistry_SharedCollectors(t *testing.T) {
	r := metrics.NewRegistry(prometheus.NewRegistry())

	a, err := NewWithRegistry(Config{Name: "a", Sizing: Single}, r)
	require.NoError(t, err)
	t.Cleanup(func() { stop(t, a.Pool) })
	b, err := NewWithRegistry(Config{Name: "b", Sizing: Fixed, CoreWorkers: 3}, r)
	require.NoError(t, err)
	t.Cleanup(func() { stop(t, b.Pool) })

	assert.Equal(t, 1.0, promtest.ToFloat64(r.WorkersLive.WithLabelValues("a")))
	assert.Equal(t, 3.0, promtest.ToFloat64(r.WorkersLive.WithLabelValues("b")))

	_, err = NewWithRegistry(Config{Sizing: Single}, nil)
	assert.Error(t, err)
}
