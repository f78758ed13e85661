package workerpool

import (
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// LoggingHooks returns hooks that write pool events to logger. Lifecycle
// events go to Debug, failures and rejections to Warn, panics to Error.
func LoggingHooks(logger *zap.Logger) Hooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("events")

	return Hooks{
		OnTaskSubmitted: func(t *task.Task) {
			logger.Debug("task submitted",
				zap.String("task_id", string(t.ID())),
				zap.Time("due", t.Due()),
				zap.Bool("periodic", t.Periodic()))
		},
		OnTaskStarted: func(workerID int, t *task.Task) {
			logger.Debug("task started",
				zap.String("task_id", string(t.ID())),
				zap.Int("worker_id", workerID),
				zap.Int64("run", t.Runs()))
		},
		OnTaskCompleted: func(r Result) {
			logger.Debug("task completed",
				zap.String("task_id", string(r.Task.ID())),
				zap.Int("worker_id", r.WorkerID),
				zap.Duration("duration", r.Duration))
		},
		OnTaskFailed: func(r Result) {
			level := logger.Warn
			if gferrors.IsPanic(r.Err) {
				level = logger.Error
			}
			level("task failed",
				zap.String("task_id", string(r.Task.ID())),
				zap.Int("worker_id", r.WorkerID),
				zap.Duration("duration", r.Duration),
				zap.Error(r.Err))
		},
		OnTaskRejected: func(t *task.Task, err error) {
			logger.Warn("task rejected",
				zap.String("task_id", string(t.ID())),
				zap.Error(err))
		},
		OnTaskCancelled: func(t *task.Task) {
			logger.Debug("task cancelled", zap.String("task_id", string(t.ID())))
		},
		OnWorkerSpawned: func(workerID int) {
			logger.Debug("worker spawned", zap.Int("worker_id", workerID))
		},
		OnWorkerRetired: func(workerID int) {
			logger.Debug("worker retired", zap.Int("worker_id", workerID))
		},
	}
}
