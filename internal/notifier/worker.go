package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/config"
	"github.com/opsdeck/automation-engine/internal/observer"
	"github.com/opsdeck/automation-engine/pkg/logger"
)

// TaskData holds a notification queued for asynchronous delivery.
type TaskData struct {
	Ctx          context.Context // Context derived for the task, NOT the original request context
	Notification Notification
}

// Dispatcher is the interface the automation service uses to hand off
// notifications without blocking on channel latency.
type Dispatcher interface {
	Submit(taskData TaskData) error
	Stop()
}

// Worker manages the worker pool that delivers notifications off the
// request path.
type Worker struct {
	pool       *ants.PoolWithFunc
	senders    map[string]Sender
	baseLogger *zap.Logger
}

// Ensure Worker implements Dispatcher
var _ Dispatcher = (*Worker)(nil)

// NewWorker creates and initializes a notification worker pool with one
// sender per channel.
func NewWorker(cfg config.NotifierConfig, senders map[string]Sender, baseLogger *zap.Logger) (*Worker, error) {
	worker := &Worker{
		senders:    senders,
		baseLogger: baseLogger.Named("notifier_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		taskData, ok := i.(TaskData)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.deliver(taskData)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in notifier worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Notifier worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return worker, nil
}

// Submit queues a notification for delivery. Submission failures are the
// caller's only failure signal; delivery outcomes surface as metrics and logs.
func (w *Worker) Submit(taskData TaskData) error {
	observer.SetNotifierQueueLength(w.pool.Waiting())

	err := w.pool.Invoke(taskData)
	if err != nil {
		w.baseLogger.Warn("Failed to submit notification to pool",
			zap.String("channel", taskData.Notification.Channel),
			zap.String("workspace_id", taskData.Notification.WorkspaceID),
			zap.Error(err),
		)
		observer.IncNotification(taskData.Notification.WorkspaceID, taskData.Notification.Channel, "submit_error")
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("notifier pool overload: %w", err)
		}
		return fmt.Errorf("failed to invoke notification task: %w", err)
	}
	return nil
}

// deliver runs on a pool goroutine and routes the notification to its
// channel's sender.
func (w *Worker) deliver(taskData TaskData) {
	n := taskData.Notification
	log := logger.FromContextOr(taskData.Ctx, w.baseLogger).With(
		zap.String("channel", n.Channel),
		zap.String("workspace_id", n.WorkspaceID),
	)

	sender, ok := w.senders[n.Channel]
	if !ok {
		log.Warn("No sender registered for channel")
		observer.IncNotification(n.WorkspaceID, n.Channel, DeliverySkipped.String())
		return
	}

	start := time.Now()
	outcome := sender.Send(taskData.Ctx, n)
	observer.IncNotification(n.WorkspaceID, n.Channel, outcome.String())
	log.Debug("Notification delivery finished",
		zap.String("outcome", outcome.String()),
		zap.Duration("duration", time.Since(start)))
}

// Stop gracefully shuts down the worker pool.
func (w *Worker) Stop() {
	if w.pool != nil {
		w.baseLogger.Info("Releasing notifier worker pool")
		start := time.Now()
		w.pool.Release()
		w.baseLogger.Info("Notifier worker pool released", zap.Duration("duration", time.Since(start)))
	}
}
