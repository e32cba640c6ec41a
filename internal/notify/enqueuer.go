package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/events"
)

// Enqueuer forwards domain events onto the task queue. It implements the
// event bus notifier contract so invoice submissions never wait on webhook
// delivery.
type Enqueuer struct {
	Client *asynq.Client
	Logger zerolog.Logger
}

// Notify enqueues the event for asynchronous delivery.
func (e *Enqueuer) Notify(ctx context.Context, event events.Event) error {
	if e == nil || e.Client == nil {
		return errors.New("notify: task client not configured")
	}
	task, err := NewEventTask(event)
	if err != nil {
		return fmt.Errorf("notify: build task: %w", err)
	}
	info, err := e.Client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	e.Logger.Debug().Str("task_id", info.ID).Str("topic", event.Topic).Msg("notification enqueued")
	return nil
}
