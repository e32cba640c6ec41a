package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Worker consumes queued event tasks and delivers them to the webhook
// endpoint.
type Worker struct {
	Sender *WebhookSender
	Logger zerolog.Logger
}

// HandleEventTask implements the asynq handler for event notifications.
func (w *Worker) HandleEventTask(ctx context.Context, task *asynq.Task) error {
	if w == nil || w.Sender == nil {
		return errors.New("notify: webhook sender not configured")
	}
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// malformed payloads never succeed on retry
		return fmt.Errorf("notify: decode task: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.Sender.Send(ctx, payload); err != nil {
		w.Logger.Warn().Err(err).Str("event_id", payload.EventID).Str("topic", payload.Topic).Msg("webhook delivery failed")
		return err
	}
	w.Logger.Info().Str("event_id", payload.EventID).Str("topic", payload.Topic).Msg("webhook delivered")
	return nil
}

// Mux returns an asynq mux with the worker's handlers registered.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEventWebhook, w.HandleEventTask)
	return mux
}
