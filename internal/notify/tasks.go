package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-kasir/internal/events"
)

// TypeEventWebhook is the asynq task type for outbound event notifications.
const TypeEventWebhook = "notify:event"

// TaskPayload is the serialised form of a domain event placed on the queue.
type TaskPayload struct {
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewEventTask builds an asynq task carrying the event payload.
func NewEventTask(event events.Event) (*asynq.Task, error) {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(TaskPayload{
		EventID:    uuid.NewString(),
		Topic:      event.Topic,
		Data:       data,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEventWebhook, payload, asynq.MaxRetry(6), asynq.Timeout(30*time.Second)), nil
}
