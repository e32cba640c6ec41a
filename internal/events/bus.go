package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event is an in-process domain event. Tab and cart state is volatile by
// contract, so events are fanned out synchronously rather than persisted.
type Event struct {
	Topic      string
	OccurredAt time.Time
	Payload    any
}

// Notifier reacts to emitted events (queue enqueue, metrics, etc.).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus fans domain events out to the configured notifiers.
type Bus struct {
	Notifiers []Notifier
	Now       func() time.Time
}

// Emit dispatches the event to all notifiers, joining their errors. A failing
// notifier never blocks the others.
func (b *Bus) Emit(ctx context.Context, topic string, payload any) error {
	if b == nil {
		return nil
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ev := Event{Topic: topic, OccurredAt: now(), Payload: payload}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return joined
}
