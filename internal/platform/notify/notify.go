// Package notify fans out domain events after commit. Delivery is best
// effort: a failed publish is logged and never fails the request that
// produced the event.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope shared by all notification channels.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewEvent builds an envelope with a fresh id and timestamp.
func NewEvent(eventType, title, message string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier delivers an event to one channel.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Fanout delivers to every channel, swallowing per-channel failures.
type Fanout struct {
	channels []Notifier
	logger   *slog.Logger
}

// NewFanout composes notifiers. A nil logger falls back to slog.Default.
func NewFanout(logger *slog.Logger, channels ...Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{channels: channels, logger: logger}
}

func (f *Fanout) Notify(ctx context.Context, event Event) error {
	for _, ch := range f.channels {
		if err := ch.Notify(ctx, event); err != nil {
			f.logger.Warn("notification channel failed",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Nop discards events. Used in tests and when no channel is configured.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
