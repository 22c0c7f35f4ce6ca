package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// Notifier delivers human-readable alerts for lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Events publishes lifecycle events to the bus, appends them to the event
// stream and forwards a summary to the notifier. A nil *Events, or one
// without a bus or notifier, skips the missing sinks. Delivery failures
// are logged and never fail the caller.
type Events struct {
	bus      domain.EventBus
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEvents creates an Events fan-out. Either sink may be nil.
func NewEvents(bus domain.EventBus, notifier Notifier, logger *slog.Logger) *Events {
	return &Events{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "events")),
		now:      time.Now,
	}
}

const eventStream = "events"

// Emit publishes payload on channel with summary as the notification body.
func (e *Events) Emit(ctx context.Context, channel, summary string, payload map[string]any) {
	if e == nil {
		return
	}

	if e.bus != nil {
		msg := make(map[string]any, len(payload)+2)
		for k, v := range payload {
			msg[k] = v
		}
		msg["event"] = channel
		msg["timestamp"] = e.now().UTC().Format(time.RFC3339Nano)

		data, err := json.Marshal(msg)
		if err != nil {
			e.logger.WarnContext(ctx, "marshal event failed",
				slog.String("event", channel),
				slog.String("error", err.Error()),
			)
			return
		}
		if err := e.bus.Publish(ctx, channel, data); err != nil {
			e.logger.WarnContext(ctx, "publish event failed",
				slog.String("event", channel),
				slog.String("error", err.Error()),
			)
		}
		if err := e.bus.StreamAppend(ctx, eventStream, data); err != nil {
			e.logger.WarnContext(ctx, "append event to stream failed",
				slog.String("event", channel),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, channel, channel, summary); err != nil {
			e.logger.WarnContext(ctx, "notify failed",
				slog.String("event", channel),
				slog.String("error", err.Error()),
			)
		}
	}
}
