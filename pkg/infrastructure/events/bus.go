package events

import (
	"context"

	"go.uber.org/zap"
)

// Counter counts published events by type
type Counter interface {
	EventPublished(eventType string)
}

// Bus records events in the local journal and forwards them to external sinks.
// Sink failures are logged and never fail the publishing operation.
type Bus struct {
	journal *Journal
	sinks   []Publisher
	counter Counter
	logger  *zap.Logger
}

func NewBus(journal *Journal, counter Counter, logger *zap.Logger, sinks ...Publisher) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{journal: journal, sinks: sinks, counter: counter, logger: logger}
}

var _ Publisher = (*Bus)(nil)

func (b *Bus) Publish(ctx context.Context, event Event) error {
	if err := b.journal.Publish(ctx, event); err != nil {
		return err
	}
	if b.counter != nil {
		b.counter.EventPublished(event.Type())
	}
	for _, sink := range b.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			b.logger.Warn("event sink failed",
				zap.String("event_type", event.Type()),
				zap.String("stream", event.StreamID()),
				zap.Error(err))
		}
	}
	return nil
}

// Journal returns the local journal
func (b *Bus) Journal() *Journal {
	return b.journal
}
