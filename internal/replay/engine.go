package replay

import (
	"context"

	"marketdata-archiver/internal/domain"
)

// EventSink receives normalized events.
type EventSink interface {
	// OnEvent is called for each event in wire arrival order.
	// Returning an error aborts the session.
	OnEvent(ctx context.Context, event *domain.Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, event *domain.Event) error

// OnEvent calls f.
func (f SinkFunc) OnEvent(ctx context.Context, event *domain.Event) error {
	return f(ctx, event)
}

// collector accumulates events for Feed.Run.
type collector struct {
	events []*domain.Event
}

func (c *collector) OnEvent(_ context.Context, event *domain.Event) error {
	c.events = append(c.events, event)
	return nil
}

// Ensure collector implements EventSink
var _ EventSink = (*collector)(nil)
