package queue_publisher

import (
	"context"

	q "github.com/showgrid/booking/internal/queue"
)

// AMQPNotifier adapts PublishBookingEvent to the engine's Notifier
// interface.  The engine treats notification as fire-and-forget, so errors
// returned here are logged by the caller and otherwise ignored.
type AMQPNotifier struct{}

func (AMQPNotifier) Notify(ctx context.Context, ev q.BookingEvent) error {
	return PublishBookingEvent(ctx, ev)
}
