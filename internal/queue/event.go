// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published to the booking.events queue.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingExpired   = "booking.expired"
	EventBookingCancelled = "booking.cancelled"
)

// BookingEvent is published whenever a booking reaches a terminal state.
// It carries enough information for downstream consumers to log, notify or
// feed analytics without querying the booking store.
type BookingEvent struct {
	Type             string   `json:"type"`
	BookingID        string   `json:"booking_id"`
	UserID           string   `json:"user_id"`
	ShowID           uint64   `json:"show_id"`
	SeatIDs          []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	OccurredAt       string   `json:"occurred_at"`
}
