// Package booking contains the reservation coordinator, the booking state
// machine and the expiry sweeper.  Error values here form the taxonomy the
// HTTP layer translates into status codes.
package booking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBookingNotFound is returned when no booking exists for the given id.
// Handlers should translate this into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrBookingFinalized is returned when a transition is attempted on a
// booking already in a terminal state.  It is an idempotency guard rather
// than a true failure: a payment provider redelivering a success webhook
// should treat it as success-equivalent.  Handlers should translate it into
// an HTTP 409 response.
var ErrBookingFinalized = errors.New("booking already finalized")

// ErrInvalidRequest is returned for malformed reservation input — an empty
// seat list, duplicated seat ids or unknown labels — before any lock is
// attempted.
var ErrInvalidRequest = errors.New("invalid request")

// ErrHoldExpired is returned when a payment is started on a booking whose
// seat locks have already been reclaimed; the booking is moved to EXPIRED
// as a side effect.
var ErrHoldExpired = errors.New("seat hold expired")

// SeatUnavailableError reports a failed reservation together with the exact
// seats that were contended or already sold, so a client can offer
// alternatives instead of a generic failure.
type SeatUnavailableError struct {
	ShowID uint64
	Seats  []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable for show %d: %s", e.ShowID, strings.Join(e.Seats, ", "))
}

// IllegalTransitionError reports an attempt to move a booking along an edge
// the transition table does not allow.
type IllegalTransitionError struct {
	From, To string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal booking transition %s -> %s", e.From, e.To)
}
