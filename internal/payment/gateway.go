// Package payment models the external payment collaborator.  The engine
// only sees two things: a Gateway it can ask to charge a booking, and the
// asynchronous success/failure callbacks the provider delivers later —
// possibly more than once, possibly out of order, which the engine's
// idempotent transitions absorb.
package payment

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// CallbackFunc receives the provider's verdict for a booking.  ok is true on
// successful capture.
type CallbackFunc func(ctx context.Context, bookingID uuid.UUID, ok bool)

// Gateway initiates a charge for a booking.  The call returns as soon as the
// charge is submitted; the outcome arrives through the callback.
type Gateway interface {
	Charge(ctx context.Context, bookingID uuid.UUID, amountCents uint32) error
}

// Simulator is an in-process Gateway standing in for a real provider.  Each
// charge completes after a short delay and fails with a configurable
// probability, mirroring the flaky-gateway behavior real integrations have
// to survive.
type Simulator struct {
	callback    CallbackFunc
	delay       time.Duration
	failureRate float64
}

// NewSimulator builds a simulator delivering verdicts to cb after delay.
// failureRate is the probability in [0,1] that a charge is declined.
func NewSimulator(cb CallbackFunc, delay time.Duration, failureRate float64) *Simulator {
	return &Simulator{callback: cb, delay: delay, failureRate: failureRate}
}

func (s *Simulator) Charge(ctx context.Context, bookingID uuid.UUID, amountCents uint32) error {
	// Detach from the request context: a real provider's webhook arrives
	// long after the initiating request has finished.
	detached := context.WithoutCancel(ctx)
	go func() {
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		ok := rand.Float64() >= s.failureRate
		log.Printf("payment: booking %s charged %d cents -> ok=%t", bookingID, amountCents, ok)
		s.callback(detached, bookingID, ok)
	}()
	return nil
}
