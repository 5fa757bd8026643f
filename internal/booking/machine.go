package booking

import "github.com/showgrid/booking/internal/model"

// transitions is the full set of legal booking state changes.  Keeping it as
// a table (rather than per-state methods) makes every edge enumerable and
// lets the store reject illegal moves uniformly.
var transitions = map[model.BookingState][]model.BookingState{
	model.StateHeld: {
		model.StatePendingPayment, // payment initiated
		model.StateCancelled,      // explicit cancel
		model.StateExpired,        // deadline passed / lock reclaimed
	},
	model.StatePendingPayment: {
		model.StateConfirmed, // payment success
		model.StateHeld,      // payment failure with retries left
		model.StateCancelled, // payment retries exhausted or explicit cancel
		model.StateExpired,   // deadline passed before the callback arrived
	},
	// CONFIRMED, EXPIRED and CANCELLED are terminal: no outgoing edges.
}

// canTransition reports whether the edge from -> to exists.
func canTransition(from, to model.BookingState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
