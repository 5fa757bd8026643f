package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingState enumerates the lifecycle of a reservation attempt.  A booking
// starts HELD and ends in exactly one of the terminal states; the transition
// table in the booking package is the single authority on which moves are
// legal.
type BookingState string

const (
	StateHeld           BookingState = "HELD"
	StatePendingPayment BookingState = "PENDING_PAYMENT"
	StateConfirmed      BookingState = "CONFIRMED"
	StateExpired        BookingState = "EXPIRED"
	StateCancelled      BookingState = "CANCELLED"
)

// Terminal reports whether the state permits no further transitions.
func (s BookingState) Terminal() bool {
	switch s {
	case StateConfirmed, StateExpired, StateCancelled:
		return true
	}
	return false
}

// Booking records one reservation attempt for a set of seats in a show.
// It is created together with a successful multi-seat acquisition and is
// owned by the booking store afterwards; callers only ever see copies.
//
// Fields:
//  ID               – booking identifier.
//  UserID           – requesting user ("guest" when unauthenticated).
//  ShowID           – show being booked.
//  SeatIDs          – seat labels covered by this booking, canonical order.
//  OwnerToken       – opaque token proving lock ownership for these seats.
//  State            – current lifecycle state.
//  TotalAmountCents – sum of the seat prices at reservation time.
//  PaymentAttempts  – failed payment attempts so far.
//  CreatedAt        – when the reservation was made.
//  Deadline         – when an unconfirmed booking becomes reclaimable.
//  ConfirmedAt      – set on the CONFIRMED transition, nil otherwise.
type Booking struct {
	ID               uuid.UUID
	UserID           string
	ShowID           uint64
	SeatIDs          []string
	OwnerToken       string
	State            BookingState
	TotalAmountCents uint32
	PaymentAttempts  int
	CreatedAt        time.Time
	Deadline         time.Time
	ConfirmedAt      *time.Time
}

// Resources returns the lock-table identifiers for every seat in the booking.
func (b *Booking) Resources() []ResourceID {
	ids := make([]ResourceID, 0, len(b.SeatIDs))
	for _, s := range b.SeatIDs {
		ids = append(ids, ResourceID{ShowID: b.ShowID, SeatID: s})
	}
	return ids
}

// Clone returns a deep copy safe to hand out to callers while the original
// keeps being mutated under the store's record lock.
func (b *Booking) Clone() *Booking {
	cp := *b
	cp.SeatIDs = append([]string(nil), b.SeatIDs...)
	if b.ConfirmedAt != nil {
		t := *b.ConfirmedAt
		cp.ConfirmedAt = &t
	}
	return &cp
}

// ReservationHandle is what a successful reservation returns to the caller.
// The handle stays valid only while every listed resource is still locked by
// OwnerToken; once the sweeper (or a competing reservation) reclaims any of
// the locks the handle must be treated as dead.
type ReservationHandle struct {
	BookingID  uuid.UUID
	OwnerToken string
	Resources  []ResourceID
	ExpiresAt  time.Time
}
