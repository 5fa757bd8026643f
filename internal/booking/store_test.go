package booking_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showgrid/booking/internal/booking"
	"github.com/showgrid/booking/internal/model"
)

func newHeldBooking(deadline time.Time) *model.Booking {
	return &model.Booking{
		ID:         uuid.New(),
		UserID:     "u-1",
		ShowID:     1,
		SeatIDs:    []string{"A1", "A2"},
		OwnerToken: "tok",
		State:      model.StateHeld,
		CreatedAt:  deadline.Add(-5 * time.Minute),
		Deadline:   deadline,
	}
}

func TestStoreGet(t *testing.T) {
	store := booking.NewStore()
	b := newHeldBooking(time.Now())
	store.Put(b)

	got, err := store.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, model.StateHeld, got.State)

	// The store hands out copies; mutating them must not leak back.
	got.SeatIDs[0] = "Z9"
	again, err := store.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "A1", again.SeatIDs[0])

	_, err = store.Get(uuid.New())
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestStoreTransitionLegality(t *testing.T) {
	store := booking.NewStore()
	b := newHeldBooking(time.Now())
	store.Put(b)

	// HELD -> CONFIRMED is not an edge of the machine.
	err := store.Transition(b.ID, model.StateConfirmed, nil)
	var illegal *booking.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "HELD", illegal.From)

	require.NoError(t, store.Transition(b.ID, model.StatePendingPayment, nil))
	require.NoError(t, store.Transition(b.ID, model.StateConfirmed, nil))

	// Terminal states are immutable; retried callbacks see the guard.
	err = store.Transition(b.ID, model.StateCancelled, nil)
	assert.ErrorIs(t, err, booking.ErrBookingFinalized)
	got, err := store.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateConfirmed, got.State)
}

func TestStoreTransitionVeto(t *testing.T) {
	store := booking.NewStore()
	b := newHeldBooking(time.Now())
	store.Put(b)

	veto := errors.New("not yet")
	err := store.Transition(b.ID, model.StatePendingPayment, func(*model.Booking) error {
		return veto
	})
	assert.ErrorIs(t, err, veto)

	got, err := store.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateHeld, got.State, "vetoed transition must not change state")
}

func TestStoreDueForExpiry(t *testing.T) {
	store := booking.NewStore()
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	overdue := newHeldBooking(now.Add(-time.Second))
	fresh := newHeldBooking(now.Add(time.Minute))
	finished := newHeldBooking(now.Add(-time.Hour))
	store.Put(overdue)
	store.Put(fresh)
	store.Put(finished)
	require.NoError(t, store.Transition(finished.ID, model.StateCancelled, nil))

	due := store.DueForExpiry(now)
	require.Len(t, due, 1)
	assert.Equal(t, overdue.ID, due[0].ID)
}
