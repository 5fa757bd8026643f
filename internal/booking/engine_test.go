package booking_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showgrid/booking/internal/booking"
	"github.com/showgrid/booking/internal/catalog"
	"github.com/showgrid/booking/internal/clock"
	"github.com/showgrid/booking/internal/lock"
	"github.com/showgrid/booking/internal/model"
	"github.com/showgrid/booking/internal/queue"
)

var engineStart = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.BookingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}

type env struct {
	clk      *clock.Manual
	table    *lock.Table
	store    *booking.Store
	engine   *booking.Engine
	notifier *recordingNotifier
}

func newEnv(opts booking.Options) *env {
	clk := clock.NewManual(engineStart)
	table := lock.NewTable(clk)
	store := booking.NewStore()
	cat := catalog.NewInMemory()
	cat.AddShow(&model.Show{
		ID:    1,
		Title: "Evening Screening",
		Seats: map[string]uint32{"A1": 1000, "A2": 1500, "A3": 2000},
	})
	notifier := &recordingNotifier{}
	return &env{
		clk:      clk,
		table:    table,
		store:    store,
		engine:   booking.NewEngine(table, store, cat, notifier, clk, opts),
		notifier: notifier,
	}
}

// sweepOnce mimics one sweeper cycle without running the background task.
func (e *env) sweepOnce() {
	now := e.clk.Now()
	e.table.SweepExpired(now)
	e.engine.ExpireDue(context.Background(), now)
}

func TestReserveSuccess(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	handle, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A2", "A1"}, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.OwnerToken)
	assert.Equal(t, engineStart.Add(time.Minute), handle.ExpiresAt)
	// Resources come back in canonical order regardless of request order.
	require.Len(t, handle.Resources, 2)
	assert.Equal(t, "A1", handle.Resources[0].SeatID)
	assert.Equal(t, "A2", handle.Resources[1].SeatID)

	for _, res := range handle.Resources {
		assert.True(t, e.table.IsHeldBy(res, handle.OwnerToken))
	}

	b, err := e.engine.GetBooking(ctx, handle.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.StateHeld, b.State)
	assert.Equal(t, uint32(2500), b.TotalAmountCents)
	assert.Equal(t, "u-1", b.UserID)
}

func TestReserveValidation(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	_, err := e.engine.Reserve(ctx, "u-1", 1, nil, time.Minute)
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	// Duplicates are rejected outright, not silently deduplicated.
	_, err = e.engine.Reserve(ctx, "u-1", 1, []string{"A1", "A1"}, time.Minute)
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	_, err = e.engine.Reserve(ctx, "u-1", 1, []string{"A1", "Z9"}, time.Minute)
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	_, err = e.engine.Reserve(ctx, "u-1", 404, []string{"A1"}, time.Minute)
	assert.ErrorIs(t, err, catalog.ErrShowNotFound)

	// Validation failures must not leave any lock behind.
	assert.Equal(t, 0, e.table.Len())
}

func TestReserveAllOrNothing(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	// A2 is taken by someone else.
	require.True(t, e.table.TryAcquire(model.ResourceID{ShowID: 1, SeatID: "A2"}, "foreign", time.Minute))

	_, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A1", "A2", "A3"}, time.Minute)
	var unavailable *booking.SeatUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"A2"}, unavailable.Seats)

	// Nothing from the failed attempt lingers: A1 and A3 are immediately
	// reservable by a third party.
	_, err = e.engine.Reserve(ctx, "u-2", 1, []string{"A1", "A3"}, time.Minute)
	require.NoError(t, err)
}

// TestDeadlockFreedom lets two clients fight over overlapping seat sets
// presented in opposite orders.  Sorted acquisition guarantees both calls
// terminate; without it this pattern is the classic A-B/B-A deadlock.
func TestDeadlockFreedom(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	worker := func(seats []string, done chan<- struct{}) {
		for i := 0; i < 200; i++ {
			handle, err := e.engine.Reserve(ctx, "u", 1, seats, time.Minute)
			if err == nil {
				_ = e.engine.Cancel(ctx, handle.BookingID)
			}
		}
		close(done)
	}

	d1 := make(chan struct{})
	d2 := make(chan struct{})
	go worker([]string{"A1", "A2"}, d1)
	go worker([]string{"A2", "A1"}, d2)

	timeout := time.After(10 * time.Second)
	for _, d := range []chan struct{}{d1, d2} {
		select {
		case <-d:
		case <-timeout:
			t.Fatal("reserve calls did not terminate; possible deadlock")
		}
	}
}

func TestConfirmFlow(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	handle, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A1", "A2"}, time.Minute)
	require.NoError(t, err)

	amount, err := e.engine.StartPayment(ctx, handle.BookingID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2500), amount)

	require.NoError(t, e.engine.ConfirmPayment(ctx, handle.BookingID))

	b, err := e.engine.GetBooking(ctx, handle.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.StateConfirmed, b.State)
	require.NotNil(t, b.ConfirmedAt)

	// Sold seats leave the lock table entirely.
	for _, res := range handle.Resources {
		assert.False(t, e.table.IsLocked(res))
	}

	// A sold seat can never be reserved again.
	_, err = e.engine.Reserve(ctx, "u-2", 1, []string{"A1"}, time.Minute)
	var unavailable *booking.SeatUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"A1"}, unavailable.Seats)

	assert.Equal(t, []string{"booking.confirmed"}, e.notifier.types())
}

// TestIdempotentConfirmation simulates a payment provider delivering its
// success webhook twice: exactly one CONFIRMED transition, one no-op.
func TestIdempotentConfirmation(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	handle, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A1"}, time.Minute)
	require.NoError(t, err)
	_, err = e.engine.StartPayment(ctx, handle.BookingID)
	require.NoError(t, err)

	require.NoError(t, e.engine.ConfirmPayment(ctx, handle.BookingID))
	err = e.engine.ConfirmPayment(ctx, handle.BookingID)
	assert.ErrorIs(t, err, booking.ErrBookingFinalized)

	assert.Equal(t, []string{"booking.confirmed"}, e.notifier.types(), "only one confirmation event")
}

func TestStartPaymentAfterLockReclaimed(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	handle, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A1", "A2"}, 30*time.Second)
	require.NoError(t, err)

	// The hold lapses and a competitor grabs one of the seats before the
	// sweeper ever runs.
	e.clk.Advance(time.Minute)
	_, err = e.engine.Reserve(ctx, "u-2", 1, []string{"A2"}, time.Minute)
	require.NoError(t, err)

	_, err = e.engine.StartPayment(ctx, handle.BookingID)
	assert.ErrorIs(t, err, booking.ErrHoldExpired)

	b, err := e.engine.GetBooking(ctx, handle.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.StateExpired, b.State)
}

func TestPaymentRetryPolicy(t *testing.T) {
	e := newEnv(booking.Options{PaymentRetryTTL: 30 * time.Second, MaxPaymentRetries: 1})
	ctx := context.Background()

	handle, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A1"}, time.Minute)
	require.NoError(t, err)
	_, err = e.engine.StartPayment(ctx, handle.BookingID)
	require.NoError(t, err)

	// First decline: back to HELD with a fresh, shorter deadline.
	require.NoError(t, e.engine.FailPayment(ctx, handle.BookingID))
	b, err := e.engine.GetBooking(ctx, handle.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.StateHeld, b.State)
	assert.Equal(t, 1, b.PaymentAttempts)
	assert.Equal(t, e.clk.Now().Add(30*time.Second), b.Deadline)

	// Second decline exhausts the budget: cancelled, seats freed.
	_, err = e.engine.StartPayment(ctx, handle.BookingID)
	require.NoError(t, err)
	require.NoError(t, e.engine.FailPayment(ctx, handle.BookingID))

	b, err = e.engine.GetBooking(ctx, handle.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, b.State)
	assert.False(t, e.table.IsLocked(model.ResourceID{ShowID: 1, SeatID: "A1"}))
	assert.Equal(t, []string{"booking.cancelled"}, e.notifier.types())
}

func TestCancel(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	handle, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A1", "A2"}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, e.engine.Cancel(ctx, handle.BookingID))

	b, err := e.engine.GetBooking(ctx, handle.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, b.State)

	// Locks are released synchronously as part of the transition.
	_, err = e.engine.Reserve(ctx, "u-2", 1, []string{"A1", "A2"}, time.Minute)
	require.NoError(t, err)

	// Cancelling again hits the terminal guard.
	err = e.engine.Cancel(ctx, handle.BookingID)
	assert.ErrorIs(t, err, booking.ErrBookingFinalized)
}

func TestAvailability(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	_, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A2"}, time.Minute)
	require.NoError(t, err)
	handleSold, err := e.engine.Reserve(ctx, "u-2", 1, []string{"A3"}, time.Minute)
	require.NoError(t, err)
	_, err = e.engine.StartPayment(ctx, handleSold.BookingID)
	require.NoError(t, err)
	require.NoError(t, e.engine.ConfirmPayment(ctx, handleSold.BookingID))

	seats, err := e.engine.Availability(ctx, 1)
	require.NoError(t, err)
	byID := make(map[string]string, len(seats))
	for _, s := range seats {
		byID[s.SeatID] = s.Status
	}
	assert.Equal(t, map[string]string{"A1": "FREE", "A2": "HELD", "A3": "SOLD"}, byID)
}

// TestReservationScenario walks the end-to-end contention story: a hold, a
// conflicting attempt that names the contended seat only, expiry, a
// successful re-reservation, and a late confirmation attempt by the original
// holder.
func TestReservationScenario(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	// Client 1 holds {A1, A2} for 5 seconds.
	h1, err := e.engine.Reserve(ctx, "client-1", 1, []string{"A1", "A2"}, 5*time.Second)
	require.NoError(t, err)

	// Client 2 wants {A2, A3}: fails, and only A2 is reported.
	_, err = e.engine.Reserve(ctx, "client-2", 1, []string{"A2", "A3"}, 5*time.Second)
	var unavailable *booking.SeatUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"A2"}, unavailable.Seats)

	// A3 was rolled back and is free right now: a third reservation takes
	// it immediately.
	h3, err := e.engine.Reserve(ctx, "client-3", 1, []string{"A3"}, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, e.engine.Cancel(ctx, h3.BookingID))

	// Past the TTL plus one sweep cycle everything is reclaimed.
	e.clk.Advance(6 * time.Second)
	e.sweepOnce()

	_, err = e.engine.Reserve(ctx, "client-2", 1, []string{"A2", "A3"}, 5*time.Second)
	require.NoError(t, err)

	// Client 1's booking was superseded; its confirmation is a no-op.
	err = e.engine.ConfirmPayment(ctx, h1.BookingID)
	assert.ErrorIs(t, err, booking.ErrBookingFinalized)
	b, err := e.engine.GetBooking(ctx, h1.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.StateExpired, b.State)
}

// notifierFunc adapts a closure to the Notifier interface.
type notifierFunc func(context.Context, queue.BookingEvent) error

func (f notifierFunc) Notify(ctx context.Context, ev queue.BookingEvent) error { return f(ctx, ev) }

// TestReserveCannotResurrectSoldSeat races a wide reservation against the
// confirmation that sells one of its seats.  The confirmation marks seats
// sold before releasing their locks, and Reserve re-checks the sold registry
// after acquiring everything, so a competitor that wins the just-released
// lock must still back out instead of being handed a hold on a sold seat.
func TestReserveCannotResurrectSoldSeat(t *testing.T) {
	clk := clock.NewManual(engineStart)
	table := lock.NewTable(clk)
	store := booking.NewStore()
	cat := catalog.NewInMemory()

	const rounds = 50
	seats := make(map[string]uint32)
	var filler []string
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("A%02d", i)
		seats[id] = 1000
		filler = append(filler, id)
	}
	for i := 0; i < rounds; i++ {
		seats[fmt.Sprintf("Z%02d", i)] = 5000
	}
	cat.AddShow(&model.Show{ID: 1, Title: "Premiere", Seats: seats})

	eng := booking.NewEngine(table, store, cat, booking.NopNotifier{}, clk, booking.Options{})
	ctx := context.Background()

	for i := 0; i < rounds; i++ {
		target := fmt.Sprintf("Z%02d", i)
		buyer, err := eng.Reserve(ctx, "buyer", 1, []string{target}, time.Minute)
		require.NoError(t, err)
		_, err = eng.StartPayment(ctx, buyer.BookingID)
		require.NoError(t, err)

		// The competitor walks 40 filler seats before reaching the target,
		// so the confirmation below lands somewhere inside its acquire loop,
		// after its availability pre-checks already passed.
		done := make(chan *model.ReservationHandle, 1)
		go func() {
			want := append(append([]string(nil), filler...), target)
			h, rerr := eng.Reserve(ctx, "competitor", 1, want, time.Minute)
			if rerr != nil {
				done <- nil
				return
			}
			done <- h
		}()

		require.NoError(t, eng.ConfirmPayment(ctx, buyer.BookingID))

		if h := <-done; h != nil {
			b, gerr := eng.GetBooking(ctx, h.BookingID)
			require.NoError(t, gerr)
			require.NotContains(t, b.SeatIDs, target, "live hold handed out on an already-sold seat")
		}

		// The sold seat stays out of the lockable universe for good.
		_, err = eng.Reserve(ctx, "late", 1, []string{target}, time.Minute)
		var unavailable *booking.SeatUnavailableError
		require.ErrorAs(t, err, &unavailable)
		require.Contains(t, unavailable.Seats, target)
		require.Equal(t, 0, table.Len(), "no locks may linger between rounds")
	}
}

// TestExpireDueReleasesAllLocksBeforeNotifying checks the sweep ordering:
// every overdue booking is expired and its locks reclaimed before the first
// notification goes out, so a slow broker cannot delay reclamation.
func TestExpireDueReleasesAllLocksBeforeNotifying(t *testing.T) {
	clk := clock.NewManual(engineStart)
	table := lock.NewTable(clk)
	store := booking.NewStore()
	cat := catalog.NewInMemory()
	cat.AddShow(&model.Show{
		ID:    1,
		Title: "Evening Screening",
		Seats: map[string]uint32{"A1": 1000, "A2": 1500},
	})

	var lockedAtNotify []int
	notifier := notifierFunc(func(context.Context, queue.BookingEvent) error {
		lockedAtNotify = append(lockedAtNotify, table.Len())
		return nil
	})
	eng := booking.NewEngine(table, store, cat, notifier, clk, booking.Options{})
	ctx := context.Background()

	_, err := eng.Reserve(ctx, "u-1", 1, []string{"A1"}, time.Second)
	require.NoError(t, err)
	_, err = eng.Reserve(ctx, "u-2", 1, []string{"A2"}, time.Second)
	require.NoError(t, err)

	clk.Advance(2 * time.Second)
	assert.Equal(t, 2, eng.ExpireDue(ctx, clk.Now()))

	require.Len(t, lockedAtNotify, 2)
	for _, n := range lockedAtNotify {
		assert.Equal(t, 0, n, "locks must be reclaimed before notifications start")
	}
}

// TestCancelRacesSweeper runs explicit cancellation concurrently with sweep
// cycles on an already-overdue booking: exactly one of them finalizes it.
func TestCancelRacesSweeper(t *testing.T) {
	e := newEnv(booking.Options{})
	ctx := context.Background()

	handle, err := e.engine.Reserve(ctx, "u-1", 1, []string{"A1"}, time.Second)
	require.NoError(t, err)
	e.clk.Advance(2 * time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = e.engine.Cancel(ctx, handle.BookingID)
	}()
	go func() {
		defer wg.Done()
		e.sweepOnce()
	}()
	wg.Wait()

	b, err := e.engine.GetBooking(ctx, handle.BookingID)
	require.NoError(t, err)
	assert.True(t, b.State.Terminal())
	assert.Contains(t, []model.BookingState{model.StateCancelled, model.StateExpired}, b.State)
	require.Len(t, e.notifier.types(), 1, "the losing transition must stay silent")
}
