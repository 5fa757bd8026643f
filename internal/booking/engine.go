package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/showgrid/booking/internal/catalog"
	"github.com/showgrid/booking/internal/clock"
	"github.com/showgrid/booking/internal/lock"
	"github.com/showgrid/booking/internal/model"
	"github.com/showgrid/booking/internal/queue"
)

// Notifier delivers booking lifecycle events to the outside world.  Delivery
// is fire-and-forget from the engine's point of view: a failed notification
// is logged and never rolls back the transition that triggered it.
type Notifier interface {
	Notify(ctx context.Context, ev queue.BookingEvent) error
}

// NopNotifier discards every event.  Used in tests and standalone runs
// without a broker.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, queue.BookingEvent) error { return nil }

// Options tunes the engine's hold and retry policy.
type Options struct {
	// DefaultHoldTTL is used when a reservation request does not specify a
	// TTL of its own.
	DefaultHoldTTL time.Duration
	// PaymentRetryTTL is the fresh, shorter deadline granted when a payment
	// attempt fails and retries remain.
	PaymentRetryTTL time.Duration
	// MaxPaymentRetries bounds how many times a failed payment may return
	// the booking to HELD before it is cancelled outright.
	MaxPaymentRetries int
}

// withDefaults fills unset options with the production defaults.
func (o Options) withDefaults() Options {
	if o.DefaultHoldTTL <= 0 {
		o.DefaultHoldTTL = 5 * time.Minute
	}
	if o.PaymentRetryTTL <= 0 {
		o.PaymentRetryTTL = 2 * time.Minute
	}
	if o.MaxPaymentRetries < 0 {
		o.MaxPaymentRetries = 0
	}
	return o
}

// errRetriesExhausted is an internal veto used to divert a failed payment
// from the HELD retry path to CANCELLED.
var errRetriesExhausted = errors.New("payment retries exhausted")

// Engine orchestrates reservations: it owns the multi-seat acquisition
// protocol against the lock table, drives the booking state machine and
// keeps the sold-seat registry.  All operations are in-memory and return
// quickly; contention never blocks, it is reported as SeatUnavailableError.
type Engine struct {
	table    *lock.Table
	store    *Store
	sold     *soldRegistry
	catalog  catalog.Catalog
	notifier Notifier
	clk      clock.Clock
	opts     Options
}

// NewEngine wires an engine from its collaborators.  notifier may be nil,
// in which case events are discarded.
func NewEngine(table *lock.Table, store *Store, cat catalog.Catalog, notifier Notifier, clk clock.Clock, opts Options) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		table:    table,
		store:    store,
		sold:     newSoldRegistry(),
		catalog:  cat,
		notifier: notifier,
		clk:      clk,
		opts:     opts.withDefaults(),
	}
}

// Reserve attempts an all-or-nothing hold on the requested seats.
//
// The request is validated before any lock is touched: the seat list must be
// non-empty, free of duplicates and a subset of the show's seat universe,
// and none of the seats may already be sold.  Resources are then acquired
// strictly in their canonical order — every coordinator contending for
// overlapping seats walks them in the same relative order, so no cyclic wait
// can form.  On the first contended seat everything acquired so far is
// released and the returned SeatUnavailableError names every seat that was
// unavailable at that moment.
func (e *Engine) Reserve(ctx context.Context, userID string, showID uint64, seatIDs []string, ttl time.Duration) (*model.ReservationHandle, error) {
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(seatIDs))
	for _, s := range seatIDs {
		if s == "" {
			return nil, fmt.Errorf("%w: empty seat id", ErrInvalidRequest)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("%w: duplicate seat id %q", ErrInvalidRequest, s)
		}
		seen[s] = struct{}{}
	}
	if ttl <= 0 {
		ttl = e.opts.DefaultHoldTTL
	}

	show, err := e.catalog.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	var total uint32
	for _, s := range seatIDs {
		price, ok := show.Seats[s]
		if !ok {
			return nil, fmt.Errorf("%w: unknown seat %q in show %d", ErrInvalidRequest, s, showID)
		}
		total += price
	}
	if sold := e.sold.anySold(showID, seatIDs); len(sold) > 0 {
		return nil, &SeatUnavailableError{ShowID: showID, Seats: sold}
	}

	token, err := newOwnerToken(16)
	if err != nil {
		return nil, fmt.Errorf("generate owner token: %w", err)
	}

	resources := make([]model.ResourceID, 0, len(seatIDs))
	for _, s := range seatIDs {
		resources = append(resources, model.ResourceID{ShowID: showID, SeatID: s})
	}
	model.SortResources(resources)

	acquired := make([]model.ResourceID, 0, len(resources))
	for i, res := range resources {
		if e.table.TryAcquire(res, token, ttl) {
			acquired = append(acquired, res)
			continue
		}
		// Roll back everything grabbed so far; release never contends.
		for _, got := range acquired {
			e.table.Release(got, token)
		}
		return nil, &SeatUnavailableError{ShowID: showID, Seats: e.contendedFrom(resources[i:])}
	}

	// A confirmation can slip between the sold check above and the acquire
	// loop: it marks the seats sold and only then releases their locks, so a
	// successful acquire of a just-sold seat is possible.  That same ordering
	// guarantees the sold mark is visible here, so re-check and back out
	// instead of handing out a hold on a seat that left the lockable universe.
	if sold := e.sold.anySold(showID, seatIDs); len(sold) > 0 {
		for _, got := range acquired {
			e.table.Release(got, token)
		}
		return nil, &SeatUnavailableError{ShowID: showID, Seats: sold}
	}

	now := e.clk.Now()
	sortedSeats := make([]string, len(resources))
	for i, res := range resources {
		sortedSeats[i] = res.SeatID
	}
	b := &model.Booking{
		ID:               uuid.New(),
		UserID:           userID,
		ShowID:           showID,
		SeatIDs:          sortedSeats,
		OwnerToken:       token,
		State:            model.StateHeld,
		TotalAmountCents: total,
		CreatedAt:        now,
		Deadline:         now.Add(ttl),
	}
	e.store.Put(b)

	return &model.ReservationHandle{
		BookingID:  b.ID,
		OwnerToken: token,
		Resources:  resources,
		ExpiresAt:  b.Deadline,
	}, nil
}

// contendedFrom reports which of the given resources are unavailable right
// now, so the failure names every conflicting seat rather than just the
// first one hit.
func (e *Engine) contendedFrom(rest []model.ResourceID) []string {
	var seats []string
	for _, res := range rest {
		if e.table.IsLocked(res) || e.sold.isSold(res.ShowID, res.SeatID) {
			seats = append(seats, res.SeatID)
		}
	}
	if len(seats) == 0 && len(rest) > 0 {
		// The contended lock was released between the failed acquire and
		// this probe; still report the seat that failed.
		seats = []string{rest[0].SeatID}
	}
	return seats
}

// StartPayment moves a HELD booking to PENDING_PAYMENT and returns the
// amount to charge.  Every seat lock is re-validated first: if any has been
// reclaimed the handle is dead, the booking is expired instead and
// ErrHoldExpired is returned.
func (e *Engine) StartPayment(ctx context.Context, bookingID uuid.UUID) (uint32, error) {
	var amount uint32
	err := e.store.Transition(bookingID, model.StatePendingPayment, func(b *model.Booking) error {
		for _, res := range b.Resources() {
			if !e.table.IsHeldBy(res, b.OwnerToken) {
				return ErrHoldExpired
			}
		}
		amount = b.TotalAmountCents
		return nil
	})
	if errors.Is(err, ErrHoldExpired) {
		e.expireNow(ctx, bookingID)
		return 0, ErrHoldExpired
	}
	return amount, err
}

// ConfirmPayment finalizes a PENDING_PAYMENT booking on a successful payment
// callback.  In one atomic step the booking becomes CONFIRMED, its seats are
// recorded as permanently sold and the seat locks are released — sold seats
// leave the lockable universe for good.  A duplicate callback finds the
// booking terminal and gets ErrBookingFinalized, nothing else changes.
func (e *Engine) ConfirmPayment(ctx context.Context, bookingID uuid.UUID) error {
	var ev queue.BookingEvent
	err := e.store.Transition(bookingID, model.StateConfirmed, func(b *model.Booking) error {
		now := e.clk.Now()
		b.ConfirmedAt = &now
		e.sold.markSold(b.ShowID, b.SeatIDs)
		for _, res := range b.Resources() {
			e.table.Release(res, b.OwnerToken)
		}
		ev = e.eventFor(queue.EventBookingConfirmed, b, now)
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(ctx, ev)
	return nil
}

// FailPayment processes a failed payment callback.  While retries remain the
// booking returns to HELD with a fresh, shorter deadline and its locks
// renewed to match; once the retry budget is spent the booking is cancelled
// and its seats released.
func (e *Engine) FailPayment(ctx context.Context, bookingID uuid.UUID) error {
	err := e.store.Transition(bookingID, model.StateHeld, func(b *model.Booking) error {
		if b.PaymentAttempts >= e.opts.MaxPaymentRetries {
			return errRetriesExhausted
		}
		for _, res := range b.Resources() {
			if !e.table.Renew(res, b.OwnerToken, e.opts.PaymentRetryTTL) {
				return ErrHoldExpired
			}
		}
		b.PaymentAttempts++
		b.Deadline = e.clk.Now().Add(e.opts.PaymentRetryTTL)
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errRetriesExhausted):
		return e.Cancel(ctx, bookingID)
	case errors.Is(err, ErrHoldExpired):
		e.expireNow(ctx, bookingID)
		return ErrHoldExpired
	default:
		return err
	}
}

// Cancel terminates a HELD or PENDING_PAYMENT booking on behalf of the user
// (or the retry policy) and releases its locks synchronously.  Racing the
// sweeper is safe: whichever transition wins is authoritative and the loser
// sees ErrBookingFinalized.
func (e *Engine) Cancel(ctx context.Context, bookingID uuid.UUID) error {
	var ev queue.BookingEvent
	err := e.store.Transition(bookingID, model.StateCancelled, func(b *model.Booking) error {
		for _, res := range b.Resources() {
			e.table.Release(res, b.OwnerToken)
		}
		ev = e.eventFor(queue.EventBookingCancelled, b, e.clk.Now())
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(ctx, ev)
	return nil
}

// GetBooking returns a copy of the booking record.
func (e *Engine) GetBooking(_ context.Context, bookingID uuid.UUID) (*model.Booking, error) {
	return e.store.Get(bookingID)
}

// ExpireDue finalizes every non-terminal booking whose deadline has passed.
// Called by the expiry sweeper; lock reclamation happens separately in the
// lock table, so a seat can be re-reserved before its old booking is marked
// EXPIRED here.  Losing a race against a concurrent cancel or confirmation
// is expected and ignored.  Every overdue booking is expired and its locks
// released before the first notification goes out, so a slow broker cannot
// hold up reclamation of the remaining seats.
func (e *Engine) ExpireDue(ctx context.Context, now time.Time) int {
	var events []queue.BookingEvent
	for _, b := range e.store.DueForExpiry(now) {
		if ev, ok := e.markExpired(b.ID); ok {
			events = append(events, ev)
		}
	}
	for _, ev := range events {
		e.emit(ctx, ev)
	}
	return len(events)
}

// expireNow transitions one booking to EXPIRED, releasing whatever locks it
// still holds, and emits the expiry event.  Returns false when another
// transition won first.
func (e *Engine) expireNow(ctx context.Context, bookingID uuid.UUID) bool {
	ev, ok := e.markExpired(bookingID)
	if ok {
		e.emit(ctx, ev)
	}
	return ok
}

// markExpired performs the EXPIRED transition and lock release without
// emitting anything.
func (e *Engine) markExpired(bookingID uuid.UUID) (queue.BookingEvent, bool) {
	var ev queue.BookingEvent
	err := e.store.Transition(bookingID, model.StateExpired, func(b *model.Booking) error {
		for _, res := range b.Resources() {
			e.table.Release(res, b.OwnerToken)
		}
		ev = e.eventFor(queue.EventBookingExpired, b, e.clk.Now())
		return nil
	})
	if err != nil {
		return queue.BookingEvent{}, false
	}
	return ev, true
}

// SeatStatus is one entry of the availability view.
type SeatStatus struct {
	SeatID string `json:"seat_id"`
	Status string `json:"status"` // FREE, HELD or SOLD
}

// Availability reports the live status of every seat in the show.
func (e *Engine) Availability(ctx context.Context, showID uint64) ([]SeatStatus, error) {
	show, err := e.catalog.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	statuses := make([]SeatStatus, 0, len(show.Seats))
	for seat := range show.Seats {
		st := "FREE"
		switch {
		case e.sold.isSold(showID, seat):
			st = "SOLD"
		case e.table.IsLocked(model.ResourceID{ShowID: showID, SeatID: seat}):
			st = "HELD"
		}
		statuses = append(statuses, SeatStatus{SeatID: seat, Status: st})
	}
	return statuses, nil
}

func (e *Engine) eventFor(typ string, b *model.Booking, at time.Time) queue.BookingEvent {
	return queue.BookingEvent{
		Type:             typ,
		BookingID:        b.ID.String(),
		UserID:           b.UserID,
		ShowID:           b.ShowID,
		SeatIDs:          append([]string(nil), b.SeatIDs...),
		TotalAmountCents: b.TotalAmountCents,
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
}

func (e *Engine) emit(ctx context.Context, ev queue.BookingEvent) {
	if err := e.notifier.Notify(ctx, ev); err != nil {
		log.Printf("engine: notify %s for booking %s failed: %v", ev.Type, ev.BookingID, err)
	}
}
