package booking

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/showgrid/booking/internal/model"
)

// entry pairs a booking with the mutex that serializes its transitions.
// Distinct bookings transition under distinct mutexes and never block each
// other; the store-level lock only guards map membership.
type entry struct {
	mu sync.Mutex
	b  *model.Booking
}

// Store is the in-process booking record keyed by booking id.  Bookings are
// mutated only through Transition, which enforces the state machine's
// transition table per record.  Finished bookings are retained for reads.
type Store struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

// NewStore returns an empty booking store.
func NewStore() *Store {
	return &Store{entries: make(map[uuid.UUID]*entry)}
}

// Put registers a freshly created booking.  The store takes ownership of b.
func (s *Store) Put(b *model.Booking) {
	s.mu.Lock()
	s.entries[b.ID] = &entry{b: b}
	s.mu.Unlock()
}

// Get returns a copy of the booking, or ErrBookingNotFound.
func (s *Store) Get(id uuid.UUID) (*model.Booking, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBookingNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.b.Clone(), nil
}

// Transition runs fn against the booking under its record lock and moves it
// to the target state.  It fails with ErrBookingFinalized when the booking
// is already terminal (making retried payment callbacks idempotent) and with
// IllegalTransitionError when the edge is not in the transition table.  fn
// may be nil; when provided it runs after the legality check and before the
// state is updated, and may veto the transition by returning an error.
func (s *Store) Transition(id uuid.UUID, to model.BookingState, fn func(b *model.Booking) error) error {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return ErrBookingNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.b.State.Terminal() {
		return ErrBookingFinalized
	}
	if !canTransition(e.b.State, to) {
		return &IllegalTransitionError{From: string(e.b.State), To: string(to)}
	}
	if fn != nil {
		if err := fn(e.b); err != nil {
			return err
		}
	}
	e.b.State = to
	return nil
}

// DueForExpiry returns copies of every non-terminal booking whose deadline
// has passed at now.  The sweeper uses this to finish the bookings whose
// locks it just reclaimed (or will reclaim).
func (s *Store) DueForExpiry(now time.Time) []*model.Booking {
	s.mu.RLock()
	snapshot := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		snapshot = append(snapshot, e)
	}
	s.mu.RUnlock()

	var due []*model.Booking
	for _, e := range snapshot {
		e.mu.Lock()
		if !e.b.State.Terminal() && !e.b.Deadline.After(now) {
			due = append(due, e.b.Clone())
		}
		e.mu.Unlock()
	}
	return due
}
