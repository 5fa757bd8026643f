package booking

import "sync"

// soldRegistry tracks seats permanently sold per show.  Sold seats leave the
// lockable universe entirely: they are never represented as locks, so the
// lock table carries no stale bookkeeping for inventory that can no longer
// change hands.
type soldRegistry struct {
	mu   sync.RWMutex
	byID map[uint64]map[string]struct{}
}

func newSoldRegistry() *soldRegistry {
	return &soldRegistry{byID: make(map[uint64]map[string]struct{})}
}

// markSold records the seats as sold for the show.  Called only from the
// CONFIRMED transition.
func (r *soldRegistry) markSold(showID uint64, seats []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byID[showID]
	if !ok {
		set = make(map[string]struct{}, len(seats))
		r.byID[showID] = set
	}
	for _, s := range seats {
		set[s] = struct{}{}
	}
}

// isSold reports whether the seat has been sold for the show.
func (r *soldRegistry) isSold(showID uint64, seat string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[showID][seat]
	return ok
}

// anySold returns the subset of seats already sold for the show, in input
// order, so reservation failures can name the exact conflicts.
func (r *soldRegistry) anySold(showID uint64, seats []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byID[showID]
	if len(set) == 0 {
		return nil
	}
	var sold []string
	for _, s := range seats {
		if _, ok := set[s]; ok {
			sold = append(sold, s)
		}
	}
	return sold
}
