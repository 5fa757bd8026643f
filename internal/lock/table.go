// Package lock implements the in-memory seat lock table: the single source
// of truth for which reservation attempt may act on a given seat right now.
// Locks carry a TTL so abandoned holds become reclaimable without any caller
// cooperation.
package lock

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/showgrid/booking/internal/clock"
	"github.com/showgrid/booking/internal/model"
)

const shardCount = 32

// record is the lock table's private per-seat state.  It is never shared by
// reference with callers; callers only learn about ownership through the
// token they presented.
type record struct {
	ownerToken string
	acquiredAt time.Time
	expiresAt  time.Time
}

func (r record) expired(now time.Time) bool {
	return !r.expiresAt.After(now)
}

type shard struct {
	mu    sync.Mutex
	locks map[model.ResourceID]record
}

// Table is a sharded concurrent map from seat resource to lock record.
// Shards are selected by hashing the full resource identifier, so seats of
// unrelated shows land on independent mutexes and never contend with each
// other.  All methods are safe for concurrent use and none of them blocks
// waiting for a lock to free up: contention is always reported as a boolean.
type Table struct {
	clk    clock.Clock
	shards [shardCount]*shard
}

// NewTable returns an empty lock table reading time from clk.
func NewTable(clk clock.Clock) *Table {
	t := &Table{clk: clk}
	for i := range t.shards {
		t.shards[i] = &shard{locks: make(map[model.ResourceID]record)}
	}
	return t
}

func (t *Table) shardFor(res model.ResourceID) *shard {
	h := fnv.New32a()
	h.Write([]byte(res.String()))
	return t.shards[h.Sum32()%shardCount]
}

// TryAcquire installs a lock record for res owned by ownerToken, but only if
// no live record exists.  A record past its expiry counts as absent and is
// replaced inside the same critical section, so there is no window in which
// two owners can both believe they hold the seat.  Returns false on
// contention; it never blocks.
func (t *Table) TryAcquire(res model.ResourceID, ownerToken string, ttl time.Duration) bool {
	now := t.clk.Now()
	s := t.shardFor(res)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.locks[res]; ok && !existing.expired(now) {
		return false
	}
	s.locks[res] = record{
		ownerToken: ownerToken,
		acquiredAt: now,
		expiresAt:  now.Add(ttl),
	}
	return true
}

// Release removes the record for res only when ownerToken still owns it.
// Releasing a seat that was already reclaimed (or never held) is a no-op
// returning false, which protects callers that lost the lock to expiry from
// knocking out a newer owner.
func (t *Table) Release(res model.ResourceID, ownerToken string) bool {
	s := t.shardFor(res)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.locks[res]
	if !ok || existing.ownerToken != ownerToken {
		return false
	}
	delete(s.locks, res)
	return true
}

// Renew extends the expiry of a lock still owned by ownerToken to now+ttl.
// Used when a payment retry grants the booking a fresh deadline.  Returns
// false when the lock is gone or owned by someone else.
func (t *Table) Renew(res model.ResourceID, ownerToken string, ttl time.Duration) bool {
	now := t.clk.Now()
	s := t.shardFor(res)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.locks[res]
	if !ok || existing.ownerToken != ownerToken || existing.expired(now) {
		return false
	}
	existing.expiresAt = now.Add(ttl)
	s.locks[res] = existing
	return true
}

// IsHeldBy reports whether ownerToken currently holds a live lock on res.
// Expired records do not count even before the sweeper removes them.
func (t *Table) IsHeldBy(res model.ResourceID, ownerToken string) bool {
	now := t.clk.Now()
	s := t.shardFor(res)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.locks[res]
	return ok && existing.ownerToken == ownerToken && !existing.expired(now)
}

// IsLocked reports whether any live lock exists on res, regardless of owner.
// Availability views use this to label seats HELD.
func (t *Table) IsLocked(res model.ResourceID) bool {
	now := t.clk.Now()
	s := t.shardFor(res)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.locks[res]
	return ok && !existing.expired(now)
}

// SweepExpired removes every record whose expiry has passed and returns the
// affected resources.  Only the expiry sweeper calls this; reservation paths
// already treat expired records as absent, so a delayed sweep never blocks a
// seat from being re-acquired.
func (t *Table) SweepExpired(now time.Time) []model.ResourceID {
	var reclaimed []model.ResourceID
	for _, s := range t.shards {
		s.mu.Lock()
		for res, rec := range s.locks {
			if rec.expired(now) {
				delete(s.locks, res)
				reclaimed = append(reclaimed, res)
			}
		}
		s.mu.Unlock()
	}
	return reclaimed
}

// Len returns the number of records currently in the table, live or not.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}
