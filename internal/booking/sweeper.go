package booking

import (
	"context"
	"log"
	"time"

	"github.com/showgrid/booking/internal/clock"
	"github.com/showgrid/booking/internal/lock"
)

// Sweeper is the background task that reclaims expired seat locks and
// finalizes overdue bookings.  The two steps are deliberately decoupled: a
// reclaimed seat becomes available to new reservations immediately, even if
// its old booking is only marked EXPIRED a cycle later — the old handle went
// dead the instant its lock disappeared.
type Sweeper struct {
	table    *lock.Table
	engine   *Engine
	clk      clock.Clock
	interval time.Duration
}

// NewSweeper builds a sweeper running every interval.  The interval should
// stay well below the minimum hold TTL (a fifth of it is a reasonable
// ceiling) so reclamation latency stays bounded; intervals that are zero or
// negative fall back to one second.
func NewSweeper(table *lock.Table, engine *Engine, clk clock.Clock, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{table: table, engine: engine, clk: clk, interval: interval}
}

// Run blocks, sweeping once per interval until ctx is cancelled.  A failing
// cycle is logged and retried on the next tick; a delayed sweep only delays
// reclamation, it cannot corrupt lock or booking state.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clk.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("sweeper: running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper: stopped")
			return
		case now := <-ticker.Chan():
			s.sweep(ctx, now)
		}
	}
}

// sweep performs one reclamation cycle at the given time.
func (s *Sweeper) sweep(ctx context.Context, now time.Time) {
	if reclaimed := s.table.SweepExpired(now); len(reclaimed) > 0 {
		log.Printf("sweeper: reclaimed %d expired seat locks", len(reclaimed))
	}
	if expired := s.engine.ExpireDue(ctx, now); expired > 0 {
		log.Printf("sweeper: expired %d overdue bookings", expired)
	}
}
