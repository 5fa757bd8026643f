// Package clock abstracts time for components that schedule work, so tests
// can drive expiry deterministically instead of sleeping.
package clock

import "time"

// Clock provides the time-related operations the reservation engine and the
// expiry sweeper depend on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker firing with the given period.  The duration
	// must be greater than zero.
	NewTicker(d time.Duration) Ticker
}

// Ticker is an interface wrapper around time.Ticker so a manual clock can
// substitute its own tick channel.
type Ticker interface {
	// Chan returns the channel ticks are delivered on.
	Chan() <-chan time.Time

	// Stop turns the ticker off.  It does not close the channel.
	Stop()
}

type systemClock struct{}

// System returns a Clock backed by the standard time package.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (st *systemTicker) Chan() <-chan time.Time { return st.t.C }
func (st *systemTicker) Stop()                  { st.t.Stop() }
