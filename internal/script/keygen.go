package script

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a frozen clock.
type Clock func() time.Time

// keyGenerator hands out strictly increasing creation instants. When the clock
// has not advanced past the previous key, or lags behind the newest key on
// disk, the next key is the floor plus one microsecond.
type keyGenerator struct {
	mu   sync.Mutex
	now  Clock
	last time.Time
}

func newKeyGenerator(now Clock) *keyGenerator {
	if now == nil {
		now = time.Now
	}
	return &keyGenerator{now: now}
}

func (g *keyGenerator) next(floor time.Time) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now().UTC().Truncate(time.Microsecond)
	if g.last.After(floor) {
		floor = g.last
	}
	if !floor.IsZero() && !t.After(floor) {
		t = floor.Add(time.Microsecond)
	}
	g.last = t
	return t
}
