// Package cachedtime provides a coarse clock: Now is refreshed by a ticker
// instead of being read from the base clock on every call.
package cachedtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock wraps a base clock and serves Now from an atomically stored value.
// Everything except Now, Since and Until is delegated to the base clock.
type Clock struct {
	clock.Clock
	nowUnix atomic.Int64
	closed  atomic.Bool
}

// New starts refreshing every resolution until ctx is done; after that Now falls back to the base clock.
func New(ctx context.Context, base clock.Clock, resolution time.Duration) *Clock {
	c := &Clock{Clock: base}
	c.nowUnix.Store(base.Now().UnixNano())
	go c.run(ctx, base.Ticker(resolution))
	return c
}

func (c *Clock) run(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.closed.Store(true)
			return
		case tt := <-ticker.C:
			c.nowUnix.Store(tt.UnixNano())
		}
	}
}

func (c *Clock) Now() time.Time {
	if c.closed.Load() {
		return c.Clock.Now()
	}
	return time.Unix(0, c.nowUnix.Load())
}

func (c *Clock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }
func (c *Clock) Until(t time.Time) time.Duration { return t.Sub(c.Now()) }

// RunIfEnabled returns a cached clock over base when enabled, base itself otherwise.
func RunIfEnabled(ctx context.Context, base clock.Clock, enabled bool, resolution time.Duration) clock.Clock {
	if !enabled {
		return base
	}
	return New(ctx, base, resolution)
}
