package cache

import "sync/atomic"

type counters struct {
	sets    atomic.Int64
	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64 // removed on read or by sweep
	evicted atomic.Int64
}

func newCounters() *counters {
	return &counters{
		sets:    atomic.Int64{},
		hits:    atomic.Int64{},
		misses:  atomic.Int64{},
		expired: atomic.Int64{},
		evicted: atomic.Int64{},
	}
}

// Stats is a point-in-time copy of the cumulative cache counters.
type Stats struct {
	Sets    int64
	Hits    int64
	Misses  int64
	Expired int64
	Evicted int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Sets:    c.sets.Load(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Expired: c.expired.Load(),
		Evicted: c.evicted.Load(),
	}
}
