package coalescer

import "sync/atomic"

type counters struct {
	requests       atomic.Int64 // Do calls, joined ones included
	started        atomic.Int64 // operations actually executed
	succeeded      atomic.Int64
	failed         atomic.Int64
	timeouts       atomic.Int64
	prefetched     atomic.Int64
	prefetchFailed atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

// Stats is a point-in-time copy of the cumulative coalescer counters.
type Stats struct {
	Requests       int64
	Started        int64
	Succeeded      int64
	Failed         int64
	Timeouts       int64
	Prefetched     int64
	PrefetchFailed int64
}

// Deduplicated is the number of requests served by another caller's operation.
func (s Stats) Deduplicated() int64 {
	return s.Requests - s.Started
}

func (c *counters) snapshot() Stats {
	return Stats{
		Requests:       c.requests.Load(),
		Started:        c.started.Load(),
		Succeeded:      c.succeeded.Load(),
		Failed:         c.failed.Load(),
		Timeouts:       c.timeouts.Load(),
		Prefetched:     c.prefetched.Load(),
		PrefetchFailed: c.prefetchFailed.Load(),
	}
}
