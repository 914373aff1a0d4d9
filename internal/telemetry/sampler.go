package telemetry

import (
	"github.com/Borislavv/go-ash-rescache/internal/cache"
	"github.com/Borislavv/go-ash-rescache/internal/coalescer"
)

type CacheSource interface {
	CacheMetrics() cache.Stats
	Len() int
}

type CoalescerSource interface {
	CoalescerMetrics() coalescer.Stats
	InFlight() int
}

type SentinelSource interface {
	SentinelMetrics() (observed, released int64)
}

type LifetimerSource interface {
	LifetimerMetrics() (affected, scans, hits, misses int64)
}

// Sources groups the counters exposed by telemetry. Nil members are reported as zero.
type Sources struct {
	Cache     CacheSource
	Coalescer CoalescerSource
	Sentinel  SentinelSource
	Lifetimer LifetimerSource
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	cache     cache.Stats
	coalescer coalescer.Stats

	observed int64
	released int64

	lifetimeAffected int64
	lifetimeScans    int64
	lifetimeHits     int64
	lifetimeMisses   int64
}

func (s Sources) snapshot() snapshot {
	var out snapshot
	if s.Cache != nil {
		out.cache = s.Cache.CacheMetrics()
	}
	if s.Coalescer != nil {
		out.coalescer = s.Coalescer.CoalescerMetrics()
	}
	if s.Sentinel != nil {
		out.observed, out.released = s.Sentinel.SentinelMetrics()
	}
	if s.Lifetimer != nil {
		out.lifetimeAffected, out.lifetimeScans, out.lifetimeHits, out.lifetimeMisses = s.Lifetimer.LifetimerMetrics()
	}
	return out
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		cache: cache.Stats{
			Sets:    delta(prev.cache.Sets, cur.cache.Sets),
			Hits:    delta(prev.cache.Hits, cur.cache.Hits),
			Misses:  delta(prev.cache.Misses, cur.cache.Misses),
			Expired: delta(prev.cache.Expired, cur.cache.Expired),
			Evicted: delta(prev.cache.Evicted, cur.cache.Evicted),
		},
		coalescer: coalescer.Stats{
			Requests:       delta(prev.coalescer.Requests, cur.coalescer.Requests),
			Started:        delta(prev.coalescer.Started, cur.coalescer.Started),
			Succeeded:      delta(prev.coalescer.Succeeded, cur.coalescer.Succeeded),
			Failed:         delta(prev.coalescer.Failed, cur.coalescer.Failed),
			Timeouts:       delta(prev.coalescer.Timeouts, cur.coalescer.Timeouts),
			Prefetched:     delta(prev.coalescer.Prefetched, cur.coalescer.Prefetched),
			PrefetchFailed: delta(prev.coalescer.PrefetchFailed, cur.coalescer.PrefetchFailed),
		},
		observed:         delta(prev.observed, cur.observed),
		released:         delta(prev.released, cur.released),
		lifetimeAffected: delta(prev.lifetimeAffected, cur.lifetimeAffected),
		lifetimeScans:    delta(prev.lifetimeScans, cur.lifetimeScans),
		lifetimeHits:     delta(prev.lifetimeHits, cur.lifetimeHits),
		lifetimeMisses:   delta(prev.lifetimeMisses, cur.lifetimeMisses),
	}
}

func delta(prev, cur int64) int64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}

// hitRatio returns hits/(hits+misses) in percent, 0 without lookups.
func hitRatio(s cache.Stats) float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}
