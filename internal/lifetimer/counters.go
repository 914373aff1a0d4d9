package lifetimer

import "sync/atomic"

type lifetimerCounters struct {
	affected   atomic.Int64 // removed expired entries
	scans      atomic.Int64 // total sweeps
	scanHits   atomic.Int64 // sweeps which removed at least one entry
	scanMisses atomic.Int64 // sweeps which found nothing to remove
}

func newLifetimerCounters() *lifetimerCounters {
	return &lifetimerCounters{
		affected:   atomic.Int64{},
		scans:      atomic.Int64{},
		scanHits:   atomic.Int64{},
		scanMisses: atomic.Int64{},
	}
}

func (c *lifetimerCounters) snapshot() (affected, scans, hits, misses int64) {
	affected = c.affected.Load()
	scans = c.scans.Load()
	hits = c.scanHits.Load()
	misses = c.scanMisses.Load()
	return
}
