package evictor

import "time"

// NoOpEvictor never picks a victim. Used by the unbounded TTL-only store.
type NoOpEvictor struct{}

func (NoOpEvictor) Enabled() bool { return false }

func (NoOpEvictor) Victim(time.Time, []Candidate) int { return -1 }
