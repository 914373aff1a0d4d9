// Package evictor picks the victim when the bounded store is full.
package evictor

import (
	"math"
	"time"
)

// Candidate is the view of a cached entry the policy needs to score it.
type Candidate interface {
	Key() string
	Priority() int
	Hits() int64
	ExpiresAt() time.Time
}

type Evictor interface {
	// Victim returns the index of the entry to evict among candidates, or -1 when none must be evicted.
	Victim(now time.Time, candidates []Candidate) int
	Enabled() bool
}

// Scored evicts the entry with the lowest priority * hits * remaining-ms score.
// Equal scores fall back to the earliest expiry, then to the smallest key.
//
// The scan is O(n); callers keep the store small (a few hundred entries).
// A heap indexed by score is needed before scaling this up.
type Scored struct{}

func (Scored) Enabled() bool { return true }

func (Scored) Victim(now time.Time, candidates []Candidate) int {
	victim := -1
	var (
		bestScore float64
		bestExp   time.Time
		bestKey   string
	)
	for i, c := range candidates {
		s := Score(c, now)
		exp := c.ExpiresAt()
		if victim == -1 || less(s, exp, c.Key(), bestScore, bestExp, bestKey) {
			victim, bestScore, bestExp, bestKey = i, s, exp, c.Key()
		}
	}
	return victim
}

// Score combines operator priority, popularity and remaining freshness.
// Already expired entries get a non-positive score.
func Score(c Candidate, now time.Time) float64 {
	remaining := float64(c.ExpiresAt().Sub(now).Milliseconds())
	return float64(c.Priority()) * float64(c.Hits()) * remaining
}

func less(score float64, exp time.Time, key string, bestScore float64, bestExp time.Time, bestKey string) bool {
	if score != bestScore && !(math.IsNaN(score) || math.IsNaN(bestScore)) {
		return score < bestScore
	}
	if !exp.Equal(bestExp) {
		return exp.Before(bestExp)
	}
	return key < bestKey
}
