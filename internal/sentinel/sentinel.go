// Package sentinel observes long-lived objects through weak references and
// reports keys whose live count keeps growing.
package sentinel

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Handle identifies one observed object. It never keeps the object alive.
type Handle struct {
	ID   uuid.UUID
	Key  string
	live func() bool
}

// IsLive reports whether the observed object has not been reclaimed yet.
func (h Handle) IsLive() bool {
	return h.live != nil && h.live()
}

// Report is the audit result of one key. Suspected is advisory only.
type Report struct {
	Key       string
	Live      int
	Peak      int
	Released  int64
	Streak    int
	Suspected bool
}

type observation struct {
	id   uuid.UUID
	live func() bool
}

type record struct {
	observations []observation
	released     int64
	peak         int
	lastAudit    int
	audited      bool
	streak       int
}

func (r *record) prune() int {
	alive := r.observations[:0]
	for _, o := range r.observations {
		if o.live() {
			alive = append(alive, o)
		}
	}
	clear(r.observations[len(alive):])
	r.observations = alive
	return len(alive)
}

type Sentinel struct {
	mu        sync.Mutex
	records   map[string]*record
	cfg       config.SentinelCfg
	logger    zerolog.Logger
	throttle  *rate.Sometimes
	onRelease func(key string)
	observed  atomic.Int64
	released  atomic.Int64
}

type Option func(*Sentinel)

// WithOnRelease registers a hook invoked after an observed object is reclaimed.
// It runs on the runtime cleanup goroutine and must not block.
func WithOnRelease(fn func(key string)) Option {
	return func(s *Sentinel) { s.onRelease = fn }
}

func New(cfg config.SentinelCfg, logger zerolog.Logger, opts ...Option) *Sentinel {
	if cfg.SuspectAfter < 1 {
		cfg.SuspectAfter = config.DefaultSuspectAfter
	}
	s := &Sentinel{
		records:  make(map[string]*record),
		cfg:      cfg,
		logger:   logger,
		throttle: &rate.Sometimes{First: 1, Interval: cfg.ReleaseLogInterval},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe records a weak reference to obj under key and returns its handle.
// A nil obj yields a handle that is never live and is not recorded.
func Observe[T any](s *Sentinel, key string, obj *T) Handle {
	h := Handle{ID: uuid.New(), Key: key}
	if obj == nil {
		return h
	}

	wp := weak.Make(obj)
	h.live = func() bool { return wp.Value() != nil }

	s.mu.Lock()
	rec, ok := s.records[key]
	if !ok {
		rec = &record{}
		s.records[key] = rec
	}
	rec.observations = append(rec.observations, observation{id: h.ID, live: h.live})
	if n := len(rec.observations); n > rec.peak {
		rec.peak = n
	}
	s.mu.Unlock()

	s.observed.Add(1)
	runtime.AddCleanup(obj, s.release, key)

	return h
}

func (s *Sentinel) release(key string) {
	s.released.Add(1)

	s.mu.Lock()
	if rec, ok := s.records[key]; ok {
		rec.released++
	}
	s.mu.Unlock()

	s.throttle.Do(func() {
		s.logger.Debug().Str("key", key).Msg("observed object released")
	})
	if s.onRelease != nil {
		s.onRelease(key)
	}
}

// Stats returns the number of live observed objects per key.
func (s *Sentinel) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.records))
	for key, rec := range s.records {
		out[key] = rec.prune()
	}
	return out
}

// Audit prunes reclaimed handles and updates per-key growth streaks.
// A key whose live count did not decrease for SuspectAfter consecutive
// audits while holding objects is reported as suspected.
func (s *Sentinel) Audit() []Report {
	s.mu.Lock()
	reports := make([]Report, 0, len(s.records))
	for key, rec := range s.records {
		live := rec.prune()
		switch {
		case live == 0:
			rec.streak = 0
		case !rec.audited || live >= rec.lastAudit:
			rec.streak++
		default:
			rec.streak = 0
		}
		rec.audited = true
		rec.lastAudit = live

		reports = append(reports, Report{
			Key:       key,
			Live:      live,
			Peak:      rec.peak,
			Released:  rec.released,
			Streak:    rec.streak,
			Suspected: rec.streak >= s.cfg.SuspectAfter,
		})
	}
	s.mu.Unlock()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Key < reports[j].Key })
	for _, r := range reports {
		if r.Suspected {
			s.logger.Warn().Str("key", r.Key).Int("live", r.Live).Int("streak", r.Streak).Msg("possible leak")
		}
	}
	return reports
}

// Clear drops every observation of key.
func (s *Sentinel) Clear(key string) {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

// SentinelMetrics returns cumulative observed and released counts.
func (s *Sentinel) SentinelMetrics() (observed, released int64) {
	return s.observed.Load(), s.released.Load()
}
