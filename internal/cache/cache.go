package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/Borislavv/go-ash-rescache/internal/evictor"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

type Cacher[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, opts ...SetOption)
	Del(key string) bool
	Clear()
	Len() int
	CacheMetrics() Stats
}

var _ Cacher[struct{}] = (*Cache[struct{}])(nil)

type setOptions struct {
	ttl      time.Duration
	priority int
}

type SetOption func(*setOptions)

// WithTTL overrides the configured ttl. Non-positive values are ignored.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithPriority overrides the configured priority. Values below 1 are ignored.
func WithPriority(priority int) SetOption {
	return func(o *setOptions) {
		if priority >= 1 {
			o.priority = priority
		}
	}
}

// Cache is a bounded key->entry store with expiry on read and score-based eviction.
// A single mutex serializes set, get, evict and sweep so no caller observes an entry mid-eviction.
type Cache[V any] struct {
	mu            sync.Mutex
	items         map[string]*Entry[V]
	cfg           config.CacheCfg
	clock         clock.Clock
	evictor       evictor.Evictor
	logger        zerolog.Logger
	counters      *counters
	fixedPriority bool
}

func New[V any](cfg config.CacheCfg, clk clock.Clock, logger zerolog.Logger) *Cache[V] {
	var ev evictor.Evictor = evictor.Scored{}
	if !cfg.Bounded() {
		ev = evictor.NoOpEvictor{}
	}
	return newCache[V](cfg, clk, logger, ev, false)
}

// NewTTL builds the degenerate configuration: unbounded, priority fixed to 1, expiry on read only.
func NewTTL[V any](ttl time.Duration, clk clock.Clock, logger zerolog.Logger) *Cache[V] {
	cfg := config.CacheCfg{TTL: ttl, Priority: config.DefaultPriority, MaxSize: -1}
	if cfg.TTL <= 0 {
		cfg.TTL = config.DefaultTTL
	}
	return newCache[V](cfg, clk, logger, evictor.NoOpEvictor{}, true)
}

func newCache[V any](cfg config.CacheCfg, clk clock.Clock, logger zerolog.Logger, ev evictor.Evictor, fixedPriority bool) *Cache[V] {
	if clk == nil {
		clk = clock.New()
	}
	return &Cache[V]{
		items:         make(map[string]*Entry[V]),
		cfg:           cfg,
		clock:         clk,
		evictor:       ev,
		logger:        logger,
		counters:      newCounters(),
		fixedPriority: fixedPriority,
	}
}

// Get returns the value when present and fresh. An expired entry is deleted and reported absent.
// A lookup never evicts other keys.
func (c *Cache[V]) Get(key string) (value V, ok bool) {
	now := c.clock.Now()

	c.mu.Lock()
	entry, found := c.items[key]
	if !found {
		c.mu.Unlock()
		c.counters.misses.Add(1)
		return value, false
	}
	if entry.IsExpired(now) {
		delete(c.items, key)
		c.mu.Unlock()
		c.counters.expired.Add(1)
		c.counters.misses.Add(1)
		return value, false
	}
	entry.hits++
	value = entry.value
	c.mu.Unlock()

	c.counters.hits.Add(1)
	return value, true
}

// Set stores the value. When a new key arrives at a full store, exactly one
// entry with the lowest score is evicted first; overwriting a key never evicts.
func (c *Cache[V]) Set(key string, value V, opts ...SetOption) {
	o := setOptions{ttl: c.cfg.TTL, priority: c.cfg.Priority}
	for _, opt := range opts {
		opt(&o)
	}
	if c.fixedPriority {
		o.priority = config.DefaultPriority
	}

	now := c.clock.Now()
	entry := newEntry(key, value, now, o.ttl, o.priority)

	c.mu.Lock()
	c.setLocked(now, entry)
	c.mu.Unlock()

	c.counters.sets.Add(1)
}

func (c *Cache[V]) setLocked(now time.Time, entry *Entry[V]) {
	if _, exists := c.items[entry.key]; !exists && c.isFullLocked() {
		c.evictOneLocked(now)
	}
	c.items[entry.key] = entry
}

func (c *Cache[V]) Del(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		return false
	}
	delete(c.items, key)
	return true
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*Entry[V])
	c.mu.Unlock()
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) MaxSize() int { return c.cfg.MaxSize }

func (c *Cache[V]) CacheMetrics() Stats { return c.counters.snapshot() }

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache[V]) Sweep() (removed int64) {
	now := c.clock.Now()

	c.mu.Lock()
	for k, e := range c.items {
		if e.IsExpired(now) {
			delete(c.items, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.counters.expired.Add(removed)
	}
	return removed
}

// Export copies every entry, expired ones included, sorted by key.
func (c *Cache[V]) Export() []Record[V] {
	c.mu.Lock()
	records := make([]Record[V], 0, len(c.items))
	for _, e := range c.items {
		records = append(records, e.record())
	}
	c.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records
}

// Import restores records keeping their timestamps, priority and hits.
// Expired records are skipped; the size bound is respected.
func (c *Cache[V]) Import(records []Record[V]) (restored int) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		entry := fromRecord(r)
		if entry.IsExpired(now) || !entry.expiresAt.After(entry.createdAt) {
			continue
		}
		if entry.priority < 1 || c.fixedPriority {
			entry.priority = config.DefaultPriority
		}
		c.setLocked(now, entry)
		restored++
	}
	return restored
}

func (c *Cache[V]) isFullLocked() bool {
	return c.evictor.Enabled() && len(c.items) >= c.cfg.MaxSize
}

func (c *Cache[V]) evictOneLocked(now time.Time) {
	candidates := make([]evictor.Candidate, 0, len(c.items))
	for _, e := range c.items {
		candidates = append(candidates, e)
	}
	idx := c.evictor.Victim(now, candidates)
	if idx < 0 {
		return
	}
	victim := candidates[idx]
	delete(c.items, victim.Key())
	c.counters.evicted.Add(1)

	c.logger.Debug().
		Str("key", victim.Key()).
		Int("priority", victim.Priority()).
		Int64("hits", victim.Hits()).
		Float64("score", evictor.Score(victim, now)).
		Msg("cache entry evicted")
}
