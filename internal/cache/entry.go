package cache

import "time"

// Entry is owned by the Cache; every field is guarded by the cache mutex.
type Entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	expiresAt time.Time
	priority  int
	hits      int64
}

func newEntry[V any](key string, value V, now time.Time, ttl time.Duration, priority int) *Entry[V] {
	return &Entry[V]{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		priority:  priority,
	}
}

func (e *Entry[V]) Key() string          { return e.key }
func (e *Entry[V]) Value() V             { return e.value }
func (e *Entry[V]) CreatedAt() time.Time { return e.createdAt }
func (e *Entry[V]) ExpiresAt() time.Time { return e.expiresAt }
func (e *Entry[V]) Priority() int        { return e.priority }
func (e *Entry[V]) Hits() int64          { return e.hits }

// IsExpired - strictly after expiresAt, an entry read exactly at its expiry is still fresh.
func (e *Entry[V]) IsExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Record is a detached copy of an entry used for persistence.
type Record[V any] struct {
	Key       string    `msgpack:"k"`
	Value     V         `msgpack:"v"`
	CreatedAt time.Time `msgpack:"c"`
	ExpiresAt time.Time `msgpack:"e"`
	Priority  int       `msgpack:"p"`
	Hits      int64     `msgpack:"h"`
}

func (e *Entry[V]) record() Record[V] {
	return Record[V]{
		Key:       e.key,
		Value:     e.value,
		CreatedAt: e.createdAt,
		ExpiresAt: e.expiresAt,
		Priority:  e.priority,
		Hits:      e.hits,
	}
}

func fromRecord[V any](r Record[V]) *Entry[V] {
	return &Entry[V]{
		key:       r.Key,
		value:     r.Value,
		createdAt: r.CreatedAt,
		expiresAt: r.ExpiresAt,
		priority:  r.Priority,
		hits:      r.Hits,
	}
}
