package ring

import "sync"

// Ring is a fixed-capacity buffer; Push overwrites the oldest value when full.
type Ring[T any] struct {
	mu   sync.Mutex
	buf  []T
	head int // next write position
	len  int
}

func New[T any](size int) *Ring[T] {
	r := &Ring[T]{}
	r.Init(size)
	return r
}

func (r *Ring[T]) Init(size int) {
	if size < 1 {
		size = 1
	}
	r.mu.Lock()
	r.buf = make([]T, size)
	r.head, r.len = 0, 0
	r.mu.Unlock()
}

// Push appends v and reports whether the oldest value was overwritten.
func (r *Ring[T]) Push(v T) (overwritten bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.len == len(r.buf) {
		return true
	}
	r.len++
	return false
}

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.len
}

func (r *Ring[T]) Cap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Last returns up to n most recent values, oldest first.
func (r *Ring[T]) Last(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.len {
		n = r.len
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := (r.head - n + len(r.buf)) % len(r.buf)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Slice returns every retained value, oldest first.
func (r *Ring[T]) Slice() []T { return r.Last(r.Len()) }

func (r *Ring[T]) Reset() {
	r.mu.Lock()
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head, r.len = 0, 0
	r.mu.Unlock()
}
