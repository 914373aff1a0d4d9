package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

const defaultLimit = 1

// Jitter turns a leaky-bucket limiter into a channel of permits so that
// callers can select on it together with their context.
type Jitter struct {
	ch    chan struct{}
	l     ratelimit.Limiter
	limit int
}

func NewJitter(ctx context.Context, limit int) *Jitter {
	if limit <= 0 {
		limit = defaultLimit
	}
	brst := int(float64(limit) * 0.1)
	if brst < 1 {
		brst = 1
	}
	jitter := &Jitter{
		limit: limit,
		ch:    make(chan struct{}, brst),
		l:     ratelimit.New(limit),
	}
	go jitter.provider(ctx)
	return jitter
}

func (l *Jitter) provider(ctx context.Context) {
	defer close(l.ch)
	for {
		l.l.Take()
		select {
		case <-ctx.Done():
			return
		case l.ch <- struct{}{}:
		}
	}
}

func (l *Jitter) Limit() int { return l.limit }

func (l *Jitter) Take() {
	<-l.ch
}

// Wait blocks until a permit is available. Returns false when ctx is done or the jitter is stopped.
func (l *Jitter) Wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-l.ch:
		return ok
	}
}

func (l *Jitter) Chan() <-chan struct{} {
	return l.ch
}
