// Package coalescer deduplicates identical in-flight requests and enforces
// priority-dependent deadlines on them.
package coalescer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/Borislavv/go-ash-rescache/internal/shared/rate"
	"github.com/Borislavv/go-ash-rescache/model"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/Borislavv/go-ash-rescache/coalescer"

// Operation is the underlying work of a request. ctx is cancelled at the request deadline.
type Operation[V any] func(ctx context.Context) (V, error)

// Loader loads a target; used by Prefetch.
type Loader[V any] func(ctx context.Context, target string) (V, error)

// Pending describes an in-flight request.
type Pending struct {
	Key      string
	Priority model.Priority
	IssuedAt time.Time
	Deadline time.Time
}

type result[V any] struct {
	value V
	err   error
}

// Coalescer runs at most one operation per key at a time; every caller that
// arrives while it is in flight receives the very same value or error.
type Coalescer[V any] struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      config.CoalescerCfg
	clock    clock.Clock
	logger   zerolog.Logger
	tracer   trace.Tracer
	counters *counters

	group singleflight.Group

	mu      sync.Mutex
	pending map[string]Pending

	jitterOnce sync.Once
	jitter     *rate.Jitter
	prefetchWg sync.WaitGroup
}

func New[V any](ctx context.Context, cfg config.CoalescerCfg, clk clock.Clock, logger zerolog.Logger) *Coalescer[V] {
	if clk == nil {
		clk = clock.New()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Coalescer[V]{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		clock:    clk,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		counters: newCounters(),
		pending:  make(map[string]Pending),
	}
}

// Fetch derives the key from target and options and runs op through Do.
func (c *Coalescer[V]) Fetch(ctx context.Context, target string, options any, priority model.Priority, op Operation[V]) (V, error) {
	key, err := Key(target, options)
	if err != nil {
		var zero V
		return zero, err
	}
	return c.Do(ctx, key, priority, op)
}

// Do joins the in-flight request of key or starts op as a new one.
// ctx only bounds how long this caller waits; it never cancels the shared operation.
func (c *Coalescer[V]) Do(ctx context.Context, key string, priority model.Priority, op Operation[V]) (V, error) {
	var zero V

	ctx, span := c.tracer.Start(ctx, "coalescer.fetch", trace.WithAttributes(
		attribute.String("rescache.key", key),
		attribute.String("rescache.priority", string(priority)),
	))
	defer span.End()

	ch := c.group.DoChan(key, func() (any, error) {
		return c.execute(key, priority, op)
	})
	// counted once registered with the call, so joined callers are observable
	c.counters.requests.Add(1)

	select {
	case <-ctx.Done():
		span.SetStatus(codes.Error, "caller gave up")
		return zero, ctx.Err()
	case res := <-ch:
		span.SetAttributes(attribute.Bool("rescache.shared", res.Shared))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

func (c *Coalescer[V]) execute(key string, priority model.Priority, op Operation[V]) (any, error) {
	timeout := c.Timeout(priority)
	opCtx, cancel := c.clock.WithTimeout(c.ctx, timeout)
	defer cancel()

	issuedAt := c.clock.Now()
	c.track(Pending{Key: key, Priority: priority, IssuedAt: issuedAt, Deadline: issuedAt.Add(timeout)})
	defer c.untrack(key)

	c.counters.started.Add(1)

	done := make(chan result[V], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[V]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := op(opCtx)
		done <- result[V]{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			c.counters.succeeded.Add(1)
			return r.value, nil
		}
		if opCtx.Err() != nil {
			return nil, c.aborted(key, timeout, opCtx)
		}
		c.counters.failed.Add(1)
		c.logger.Debug().Err(r.err).Str("key", key).Msg("coalesced operation failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrOperationFailed, key, r.err)
	case <-opCtx.Done():
		return nil, c.aborted(key, timeout, opCtx)
	}
}

func (c *Coalescer[V]) aborted(key string, timeout time.Duration, opCtx context.Context) error {
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		c.counters.timeouts.Add(1)
		c.logger.Warn().Str("key", key).Str("timeout", timeout.String()).Msg("coalesced request timed out")
		return fmt.Errorf("%w: %s after %s", ErrTimeout, key, timeout)
	}
	c.counters.failed.Add(1)
	return fmt.Errorf("%w: %s", ErrClosed, key)
}

// Prefetch warms targets in background at low priority, paced by the
// configured prefetch rate. It never blocks and never reports failures;
// onLoaded, when set, receives every successfully loaded value.
func (c *Coalescer[V]) Prefetch(targets []string, load Loader[V], onLoaded func(key string, value V)) {
	if len(targets) == 0 {
		return
	}
	c.jitterOnce.Do(func() {
		c.jitter = rate.NewJitter(c.ctx, c.cfg.PrefetchRate)
	})

	targets = append([]string(nil), targets...)
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.prefetchWg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.prefetchWg.Done()
		for _, target := range targets {
			if !c.jitter.Wait(c.ctx) {
				return
			}
			c.prefetchWg.Add(1)
			go func() {
				defer c.prefetchWg.Done()
				c.prefetch(target, load, onLoaded)
			}()
		}
	}()
}

func (c *Coalescer[V]) prefetch(target string, load Loader[V], onLoaded func(key string, value V)) {
	key, err := Key(target, nil)
	if err != nil {
		c.counters.prefetchFailed.Add(1)
		c.logger.Debug().Err(err).Str("target", target).Msg("prefetch skipped")
		return
	}

	v, err := c.Do(c.ctx, key, model.PriorityLow, func(ctx context.Context) (V, error) {
		return load(ctx, target)
	})
	if err != nil {
		c.counters.prefetchFailed.Add(1)
		c.logger.Debug().Err(err).Str("target", target).Msg("prefetch failed")
		return
	}

	c.counters.prefetched.Add(1)
	if onLoaded != nil {
		onLoaded(key, v)
	}
}

// Timeout returns the deadline offset of priority.
func (c *Coalescer[V]) Timeout(priority model.Priority) time.Duration {
	if priority == model.PriorityHigh {
		return c.cfg.HighTimeout
	}
	return c.cfg.LowTimeout
}

// Pending returns in-flight requests sorted by key.
func (c *Coalescer[V]) Pending() []Pending {
	c.mu.Lock()
	out := make([]Pending, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Coalescer[V]) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coalescer[V]) CoalescerMetrics() Stats { return c.counters.snapshot() }

// Close aborts in-flight operations and waits for prefetch goroutines.
func (c *Coalescer[V]) Close() error {
	// cancel under mu so no Prefetch can Add after Wait has started
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.prefetchWg.Wait()
	return nil
}

func (c *Coalescer[V]) track(p Pending) {
	c.mu.Lock()
	c.pending[p.Key] = p
	c.mu.Unlock()
}

func (c *Coalescer[V]) untrack(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}
