// Package rescache composes a score-evicting cache, a request coalescer,
// a metric store with a profiler, a leak sentinel and an advisory optimizer
// behind one facade.
package rescache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/Borislavv/go-ash-rescache/internal/cache"
	"github.com/Borislavv/go-ash-rescache/internal/cache/dump"
	"github.com/Borislavv/go-ash-rescache/internal/coalescer"
	"github.com/Borislavv/go-ash-rescache/internal/lifetimer"
	"github.com/Borislavv/go-ash-rescache/internal/metrics"
	"github.com/Borislavv/go-ash-rescache/internal/monitor"
	"github.com/Borislavv/go-ash-rescache/internal/optimizer"
	"github.com/Borislavv/go-ash-rescache/internal/sentinel"
	"github.com/Borislavv/go-ash-rescache/internal/shared/cachedtime"
	"github.com/Borislavv/go-ash-rescache/internal/telemetry"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// MetricNetworkRequest receives the latency in milliseconds of every executed fetch.
const MetricNetworkRequest = "network-request"

type Resources[V any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	clock  clock.Clock
	logger zerolog.Logger

	cache     *cache.Cache[V]
	coalescer *coalescer.Coalescer[V]
	store     *metrics.Store
	profiler  *metrics.Profiler
	sentinel  *sentinel.Sentinel
	optimizer *optimizer.Optimizer
	dumper    *dump.Dumper[V]
	collector *telemetry.Collector

	lifetimer lifetimer.Lifetimer
	monitor   monitor.Monitor
	telemetry telemetry.Logger

	closeOnce sync.Once
}

// New wires every component. A nil cfg means config.Default().
func New[V any](ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Resources[V], error) {
	if cfg == nil {
		cfg = config.Default()
	} else {
		cfg.AdjustConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(ctx)
	clk := o.clock
	if clk == nil {
		clk = cachedtime.RunIfEnabled(ctx, clock.New(), cfg.Clock.Cached, cfg.Clock.Resolution)
	}

	component := func(name string) zerolog.Logger {
		return logger.With().Str("component", name).Logger()
	}

	r := &Resources[V]{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		clock:  clk,
		logger: logger,
	}

	r.cache = cache.New[V](cfg.Cache, clk, component("cache"))
	r.coalescer = coalescer.New[V](ctx, cfg.Coalescer, clk, component("coalescer"))
	r.store = metrics.NewStore(cfg.Metrics, clk, component("metrics"))
	r.profiler = metrics.NewProfiler(cfg.Metrics, r.store, clk, component("profiler"))

	var sentinelOpts []sentinel.Option
	if o.onRelease != nil {
		sentinelOpts = append(sentinelOpts, sentinel.WithOnRelease(o.onRelease))
	}
	r.sentinel = sentinel.New(cfg.Sentinel, component("sentinel"), sentinelOpts...)
	r.optimizer = optimizer.New(component("optimizer"), append(optimizer.DefaultRules(cfg.Optimizer), o.rules...)...)

	if cfg.Persistence.Enabled() {
		dumper, err := dump.New[V](cfg.Persistence, r.cache, clk, component("dump"))
		if err != nil {
			cancel()
			return nil, err
		}
		r.dumper = dumper
	}

	r.lifetimer = lifetimer.New(ctx, cfg.Lifetime, clk, component("lifetimer"), r.cache)
	r.monitor = monitor.New(ctx, cfg.Monitor, clk, component("monitor"), r.store)

	sources := telemetry.Sources{
		Cache:     r.cache,
		Coalescer: r.coalescer,
		Sentinel:  r.sentinel,
		Lifetimer: r.lifetimer,
	}
	r.collector = telemetry.NewCollector(sources)
	r.telemetry = telemetry.New(ctx, cfg.Telemetry, clk, component("telemetry"), sources, r.cache.MaxSize())

	return r, nil
}

func (r *Resources[V]) Get(key string) (V, bool) { return r.cache.Get(key) }

func (r *Resources[V]) Set(key string, value V, opts ...SetOption) { r.cache.Set(key, value, opts...) }

func (r *Resources[V]) Del(key string) bool { return r.cache.Del(key) }

func (r *Resources[V]) Clear() { r.cache.Clear() }

func (r *Resources[V]) Len() int { return r.cache.Len() }

func (r *Resources[V]) CacheMetrics() cache.Stats { return r.cache.CacheMetrics() }

// Key returns the cache and request key of target with options.
func (r *Resources[V]) Key(target string, options any) (string, error) {
	return coalescer.Key(target, options)
}

// Fetch serves target from the cache or runs op once for all concurrent
// callers with the same target and options. A successful result is cached
// under the request key with opts; errors and results that arrive after the
// request deadline are never cached.
func (r *Resources[V]) Fetch(
	ctx context.Context,
	target string,
	options any,
	priority Priority,
	op func(ctx context.Context) (V, error),
	opts ...SetOption,
) (V, error) {
	key, err := coalescer.Key(target, options)
	if err != nil {
		var zero V
		return zero, err
	}
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}

	return r.coalescer.Do(ctx, key, priority, func(ctx context.Context) (V, error) {
		v, err := r.timed(ctx, func() (V, error) { return op(ctx) })
		if err != nil {
			return v, err
		}
		if ctx.Err() != nil {
			// waiters already settled with a timeout or close
			return v, ctx.Err()
		}
		r.cache.Set(key, v, opts...)
		return v, nil
	})
}

// Prefetch warms the cache with targets in background without options.
// Later Fetch calls of the same targets with nil options hit the cache.
func (r *Resources[V]) Prefetch(targets []string, load func(ctx context.Context, target string) (V, error)) {
	r.coalescer.Prefetch(targets, func(ctx context.Context, target string) (V, error) {
		v, err := r.timed(ctx, func() (V, error) { return load(ctx, target) })
		if err == nil && ctx.Err() != nil {
			return v, ctx.Err()
		}
		return v, err
	}, func(key string, value V) {
		r.cache.Set(key, value)
	})
}

// timed tracks the latency of fn unless ctx expired while it ran.
func (r *Resources[V]) timed(ctx context.Context, fn func() (V, error)) (V, error) {
	start := r.clock.Now()
	v, err := fn()
	if ctx.Err() != nil {
		return v, err
	}
	r.store.Track(MetricNetworkRequest, float64(r.clock.Since(start))/float64(time.Millisecond))
	return v, err
}

func (r *Resources[V]) Pending() []coalescer.Pending { return r.coalescer.Pending() }

func (r *Resources[V]) CoalescerMetrics() coalescer.Stats { return r.coalescer.CoalescerMetrics() }

func (r *Resources[V]) StartProfile(label string) { r.profiler.Start(label) }

// EndProfile returns the elapsed time since the matching StartProfile, 0 if there was none.
func (r *Resources[V]) EndProfile(label string) time.Duration { return r.profiler.End(label) }

func (r *Resources[V]) Measure(label string, fn func()) time.Duration {
	return r.profiler.Measure(label, fn)
}

func (r *Resources[V]) ProfileStats(label string) metrics.SpanStats { return r.profiler.Stats(label) }

func (r *Resources[V]) Track(key string, value float64) { r.store.Track(key, value) }

func (r *Resources[V]) Metric(key string) metrics.Snapshot { return r.store.Get(key) }

func (r *Resources[V]) Metrics() map[string]metrics.Snapshot { return r.store.All() }

func (r *Resources[V]) Sentinel() *sentinel.Sentinel { return r.sentinel }

// Observe puts obj under leak observation; see sentinel.Observe.
func Observe[T, V any](r *Resources[V], key string, obj *T) sentinel.Handle {
	return sentinel.Observe(r.sentinel, key, obj)
}

func (r *Resources[V]) LeakStats() map[string]int { return r.sentinel.Stats() }

func (r *Resources[V]) Audit() []sentinel.Report { return r.sentinel.Audit() }

// Snapshot collects current metric values for the optimizer. networkRequests
// defaults to the number of executed fetches unless it was tracked explicitly.
func (r *Resources[V]) Snapshot() Snapshot {
	all := r.store.All()
	s := make(Snapshot, len(all)+1)
	for key, m := range all {
		s[key] = m.Current
	}
	if _, ok := s[optimizer.MetricNetworkRequests]; !ok {
		s[optimizer.MetricNetworkRequests] = float64(r.coalescer.CoalescerMetrics().Started)
	}
	return s
}

// Analyze evaluates advisory rules against Snapshot.
func (r *Resources[V]) Analyze() []Advisory { return r.optimizer.Analyze(r.Snapshot()) }

func (r *Resources[V]) AnalyzeSnapshot(s Snapshot) []Advisory { return r.optimizer.Analyze(s) }

func (r *Resources[V]) RegisterRule(rule Rule) { r.optimizer.Register(rule) }

func (r *Resources[V]) RemoveRule(name string) bool { return r.optimizer.Remove(name) }

// Dump persists the cache; ErrPersistenceDisabled without a persistence section.
func (r *Resources[V]) Dump(ctx context.Context) (int, error) {
	if r.dumper == nil {
		return 0, ErrPersistenceDisabled
	}
	return r.dumper.Dump(ctx)
}

// Load restores the last dump; expired entries are skipped.
func (r *Resources[V]) Load(ctx context.Context) (int, error) {
	if r.dumper == nil {
		return 0, ErrPersistenceDisabled
	}
	return r.dumper.Load(ctx)
}

// Collector exposes counters of every component to prometheus.
func (r *Resources[V]) Collector() prometheus.Collector { return r.collector }

// Close stops background workers and aborts in-flight fetches. It is idempotent.
func (r *Resources[V]) Close() error {
	var err error
	r.closeOnce.Do(func() {
		errs := []error{
			r.telemetry.Close(),
			r.monitor.Close(),
			r.lifetimer.Close(),
			r.coalescer.Close(),
		}
		if r.dumper != nil {
			errs = append(errs, r.dumper.Close())
		}
		r.cancel()
		err = errors.Join(errs...)
	})
	return err
}
