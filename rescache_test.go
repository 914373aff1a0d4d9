package rescache

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestResources(t *testing.T, cfg *config.Config, opts ...Option) (*Resources[string], *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	r, err := New[string](context.Background(), cfg, zerolog.Nop(), append([]Option{WithClock(mock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mock
}

// TestResources_Close stops background workers and is idempotent.
func TestResources_Close(t *testing.T) {
	cfg := config.Default()
	cfg.Lifetime = &config.LifetimerCfg{}
	cfg.Monitor = &config.MonitorCfg{}
	cfg.Telemetry = &config.TelemetryCfg{}
	cfg.Clock.Cached = true

	r, err := New[string](context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

// TestNew_InvalidConfig rejects a configuration that fails validation.
func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.TrendUpRatio = 0.5

	_, err := New[string](context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

// TestResources_Fetch_CachesResult runs the operation once and serves the next fetch from the cache.
func TestResources_Fetch_CachesResult(t *testing.T) {
	r, _ := newTestResources(t, nil)

	var calls atomic.Int64
	op := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "profile", nil
	}
	opts := map[string]string{"id": "42"}

	for i := 0; i < 3; i++ {
		v, err := r.Fetch(context.Background(), "https://api/users", opts, PriorityHigh, op)
		require.NoError(t, err)
		require.Equal(t, "profile", v)
	}

	require.Equal(t, int64(1), calls.Load())
	require.Equal(t, 1, r.Len())
	require.Equal(t, int64(1), r.Metric(MetricNetworkRequest).Count)

	key, err := r.Key("https://api/users", opts)
	require.NoError(t, err)
	v, ok := r.Get(key)
	require.True(t, ok)
	require.Equal(t, "profile", v)
}

// TestResources_Fetch_Concurrent deduplicates identical in-flight fetches.
func TestResources_Fetch_Concurrent(t *testing.T) {
	r, _ := newTestResources(t, nil)

	var calls atomic.Int64
	release := make(chan struct{})
	op := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = r.Fetch(context.Background(), "https://api/feed", nil, PriorityLow, op)
		}()
	}

	require.Eventually(t, func() bool {
		return r.CoalescerMetrics().Requests == callers
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int64(1), calls.Load())
	for _, v := range results {
		require.Equal(t, "shared", v)
	}
}

// TestResources_Fetch_Timeout fails with ErrTimeout and caches nothing.
func TestResources_Fetch_Timeout(t *testing.T) {
	r, mock := newTestResources(t, nil)

	started := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Fetch(context.Background(), "https://api/slow", nil, PriorityLow, func(ctx context.Context) (string, error) {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		})
		errCh <- err
	}()

	<-started
	require.Eventually(t, func() bool { return len(r.Pending()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, PriorityLow, r.Pending()[0].Priority)
	mock.Add(5 * time.Second)

	err := <-errCh
	require.ErrorIs(t, err, ErrTimeout)
	require.Zero(t, r.Len())
}

// TestResources_Fetch_LateResultNotCached drops a result that arrives after the deadline,
// so the next fetch runs the operation again.
func TestResources_Fetch_LateResultNotCached(t *testing.T) {
	r, mock := newTestResources(t, nil)

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Fetch(context.Background(), "https://api/slow", nil, PriorityLow, func(ctx context.Context) (string, error) {
			defer close(finished)
			calls.Add(1)
			close(started)
			<-release
			return "late", nil
		})
		errCh <- err
	}()

	<-started
	require.Eventually(t, func() bool { return len(r.Pending()) == 1 }, time.Second, time.Millisecond)
	mock.Add(5 * time.Second)
	require.ErrorIs(t, <-errCh, ErrTimeout)

	close(release)
	<-finished
	require.Eventually(t, func() bool { return len(r.Pending()) == 0 }, time.Second, time.Millisecond)
	require.Zero(t, r.Len())
	require.Zero(t, r.Metric(MetricNetworkRequest).Count)

	v, err := r.Fetch(context.Background(), "https://api/slow", nil, PriorityLow, func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "fresh", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fresh", v)
	require.Equal(t, int64(2), calls.Load())
}

// TestResources_Fetch_SetOptions caches fetched entries with the given priority,
// which then outlives a default entry on eviction.
func TestResources_Fetch_SetOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.MaxSize = 2
	r, _ := newTestResources(t, cfg)

	fetch := func(target string, opts ...SetOption) string {
		_, err := r.Fetch(context.Background(), target, nil, PriorityLow, func(ctx context.Context) (string, error) {
			return "body:" + target, nil
		}, opts...)
		require.NoError(t, err)
		key, err := r.Key(target, nil)
		require.NoError(t, err)
		_, ok := r.Get(key)
		require.True(t, ok)
		return key
	}

	important := fetch("https://api/a", WithPriority(5), WithTTL(time.Minute))
	ordinary := fetch("https://api/b", WithTTL(time.Minute))
	r.Set("extra", "3")

	require.Equal(t, 2, r.Len())
	_, ok := r.Get(important)
	require.True(t, ok)
	_, ok = r.Get(ordinary)
	require.False(t, ok)
}

// TestResources_Fetch_Errors reports failed operations and malformed keys.
func TestResources_Fetch_Errors(t *testing.T) {
	r, _ := newTestResources(t, nil)

	cause := errors.New("502")
	_, err := r.Fetch(context.Background(), "https://api/items", nil, PriorityLow, func(ctx context.Context) (string, error) {
		return "", cause
	})
	require.ErrorIs(t, err, ErrOperationFailed)
	require.ErrorIs(t, err, cause)
	require.Zero(t, r.Len())

	_, err = r.Fetch(context.Background(), "https://api/items", func() {}, PriorityLow, nil)
	require.ErrorIs(t, err, ErrMalformedKey)
}

// TestResources_Prefetch warms the cache so later fetches skip the operation.
func TestResources_Prefetch(t *testing.T) {
	r, _ := newTestResources(t, nil)

	r.Prefetch([]string{"https://api/a", "https://api/b"}, func(ctx context.Context, target string) (string, error) {
		return "warm:" + target, nil
	})
	require.Eventually(t, func() bool { return r.Len() == 2 }, 5*time.Second, 5*time.Millisecond)

	var calls atomic.Int64
	v, err := r.Fetch(context.Background(), "https://api/a", nil, PriorityLow, func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "cold", nil
	})
	require.NoError(t, err)
	require.Equal(t, "warm:https://api/a", v)
	require.Zero(t, calls.Load())
	require.Equal(t, int64(2), r.CoalescerMetrics().Prefetched)
}

// TestResources_Set_EvictsColdEntry keeps the bounded size by evicting the lowest score.
func TestResources_Set_EvictsColdEntry(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.MaxSize = 2
	r, _ := newTestResources(t, cfg)

	r.Set("hot", "1", WithPriority(2))
	r.Set("cold", "2")
	r.Get("hot")
	r.Set("new", "3", WithTTL(time.Minute))

	require.Equal(t, 2, r.Len())
	_, ok := r.Get("cold")
	require.False(t, ok)
	require.Equal(t, int64(1), r.CacheMetrics().Evicted)

	require.True(t, r.Del("hot"))
	r.Clear()
	require.Zero(t, r.Len())
}

// TestResources_Profile tracks span durations in milliseconds.
func TestResources_Profile(t *testing.T) {
	r, mock := newTestResources(t, nil)

	r.StartProfile("renderTime")
	mock.Add(24 * time.Millisecond)
	require.Equal(t, 24*time.Millisecond, r.EndProfile("renderTime"))
	require.Zero(t, r.EndProfile("renderTime"))

	require.Equal(t, float64(24), r.Metric("renderTime").Current)
	require.Equal(t, 24*time.Millisecond, r.ProfileStats("renderTime").Max)

	require.Equal(t, 2*time.Millisecond, r.Measure("layout", func() { mock.Add(2 * time.Millisecond) }))

	advisories := r.Analyze()
	require.Len(t, advisories, 1)
	require.Equal(t, "renderTime", advisories[0].Rule)
}

// TestResources_Analyze reads tracked metrics and the executed fetch count.
func TestResources_Analyze(t *testing.T) {
	r, _ := newTestResources(t, nil, WithRules(Rule{
		Name:       "goroutines",
		Check:      func(s Snapshot) bool { return s["goroutines"] > 1000 },
		Suggestion: "too many goroutines",
		Priority:   0,
	}))

	require.Empty(t, r.Analyze())

	r.Track("memory", 2e8)
	r.Track("goroutines", 5000)
	for i := 0; i < 51; i++ {
		_, err := r.Fetch(context.Background(), "https://api/items", map[string]int{"page": i}, PriorityLow,
			func(ctx context.Context) (string, error) { return "", nil })
		require.NoError(t, err)
	}

	s := r.Snapshot()
	require.Equal(t, float64(51), s["networkRequests"])

	var rules []string
	for _, a := range r.Analyze() {
		rules = append(rules, a.Rule)
	}
	require.Equal(t, []string{"goroutines", "memory", "networkRequests"}, rules)

	require.True(t, r.RemoveRule("memory"))
	require.Len(t, r.AnalyzeSnapshot(Snapshot{"memory": 2e8}), 0)
}

// TestResources_Observe reports live objects per key.
func TestResources_Observe(t *testing.T) {
	released := make(chan string, 1)
	r, _ := newTestResources(t, nil, WithOnRelease(func(key string) {
		select {
		case released <- key:
		default:
		}
	}))

	obj := &struct{ buf [256]byte }{}
	h := Observe(r, "subscription", obj)

	require.True(t, h.IsLive())
	require.Equal(t, map[string]int{"subscription": 1}, r.LeakStats())
	require.Len(t, r.Audit(), 1)
	require.Len(t, r.Sentinel().Stats(), 1)

	runtime.KeepAlive(obj)
}

// TestResources_Persistence dumps the cache and restores it into a fresh instance.
func TestResources_Persistence(t *testing.T) {
	r, _ := newTestResources(t, nil)
	_, err := r.Dump(context.Background())
	require.ErrorIs(t, err, ErrPersistenceDisabled)
	_, err = r.Load(context.Background())
	require.ErrorIs(t, err, ErrPersistenceDisabled)

	dir := t.TempDir()
	newCfg := func() *config.Config {
		cfg := config.Default()
		cfg.Persistence = &config.PersistenceCfg{Dir: dir, Gzip: true}
		return cfg
	}

	src, _ := newTestResources(t, newCfg())
	_, err = src.Load(context.Background())
	require.ErrorIs(t, err, ErrNoDump)

	src.Set("a", "alpha")
	src.Set("b", "beta", WithPriority(5))
	written, err := src.Dump(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, written)

	dst, _ := newTestResources(t, newCfg())
	restored, err := dst.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, restored)

	v, ok := dst.Get("b")
	require.True(t, ok)
	require.Equal(t, "beta", v)
}

// TestResources_Collector registers with a prometheus registry.
func TestResources_Collector(t *testing.T) {
	r, _ := newTestResources(t, nil)
	r.Set("k", "v")

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(r.Collector()))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
