package telemetry

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/Borislavv/go-ash-rescache/internal/cache"
	"github.com/Borislavv/go-ash-rescache/internal/coalescer"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeCache struct {
	mu    sync.Mutex
	stats cache.Stats
	n     int
}

func (f *fakeCache) CacheMetrics() cache.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *fakeCache) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func (f *fakeCache) set(stats cache.Stats, n int) {
	f.mu.Lock()
	f.stats, f.n = stats, n
	f.mu.Unlock()
}

type fakeCoalescer struct{ stats coalescer.Stats }

func (f fakeCoalescer) CoalescerMetrics() coalescer.Stats { return f.stats }
func (f fakeCoalescer) InFlight() int                     { return 2 }

// TestDeltaSnapshot subtracts cumulative counters and treats resets as fresh deltas.
func TestDeltaSnapshot(t *testing.T) {
	prev := snapshot{cache: cache.Stats{Hits: 10, Misses: 5}, observed: 7}
	cur := snapshot{cache: cache.Stats{Hits: 15, Misses: 2}, observed: 9}

	d := deltaSnapshot(prev, cur)

	require.Equal(t, int64(5), d.cache.Hits)
	require.Equal(t, int64(2), d.cache.Misses)
	require.Equal(t, int64(2), d.observed)
}

// TestHitRatio reports percent of lookups served.
func TestHitRatio(t *testing.T) {
	require.Zero(t, hitRatio(cache.Stats{}))
	require.Equal(t, 75.0, hitRatio(cache.Stats{Hits: 3, Misses: 1}))
}

// TestLogs_LogsDeltasOnTick writes one line per source with interval deltas.
func TestLogs_LogsDeltasOnTick(t *testing.T) {
	mock := clock.NewMock()
	out := &syncBuffer{}
	fc := &fakeCache{}
	fc.set(cache.Stats{Hits: 4}, 1)

	l := New(context.Background(), &config.TelemetryCfg{Interval: time.Second}, mock, zerolog.New(out), Sources{
		Cache:     fc,
		Coalescer: fakeCoalescer{stats: coalescer.Stats{Requests: 3, Started: 1}},
	}, 100)
	defer func() { require.NoError(t, l.Close()) }()
	require.Equal(t, time.Second, l.Interval())

	fc.set(cache.Stats{Hits: 6, Misses: 2}, 1)
	mock.Add(time.Second)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"message":"coalescer"`)
	}, time.Second, time.Millisecond)

	logs := out.String()
	require.Contains(t, logs, `"message":"cache"`)
	require.Contains(t, logs, `"hits":2`)
	require.Contains(t, logs, `"misses":2`)
	require.Contains(t, logs, `"hit_ratio":"50%"`)
	require.Contains(t, logs, `"max_size":"100"`)
	require.Contains(t, logs, `"in_flight":2`)
	require.NotContains(t, logs, `"message":"sentinel"`)
}

// TestLogs_Disabled returns the no-op logger for a nil config.
func TestLogs_Disabled(t *testing.T) {
	l := New(context.Background(), nil, clock.NewMock(), zerolog.Nop(), Sources{}, 0)

	require.IsType(t, NoOpLogger{}, l)
	require.NoError(t, l.Close())
}

// TestCollector_Collect exports cumulative counters and gauges.
func TestCollector_Collect(t *testing.T) {
	fc := &fakeCache{}
	fc.set(cache.Stats{Sets: 3, Hits: 9, Evicted: 1}, 3)
	c := NewCollector(Sources{Cache: fc, Coalescer: fakeCoalescer{stats: coalescer.Stats{Timeouts: 4}}})

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 18)

	values := make(map[string]float64, len(families))
	for _, f := range families {
		m := f.GetMetric()[0]
		switch f.GetType() {
		case dto.MetricType_COUNTER:
			values[f.GetName()] = m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			values[f.GetName()] = m.GetGauge().GetValue()
		}
	}

	require.Equal(t, float64(9), values["rescache_cache_hits_total"])
	require.Equal(t, float64(3), values["rescache_cache_entries"])
	require.Equal(t, float64(4), values["rescache_coalescer_timeouts_total"])
	require.Equal(t, float64(2), values["rescache_coalescer_in_flight"])
	require.Zero(t, values["rescache_sentinel_released_total"])
}
