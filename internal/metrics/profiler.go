package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// SpanStats aggregates durations of one label.
type SpanStats struct {
	Count int64
	Min   time.Duration
	Avg   time.Duration
	Max   time.Duration
}

type span struct {
	start time.Time
	ended atomic.Bool
}

// Profiler measures named spans and appends their durations, in milliseconds,
// to the label's series in the Store.
type Profiler struct {
	mu     sync.Mutex
	store  *Store
	clock  clock.Clock
	starts *expirable.LRU[string, *span]
	logger zerolog.Logger
}

func NewProfiler(cfg config.MetricsCfg, store *Store, clk clock.Clock, logger zerolog.Logger) *Profiler {
	if clk == nil {
		clk = clock.New()
	}
	p := &Profiler{store: store, clock: clk, logger: logger}
	// spans that are started and never ended are dropped by size or age
	p.starts = expirable.NewLRU[string, *span](cfg.PendingSpans, p.onDangling, cfg.PendingSpansTTL)
	return p
}

// Start records the start of label, restarting it if already running.
func (p *Profiler) Start(label string) {
	p.mu.Lock()
	p.starts.Add(label, &span{start: p.clock.Now()})
	p.mu.Unlock()
}

// End closes the span of label, tracks and returns its duration.
// Without a matching Start it records nothing and returns 0.
func (p *Profiler) End(label string) time.Duration {
	p.mu.Lock()
	s, ok := p.starts.Peek(label)
	if ok {
		s.ended.Store(true)
		p.starts.Remove(label)
	}
	p.mu.Unlock()

	if !ok {
		return 0
	}

	duration := p.clock.Since(s.start)
	p.store.Track(label, float64(duration)/float64(time.Millisecond))
	return duration
}

// Measure runs fn inside a span of label.
func (p *Profiler) Measure(label string, fn func()) time.Duration {
	p.Start(label)
	fn()
	return p.End(label)
}

// Pending returns the number of started spans which are not ended yet.
func (p *Profiler) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts.Len()
}

func (p *Profiler) Stats(label string) SpanStats {
	snap := p.store.Get(label)
	return SpanStats{
		Count: snap.Count,
		Min:   msToDuration(snap.Min),
		Avg:   msToDuration(snap.Average),
		Max:   msToDuration(snap.Max),
	}
}

func (p *Profiler) onDangling(label string, s *span) {
	if s.ended.Load() {
		return
	}
	p.logger.Debug().Str("label", label).Time("started_at", s.start).Msg("profile span dropped without end")
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
