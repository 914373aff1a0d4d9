// Package telemetry logs per-interval counter deltas and exports cumulative
// counters to prometheus.
package telemetry

import (
	"context"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.TelemetryCfg
	clock   clock.Clock
	logger  zerolog.Logger
	sources Sources
	maxSize int
	done    chan struct{}
}

func New(
	ctx context.Context,
	cfg *config.TelemetryCfg,
	clk clock.Clock,
	logger zerolog.Logger,
	sources Sources,
	maxSize int,
) Logger {
	if !cfg.Enabled() {
		return NoOpLogger{}
	}
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		clock:   clk,
		logger:  logger,
		sources: sources,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.cfg.Interval
}

func (l *Logs) Close() error {
	l.cancel()
	<-l.done
	return nil
}

func (l *Logs) run() *Logs {
	ticker := l.clock.Ticker(l.cfg.Interval)
	prev := l.sources.snapshot()

	go func() {
		defer close(l.done)
		defer ticker.Stop()

		for {
			select {
			case <-l.ctx.Done():
				return
			case <-ticker.C:
				cur := l.sources.snapshot()
				l.log(deltaSnapshot(prev, cur))
				prev = cur
			}
		}
	}()

	return l
}

func (l *Logs) log(d snapshot) {
	interval := l.cfg.Interval.String()

	if l.sources.Cache != nil {
		limit := "INF"
		if l.maxSize > 0 {
			limit = humanize.Comma(int64(l.maxSize))
		}
		l.logger.Info().
			Str("interval", interval).
			Str("entries", humanize.Comma(int64(l.sources.Cache.Len()))).
			Str("max_size", limit).
			Int64("sets", d.cache.Sets).
			Int64("hits", d.cache.Hits).
			Int64("misses", d.cache.Misses).
			Str("hit_ratio", humanize.FtoaWithDigits(hitRatio(d.cache), 2)+"%").
			Int64("expired", d.cache.Expired).
			Int64("evicted", d.cache.Evicted).
			Msg("cache")
	}

	if l.sources.Coalescer != nil {
		l.logger.Info().
			Str("interval", interval).
			Int("in_flight", l.sources.Coalescer.InFlight()).
			Int64("requests", d.coalescer.Requests).
			Int64("deduplicated", d.coalescer.Deduplicated()).
			Int64("succeeded", d.coalescer.Succeeded).
			Int64("failed", d.coalescer.Failed).
			Int64("timeouts", d.coalescer.Timeouts).
			Int64("prefetched", d.coalescer.Prefetched).
			Int64("prefetch_failed", d.coalescer.PrefetchFailed).
			Msg("coalescer")
	}

	if l.sources.Sentinel != nil && (d.observed > 0 || d.released > 0) {
		l.logger.Info().
			Str("interval", interval).
			Int64("observed", d.observed).
			Int64("released", d.released).
			Msg("sentinel")
	}

	if l.sources.Lifetimer != nil && d.lifetimeScans > 0 {
		l.logger.Info().
			Str("interval", interval).
			Int64("affected", d.lifetimeAffected).
			Int64("scans", d.lifetimeScans).
			Int64("hits", d.lifetimeHits).
			Int64("misses", d.lifetimeMisses).
			Msg("lifetime_manager")
	}
}

// NoOpLogger logs nothing.
type NoOpLogger struct{}

func (NoOpLogger) Interval() time.Duration { return 0 }
func (NoOpLogger) Close() error            { return nil }
