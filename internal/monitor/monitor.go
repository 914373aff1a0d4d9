// Package monitor samples process memory and goroutine counts into the metric store.
package monitor

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const (
	MetricMemory     = "memory"
	MetricGoroutines = "goroutines"
)

// Tracker receives samples.
type Tracker interface {
	Track(key string, value float64)
}

type Monitor interface {
	Samples() int64
	Close() error
}

type RuntimeMonitor struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.MonitorCfg
	clock   clock.Clock
	logger  zerolog.Logger
	tracker Tracker
	samples atomic.Int64
	done    chan struct{}
	readMem func(*runtime.MemStats)
}

func New(ctx context.Context, cfg *config.MonitorCfg, clk clock.Clock, logger zerolog.Logger, tracker Tracker) Monitor {
	if !cfg.Enabled() {
		return NoOpMonitor{}
	}
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&RuntimeMonitor{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		clock:   clk,
		logger:  logger,
		tracker: tracker,
		done:    make(chan struct{}),
		readMem: runtime.ReadMemStats,
	}).run()
}

func (m *RuntimeMonitor) run() *RuntimeMonitor {
	m.logger.Info().Str("interval", m.cfg.Interval.String()).Msg("runtime monitor is running")

	ticker := m.clock.Ticker(m.cfg.Interval)
	go func() {
		defer close(m.done)
		defer ticker.Stop()
		defer m.logger.Info().Msg("runtime monitor is stopped")

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()

	return m
}

func (m *RuntimeMonitor) sample() {
	var ms runtime.MemStats
	m.readMem(&ms)

	m.tracker.Track(MetricMemory, float64(ms.HeapAlloc))
	m.tracker.Track(MetricGoroutines, float64(runtime.NumGoroutine()))
	m.samples.Add(1)

	m.logger.Debug().
		Str("heap", humanize.IBytes(ms.HeapAlloc)).
		Int("goroutines", runtime.NumGoroutine()).
		Msg("runtime sampled")
}

// Samples returns the number of completed samples.
func (m *RuntimeMonitor) Samples() int64 {
	return m.samples.Load()
}

func (m *RuntimeMonitor) Close() error {
	m.cancel()
	<-m.done
	return nil
}

// NoOpMonitor records nothing.
type NoOpMonitor struct{}

func (NoOpMonitor) Samples() int64 { return 0 }
func (NoOpMonitor) Close() error   { return nil }
