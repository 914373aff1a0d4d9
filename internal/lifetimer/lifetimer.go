// Package lifetimer removes expired cache entries in background so that
// entries which are never read again do not hold memory until eviction.
package lifetimer

import (
	"context"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Sweeper removes expired entries and reports how many were removed.
type Sweeper interface {
	Sweep() (removed int64)
}

type Lifetimer interface {
	LifetimerMetrics() (affected, scans, hits, misses int64)
	Close() error
}

type LifetimeWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.LifetimerCfg
	clock    clock.Clock
	target   Sweeper
	logger   zerolog.Logger
	counters *lifetimerCounters
	done     chan struct{}
}

func New(
	ctx context.Context,
	cfg *config.LifetimerCfg,
	clk clock.Clock,
	logger zerolog.Logger,
	target Sweeper,
) Lifetimer {
	if !cfg.Enabled() {
		return &NoOpLifetimer{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&LifetimeWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		clock:    clk,
		target:   target,
		logger:   logger,
		counters: newLifetimerCounters(),
		done:     make(chan struct{}),
	}).run()
}

func (w *LifetimeWorker) LifetimerMetrics() (affected, scans, hits, misses int64) {
	return w.counters.snapshot()
}

// Close stops the worker and waits for the loop to exit.
func (w *LifetimeWorker) Close() error {
	w.cancel()
	<-w.done
	return nil
}

func (w *LifetimeWorker) run() *LifetimeWorker {
	w.logger.Info().Str("interval", w.cfg.SweepInterval.String()).Msg("lifetimer is running")

	ticker := w.clock.Ticker(w.cfg.SweepInterval)
	go func() {
		defer close(w.done)
		defer ticker.Stop()
		defer w.logger.Info().Msg("lifetimer is stopped")

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.sweep()
			}
		}
	}()

	return w
}

func (w *LifetimeWorker) sweep() {
	w.counters.scans.Add(1)
	removed := w.target.Sweep()
	if removed == 0 {
		w.counters.scanMisses.Add(1)
		return
	}
	w.counters.scanHits.Add(1)
	w.counters.affected.Add(removed)
	w.logger.Debug().Int64("removed", removed).Msg("expired entries swept")
}
