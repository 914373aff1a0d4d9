// Package metrics keeps per-key series of timed samples and the profiler
// that feeds them.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/Borislavv/go-ash-rescache/internal/shared/ring"
	"github.com/Borislavv/go-ash-rescache/model"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

type Sample struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot summarizes a series. Current is the last sample; Average, Min and
// Max cover every sample ever tracked, not only the retained window.
type Snapshot struct {
	Current float64     `json:"current"`
	Average float64     `json:"average"`
	Min     float64     `json:"min"`
	Max     float64     `json:"max"`
	Count   int64       `json:"count"`
	Trend   model.Trend `json:"trend"`
}

type series struct {
	samples *ring.Ring[Sample]
	count   int64
	sum     float64
	min     float64
	max     float64
}

// Store is an append-only set of bounded series guarded by one RWMutex.
type Store struct {
	mu     sync.RWMutex
	series map[string]*series
	cfg    config.MetricsCfg
	clock  clock.Clock
	logger zerolog.Logger
}

func NewStore(cfg config.MetricsCfg, clk clock.Clock, logger zerolog.Logger) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{
		series: make(map[string]*series),
		cfg:    cfg,
		clock:  clk,
		logger: logger,
	}
}

// Track appends a sample stamped with the current time. Empty keys are dropped.
func (s *Store) Track(key string, value float64) {
	if key == "" {
		s.logger.Debug().Float64("value", value).Msg("metric sample without key dropped")
		return
	}
	sample := Sample{Value: value, Timestamp: s.clock.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	ser, ok := s.series[key]
	if !ok {
		ser = &series{samples: ring.New[Sample](s.cfg.SeriesCap), min: value, max: value}
		s.series[key] = ser
	}
	ser.samples.Push(sample)
	ser.count++
	ser.sum += value
	ser.min = math.Min(ser.min, value)
	ser.max = math.Max(ser.max, value)
}

// Get returns the summary of key. A missing key yields a zero snapshot with a stable trend.
func (s *Store) Get(key string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ser, ok := s.series[key]
	if !ok || ser.count == 0 {
		return Snapshot{Trend: model.TrendStable}
	}

	recent := ser.samples.Last(s.cfg.TrendWindow)
	values := make([]float64, len(recent))
	for i, smp := range recent {
		values[i] = smp.Value
	}

	return Snapshot{
		Current: values[len(values)-1],
		Average: ser.sum / float64(ser.count),
		Min:     ser.min,
		Max:     ser.max,
		Count:   ser.count,
		Trend:   ClassifyTrend(values, s.cfg.TrendUpRatio, s.cfg.TrendDownRatio),
	}
}

// All returns summaries of every key.
func (s *Store) All() map[string]Snapshot {
	out := make(map[string]Snapshot)
	for _, k := range s.Keys() {
		out[k] = s.Get(k)
	}
	return out
}

// Series returns the retained samples of key, oldest first.
func (s *Store) Series(key string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ser, ok := s.series[key]; ok {
		return ser.samples.Slice()
	}
	return nil
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

func (s *Store) Reset(key string) {
	s.mu.Lock()
	delete(s.series, key)
	s.mu.Unlock()
}

func (s *Store) ResetAll() {
	s.mu.Lock()
	s.series = make(map[string]*series)
	s.mu.Unlock()
}

// ClassifyTrend compares the last value of the window with the first one.
// It is a cheap momentum heuristic, not a statistical test: "up" when
// last > first*up, "down" when last < first*down, "stable" otherwise and for
// fewer than two values.
func ClassifyTrend(window []float64, up, down float64) model.Trend {
	if len(window) < 2 {
		return model.TrendStable
	}
	first, last := window[0], window[len(window)-1]
	switch {
	case last > first*up:
		return model.TrendUp
	case last < first*down:
		return model.TrendDown
	default:
		return model.TrendStable
	}
}
