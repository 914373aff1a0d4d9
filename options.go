package rescache

import (
	"time"

	"github.com/Borislavv/go-ash-rescache/internal/cache"
	"github.com/Borislavv/go-ash-rescache/internal/optimizer"
	"github.com/Borislavv/go-ash-rescache/model"
	"github.com/benbjohnson/clock"
)

type Priority = model.Priority

const (
	PriorityLow  = model.PriorityLow
	PriorityHigh = model.PriorityHigh
)

type (
	Rule     = optimizer.Rule
	Snapshot = optimizer.Snapshot
	Advisory = optimizer.Advisory
)

type options struct {
	clock     clock.Clock
	onRelease func(key string)
	rules     []optimizer.Rule
}

type Option func(*options)

// WithClock replaces the wall clock, e.g. with clock.NewMock() in tests.
// The cached clock setting is ignored when a clock is given.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithOnRelease registers a hook invoked when an observed object is reclaimed.
func WithOnRelease(fn func(key string)) Option {
	return func(o *options) { o.onRelease = fn }
}

// WithRules registers advisory rules in addition to the default ones.
func WithRules(rules ...Rule) Option {
	return func(o *options) { o.rules = append(o.rules, rules...) }
}

type SetOption = cache.SetOption

// WithTTL overrides the configured ttl of one entry.
func WithTTL(ttl time.Duration) SetOption { return cache.WithTTL(ttl) }

// WithPriority overrides the configured priority of one entry.
func WithPriority(priority int) SetOption { return cache.WithPriority(priority) }
