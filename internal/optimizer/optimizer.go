// Package optimizer evaluates advisory rules against a metric snapshot.
// Rules only read the snapshot; nothing here touches the cache or the network.
package optimizer

import (
	"sort"
	"sync"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/rs/zerolog"
)

const (
	MetricMemory          = "memory"
	MetricRenderTime      = "renderTime"
	MetricNetworkRequests = "networkRequests"
)

// Snapshot maps metric names to their current values.
type Snapshot map[string]float64

// Rule is a named predicate over a snapshot. Lower Priority sorts first.
type Rule struct {
	Name       string
	Check      func(Snapshot) bool
	Suggestion string
	Priority   int
}

// Advisory is a rule whose predicate held.
type Advisory struct {
	Rule       string
	Suggestion string
	Priority   int
}

type Optimizer struct {
	mu     sync.RWMutex
	rules  map[string]Rule
	logger zerolog.Logger
}

func New(logger zerolog.Logger, rules ...Rule) *Optimizer {
	o := &Optimizer{rules: make(map[string]Rule, len(rules)), logger: logger}
	for _, r := range rules {
		o.Register(r)
	}
	return o
}

// DefaultRules returns the memory, render time and network batching rules.
func DefaultRules(cfg config.OptimizerCfg) []Rule {
	return []Rule{
		{
			Name:       MetricMemory,
			Check:      above(MetricMemory, cfg.MemoryThresholdBytes),
			Suggestion: "Memory usage is high: clear unused cache entries and release long-lived objects.",
			Priority:   1,
		},
		{
			Name:       MetricRenderTime,
			Check:      above(MetricRenderTime, cfg.RenderThresholdMs),
			Suggestion: "Render time exceeds one frame: memoize expensive computations.",
			Priority:   2,
		},
		{
			Name:       MetricNetworkRequests,
			Check:      above(MetricNetworkRequests, cfg.NetworkRequestsLimit),
			Suggestion: "Too many network requests: batch them or prefetch ahead of use.",
			Priority:   3,
		},
	}
}

func above(metric string, threshold float64) func(Snapshot) bool {
	return func(s Snapshot) bool {
		v, ok := s[metric]
		return ok && v > threshold
	}
}

// Register adds rule or replaces the rule with the same name. Rules without a predicate are ignored.
func (o *Optimizer) Register(rule Rule) {
	if rule.Name == "" || rule.Check == nil {
		o.logger.Warn().Str("rule", rule.Name).Msg("optimizer rule ignored: name and check are required")
		return
	}
	o.mu.Lock()
	o.rules[rule.Name] = rule
	o.mu.Unlock()
}

func (o *Optimizer) Remove(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.rules[name]; !ok {
		return false
	}
	delete(o.rules, name)
	return true
}

// Rules returns registered rule names sorted alphabetically.
func (o *Optimizer) Rules() []string {
	o.mu.RLock()
	names := make([]string, 0, len(o.rules))
	for name := range o.rules {
		names = append(names, name)
	}
	o.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Analyze returns an advisory for every rule whose predicate holds,
// ordered by priority, then by name.
func (o *Optimizer) Analyze(snapshot Snapshot) []Advisory {
	o.mu.RLock()
	out := make([]Advisory, 0, len(o.rules))
	for _, r := range o.rules {
		if r.Check(snapshot) {
			out = append(out, Advisory{Rule: r.Name, Suggestion: r.Suggestion, Priority: r.Priority})
		}
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}
