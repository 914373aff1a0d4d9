package telemetry

import "github.com/prometheus/client_golang/prometheus"

const namespace = "rescache"

type metricDesc struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(s snapshot, src Sources) float64
}

// Collector exposes cumulative counters of every source as prometheus metrics.
// Values are read at scrape time; nothing is cached between scrapes.
type Collector struct {
	sources Sources
	metrics []metricDesc
}

func NewCollector(sources Sources) *Collector {
	counter := func(subsystem, name, help string, value func(snapshot) int64) metricDesc {
		return metricDesc{
			desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
			kind: prometheus.CounterValue,
			value: func(s snapshot, _ Sources) float64 {
				return float64(value(s))
			},
		}
	}

	metrics := []metricDesc{
		counter("cache", "sets_total", "Entries stored.", func(s snapshot) int64 { return s.cache.Sets }),
		counter("cache", "hits_total", "Lookups served from the cache.", func(s snapshot) int64 { return s.cache.Hits }),
		counter("cache", "misses_total", "Lookups of absent or expired keys.", func(s snapshot) int64 { return s.cache.Misses }),
		counter("cache", "expired_total", "Entries removed after their ttl.", func(s snapshot) int64 { return s.cache.Expired }),
		counter("cache", "evicted_total", "Entries evicted by score.", func(s snapshot) int64 { return s.cache.Evicted }),
		counter("coalescer", "requests_total", "Fetch calls, joined ones included.", func(s snapshot) int64 { return s.coalescer.Requests }),
		counter("coalescer", "started_total", "Operations executed.", func(s snapshot) int64 { return s.coalescer.Started }),
		counter("coalescer", "succeeded_total", "Operations that returned a value.", func(s snapshot) int64 { return s.coalescer.Succeeded }),
		counter("coalescer", "failed_total", "Operations that returned an error.", func(s snapshot) int64 { return s.coalescer.Failed }),
		counter("coalescer", "timeouts_total", "Requests that exceeded their deadline.", func(s snapshot) int64 { return s.coalescer.Timeouts }),
		counter("coalescer", "prefetched_total", "Targets warmed by prefetch.", func(s snapshot) int64 { return s.coalescer.Prefetched }),
		counter("coalescer", "prefetch_failed_total", "Prefetch attempts that failed.", func(s snapshot) int64 { return s.coalescer.PrefetchFailed }),
		counter("sentinel", "observed_total", "Objects put under observation.", func(s snapshot) int64 { return s.observed }),
		counter("sentinel", "released_total", "Observed objects reclaimed by the runtime.", func(s snapshot) int64 { return s.released }),
		counter("lifetimer", "swept_total", "Expired entries removed by the sweeper.", func(s snapshot) int64 { return s.lifetimeAffected }),
		counter("lifetimer", "scans_total", "Sweeper passes.", func(s snapshot) int64 { return s.lifetimeScans }),
		{
			desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "entries"), "Entries currently stored.", nil, nil),
			kind: prometheus.GaugeValue,
			value: func(_ snapshot, src Sources) float64 {
				if src.Cache == nil {
					return 0
				}
				return float64(src.Cache.Len())
			},
		},
		{
			desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "coalescer", "in_flight"), "Requests currently in flight.", nil, nil),
			kind: prometheus.GaugeValue,
			value: func(_ snapshot, src Sources) float64 {
				if src.Coalescer == nil {
					return 0
				}
				return float64(src.Coalescer.InFlight())
			},
		},
	}

	return &Collector{sources: sources, metrics: metrics}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.sources.snapshot()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s, c.sources))
	}
}
