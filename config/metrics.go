package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultSeriesCap       = 500
	DefaultTrendWindow     = 5
	DefaultTrendUpRatio    = 1.1
	DefaultTrendDownRatio  = 0.9
	DefaultPendingSpans    = 1024
	DefaultPendingSpansTTL = 10 * time.Minute
)

type MetricsCfg struct {
	// SeriesCap is the number of samples retained per key. Older samples are overwritten.
	SeriesCap int `yaml:"series_cap"`

	// TrendWindow is the number of most recent samples the trend is computed over.
	TrendWindow int `yaml:"trend_window"`

	// TrendUpRatio: trend is "up" when last > first * TrendUpRatio.
	TrendUpRatio float64 `yaml:"trend_up_ratio"`

	// TrendDownRatio: trend is "down" when last < first * TrendDownRatio.
	TrendDownRatio float64 `yaml:"trend_down_ratio"`

	// PendingSpans bounds the number of started but not yet ended profiler spans.
	PendingSpans int `yaml:"pending_spans"`

	// PendingSpansTTL drops spans that were started and never ended.
	PendingSpansTTL time.Duration `yaml:"pending_spans_ttl"`
}

func (cfg *MetricsCfg) adjust() {
	if cfg.SeriesCap <= 0 {
		cfg.SeriesCap = DefaultSeriesCap
	}
	if cfg.TrendWindow < 2 {
		cfg.TrendWindow = DefaultTrendWindow
	}
	if cfg.TrendUpRatio <= 0 {
		cfg.TrendUpRatio = DefaultTrendUpRatio
	}
	if cfg.TrendDownRatio <= 0 {
		cfg.TrendDownRatio = DefaultTrendDownRatio
	}
	if cfg.PendingSpans <= 0 {
		cfg.PendingSpans = DefaultPendingSpans
	}
	if cfg.PendingSpansTTL <= 0 {
		cfg.PendingSpansTTL = DefaultPendingSpansTTL
	}
}

func (cfg MetricsCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.SeriesCap, validation.Required, validation.Min(1)),
		validation.Field(&cfg.TrendWindow, validation.Required, validation.Min(2)),
		validation.Field(&cfg.TrendUpRatio, validation.Required, validation.Min(1.0)),
		validation.Field(&cfg.TrendDownRatio, validation.Required, validation.Max(1.0)),
		validation.Field(&cfg.PendingSpans, validation.Required, validation.Min(1)),
	)
}
