package config

import validation "github.com/go-ozzo/ozzo-validation/v4"

const (
	DefaultMemoryThresholdBytes = 100_000_000
	DefaultRenderThresholdMs    = 16
	DefaultNetworkRequestsLimit = 50
)

// OptimizerCfg holds thresholds of the default advisory rules.
type OptimizerCfg struct {
	MemoryThresholdBytes float64 `yaml:"memory_threshold_bytes"`
	RenderThresholdMs    float64 `yaml:"render_threshold_ms"`
	NetworkRequestsLimit float64 `yaml:"network_requests_limit"`
}

func (cfg *OptimizerCfg) adjust() {
	if cfg.MemoryThresholdBytes <= 0 {
		cfg.MemoryThresholdBytes = DefaultMemoryThresholdBytes
	}
	if cfg.RenderThresholdMs <= 0 {
		cfg.RenderThresholdMs = DefaultRenderThresholdMs
	}
	if cfg.NetworkRequestsLimit <= 0 {
		cfg.NetworkRequestsLimit = DefaultNetworkRequestsLimit
	}
}

func (cfg OptimizerCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.MemoryThresholdBytes, validation.Required),
		validation.Field(&cfg.RenderThresholdMs, validation.Required),
		validation.Field(&cfg.NetworkRequestsLimit, validation.Required),
	)
}
