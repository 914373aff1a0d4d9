package config

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config groups configuration of all subsystems.
// Optional workers are disabled by leaving their section nil.
type Config struct {
	// Cache configures the eviction-scored value store.
	Cache CacheCfg `yaml:"cache"`

	// Coalescer configures request deduplication and per-priority deadlines.
	Coalescer CoalescerCfg `yaml:"coalescer"`

	// Metrics configures sample retention and the trend heuristic.
	Metrics MetricsCfg `yaml:"metrics"`

	// Sentinel configures the leak sentinel audit.
	Sentinel SentinelCfg `yaml:"sentinel"`

	// Optimizer holds thresholds of the default advisory rules.
	Optimizer OptimizerCfg `yaml:"optimizer"`

	// Clock configures the coarse cached clock.
	Clock ClockCfg `yaml:"clock"`

	// Lifetime configures the background TTL sweeper.
	// If nil, expired entries are only removed on read.
	Lifetime *LifetimerCfg `yaml:"lifetime"`

	// Monitor configures periodic runtime memory sampling.
	// If nil, no runtime samples are recorded.
	Monitor *MonitorCfg `yaml:"monitor"`

	// Telemetry configures periodic stat logs.
	// If nil, nothing is logged periodically.
	Telemetry *TelemetryCfg `yaml:"telemetry"`

	// Persistence configures cache dumps.
	// If nil, Dump and Load report ErrPersistenceDisabled.
	Persistence *PersistenceCfg `yaml:"persistence"`
}

// Default returns a configuration populated with the documented defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.AdjustConfig()
	return cfg
}

// AdjustConfig fills zero values with defaults.
func (cfg *Config) AdjustConfig() {
	cfg.Cache.adjust()
	cfg.Coalescer.adjust()
	cfg.Metrics.adjust()
	cfg.Sentinel.adjust()
	cfg.Optimizer.adjust()
	cfg.Clock.adjust()
	if cfg.Lifetime.Enabled() {
		cfg.Lifetime.adjust()
	}
	if cfg.Monitor.Enabled() {
		cfg.Monitor.adjust()
	}
	if cfg.Telemetry.Enabled() {
		cfg.Telemetry.adjust()
	}
	if cfg.Persistence.Enabled() {
		cfg.Persistence.adjust()
	}
}

// Validate checks the adjusted configuration.
func (cfg *Config) Validate() error {
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Cache),
		validation.Field(&cfg.Coalescer),
		validation.Field(&cfg.Metrics),
		validation.Field(&cfg.Sentinel),
		validation.Field(&cfg.Optimizer),
		validation.Field(&cfg.Lifetime),
		validation.Field(&cfg.Monitor),
		validation.Field(&cfg.Telemetry),
		validation.Field(&cfg.Persistence),
	)
}

func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.AdjustConfig()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}
