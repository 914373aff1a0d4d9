package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const DefaultTelemetryInterval = 5 * time.Second

type TelemetryCfg struct {
	// Interval between two stat log lines. Counters are logged as per-interval deltas.
	Interval time.Duration `yaml:"interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *TelemetryCfg) adjust() {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTelemetryInterval
	}
}

func (cfg *TelemetryCfg) Validate() error {
	if cfg == nil {
		return nil
	}
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Interval, validation.Required, validation.Min(time.Millisecond)),
	)
}
