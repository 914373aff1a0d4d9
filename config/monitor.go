package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const DefaultMonitorInterval = time.Second

type MonitorCfg struct {
	// Interval between two runtime samples.
	Interval time.Duration `yaml:"interval"`
}

func (cfg *MonitorCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *MonitorCfg) adjust() {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMonitorInterval
	}
}

func (cfg *MonitorCfg) Validate() error {
	if cfg == nil {
		return nil
	}
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Interval, validation.Required, validation.Min(time.Millisecond)),
	)
}
