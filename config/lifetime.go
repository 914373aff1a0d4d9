package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const DefaultSweepInterval = 30 * time.Second

type LifetimerCfg struct {
	// SweepInterval defines how often expired entries are removed in background.
	// Expired entries are removed on read regardless of this setting.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

func (cfg *LifetimerCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *LifetimerCfg) adjust() {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
}

func (cfg *LifetimerCfg) Validate() error {
	if cfg == nil {
		return nil
	}
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.SweepInterval, validation.Required, validation.Min(time.Millisecond)),
	)
}
