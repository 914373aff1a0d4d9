package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultSuspectAfter       = 3
	DefaultReleaseLogInterval = time.Second
)

type SentinelCfg struct {
	// SuspectAfter is the number of consecutive audits with a non-decreasing
	// live count after which a key is reported as a suspected leak.
	SuspectAfter int `yaml:"suspect_after"`

	// ReleaseLogInterval throttles "object released" log lines.
	ReleaseLogInterval time.Duration `yaml:"release_log_interval"`
}

func (cfg *SentinelCfg) adjust() {
	if cfg.SuspectAfter <= 0 {
		cfg.SuspectAfter = DefaultSuspectAfter
	}
	if cfg.ReleaseLogInterval <= 0 {
		cfg.ReleaseLogInterval = DefaultReleaseLogInterval
	}
}

func (cfg SentinelCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.SuspectAfter, validation.Required, validation.Min(1)),
	)
}
