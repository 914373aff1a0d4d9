package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultHighPriorityTimeout = 10_000 * time.Millisecond
	DefaultLowPriorityTimeout  = 5_000 * time.Millisecond
	DefaultPrefetchRate        = 50
)

type CoalescerCfg struct {
	// HighTimeout is the deadline of requests issued with priority "high".
	HighTimeout time.Duration `yaml:"high_timeout"`

	// LowTimeout is the deadline of requests issued with priority "low" (default priority).
	LowTimeout time.Duration `yaml:"low_timeout"`

	// PrefetchRate limits how many prefetch requests are started per second.
	PrefetchRate int `yaml:"prefetch_rate"`
}

func (cfg *CoalescerCfg) adjust() {
	if cfg.HighTimeout <= 0 {
		cfg.HighTimeout = DefaultHighPriorityTimeout
	}
	if cfg.LowTimeout <= 0 {
		cfg.LowTimeout = DefaultLowPriorityTimeout
	}
	if cfg.PrefetchRate <= 0 {
		cfg.PrefetchRate = DefaultPrefetchRate
	}
}

func (cfg CoalescerCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.HighTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&cfg.LowTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&cfg.PrefetchRate, validation.Required, validation.Min(1)),
	)
}
