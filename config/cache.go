package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultTTL      = 300_000 * time.Millisecond
	DefaultPriority = 1
	DefaultMaxSize  = 100
)

type CacheCfg struct {
	// TTL is applied when Set is called without an explicit ttl.
	TTL time.Duration `yaml:"ttl"`

	// Priority is applied when Set is called without an explicit priority. Must be >= 1.
	Priority int `yaml:"priority"`

	// MaxSize bounds the number of entries. When the store is full, one entry
	// with the lowest score is evicted before a new key is inserted.
	// Negative value disables the bound (TTL-only mode).
	MaxSize int `yaml:"max_size"`
}

// Bounded reports whether eviction is enabled.
func (cfg CacheCfg) Bounded() bool {
	return cfg.MaxSize > 0
}

func (cfg *CacheCfg) adjust() {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Priority < 1 {
		cfg.Priority = DefaultPriority
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
}

func (cfg CacheCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&cfg.Priority, validation.Required, validation.Min(1)),
	)
}
