package config

import "time"

const DefaultClockResolution = 10 * time.Millisecond

type ClockCfg struct {
	// Cached enables a coarse clock refreshed every Resolution instead of calling time.Now on each read.
	Cached bool `yaml:"cached"`

	// Resolution is the refresh period of the cached clock.
	Resolution time.Duration `yaml:"resolution"`
}

func (cfg *ClockCfg) adjust() {
	if cfg.Resolution <= 0 {
		cfg.Resolution = DefaultClockResolution
	}
}
