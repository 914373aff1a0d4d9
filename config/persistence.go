package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type SinkKind string

const (
	SinkFile  SinkKind = "file"
	SinkRedis SinkKind = "redis"
)

const DefaultDumpName = "rescache.dump"

type PersistenceCfg struct {
	// Sink selects where dumps are written: "file" (default) or "redis".
	Sink SinkKind `yaml:"sink"`

	// Dir specifies the directory where dump files are stored (file sink).
	Dir string `yaml:"dump_dir"`

	// Name is the dump file name (file sink) or the key (redis sink).
	Name string `yaml:"dump_name"`

	// Gzip enables gzip compression of dumps.
	Gzip bool `yaml:"gzip"`

	// RedisAddr is the address of the redis server (redis sink).
	RedisAddr string `yaml:"redis_addr"`

	// RedisTTL is the expiration of the dump key, zero means no expiration (redis sink).
	RedisTTL time.Duration `yaml:"redis_ttl"`
}

func (cfg *PersistenceCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *PersistenceCfg) adjust() {
	if cfg.Sink == "" {
		cfg.Sink = SinkFile
	}
	if cfg.Name == "" {
		cfg.Name = DefaultDumpName
	}
}

func (cfg *PersistenceCfg) Validate() error {
	if cfg == nil {
		return nil
	}
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Sink, validation.Required, validation.In(SinkFile, SinkRedis)),
		validation.Field(&cfg.Name, validation.Required),
		validation.Field(&cfg.Dir, validation.When(cfg.Sink == SinkFile, validation.Required)),
		validation.Field(&cfg.RedisAddr, validation.When(cfg.Sink == SinkRedis, validation.Required)),
	)
}
