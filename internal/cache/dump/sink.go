package dump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// Sink stores one dump blob.
type Sink interface {
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// FileSink writes dumps to dir/name through a temporary file and an atomic rename.
type FileSink struct {
	dir  string
	name string
}

func NewFileSink(dir, name string) *FileSink {
	return &FileSink{dir: dir, name: name}
}

func (s *FileSink) Path() string { return filepath.Join(s.dir, s.name) }

func (s *FileSink) Write(_ context.Context, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}

	name := s.Path()
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (s *FileSink) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDump, s.Path())
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path(), err)
	}
	return data, nil
}

func (s *FileSink) Close() error { return nil }

// RedisSink stores dumps under a single redis key.
type RedisSink struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisSink connects lazily; commands are traced and metered through otel.
func NewRedisSink(opts *redis.Options, key string, ttl time.Duration) (*RedisSink, error) {
	client := redis.NewClient(opts)

	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis metrics: %w", err)
	}

	return &RedisSink{client: client, key: key, ttl: ttl}, nil
}

func (s *RedisSink) Write(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisSink) Read(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis key %s", ErrNoDump, s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return data, nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
