// Package dump persists cache records through a file or redis sink.
package dump

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/Borislavv/go-ash-rescache/internal/cache"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const formatVersion = 1

var (
	ErrDisabled = errors.New("persistence is not enabled")
	ErrNoDump   = errors.New("no dump found")
	ErrVersion  = errors.New("unsupported dump version")
)

// Source is the cache side of a dump.
type Source[V any] interface {
	Export() []cache.Record[V]
	Import(records []cache.Record[V]) (restored int)
}

type envelope[V any] struct {
	Version   int               `msgpack:"ver"`
	CreatedAt time.Time         `msgpack:"at"`
	Records   []cache.Record[V] `msgpack:"rec"`
}

type Dumper[V any] struct {
	sink   Sink
	gzip   bool
	source Source[V]
	clock  clock.Clock
	logger zerolog.Logger
}

// New builds the sink described by cfg. A nil cfg is an error wrapping ErrDisabled.
func New[V any](cfg *config.PersistenceCfg, source Source[V], clk clock.Clock, logger zerolog.Logger) (*Dumper[V], error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	var sink Sink
	switch cfg.Sink {
	case config.SinkRedis:
		redisSink, err := NewRedisSink(&redis.Options{Addr: cfg.RedisAddr}, cfg.Name, cfg.RedisTTL)
		if err != nil {
			return nil, err
		}
		sink = redisSink
	case config.SinkFile, "":
		sink = NewFileSink(cfg.Dir, cfg.Name)
	default:
		return nil, fmt.Errorf("unknown dump sink %q", cfg.Sink)
	}
	return NewWithSink(sink, cfg.Gzip, source, clk, logger), nil
}

func NewWithSink[V any](sink Sink, gzip bool, source Source[V], clk clock.Clock, logger zerolog.Logger) *Dumper[V] {
	if clk == nil {
		clk = clock.New()
	}
	return &Dumper[V]{sink: sink, gzip: gzip, source: source, clock: clk, logger: logger}
}

// Dump writes every record of the source and returns how many were written.
func (d *Dumper[V]) Dump(ctx context.Context) (written int, err error) {
	start := d.clock.Now()
	records := d.source.Export()

	data, err := msgpack.Marshal(envelope[V]{Version: formatVersion, CreatedAt: start, Records: records})
	if err != nil {
		return 0, fmt.Errorf("encode dump: %w", err)
	}
	if d.gzip {
		if data, err = compress(data); err != nil {
			return 0, err
		}
	}
	if err = d.sink.Write(ctx, data); err != nil {
		return 0, err
	}

	d.logger.Info().
		Int("written", len(records)).
		Int("bytes", len(data)).
		Str("elapsed", d.clock.Since(start).String()).
		Msg("dumping finished")

	return len(records), nil
}

// Load restores the last dump. Expired records are skipped by the source.
func (d *Dumper[V]) Load(ctx context.Context) (restored int, err error) {
	start := d.clock.Now()

	data, err := d.sink.Read(ctx)
	if err != nil {
		return 0, err
	}
	if isGzip(data) {
		if data, err = decompress(data); err != nil {
			return 0, err
		}
	}

	var env envelope[V]
	if err = msgpack.Unmarshal(data, &env); err != nil {
		return 0, fmt.Errorf("decode dump: %w", err)
	}
	if env.Version != formatVersion {
		return 0, fmt.Errorf("%w: %d", ErrVersion, env.Version)
	}

	restored = d.source.Import(env.Records)

	d.logger.Info().
		Int("restored", restored).
		Int("skipped", len(env.Records)-restored).
		Time("dumped_at", env.CreatedAt).
		Str("elapsed", d.clock.Since(start).String()).
		Msg("restoring dump")

	return restored, nil
}

func (d *Dumper[V]) Close() error {
	return d.sink.Close()
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip dump: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("gzip dump: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip dump: %w", err)
	}
	defer gr.Close()

	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("gunzip dump: %w", err)
	}
	return out, nil
}
