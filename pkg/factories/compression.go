package factories

import (
	"context"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// CompressionLevel selects a speed/ratio trade-off for pooled codecs.
type CompressionLevel string

const (
	LevelFastest CompressionLevel = "fastest"
	LevelDefault CompressionLevel = "default"
	LevelBetter  CompressionLevel = "better"
	LevelBest    CompressionLevel = "best"
)

func mapZstdLevel(level CompressionLevel) zstd.EncoderLevel {
	switch level {
	case LevelFastest:
		return zstd.SpeedFastest
	case LevelBetter:
		return zstd.SpeedBetterCompression
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapLZ4Level(level CompressionLevel) lz4.CompressionLevel {
	switch level {
	case LevelFastest:
		return lz4.Fast
	case LevelBest:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

// ZstdConfig contains zstd codec parameters.
type ZstdConfig struct {
	Level CompressionLevel

	// Concurrency caps the codec's internal worker goroutines. Pooled
	// codecs default to 1 so parallelism is governed by pool occupancy.
	Concurrency int
}

func (c *ZstdConfig) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return 1
}

// NewZstdEncoderFactory returns a factory producing zstd encoders for
// EncodeAll-style buffer compression. Encoders hold window buffers and
// dictionary state, which is exactly the kind of expensive reusable
// instance pools exist for.
func NewZstdEncoderFactory(cfg ZstdConfig) pool.Factory[*zstd.Encoder] {
	return func(ctx context.Context) (*zstd.Encoder, error) {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(mapZstdLevel(cfg.Level)),
			zstd.WithEncoderConcurrency(cfg.concurrency()),
		)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to create zstd encoder")
		}
		return enc, nil
	}
}

// CloseZstdEncoder is the close hook for pooled zstd encoders.
func CloseZstdEncoder(enc *zstd.Encoder) {
	_ = enc.Close()
}

// NewZstdEncoderPool assembles a bounded pool of zstd encoders.
func NewZstdEncoderPool(cfg ZstdConfig, idleLimit, maxLimit int) (*pool.Pool[*zstd.Encoder], error) {
	return pool.New(pool.Config[*zstd.Encoder]{
		Name:      "zstd-encoder",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewZstdEncoderFactory(cfg),
		Close:     CloseZstdEncoder,
	})
}

// NewZstdDecoderFactory returns a factory producing zstd decoders for
// DecodeAll-style buffer decompression.
func NewZstdDecoderFactory(cfg ZstdConfig) pool.Factory[*zstd.Decoder] {
	return func(ctx context.Context) (*zstd.Decoder, error) {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(cfg.concurrency()),
		)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to create zstd decoder")
		}
		return dec, nil
	}
}

// CloseZstdDecoder is the close hook for pooled zstd decoders.
func CloseZstdDecoder(dec *zstd.Decoder) {
	dec.Close()
}

// NewZstdDecoderPool assembles a bounded pool of zstd decoders.
func NewZstdDecoderPool(cfg ZstdConfig, idleLimit, maxLimit int) (*pool.Pool[*zstd.Decoder], error) {
	return pool.New(pool.Config[*zstd.Decoder]{
		Name:      "zstd-decoder",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewZstdDecoderFactory(cfg),
		Close:     CloseZstdDecoder,
	})
}

// LZ4Config contains lz4 writer parameters.
type LZ4Config struct {
	Level CompressionLevel
}

// NewLZ4WriterFactory returns a factory producing lz4 frame writers.
// Writers start detached (io.Discard); holders call Reset with their
// destination before use.
func NewLZ4WriterFactory(cfg LZ4Config) pool.Factory[*lz4.Writer] {
	return func(ctx context.Context) (*lz4.Writer, error) {
		w := lz4.NewWriter(io.Discard)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(cfg.Level))); err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to configure lz4 writer")
		}
		return w, nil
	}
}

// CloseLZ4Writer is the close hook for pooled lz4 writers.
func CloseLZ4Writer(w *lz4.Writer) {
	_ = w.Close()
}

// NewLZ4WriterPool assembles a bounded pool of lz4 frame writers.
func NewLZ4WriterPool(cfg LZ4Config, idleLimit, maxLimit int) (*pool.Pool[*lz4.Writer], error) {
	return pool.New(pool.Config[*lz4.Writer]{
		Name:      "lz4-writer",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewLZ4WriterFactory(cfg),
		Close:     CloseLZ4Writer,
	})
}
