package factories

import (
	"context"

	"github.com/linkedin/goavro/v2"

	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// AvroConfig contains Avro codec parameters.
type AvroConfig struct {
	// Schema is the Avro schema JSON the codec is compiled from.
	Schema string
}

// NewAvroCodecFactory returns a factory producing compiled Avro codecs.
// Compilation is pure CPU work; pooling amortizes it across encoders that
// would otherwise recompile the schema per use.
func NewAvroCodecFactory(cfg AvroConfig) pool.Factory[*goavro.Codec] {
	return func(ctx context.Context) (*goavro.Codec, error) {
		if cfg.Schema == "" {
			return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "avro schema is required")
		}

		codec, err := goavro.NewCodec(cfg.Schema)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to compile Avro schema")
		}
		return codec, nil
	}
}

// NewAvroCodecPool assembles a bounded pool of compiled Avro codecs.
// Codecs hold no external resources, so no close hook is needed.
func NewAvroCodecPool(cfg AvroConfig, idleLimit, maxLimit int) (*pool.Pool[*goavro.Codec], error) {
	return pool.New(pool.Config[*goavro.Codec]{
		Name:      "avro-codec",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewAvroCodecFactory(cfg),
	})
}
