package factories

import (
	"context"
	"crypto/tls"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// KafkaConfig contains Kafka producer parameters.
type KafkaConfig struct {
	Brokers  []string
	ClientID string

	// Acks is the producer acknowledgement mode: "all"/"-1", "1", or "0".
	Acks string
	// Compression is one of "gzip", "snappy", "lz4", or "" for none.
	Compression string
	Retries     int

	// EnableIdempotence restricts in-flight requests to one so retries
	// cannot reorder writes.
	EnableIdempotence bool

	// SecurityProtocol is "PLAINTEXT", "SSL", "SASL_PLAINTEXT", or "SASL_SSL".
	SecurityProtocol      string
	TLSInsecureSkipVerify bool

	// SASLMechanism is "PLAIN", "SCRAM-SHA-256", or "SCRAM-SHA-512".
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
}

// buildSaramaConfig maps KafkaConfig onto a sarama configuration.
func buildSaramaConfig(cfg KafkaConfig) *sarama.Config {
	config := sarama.NewConfig()

	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}

	// Producer settings
	switch cfg.Acks {
	case "all", "-1":
		config.Producer.RequiredAcks = sarama.WaitForAll
	case "1":
		config.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		config.Producer.RequiredAcks = sarama.NoResponse
	default:
		config.Producer.RequiredAcks = sarama.WaitForAll
	}

	config.Producer.Retry.Max = cfg.Retries
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Compression
	switch cfg.Compression {
	case "gzip":
		config.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		config.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		config.Producer.Compression = sarama.CompressionLZ4
	default:
		config.Producer.Compression = sarama.CompressionNone
	}

	// Idempotence
	if cfg.EnableIdempotence {
		config.Producer.Idempotent = true
		config.Net.MaxOpenRequests = 1
	}

	// Security settings
	if cfg.SecurityProtocol == "SASL_SSL" || cfg.SecurityProtocol == "SSL" {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{
			InsecureSkipVerify: cfg.TLSInsecureSkipVerify,
		}
	}

	if cfg.SASLMechanism != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = cfg.SASLUsername
		config.Net.SASL.Password = cfg.SASLPassword

		switch cfg.SASLMechanism {
		case "PLAIN":
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "SCRAM-SHA-256":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case "SCRAM-SHA-512":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		}
	}

	return config
}

func (c *KafkaConfig) validate() error {
	if len(c.Brokers) == 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "kafka brokers are required")
	}
	return nil
}

// NewKafkaProducerFactory returns a factory producing synchronous Kafka
// producers. Each instance holds its own broker connections, so leasing one
// grants exclusive produce capacity.
func NewKafkaProducerFactory(cfg KafkaConfig) pool.Factory[sarama.SyncProducer] {
	log := logger.Get().With(zap.String("factory", "kafka"))

	return func(ctx context.Context) (sarama.SyncProducer, error) {
		if err := cfg.validate(); err != nil {
			return nil, err
		}

		producer, err := sarama.NewSyncProducer(cfg.Brokers, buildSaramaConfig(cfg))
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to create Kafka producer")
		}

		log.Debug("kafka producer created",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("acks", cfg.Acks),
			zap.String("compression", cfg.Compression))

		return producer, nil
	}
}

// CloseKafkaProducer is the close hook for pooled Kafka producers.
func CloseKafkaProducer(producer sarama.SyncProducer) {
	if err := producer.Close(); err != nil {
		logger.Get().Warn("failed to close kafka producer", zap.Error(err))
	}
}

// NewKafkaProducerPool assembles a bounded pool of Kafka producers.
func NewKafkaProducerPool(cfg KafkaConfig, idleLimit, maxLimit int) (*pool.Pool[sarama.SyncProducer], error) {
	return pool.New(pool.Config[sarama.SyncProducer]{
		Name:      "kafka",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewKafkaProducerFactory(cfg),
		Close:     CloseKafkaProducer,
	})
}
