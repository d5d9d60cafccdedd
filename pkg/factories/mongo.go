package factories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// MongoConfig contains MongoDB client parameters.
type MongoConfig struct {
	// URI is the MongoDB connection string, e.g.
	// "mongodb://localhost:27017/?replicaSet=rs0".
	URI string

	ConnectTimeout time.Duration
}

func (c *MongoConfig) validate() error {
	if c.URI == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "mongodb uri is required")
	}
	return nil
}

// NewMongoClientFactory returns a factory producing MongoDB clients, each
// pinged before it is handed to the pool.
func NewMongoClientFactory(cfg MongoConfig) pool.Factory[*mongo.Client] {
	log := logger.Get().With(zap.String("factory", "mongodb"))

	return func(ctx context.Context) (*mongo.Client, error) {
		if err := cfg.validate(); err != nil {
			return nil, err
		}

		if cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
			defer cancel()
		}

		clientOpts := options.Client().ApplyURI(cfg.URI)
		client, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to connect to MongoDB")
		}

		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background()) // Ignore error when ping already failed
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "MongoDB ping failed")
		}

		log.Debug("mongodb client connected")
		return client, nil
	}
}

// CloseMongoClient is the close hook for pooled MongoDB clients.
func CloseMongoClient(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		logger.Get().Warn("failed to disconnect mongodb client", zap.Error(err))
	}
}

// NewMongoClientPool assembles a bounded pool of MongoDB clients.
func NewMongoClientPool(cfg MongoConfig, idleLimit, maxLimit int) (*pool.Pool[*mongo.Client], error) {
	return pool.New(pool.Config[*mongo.Client]{
		Name:      "mongodb",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewMongoClientFactory(cfg),
		Close:     CloseMongoClient,
	})
}
