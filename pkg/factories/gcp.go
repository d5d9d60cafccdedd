package factories

import (
	"context"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// GCSConfig contains Google Cloud Storage client parameters.
type GCSConfig struct {
	// CredentialsFile is a service account key path. Empty uses
	// application default credentials.
	CredentialsFile string
}

// NewGCSClientFactory returns a factory producing GCS clients.
func NewGCSClientFactory(cfg GCSConfig) pool.Factory[*storage.Client] {
	log := logger.Get().With(zap.String("factory", "gcs"))

	return func(ctx context.Context) (*storage.Client, error) {
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}

		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to create GCS client")
		}

		log.Debug("gcs client created")
		return client, nil
	}
}

// CloseGCSClient is the close hook for pooled GCS clients.
func CloseGCSClient(client *storage.Client) {
	if err := client.Close(); err != nil {
		logger.Get().Warn("failed to close gcs client", zap.Error(err))
	}
}

// NewGCSClientPool assembles a bounded pool of GCS clients.
func NewGCSClientPool(cfg GCSConfig, idleLimit, maxLimit int) (*pool.Pool[*storage.Client], error) {
	return pool.New(pool.Config[*storage.Client]{
		Name:      "gcs",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewGCSClientFactory(cfg),
		Close:     CloseGCSClient,
	})
}

// BigQueryConfig contains BigQuery client parameters.
type BigQueryConfig struct {
	ProjectID string

	// CredentialsFile is a service account key path. Empty uses
	// application default credentials.
	CredentialsFile string
}

func (c *BigQueryConfig) validate() error {
	if c.ProjectID == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "bigquery project id is required")
	}
	return nil
}

// NewBigQueryClientFactory returns a factory producing BigQuery clients.
func NewBigQueryClientFactory(cfg BigQueryConfig) pool.Factory[*bigquery.Client] {
	log := logger.Get().With(zap.String("factory", "bigquery"))

	return func(ctx context.Context) (*bigquery.Client, error) {
		if err := cfg.validate(); err != nil {
			return nil, err
		}

		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}

		client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to create BigQuery client")
		}

		log.Debug("bigquery client created", zap.String("project", cfg.ProjectID))
		return client, nil
	}
}

// CloseBigQueryClient is the close hook for pooled BigQuery clients.
func CloseBigQueryClient(client *bigquery.Client) {
	if err := client.Close(); err != nil {
		logger.Get().Warn("failed to close bigquery client", zap.Error(err))
	}
}

// NewBigQueryClientPool assembles a bounded pool of BigQuery clients.
func NewBigQueryClientPool(cfg BigQueryConfig, idleLimit, maxLimit int) (*pool.Pool[*bigquery.Client], error) {
	return pool.New(pool.Config[*bigquery.Client]{
		Name:      "bigquery",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewBigQueryClientFactory(cfg),
		Close:     CloseBigQueryClient,
	})
}
