package factories

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// S3Config contains S3 client and uploader parameters. Credentials come
// from the default AWS credential chain.
type S3Config struct {
	Region string

	// UploadPartSize is the multipart chunk size in bytes. Zero keeps the
	// SDK default (5 MiB).
	UploadPartSize int64

	// UploadConcurrency is the number of parallel part uploads per
	// uploader. Zero keeps the SDK default (5).
	UploadConcurrency int
}

func (c *S3Config) validate() error {
	if c.Region == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "aws region is required")
	}
	return nil
}

// NewS3ClientFactory returns a factory producing S3 clients.
func NewS3ClientFactory(cfg S3Config) pool.Factory[*s3.Client] {
	log := logger.Get().With(zap.String("factory", "s3"))

	return func(ctx context.Context) (*s3.Client, error) {
		if err := cfg.validate(); err != nil {
			return nil, err
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConnection, "failed to load AWS configuration")
		}

		log.Debug("s3 client created", zap.String("region", cfg.Region))
		return s3.NewFromConfig(awsCfg), nil
	}
}

// NewS3UploaderFactory returns a factory producing multipart uploaders,
// each backed by its own S3 client. Leasing an uploader bounds the number
// of concurrent multipart uploads.
func NewS3UploaderFactory(cfg S3Config) pool.Factory[*manager.Uploader] {
	clientFactory := NewS3ClientFactory(cfg)

	return func(ctx context.Context) (*manager.Uploader, error) {
		client, err := clientFactory(ctx)
		if err != nil {
			return nil, err
		}

		uploader := manager.NewUploader(client, func(u *manager.Uploader) {
			if cfg.UploadPartSize > 0 {
				u.PartSize = cfg.UploadPartSize
			}
			if cfg.UploadConcurrency > 0 {
				u.Concurrency = cfg.UploadConcurrency
			}
		})

		return uploader, nil
	}
}

// NewS3UploaderPool assembles a bounded pool of S3 multipart uploaders.
func NewS3UploaderPool(cfg S3Config, idleLimit, maxLimit int) (*pool.Pool[*manager.Uploader], error) {
	return pool.New(pool.Config[*manager.Uploader]{
		Name:      "s3-uploader",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewS3UploaderFactory(cfg),
	})
}
