package blobstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendS3     = "s3"
	BackendGCS    = "gcs"
)

type Config struct {
	Backend string

	// Prefix namespaces redis keys.
	Prefix string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	GCSBucket  string
	GCSKeyFile string
}

// New builds the configured backend wrapped in a LoggingStore. Backend "none"
// returns a nil Store: the cache layer then runs in its degraded no-op mode.
// The returned close func is never nil.
func New(ctx context.Context, cfg Config, redisClient *redis.Client) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case BackendNone:
		return nil, noop, nil

	case BackendMemory, "":
		return NewLoggingStore(NewMemoryStore(), BackendMemory), noop, nil

	case BackendRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("blobstore: redis backend needs a redis client")
		}
		return NewLoggingStore(NewRedisStore(redisClient, RedisConfig{Prefix: cfg.Prefix}), BackendRedis), noop, nil

	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, nil, fmt.Errorf("blobstore: S3_BUCKET is required for the s3 backend")
		}
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewLoggingStore(&S3Store{Client: client, Bucket: cfg.S3Bucket}, BackendS3), noop, nil

	case BackendGCS:
		if cfg.GCSBucket == "" {
			return nil, nil, fmt.Errorf("blobstore: GCS_BUCKET is required for the gcs backend")
		}
		var opts []option.ClientOption
		if cfg.GCSKeyFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCSKeyFile))
		}
		gcs, err := NewGCSStore(ctx, cfg.GCSBucket, opts...)
		if err != nil {
			return nil, nil, err
		}
		return NewLoggingStore(gcs, BackendGCS), gcs.Close, nil

	default:
		return nil, nil, fmt.Errorf("blobstore: unknown backend %q", cfg.Backend)
	}
}

func newS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		})
	}
	if cfg.S3PathStyle {
		opts = append(opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, opts...), nil
}
