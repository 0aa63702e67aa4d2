package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"consultas-gateway/internal/blobstore"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"35s"`
	AdminToken     string        `env:"ADMIN_TOKEN"`
	RoutesFile     string        `env:"ROUTES_FILE"`

	UpstreamBaseURL string        `env:"UPSTREAM_BASE_URL,required"`
	UpstreamToken   string        `env:"UPSTREAM_TOKEN"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	StorePrefix  string `env:"STORE_PREFIX" envDefault:"consultas-gateway"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	S3Bucket     string `env:"S3_BUCKET"`
	S3Region     string `env:"S3_REGION"`
	S3Endpoint   string `env:"S3_ENDPOINT"`
	S3PathStyle  bool   `env:"S3_PATH_STYLE"`
	GCSBucket    string `env:"GCS_BUCKET"`
	GCSKeyFile   string `env:"GCS_KEY_FILE"`

	CacheListLimit   int           `env:"CACHE_LIST_LIMIT" envDefault:"1000"`
	CacheStrictMatch bool          `env:"CACHE_STRICT_MATCH" envDefault:"false"`
	MediaTimeout     time.Duration `env:"MEDIA_TIMEOUT" envDefault:"30s"`
	MediaMaxBytes    int64         `env:"MEDIA_MAX_BYTES" envDefault:"10485760"`

	PersistWorkers   int `env:"PERSIST_WORKERS" envDefault:"4"`
	PersistQueueSize int `env:"PERSIST_QUEUE_SIZE" envDefault:"256"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints the tags cannot express.
func (c Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case blobstore.BackendNone, blobstore.BackendMemory, blobstore.BackendRedis:
	case blobstore.BackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for STORE_BACKEND=s3"))
		}
	case blobstore.BackendGCS:
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for STORE_BACKEND=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if c.StoreBackend == blobstore.BackendRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for STORE_BACKEND=redis"))
	}
	if c.CacheListLimit <= 0 {
		errs = append(errs, errors.New("CACHE_LIST_LIMIT must be positive"))
	}
	if c.PersistWorkers <= 0 {
		errs = append(errs, errors.New("PERSIST_WORKERS must be positive"))
	}
	if c.PersistQueueSize <= 0 {
		errs = append(errs, errors.New("PERSIST_QUEUE_SIZE must be positive"))
	}
	if c.MediaMaxBytes <= 0 {
		errs = append(errs, errors.New("MEDIA_MAX_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// Store returns the blob store settings.
func (c Config) Store() blobstore.Config {
	return blobstore.Config{
		Backend:     c.StoreBackend,
		Prefix:      c.StorePrefix,
		S3Bucket:    c.S3Bucket,
		S3Region:    c.S3Region,
		S3Endpoint:  c.S3Endpoint,
		S3PathStyle: c.S3PathStyle,
		GCSBucket:   c.GCSBucket,
		GCSKeyFile:  c.GCSKeyFile,
	}
}

// LogFields describes the config for the startup log. Secrets are reported
// only as set or unset.
func (c Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("port", c.Port),
		zap.Duration("request_timeout", c.RequestTimeout),
		zap.String("routes_file", c.RoutesFile),
		zap.Bool("admin_token_set", c.AdminToken != ""),
		zap.String("upstream_base_url", c.UpstreamBaseURL),
		zap.Bool("upstream_token_set", c.UpstreamToken != ""),
		zap.Duration("upstream_timeout", c.UpstreamTimeout),
		zap.String("store_backend", c.StoreBackend),
		zap.Int("cache_list_limit", c.CacheListLimit),
		zap.Bool("cache_strict_match", c.CacheStrictMatch),
		zap.Int("persist_workers", c.PersistWorkers),
		zap.Int("persist_queue_size", c.PersistQueueSize),
	}
}
