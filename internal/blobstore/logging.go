package blobstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"consultas-gateway/internal/metrics"
	"consultas-gateway/pkg/logging/logging"
)

// LoggingStore wraps a Store with logging + error metrics.
type LoggingStore struct {
	inner   Store
	backend string
}

// NewLoggingStore returns a store that logs every operation at debug level and
// every failure at error level.
func NewLoggingStore(inner Store, backend string) Store {
	return &LoggingStore{inner: inner, backend: backend}
}

func (s *LoggingStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	start := time.Now()
	out, err := s.inner.List(ctx, prefix, limit)
	s.log(ctx, "list", start, err,
		zap.String("prefix", prefix),
		zap.Int("limit", limit),
		zap.Int("count", len(out)),
	)
	return out, err
}

func (s *LoggingStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	out, err := s.inner.Get(ctx, key)
	if err == ErrNotFound {
		// a clean miss, not a store failure
		s.log(ctx, "get", start, nil, zap.String("key", key), zap.Bool("found", false))
		return nil, err
	}
	s.log(ctx, "get", start, err, zap.String("key", key), zap.Int("bytes", len(out)))
	return out, err
}

func (s *LoggingStore) Put(ctx context.Context, obj Object) error {
	start := time.Now()
	err := s.inner.Put(ctx, obj)
	s.log(ctx, "put", start, err,
		zap.String("key", obj.Key),
		zap.String("content_type", obj.ContentType),
		zap.Int("bytes", len(obj.Payload)),
	)
	return err
}

func (s *LoggingStore) Delete(ctx context.Context, keys []string) (int, error) {
	start := time.Now()
	n, err := s.inner.Delete(ctx, keys)
	s.log(ctx, "delete", start, err,
		zap.Int("requested", len(keys)),
		zap.Int("deleted", n),
	)
	return n, err
}

func (s *LoggingStore) log(ctx context.Context, op string, start time.Time, err error, fields ...zap.Field) {
	logger := logging.L(ctx)
	fields = append(fields,
		zap.String("backend", s.backend),
		zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
	)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
		logger.Error("blobstore_"+op, append(fields, zap.Error(err))...)
		return
	}
	logger.Debug("blobstore_"+op, fields...)
}
