package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore implements Store on a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCS client targeting the specified bucket.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	q := &storage.Query{Prefix: prefix}
	if err := q.SetAttrSelection([]string{"Name", "Created", "Size", "ContentType", "Metadata"}); err != nil {
		return nil, fmt.Errorf("[gcs] list %q: %w", prefix, err)
	}

	var out []ObjectInfo
	it := s.client.Bucket(s.bucket).Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("[gcs] list %q: %w", prefix, err)
		}
		out = append(out, ObjectInfo{
			Key:         attrs.Name,
			CreatedAt:   attrs.Created,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			Metadata:    attrs.Metadata,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[gcs] get %s: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *GCSStore) Put(ctx context.Context, obj Object) error {
	w := s.client.Bucket(s.bucket).Object(obj.Key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.Metadata = obj.Metadata
	if _, err := w.Write(obj.Payload); err != nil {
		w.Close()
		return fmt.Errorf("[gcs] put %s: %w", obj.Key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("[gcs] put %s: %w", obj.Key, err)
	}
	return nil
}

// Delete removes objects one call per key, eight at a time. Keys that are
// already gone are not counted and not an error.
func (s *GCSStore) Delete(ctx context.Context, keys []string) (int, error) {
	var deleted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, k := range keys {
		g.Go(func() error {
			err := s.client.Bucket(s.bucket).Object(k).Delete(gctx)
			if errors.Is(err, storage.ErrObjectNotExist) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("[gcs] delete %s: %w", k, err)
			}
			deleted.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(deleted.Load()), err
}

// Close closes the GCS client and releases resources.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
