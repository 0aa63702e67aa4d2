package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// s3DeleteBatch is the S3 DeleteObjects per-call maximum.
const s3DeleteBatch = 1000

// S3Store implements Store on an S3 bucket.
//
// S3 listings do not carry user metadata or content type, so ObjectInfo from
// List only has Key, CreatedAt (LastModified) and Size.
type S3Store struct {
	Client S3API
	Bucket string

	// DeleteConcurrency bounds concurrent DeleteObjects calls (default 4).
	DeleteConcurrency int
}

func (s *S3Store) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}
	if limit > 0 && limit < s3DeleteBatch {
		in.MaxKeys = aws.Int32(int32(limit))
	}

	var out []ObjectInfo
	pager := s3.NewListObjectsV2Paginator(s.Client, in)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[s3] list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.CreatedAt = *obj.LastModified
			}
			out = append(out, info)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	rsp, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[s3] get %s: %w", key, err)
	}
	defer rsp.Body.Close()
	return io.ReadAll(rsp.Body)
}

func (s *S3Store) Put(ctx context.Context, obj Object) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Payload),
		ContentLength: aws.Int64(int64(len(obj.Payload))),
		Metadata:      obj.Metadata,
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if _, err := s.Client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("[s3] put %s: %w", obj.Key, err)
	}
	return nil
}

// Delete removes keys in batches of 1000, running batches concurrently.
func (s *S3Store) Delete(ctx context.Context, keys []string) (int, error) {
	var deleted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deleteConcurrency())
	for start := 0; start < len(keys); start += s3DeleteBatch {
		batch := keys[start:min(start+s3DeleteBatch, len(keys))]
		g.Go(func() error {
			ids := make([]types.ObjectIdentifier, len(batch))
			for i, k := range batch {
				ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
			}
			rsp, err := s.Client.DeleteObjects(gctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.Bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("[s3] delete batch: %w", err)
			}
			deleted.Add(int64(len(batch) - len(rsp.Errors)))
			return nil
		})
	}
	err := g.Wait()
	return int(deleted.Load()), err
}

func (s *S3Store) deleteConcurrency() int {
	if s.DeleteConcurrency > 0 {
		return s.DeleteConcurrency
	}
	return 4
}
