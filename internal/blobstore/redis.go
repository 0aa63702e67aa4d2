package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis.
//
// Each object is a hash at <prefix>:obj:<key>. A sorted set at <prefix>:index
// holds every key with score 0 so prefix listing is a ZRANGEBYLEX.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Prefix string
}

const (
	fieldPayload     = "payload"
	fieldContentType = "content_type"
	fieldCreatedAt   = "created_at"
	fieldSize        = "size"
	fieldMeta        = "meta"
)

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, config RedisConfig) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
	}
}

func (s *RedisStore) ns(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisStore) objKey(key string) string { return s.ns("obj:" + key) }
func (s *RedisStore) indexKey() string         { return s.ns("index") }

// List reads the key index, then fetches attributes for each key in one pipeline.
func (s *RedisStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	rng := &redis.ZRangeBy{Min: "-", Max: "+"}
	if prefix != "" {
		rng.Min = "[" + prefix
		rng.Max = "(" + prefix + "\xff"
	}
	if limit > 0 {
		rng.Count = int64(limit)
	}

	keys, err := s.client.ZRangeByLex(ctx, s.indexKey(), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list failed: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HMGet(ctx, s.objKey(k), fieldCreatedAt, fieldSize, fieldContentType, fieldMeta)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis list attrs failed: %w", err)
	}

	out := make([]ObjectInfo, 0, len(keys))
	for i, k := range keys {
		vals, err := cmds[i].Result()
		if err != nil || len(vals) != 4 || vals[0] == nil {
			// index entry without a hash: skip it
			continue
		}
		info := ObjectInfo{Key: k}
		if ns, err := strconv.ParseInt(asString(vals[0]), 10, 64); err == nil {
			info.CreatedAt = time.Unix(0, ns).UTC()
		}
		info.Size, _ = strconv.ParseInt(asString(vals[1]), 10, 64)
		info.ContentType = asString(vals[2])
		if raw := asString(vals[3]); raw != "" {
			_ = json.Unmarshal([]byte(raw), &info.Metadata)
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	res, err := s.client.HGet(ctx, s.objKey(key), fieldPayload).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return res, nil
}

func (s *RedisStore) Put(ctx context.Context, obj Object) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	meta := ""
	if len(obj.Metadata) > 0 {
		b, err := json.Marshal(obj.Metadata)
		if err != nil {
			return fmt.Errorf("redis put: marshal metadata: %w", err)
		}
		meta = string(b)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.objKey(obj.Key),
			fieldPayload, obj.Payload,
			fieldContentType, obj.ContentType,
			fieldCreatedAt, strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
			fieldSize, strconv.Itoa(len(obj.Payload)),
			fieldMeta, meta,
		)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: obj.Key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	dels := make([]*redis.IntCmd, len(keys))
	members := make([]any, len(keys))
	for i, k := range keys {
		dels[i] = pipe.Del(ctx, s.objKey(k))
		members[i] = k
	}
	pipe.ZRem(ctx, s.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis delete failed: %w", err)
	}

	n := 0
	for _, d := range dels {
		n += int(d.Val())
	}
	return n, nil
}

// Ping checks if Redis connection is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return s.client.Ping(ctx).Err()
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
