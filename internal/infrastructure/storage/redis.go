package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const (
	redisObjectPrefix = "lust:obj:"
	redisIndexPrefix  = "lust:idx:"
	redisMetaPrefix   = "lust:meta:"
)

// RedisBackend stores variant payloads as plain keys with a per-bucket
// lex-ordered index set, so prefix deletes and lexicographic listing stay
// cheap.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendFromClient wraps an existing client, used by tests.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func bucketOf(path string) string {
	if i := strings.IndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return path
}

func (b *RedisBackend) Put(ctx context.Context, path string, data []byte) error {
	bucket := bucketOf(path)
	meta := fmt.Sprintf("%d|%d", time.Now().UTC().UnixNano(), len(data))

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, redisObjectPrefix+path, data, 0)
	pipe.ZAdd(ctx, redisIndexPrefix+bucket, redis.Z{Score: 0, Member: path})
	pipe.HSet(ctx, redisMetaPrefix+bucket, path, meta)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing %s: %w", path, err)
	}
	return nil
}

func (b *RedisBackend) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := b.client.Get(ctx, redisObjectPrefix+path).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	return data, nil
}

func (b *RedisBackend) DeletePrefix(ctx context.Context, prefix string) error {
	bucket := bucketOf(prefix)
	index := redisIndexPrefix + bucket

	paths, err := b.client.ZRangeByLex(ctx, index, &redis.ZRangeBy{
		Min: "[" + prefix,
		Max: "[" + prefix + "\xff",
	}).Result()
	if err != nil {
		return fmt.Errorf("indexing %s: %w", prefix, err)
	}
	if len(paths) == 0 {
		return nil
	}

	pipe := b.client.TxPipeline()
	members := make([]any, 0, len(paths))
	fields := make([]string, 0, len(paths))
	for _, path := range paths {
		pipe.Del(ctx, redisObjectPrefix+path)
		members = append(members, path)
		fields = append(fields, path)
	}
	pipe.ZRem(ctx, index, members...)
	pipe.HDel(ctx, redisMetaPrefix+bucket, fields...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting %s: %w", prefix, err)
	}
	return nil
}

func (b *RedisBackend) List(
	ctx context.Context,
	bucket string,
	filter adapter.ListFilter,
	page int,
) ([]adapter.Entry, bool, error) {
	paths, err := b.client.ZRangeByLex(ctx, redisIndexPrefix+bucket, &redis.ZRangeBy{
		Min: "-",
		Max: "+",
	}).Result()
	if err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", bucket, err)
	}
	if len(paths) == 0 {
		return nil, false, nil
	}

	meta, err := b.client.HGetAll(ctx, redisMetaPrefix+bucket).Result()
	if err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", bucket, err)
	}

	entries := make([]adapter.Entry, 0, len(paths))
	for _, path := range paths {
		createdAt, size := parseRedisMeta(meta[path])
		entries = append(entries, adapter.Entry{
			Path:      path,
			Size:      size,
			CreatedAt: createdAt,
		})
	}

	items, more := paginate(entries, filter, page)
	return items, more, nil
}

func parseRedisMeta(meta string) (time.Time, int64) {
	nanos, sizeStr, ok := strings.Cut(meta, "|")
	if !ok {
		return time.Time{}, 0
	}

	ts, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, 0
	}
	size, _ := strconv.ParseInt(sizeStr, 10, 64)
	return time.Unix(0, ts).UTC(), size
}
