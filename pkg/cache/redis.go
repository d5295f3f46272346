package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces agent keys inside a shared Redis database.
const DefaultRedisPrefix = "agent"

// RedisBackend stores tiers in Redis.
//
// Layout:
//
//	{prefix}:tiers         SET of tier names
//	{prefix}:tier:{name}   HASH of key -> encoded snapshot
//
// The registry set makes empty tiers visible; multi-key writes run inside
// MULTI/EXEC so batches and deletions are atomic.
type RedisBackend struct {
	redis  *redis.Client
	prefix string
}

// NewRedisBackend creates a backend using redisClient. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisBackend(redisClient *redis.Client, prefix string) *RedisBackend {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (b *RedisBackend) registryKey() string {
	return b.prefix + ":tiers"
}

func (b *RedisBackend) tierKey(tier string) string {
	return b.prefix + ":tier:" + tier
}

// CreateTier implements Backend.
func (b *RedisBackend) CreateTier(ctx context.Context, tier string) error {
	if err := b.redis.SAdd(ctx, b.registryKey(), tier).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", mapRedisError(err))
	}
	return nil
}

// TierNames implements Backend.
func (b *RedisBackend) TierNames(ctx context.Context) ([]string, error) {
	names, err := b.redis.SMembers(ctx, b.registryKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// HasTier implements Backend.
func (b *RedisBackend) HasTier(ctx context.Context, tier string) (bool, error) {
	ok, err := b.redis.SIsMember(ctx, b.registryKey(), tier).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// DeleteTier implements Backend.
func (b *RedisBackend) DeleteTier(ctx context.Context, tier string) (bool, error) {
	var removed *redis.IntCmd
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, b.registryKey(), tier)
		pipe.Del(ctx, b.tierKey(tier))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis delete tier: %w", err)
	}
	return removed.Val() > 0, nil
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, tier, key string) ([]byte, error) {
	data, err := b.redis.HGet(ctx, b.tierKey(tier), key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return data, nil
}

// PutBatch implements Backend.
func (b *RedisBackend) PutBatch(ctx context.Context, tier string, entries map[string][]byte) error {
	values := make(map[string]interface{}, len(entries))
	for k, v := range entries {
		values[k] = v
	}

	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, b.registryKey(), tier)
		if len(values) > 0 {
			pipe.HSet(ctx, b.tierKey(tier), values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put batch: %w", mapRedisError(err))
	}
	return nil
}

// mapRedisError turns an out-of-memory rejection into ErrQuotaExceeded.
func mapRedisError(err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
