package cache

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// KV is the narrow slice of Redis commands the Cache's write-through
// layer needs. Declaring it as an interface (rather than depending on
// *redis.Client directly) lets tests exercise the sync and eviction paths
// against an in-memory fake instead of a live Redis instance, the same
// seam the teacher draws around exchange.Client with its dry-run branch.
type KV interface {
	HSet(ctx context.Context, key string, values ...any) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// RedisKV adapts a *redis.Client to the KV interface.
type RedisKV struct {
	Client *redis.Client
}

// NewRedisKV wraps an existing go-redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{Client: client}
}

func (r *RedisKV) HSet(ctx context.Context, key string, values ...any) error {
	return r.Client.HSet(ctx, key, values...).Err()
}

func (r *RedisKV) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := r.Client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	return r.Client.Del(ctx, keys...).Err()
}

func (r *RedisKV) SAdd(ctx context.Context, key string, members ...any) error {
	return r.Client.SAdd(ctx, key, members...).Err()
}

func (r *RedisKV) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.Client.SMembers(ctx, key).Result()
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.Client.Set(ctx, key, value, 0).Err()
}
