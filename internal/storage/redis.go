package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Namespace is prepended to every key, e.g. "classroom-1:".
	Namespace string
}

// RedisStore keeps values as plain Redis strings.
type RedisStore struct {
	Client    *redis.Client
	namespace string
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(opts *RedisOptions) (*RedisStore, error) {
	if opts == nil || opts.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStore(client, opts.Namespace), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{Client: client, namespace: namespace}
}

func (r *RedisStore) key(k string) string {
	return r.namespace + k
}

// Get implements Store.Get.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.Client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s from redis: %w", key, err)
	}
	return value, nil
}

// Set implements Store.Set.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.Client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write key %s to redis: %w", key, err)
	}
	return nil
}

// Delete implements Store.Delete.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.Client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s from redis: %w", key, err)
	}
	return nil
}

// Close implements Store.Close.
func (r *RedisStore) Close() error {
	return r.Client.Close()
}
