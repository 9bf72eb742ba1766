package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// KeyValue is the TTL'd string store sessions live in.
// Get and GetDel return ErrNotFound for absent or expired keys.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	GetDel(ctx context.Context, key string) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisKV stores values in Redis.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to url (redis://...) and pings it.
func NewRedisKV(ctx context.Context, url string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisKV{client: client}, nil
}

// NewRedisKVFromClient wraps an existing client.
func NewRedisKVFromClient(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisKV) GetDel(ctx context.Context, key string) (string, error) {
	v, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis getdel %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisKV) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisKV) Close() error { return r.client.Close() }

// MemoryKV is an in-process KeyValue for single-node runs and tests.
// Expired entries are evicted in the background until Close.
type MemoryKV struct {
	cache *ttlcache.Cache[string, string]
	once  sync.Once
}

func NewMemoryKV() *MemoryKV {
	c := ttlcache.New[string, string](
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &MemoryKV{cache: c}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	item := m.cache.Get(key)
	if item == nil {
		return "", ErrNotFound
	}
	return item.Value(), nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.cache.Delete(k)
	}
	return nil
}

func (m *MemoryKV) GetDel(_ context.Context, key string) (string, error) {
	item, ok := m.cache.GetAndDelete(key)
	if !ok || item == nil {
		return "", ErrNotFound
	}
	return item.Value(), nil
}

func (m *MemoryKV) Ping(context.Context) error { return nil }

// Close stops the eviction loop. Further calls are no-ops.
func (m *MemoryKV) Close() error {
	m.once.Do(m.cache.Stop)
	return nil
}
