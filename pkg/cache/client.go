package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent, expired or the cache is disabled.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the interface for cache operations.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (int64, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Close() error
}

// SetJSON stores a JSON-serialized value.
func SetJSON(ctx context.Context, c Client, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(ctx, key, string(data), expiration)
}

// GetJSON retrieves and decodes a JSON value.
func GetJSON(ctx context.Context, c Client, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("unmarshal cache value: %w", err)
	}
	return nil
}

// RedisClient is a wrapper around the Redis client.
type RedisClient struct {
	client  *redis.Client
	enabled bool
}

// NewRedisClient creates a new Redis cache client. An empty addr yields a
// disabled client where every Get misses.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client, enabled: true}, nil
}

// Enabled reports whether a redis server is configured.
func (r *RedisClient) Enabled() bool { return r.enabled }

// Get retrieves a value from cache.
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	if !r.enabled {
		return "", ErrCacheMiss
	}

	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

// Set stores a value in cache with expiration.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !r.enabled {
		return nil
	}
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Delete removes keys from cache.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if !r.enabled || len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Exists counts how many of keys exist.
func (r *RedisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	if !r.enabled {
		return 0, nil
	}
	return r.client.Exists(ctx, keys...).Result()
}

// Increment increments a counter in cache.
func (r *RedisClient) Increment(ctx context.Context, key string) (int64, error) {
	if !r.enabled {
		return 0, nil
	}
	return r.client.Incr(ctx, key).Result()
}

// Expire sets an expiration on a key.
func (r *RedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if !r.enabled {
		return nil
	}
	return r.client.Expire(ctx, key, expiration).Err()
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	if !r.enabled {
		return nil
	}
	return r.client.Close()
}

// MemoryCache is an in-process Client used when redis is not configured and in tests.
type MemoryCache struct {
	mu    sync.Mutex
	store map[string]cacheItem
	now   func() time.Time
}

type cacheItem struct {
	value      string
	expiration time.Time
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		store: make(map[string]cacheItem),
		now:   time.Now,
	}
}

// Get retrieves a value from memory cache.
func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.lookup(key)
	if !ok {
		return "", ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value in memory cache. A zero expiration defaults to 24 hours.
func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	var strValue string
	switch v := value.(type) {
	case string:
		strValue = v
	case []byte:
		strValue = string(v)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal cache value: %w", err)
		}
		strValue = string(data)
	}

	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	m.mu.Lock()
	m.store[key] = cacheItem{value: strValue, expiration: m.now().Add(expiration)}
	m.mu.Unlock()
	return nil
}

// Delete removes keys from memory cache.
func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.store, key)
	}
	return nil
}

// Exists counts live keys.
func (m *MemoryCache) Exists(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, key := range keys {
		if _, ok := m.lookup(key); ok {
			count++
		}
	}
	return count, nil
}

// Increment increments a counter in memory cache.
func (m *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	item, ok := m.lookup(key)
	if ok {
		parsed, err := strconv.ParseInt(item.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not an integer", key)
		}
		current = parsed
	} else {
		item.expiration = m.now().Add(24 * time.Hour)
	}

	current++
	item.value = strconv.FormatInt(current, 10)
	m.store[key] = item
	return current, nil
}

// Expire sets an expiration on a key.
func (m *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	item.expiration = m.now().Add(expiration)
	m.store[key] = item
	return nil
}

// Close drops all entries.
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.store = make(map[string]cacheItem)
	m.mu.Unlock()
	return nil
}

// lookup must be called with mu held.
func (m *MemoryCache) lookup(key string) (cacheItem, bool) {
	item, ok := m.store[key]
	if !ok {
		return cacheItem{}, false
	}
	if m.now().After(item.expiration) {
		delete(m.store, key)
		return cacheItem{}, false
	}
	return item, true
}
