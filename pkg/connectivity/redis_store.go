package connectivity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists the status map as one JSON value in Redis,
// suitable when several dashboard instances share connectivity state.
type RedisStore struct {
	client *redis.Client
	key    string
	mu     sync.Mutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix (default "omnichat:").
	Prefix string
}

// NewRedisStore creates a Redis-backed status store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisStore(client, cfg.Prefix), nil
}

// NewRedisStoreFromClient creates a store from an existing client.
// Useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return newRedisStore(client, prefix)
}

func newRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "omnichat:"
	}
	return &RedisStore{
		client: client,
		key:    prefix + "statuses",
	}
}

// Save replaces the persisted map.
func (s *RedisStore) Save(ctx context.Context, statuses map[string]Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	data, err := json.Marshal(statuses)
	if err != nil {
		return fmt.Errorf("marshal statuses: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("write statuses: %w", err)
	}
	return nil
}

// Load restores the persisted map. A missing key yields an empty map.
func (s *RedisStore) Load(ctx context.Context) (map[string]Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]Status{}, nil
		}
		return nil, fmt.Errorf("read statuses: %w", err)
	}

	statuses := make(map[string]Status)
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("parse statuses: %w", err)
	}
	return statuses, nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
