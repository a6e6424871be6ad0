package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arturoeanton/godsplan/internal/port"
)

// NewRedisClient connects and pings the server.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisBackend stores client items as "client:{id}:{key}" with a TTL that is
// refreshed on every write.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend returns a backend; ttl <= 0 keeps items forever.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: "client:",
		ttl:    ttl,
	}
}

// Scope implements port.StorageBackend.
func (b *RedisBackend) Scope(clientID string) port.LocalStorage {
	return &redisScope{backend: b, clientID: clientID}
}

func (b *RedisBackend) key(clientID, key string) string {
	return b.prefix + clientID + ":" + key
}

type redisScope struct {
	backend  *RedisBackend
	clientID string
}

func (s *redisScope) GetItem(ctx context.Context, key string) (string, bool, error) {
	val, err := s.backend.client.Get(ctx, s.backend.key(s.clientID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *redisScope) SetItem(ctx context.Context, key, value string) error {
	ttl := s.backend.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.backend.client.Set(ctx, s.backend.key(s.clientID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

func (s *redisScope) RemoveItem(ctx context.Context, key string) error {
	if err := s.backend.client.Del(ctx, s.backend.key(s.clientID, key)).Err(); err != nil {
		return fmt.Errorf("storage: remove %s: %w", key, err)
	}
	return nil
}
