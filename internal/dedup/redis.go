package dedup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the known URLs in a Redis SET.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore parses redisURL and verifies connectivity.
func NewRedisStore(ctx context.Context, redisURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) ([]string, error) {
	exists, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis EXISTS %s: %w", s.key, err)
	}
	if exists == 0 {
		return nil, ErrStoreMissing
	}

	urls, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMEMBERS %s: %w", s.key, err)
	}
	return urls, nil
}

func (s *RedisStore) Append(ctx context.Context, url string) error {
	if err := s.client.SAdd(ctx, s.key, url).Err(); err != nil {
		return fmt.Errorf("redis SADD %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
