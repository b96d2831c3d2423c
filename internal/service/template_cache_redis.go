package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisTemplateCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTemplateCacheStore(client redis.UniversalClient, prefix string) *RedisTemplateCacheStore {
	if prefix == "" {
		prefix = "template_cache"
	}
	return &RedisTemplateCacheStore{client: client, prefix: prefix}
}

func (s *RedisTemplateCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, nil
	}
	value, err := s.client.Get(ctx, s.dataKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisTemplateCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.dataKey(key), value, ttl).Err()
}

func (s *RedisTemplateCacheStore) Delete(ctx context.Context, keys ...string) error {
	if s.client == nil || len(keys) == 0 {
		return nil
	}
	dataKeys := make([]string, len(keys))
	for i, key := range keys {
		dataKeys[i] = s.dataKey(key)
	}
	return s.client.Del(ctx, dataKeys...).Err()
}

func (s *RedisTemplateCacheStore) dataKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}
