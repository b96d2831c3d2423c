package service

import (
	"context"
	"sync"
	"time"
)

// TemplateCacheStore is a byte-value cache keyed per template. Implementations
// must treat a miss as (nil, false, nil), never as an error.
type TemplateCacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type NoopTemplateCacheStore struct{}

func NewNoopTemplateCacheStore() *NoopTemplateCacheStore {
	return &NoopTemplateCacheStore{}
}

func (s *NoopTemplateCacheStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *NoopTemplateCacheStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (s *NoopTemplateCacheStore) Delete(context.Context, ...string) error {
	return nil
}

type inMemoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

type InMemoryTemplateCacheStore struct {
	mu    sync.RWMutex
	store map[string]inMemoryCacheEntry
}

func NewInMemoryTemplateCacheStore() *InMemoryTemplateCacheStore {
	return &InMemoryTemplateCacheStore{store: make(map[string]inMemoryCacheEntry)}
}

func (s *InMemoryTemplateCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	entry, ok := s.store[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		if current, ok := s.store[key]; ok && now.After(current.expiresAt) {
			delete(s.store, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *InMemoryTemplateCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = inMemoryCacheEntry{value: value, expiresAt: time.Now().UTC().Add(ttl)}
	return nil
}

func (s *InMemoryTemplateCacheStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.store, key)
	}
	return nil
}
