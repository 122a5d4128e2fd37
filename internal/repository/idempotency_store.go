package repository

import (
	"context"
	"fmt"
	"time"

	domainrepo "SignalFleet/internal/domain/repository"
	"SignalFleet/pkg/cache"
)

var _ domainrepo.IdempotencyStore = (*CacheIdempotencyStore)(nil)

// CacheIdempotencyStore marks ids with SETNX semantics through cache.TryLock.
type CacheIdempotencyStore struct {
	cache  cache.Service
	prefix string
	ttl    time.Duration
}

func NewCacheIdempotencyStore(c cache.Service, prefix string, ttl time.Duration) *CacheIdempotencyStore {
	return &CacheIdempotencyStore{cache: c, prefix: prefix, ttl: ttl}
}

func (s *CacheIdempotencyStore) MarkSeen(ctx context.Context, id string) (bool, error) {
	first, err := s.cache.TryLock(ctx, cache.GenerateKey(s.prefix, id), s.ttl)
	if err != nil {
		return false, fmt.Errorf("mark %s seen: %w", id, err)
	}
	return first, nil
}

func (s *CacheIdempotencyStore) Seen(ctx context.Context, id string) (bool, error) {
	ok, err := s.cache.Exists(ctx, cache.GenerateKey(s.prefix, id))
	if err != nil {
		return false, fmt.Errorf("check %s seen: %w", id, err)
	}
	return ok, nil
}
