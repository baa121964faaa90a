package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemPointsCache struct {
	Data *expirable.LRU[int64, int64]
}

var _ PointsCache = (*MemPointsCache)(nil)

func NewMemPointsCache(capacity int, ttl time.Duration) *MemPointsCache {
	return &MemPointsCache{
		Data: expirable.NewLRU[int64, int64](capacity, nil, ttl),
	}
}

func (s *MemPointsCache) Get(ctx context.Context, userID int64) (int64, bool, error) {
	v, ok := s.Data.Get(userID)
	return v, ok, nil
}

func (s *MemPointsCache) Set(ctx context.Context, userID, points int64) error {
	s.Data.Add(userID, points)
	return nil
}

func (s *MemPointsCache) Purge(ctx context.Context, userID int64) error {
	s.Data.Remove(userID)
	return nil
}
