package cachestore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type RedisPointsCache struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ PointsCache = (*RedisPointsCache)(nil)

// Wraps an existing redis client. A small local TinyLFU tier sits in front of redis.
func NewRedisPointsCache(rdb *redis.Client, ttl time.Duration) *RedisPointsCache {
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisPointsCache{
		Data: data,
		TTL:  ttl,
	}
}

func redisPointsKey(userID int64) string {
	return "points/" + strconv.FormatInt(userID, 10)
}

func (s *RedisPointsCache) Get(ctx context.Context, userID int64) (int64, bool, error) {
	var val int64
	err := s.Data.Get(ctx, redisPointsKey(userID), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func (s *RedisPointsCache) Set(ctx context.Context, userID, points int64) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisPointsKey(userID),
		Value: points,
		TTL:   s.TTL,
	})
}

func (s *RedisPointsCache) Purge(ctx context.Context, userID int64) error {
	err := s.Data.Delete(ctx, redisPointsKey(userID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
