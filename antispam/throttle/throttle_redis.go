package throttle

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisThrottlePrefix = "throttle/"

// Redis-backed cache, shared by every process pointed at the same redis.
//
// Each entry is a key written with SET NX and a TTL of exactly one window, so expiry is exact rather than swept.
type RedisCache struct {
	Client *redis.Client
	Name   string
	Window time.Duration
}

var _ Cache = (*RedisCache)(nil)

func RedisFactory(rdb *redis.Client) Factory {
	return func(name string, window time.Duration) Cache {
		return &RedisCache{
			Client: rdb,
			Name:   name,
			Window: window,
		}
	}
}

func (c *RedisCache) key(userID int64) string {
	return redisThrottlePrefix + c.Name + "/" + strconv.FormatInt(userID, 10)
}

func (c *RedisCache) RecordSeen(ctx context.Context, userID int64) (bool, error) {
	created, err := c.Client.SetNX(ctx, c.key(userID), time.Now().Unix(), c.Window).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}

func (c *RedisCache) Purge(ctx context.Context) error {
	var keys []string
	iter := c.Client.Scan(ctx, 0, redisThrottlePrefix+c.Name+"/*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}
