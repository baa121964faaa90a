package spam

import (
	"context"
	"errors"
	"strconv"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

// Minimum reputation points (exclusive) a user needs to mass-report a spammer.
const ReporterMinPointsKey = "spam.reporter.min_points"

const DefaultReporterMinPoints = 0

// Runtime-editable system properties. Values are read on every use, never cached.
type Properties interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type MemProperties struct {
	values *xsync.MapOf[string, string]
}

var _ Properties = (*MemProperties)(nil)

func NewMemProperties() *MemProperties {
	return &MemProperties{values: xsync.NewMapOf[string, string]()}
}

func (p *MemProperties) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := p.values.Load(key)
	return v, ok, nil
}

func (p *MemProperties) Set(ctx context.Context, key, value string) error {
	p.values.Store(key, value)
	return nil
}

var redisPropertiesKey = "spamguard/properties"

// Properties stored in a single redis hash, shared between processes.
type RedisProperties struct {
	Client *redis.Client
}

var _ Properties = (*RedisProperties)(nil)

func (p *RedisProperties) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := p.Client.HGet(ctx, redisPropertiesKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (p *RedisProperties) Set(ctx context.Context, key, value string) error {
	return p.Client.HSet(ctx, redisPropertiesKey, key, value).Err()
}

// Reads an integer property, falling back to def when it is unset. Lookup and parse failures are returned alongside def.
func IntProperty(ctx context.Context, props Properties, key string, def int64) (int64, error) {
	if props == nil {
		return def, nil
	}
	raw, ok, err := props.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, err
	}
	return v, nil
}
