package community

import (
	"context"
	"log/slog"

	"github.com/forumguard/spamguard/antispam/cachestore"
)

// Read-through cache in front of a StatusLevels implementation.
//
// Cache failures are logged and fall through to the wrapped directory; they never fail a lookup.
type CachedStatusLevels struct {
	Inner  StatusLevels
	Cache  cachestore.PointsCache
	Logger *slog.Logger
}

var _ StatusLevels = (*CachedStatusLevels)(nil)

func NewCachedStatusLevels(inner StatusLevels, pc cachestore.PointsCache, logger *slog.Logger) *CachedStatusLevels {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStatusLevels{
		Inner:  inner,
		Cache:  pc,
		Logger: logger,
	}
}

func (c *CachedStatusLevels) PointLevel(ctx context.Context, u *User) (int64, error) {
	points, ok, err := c.Cache.Get(ctx, u.ID)
	if err != nil {
		c.Logger.Warn("points cache read failed", "user", u.ID, "err", err)
	} else if ok {
		pointsCacheHits.Inc()
		return points, nil
	}
	pointsCacheMisses.Inc()

	points, err = c.Inner.PointLevel(ctx, u)
	if err != nil {
		return 0, err
	}
	if err := c.Cache.Set(ctx, u.ID, points); err != nil {
		c.Logger.Warn("points cache write failed", "user", u.ID, "err", err)
	}
	return points, nil
}

// Drops any cached point level for the user, eg after a reputation change.
func (c *CachedStatusLevels) Purge(ctx context.Context, u *User) error {
	return c.Cache.Purge(ctx, u.ID)
}
