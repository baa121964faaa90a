package cachestore

import (
	"context"
)

type PointsCache interface {
	// Second return value is false on a cache miss.
	Get(ctx context.Context, userID int64) (int64, bool, error)
	Set(ctx context.Context, userID, points int64) error
	Purge(ctx context.Context, userID int64) error
}
