package throttle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// In-process cache with two-tier expiry.
//
// Entries are swept once per half window, and a sweep only removes entries at least one full window old. An entry is therefore present for between one and one and a half windows; never less than the configured window. Sweeps run inline on the write path, there is no background goroutine.
type MemCache struct {
	entries     *xsync.MapOf[int64, time.Time]
	window      time.Duration
	sweepPeriod time.Duration
	lastSweep   atomic.Int64
	clock       func() time.Time
}

var _ Cache = (*MemCache)(nil)

// If clock is nil, time.Now is used.
func NewMemCache(window time.Duration, clock func() time.Time) *MemCache {
	if clock == nil {
		clock = time.Now
	}
	c := &MemCache{
		entries:     xsync.NewMapOf[int64, time.Time](),
		window:      window,
		sweepPeriod: window / 2,
		clock:       clock,
	}
	c.lastSweep.Store(clock().UnixNano())
	return c
}

func MemFactory(clock func() time.Time) Factory {
	return func(name string, window time.Duration) Cache {
		return NewMemCache(window, clock)
	}
}

func (c *MemCache) RecordSeen(ctx context.Context, userID int64) (bool, error) {
	now := c.clock()
	c.maybeSweep(now)

	seen := false
	c.entries.Compute(userID, func(prev time.Time, loaded bool) (time.Time, bool) {
		if loaded {
			seen = true
			return prev, false
		}
		return now, false
	})
	return seen, nil
}

func (c *MemCache) Purge(ctx context.Context) error {
	c.entries.Clear()
	return nil
}

func (c *MemCache) Len() int {
	return c.entries.Size()
}

func (c *MemCache) maybeSweep(now time.Time) {
	last := c.lastSweep.Load()
	if now.UnixNano()-last < int64(c.sweepPeriod) {
		return
	}
	// only one caller sweeps per period
	if !c.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	c.sweep(now)
}

func (c *MemCache) sweep(now time.Time) int {
	removed := 0
	c.entries.Range(func(userID int64, _ time.Time) bool {
		c.entries.Compute(userID, func(prev time.Time, loaded bool) (time.Time, bool) {
			if !loaded {
				return prev, true
			}
			if now.Sub(prev) >= c.window {
				removed++
				return prev, true
			}
			return prev, false
		})
		return true
	})
	throttleEntriesSwept.Add(float64(removed))
	return removed
}
