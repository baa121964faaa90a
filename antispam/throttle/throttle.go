package throttle

import (
	"context"
	"fmt"
	"time"
)

type Cache interface {
	// Inserts an entry for the user if none is present, returning true if one was already present (ie, the user posted within the window).
	RecordSeen(ctx context.Context, userID int64) (bool, error)
	// Drops every entry.
	Purge(ctx context.Context) error
}

// The (content type, container) pair that owns one cache.
type Scope struct {
	ContentType string `json:"content_type"`
	ContainerID int64  `json:"container_id"`
}

func (s Scope) Name() string {
	return fmt.Sprintf("post-limit/%s-%d", s.ContentType, s.ContainerID)
}

func (s Scope) String() string {
	return s.Name()
}

// Constructs an empty cache for the named scope. Entries live at least "window".
type Factory func(name string, window time.Duration) Cache
