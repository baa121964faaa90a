package throttle

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Named throttle caches, one per scope. Reconfiguring a scope replaces its cache; caches never stack.
type Registry struct {
	Logger *slog.Logger

	caches  *xsync.MapOf[string, Cache]
	factory Factory
}

func NewRegistry(factory Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		Logger:  logger.With("component", "throttle"),
		caches:  xsync.NewMapOf[string, Cache](),
		factory: factory,
	}
}

// Installs a fresh, empty cache for the scope. Any cache previously registered under the same name is purged first; caches of one scope may share backing keys.
func (r *Registry) Replace(ctx context.Context, scope Scope, window time.Duration) Cache {
	name := scope.Name()
	if prev, ok := r.caches.Load(name); ok {
		throttleCachesReplaced.Inc()
		if err := prev.Purge(ctx); err != nil {
			r.Logger.Warn("failed to purge replaced throttle cache", "scope", name, "err", err)
		}
	}

	fresh := r.factory(name, window)
	r.caches.Store(name, fresh)
	r.Logger.Debug("installed throttle cache", "scope", name, "window", window)
	return fresh
}

// Returns the cache registered for the scope, creating one with the given window if none exists.
func (r *Registry) Ensure(scope Scope, window time.Duration) Cache {
	name := scope.Name()
	c, _ := r.caches.LoadOrCompute(name, func() Cache {
		return r.factory(name, window)
	})
	return c
}

func (r *Registry) Get(scope Scope) (Cache, bool) {
	return r.caches.Load(scope.Name())
}

func (r *Registry) Remove(ctx context.Context, scope Scope) error {
	c, ok := r.caches.LoadAndDelete(scope.Name())
	if !ok {
		return nil
	}
	return c.Purge(ctx)
}

func (r *Registry) Len() int {
	return r.caches.Size()
}
