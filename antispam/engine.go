package antispam

import (
	"context"
	"log/slog"

	"github.com/forumguard/spamguard/antispam/cachestore"
	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/firstpost"
	"github.com/forumguard/spamguard/antispam/governor"
	"github.com/forumguard/spamguard/antispam/moderation"
	"github.com/forumguard/spamguard/antispam/spam"
	"github.com/forumguard/spamguard/antispam/throttle"

	"github.com/puzpuzpuz/xsync/v3"
)

// Everything the policy layer needs from the content platform. Implemented by platform.Client and platform.MockPlatform.
type Platform interface {
	community.UserDirectory
	community.GroupDirectory
	community.StatusLevels
	content.Enumerator
	moderation.Bridge
}

type EngineConfig struct {
	Platform Platform
	// Throttle cache constructor. Defaults to in-process caches.
	ThrottleFactory throttle.Factory
	// Optional cache for reputation lookups on the admission path.
	PointsCache cachestore.PointsCache
	// Runtime properties for the spam workflow. Defaults to in-process properties.
	Properties spam.Properties
	Notifier   spam.Notifier
	// Configuration for gates created on first use. Defaults to governor.DefaultConfig.
	GateDefaults *governor.Config
	Logger       *slog.Logger
}

// Wires admission gates, the first post gate, and the spam workflow over one platform.
//
// Admission gates are created per scope on first use (with default configuration) or by ConfigureScope.
type Engine struct {
	Logger    *slog.Logger
	Platform  Platform
	Throttle  *throttle.Registry
	Spam      *spam.Manager
	FirstPost *firstpost.Gate
	// Reputation lookups for admission checks; possibly cached. The spam workflow always reads through to the platform.
	Levels community.StatusLevels

	gateDefaults *governor.Config
	gates        *xsync.MapOf[string, *governor.Gate]
}

func NewEngine(config EngineConfig) *Engine {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	factory := config.ThrottleFactory
	if factory == nil {
		factory = throttle.MemFactory(nil)
	}

	p := config.Platform
	var levels community.StatusLevels = p
	if config.PointsCache != nil {
		levels = community.NewCachedStatusLevels(p, config.PointsCache, logger)
	}

	mgr := spam.NewManager(p, p, p, p, config.Properties, logger)
	mgr.Notifier = config.Notifier

	return &Engine{
		Logger:    logger,
		Platform:  p,
		Throttle:  throttle.NewRegistry(factory, logger),
		Spam:      mgr,
		FirstPost: firstpost.NewGate(mgr, p, logger),
		Levels:    levels,

		gateDefaults: config.GateDefaults,
		gates:        xsync.NewMapOf[string, *governor.Gate](),
	}
}

// Returns the admission gate for the scope, creating one with the default configuration if needed.
func (eng *Engine) Gate(ctx context.Context, scope throttle.Scope) *governor.Gate {
	g, _ := eng.gates.LoadOrCompute(scope.Name(), func() *governor.Gate {
		g := governor.NewGate(ctx, scope, eng.Throttle, eng.Levels, eng.Platform, eng.Logger)
		if eng.gateDefaults != nil {
			if err := g.Configure(ctx, *eng.gateDefaults); err != nil {
				eng.Logger.Warn("default group whitelist rejected, applying defaults without it", "scope", scope.Name(), "err", err)
				cfg := *eng.gateDefaults
				cfg.Groups = nil
				_ = g.Configure(ctx, cfg)
			}
		}
		return g
	})
	return g
}

func (eng *Engine) LookupGate(scope throttle.Scope) (*governor.Gate, bool) {
	return eng.gates.Load(scope.Name())
}

// Applies a full configuration to the scope's gate. Reconfiguring always starts a fresh throttle window.
func (eng *Engine) ConfigureScope(ctx context.Context, scope throttle.Scope, cfg governor.Config) (*governor.Gate, error) {
	g := eng.Gate(ctx, scope)
	if err := g.Configure(ctx, cfg); err != nil {
		return g, err
	}
	eng.Logger.Info("configured admission scope", "scope", scope.Name(), "interval", g.Config().PostIntervalSeconds)
	return g, nil
}

// Removes the scope's gate and throttle cache.
func (eng *Engine) RemoveScope(ctx context.Context, scope throttle.Scope) error {
	eng.gates.Delete(scope.Name())
	return eng.Throttle.Remove(ctx, scope)
}

// Pre-submission hook.
func (eng *Engine) CheckAdmission(ctx context.Context, scope throttle.Scope, item content.Item) governor.Decision {
	return eng.Gate(ctx, scope).Check(ctx, item)
}

// Post-submission hook, run after an item is created or edited.
func (eng *Engine) AfterSave(ctx context.Context, item content.Item) firstpost.Outcome {
	return eng.FirstPost.AfterSave(ctx, item)
}

// Drops cached reputation for the user, if reputation lookups are cached.
func (eng *Engine) PurgeUserCaches(ctx context.Context, u *community.User) {
	cached, ok := eng.Levels.(*community.CachedStatusLevels)
	if !ok {
		return
	}
	if err := cached.Purge(ctx, u); err != nil {
		eng.Logger.Warn("failed to purge points cache", "user", u.ID, "err", err)
	}
}
