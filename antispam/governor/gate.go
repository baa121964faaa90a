package governor

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/throttle"

	"golang.org/x/text/cases"
)

type Reason string

const (
	ReasonDocumentEdit   Reason = "document_edit"
	ReasonAnonymous      Reason = "anonymous"
	ReasonEmailWhitelist Reason = "email_whitelist"
	ReasonPoints         Reason = "points"
	ReasonGroupWhitelist Reason = "group_whitelist"
	ReasonFirstInWindow  Reason = "first_in_window"
	ReasonThrottleError  Reason = "throttle_error"
	ReasonThrottled      Reason = "throttled"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
	// Formatted rejection message; empty when allowed.
	Message string       `json:"message,omitempty"`
	Item    content.Item `json:"-"`
}

func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &RejectedError{Message: d.Message, Item: d.Item}
}

// Admission gate for a single scope.
type Gate struct {
	Logger   *slog.Logger
	Levels   community.StatusLevels
	Groups   community.GroupDirectory
	Registry *throttle.Registry

	scope throttle.Scope
	mu    sync.RWMutex
	cfg   Config
}

// Creates a gate with the default configuration and installs a fresh throttle cache for the scope.
func NewGate(ctx context.Context, scope throttle.Scope, registry *throttle.Registry, levels community.StatusLevels, groups community.GroupDirectory, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		Logger:   logger.With("component", "governor", "scope", scope.Name()),
		Levels:   levels,
		Groups:   groups,
		Registry: registry,
		scope:    scope,
		cfg:      DefaultConfig(),
	}
	registry.Replace(ctx, scope, g.window())
	return g
}

func (g *Gate) Scope() throttle.Scope {
	return g.scope
}

func (g *Gate) Config() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cfg := g.cfg
	cfg.EmailDomains = slices.Clone(g.cfg.EmailDomains)
	cfg.Groups = slices.Clone(g.cfg.Groups)
	return cfg
}

func (g *Gate) window() time.Duration {
	return time.Duration(g.cfg.PostIntervalSeconds) * time.Second
}

// Applies a full configuration. If any whitelist group fails to resolve, the group whitelist is cleared, nothing else changes, and an *InvalidGroupError is returned.
func (g *Gate) Configure(ctx context.Context, cfg Config) error {
	if err := g.validateGroups(ctx, cfg.Groups); err != nil {
		g.mu.Lock()
		g.cfg.Groups = nil
		g.mu.Unlock()
		return err
	}

	cfg.PostIntervalSeconds = normalizeInterval(cfg.PostIntervalSeconds)
	if cfg.RejectionMessage == "" {
		cfg.RejectionMessage = DefaultRejectionMessage
	}
	cfg.EmailDomains = slices.Clone(cfg.EmailDomains)
	cfg.Groups = slices.Clone(cfg.Groups)

	g.mu.Lock()
	g.cfg = cfg
	window := g.window()
	g.mu.Unlock()

	g.Registry.Replace(ctx, g.scope, window)
	return nil
}

// Values below one second reset to the default. Always reinitializes the throttle cache.
func (g *Gate) SetPostInterval(ctx context.Context, seconds int) {
	g.mu.Lock()
	g.cfg.PostIntervalSeconds = normalizeInterval(seconds)
	window := g.window()
	g.mu.Unlock()

	g.Registry.Replace(ctx, g.scope, window)
}

func (g *Gate) SetPointsThreshold(points int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.PointsThreshold = points
}

func (g *Gate) SetRejectionMessage(msg string) {
	if msg == "" {
		msg = DefaultRejectionMessage
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.RejectionMessage = msg
}

func (g *Gate) SetEmailDomainWhitelist(raw string) {
	domains := ParseDomainWhitelist(raw)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.EmailDomains = domains
}

// Parses and validates a whitespace-separated list of group IDs. On any failure the whitelist is cleared and the error returned.
func (g *Gate) SetGroupWhitelist(ctx context.Context, raw string) error {
	ids, err := ParseGroupWhitelist(raw)
	if err == nil {
		err = g.validateGroups(ctx, ids)
	}
	if err != nil {
		ids = nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.Groups = ids
	return err
}

func (g *Gate) validateGroups(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if _, err := g.Groups.LookupGroup(ctx, id); err != nil {
			return &InvalidGroupError{ID: id, Err: err}
		}
	}
	return nil
}

// Decides whether the item may be created. Collaborator failures degrade to "rule does not match"; only a throttle hit rejects.
func (g *Gate) Check(ctx context.Context, item content.Item) Decision {
	d := g.check(ctx, item)
	d.Item = item
	admissionDecisions.WithLabelValues(string(d.Reason), boolLabel(d.Allowed)).Inc()
	return d
}

func (g *Gate) check(ctx context.Context, item content.Item) Decision {
	if item == nil {
		return Decision{Allowed: true, Reason: ReasonAnonymous}
	}
	if doc, ok := item.(*content.Document); ok && !doc.IsInitialVersion() {
		return Decision{Allowed: true, Reason: ReasonDocumentEdit}
	}

	author := item.Author()
	if !author.IsRegistered() {
		return Decision{Allowed: true, Reason: ReasonAnonymous}
	}

	cfg := g.Config()
	logger := g.Logger.With("user", author.ID, "ref", item.Ref().String())

	if matchesDomain(author.Email, cfg.EmailDomains) {
		return Decision{Allowed: true, Reason: ReasonEmailWhitelist}
	}

	if g.Levels != nil {
		points, err := g.Levels.PointLevel(ctx, author)
		if err != nil {
			admissionLookupErrors.WithLabelValues("points").Inc()
			logger.Warn("failed to fetch status level points", "err", err)
		} else if points > cfg.PointsThreshold {
			return Decision{Allowed: true, Reason: ReasonPoints}
		}
	}

	for _, gid := range cfg.Groups {
		member, err := g.Groups.IsMember(ctx, gid, author)
		if err != nil {
			if errors.Is(err, community.ErrGroupNotFound) {
				logger.Warn("whitelisted group no longer exists", "group", gid)
			} else {
				logger.Warn("failed to check group membership", "group", gid, "err", err)
			}
			admissionLookupErrors.WithLabelValues("group").Inc()
			continue
		}
		if member {
			return Decision{Allowed: true, Reason: ReasonGroupWhitelist}
		}
	}

	window := time.Duration(cfg.PostIntervalSeconds) * time.Second
	cache := g.Registry.Ensure(g.scope, window)
	seen, err := cache.RecordSeen(ctx, author.ID)
	if err != nil {
		admissionLookupErrors.WithLabelValues("throttle").Inc()
		logger.Error("throttle cache unavailable, allowing submission", "err", err)
		return Decision{Allowed: true, Reason: ReasonThrottleError}
	}
	if !seen {
		return Decision{Allowed: true, Reason: ReasonFirstInWindow}
	}

	logger.Info("throttled submission", "interval", cfg.PostIntervalSeconds)
	return Decision{
		Allowed: false,
		Reason:  ReasonThrottled,
		Message: FormatMessage(cfg.RejectionMessage, cfg.PostIntervalSeconds),
	}
}

func matchesDomain(email string, domains []string) bool {
	if email == "" {
		return false
	}
	// Casers are stateful; one per call.
	fold := cases.Fold()
	email = fold.String(email)
	for _, d := range domains {
		if strings.HasSuffix(email, fold.String(d)) {
			return true
		}
	}
	return false
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
