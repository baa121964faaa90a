package spam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/moderation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var ErrSpammerNotFound = errors.New("spammer not found for content")

type Manager struct {
	Logger     *slog.Logger
	Content    content.Enumerator
	Approvals  moderation.Bridge
	Users      community.UserDirectory
	Levels     community.StatusLevels
	Properties Properties
	// Optional; receives summaries of mass report and resolve operations.
	Notifier Notifier
	Clock    func() time.Time
}

func NewManager(enum content.Enumerator, approvals moderation.Bridge, users community.UserDirectory, levels community.StatusLevels, props Properties, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if props == nil {
		props = NewMemProperties()
	}
	return &Manager{
		Logger:     logger.With("component", "spam"),
		Content:    enum,
		Approvals:  approvals,
		Users:      users,
		Levels:     levels,
		Properties: props,
		Clock:      time.Now,
	}
}

func (m *Manager) now() time.Time {
	if m.Clock == nil {
		return time.Now()
	}
	return m.Clock()
}

// Whether the user has enough reputation to mass-report another user. The threshold property is read on every call.
func (m *Manager) CanReportSpammer(ctx context.Context, u *community.User) (bool, error) {
	minPoints, err := IntProperty(ctx, m.Properties, ReporterMinPointsKey, DefaultReporterMinPoints)
	if err != nil {
		m.Logger.Warn("invalid reporter min points property, using default", "err", err, "default", minPoints)
	}
	points, err := m.Levels.PointLevel(ctx, u)
	if err != nil {
		return false, fmt.Errorf("fetching points for user %d: %w", u.ID, err)
	}
	m.Logger.Debug("reporter eligibility", "user", u.ID, "points", points, "min_points", minPoints)
	return points > minPoints, nil
}

func (m *Manager) DisableSpammer(ctx context.Context, spammer *community.User) error {
	m.Logger.Info("disabling spammer", "user", spammer.ID, "username", spammer.Username)
	if err := m.Users.DisableUser(ctx, spammer); err != nil {
		return fmt.Errorf("disabling user %d: %w", spammer.ID, err)
	}
	spammerActions.WithLabelValues("disable").Inc()
	return nil
}

// Returns the author of the item, or nil if it has no attributable registered owner (bookmarked external URLs, anonymous posts). Callers must not auto-report on nil.
func (m *Manager) GetSpammer(item content.Item) *community.User {
	if item == nil {
		return nil
	}
	if a := item.Author(); a.IsRegistered() {
		return a
	}
	return nil
}

// Distinct authors of content behind the moderator's pending abuse workflows, ordered by user ID. Entries whose content no longer exists are skipped.
func (m *Manager) GetUnapprovedSpammers(ctx context.Context, moderator *community.User) ([]*community.User, error) {
	ctx, span := tracer.Start(ctx, "GetUnapprovedSpammers")
	defer span.End()

	entries, err := m.Approvals.UnapprovedEntries(ctx, moderator.ID, moderation.CategoryAbuse)
	if err != nil {
		return nil, fmt.Errorf("listing unapproved abuse workflows: %w", err)
	}

	logger := m.Logger.With("moderator", moderator.ID)
	byID := make(map[int64]*community.User)
	for _, wf := range entries {
		item, err := m.Content.LoadItem(ctx, wf.Target)
		if errors.Is(err, content.ErrNotFound) {
			logger.Error("cannot find content for approval workflow", "workflow", wf.WorkflowID, "ref", wf.Target.String())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", wf.Target, err)
		}
		if author := m.GetSpammer(item); author != nil {
			byID[author.ID] = author
		}
	}

	out := make([]*community.User, 0, len(byID))
	for _, u := range byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	span.SetAttributes(attribute.Int("entries", len(entries)), attribute.Int("spammers", len(out)))
	return out, nil
}

// Whether the author has any published content besides excluded. Starting a thread also creates its root message, so excluding a thread excludes that message too.
func (m *Manager) HasSomeContent(ctx context.Context, author *community.User, excluded content.Item) (bool, error) {
	if !author.IsRegistered() {
		return false, nil
	}
	ctx, span := tracer.Start(ctx, "HasSomeContent", trace.WithAttributes(attribute.Int64("user", author.ID)))
	defer span.End()

	skip := make(map[content.Ref]bool)
	if excluded != nil {
		skip[excluded.Ref()] = true
		if t, ok := excluded.(*content.Thread); ok {
			skip[content.Ref{Kind: content.KindMessage, ID: t.RootMessageID}] = true
		}
	}
	other := func(item content.Item) bool {
		return !skip[item.Ref()]
	}

	var found atomic.Bool
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		docs, err := m.Content.UserDocuments(gctx, author, content.StatusPublished)
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		for _, d := range docs {
			if other(d) {
				found.Store(true)
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		msgs, err := m.Content.UserMessages(gctx, author, content.StatusPublished)
		if err != nil {
			return fmt.Errorf("listing messages: %w", err)
		}
		for _, msg := range msgs {
			if other(msg) {
				found.Store(true)
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		blogs, err := m.Content.UserBlogs(gctx, author)
		if err != nil {
			return fmt.Errorf("listing blogs: %w", err)
		}
		for _, b := range blogs {
			if !b.UserBlog {
				continue
			}
			posts, err := m.Content.BlogPosts(gctx, b.ID, content.StatusPublished)
			if err != nil {
				return fmt.Errorf("listing posts of blog %d: %w", b.ID, err)
			}
			for _, p := range posts {
				if a := p.Author(); a != nil && a.ID == author.ID && other(p) {
					found.Store(true)
					return nil
				}
			}
		}
		return nil
	})
	g.Go(func() error {
		urls, err := m.Content.UserBookmarkedURLs(gctx, author)
		if err != nil {
			return fmt.Errorf("listing bookmarks: %w", err)
		}
		for _, u := range urls {
			if u.State == content.StatusPublished && other(u) {
				found.Store(true)
				break
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("found", found.Load()))
	return found.Load(), nil
}

// Posts in the user's personal blogs. Community blogs are skipped.
func (m *Manager) userBlogPosts(ctx context.Context, u *community.User, statuses ...content.Status) ([]*content.BlogPost, error) {
	blogs, err := m.Content.UserBlogs(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("listing blogs: %w", err)
	}
	var out []*content.BlogPost
	for _, b := range blogs {
		if !b.UserBlog {
			continue
		}
		posts, err := m.Content.BlogPosts(ctx, b.ID, statuses...)
		if err != nil {
			return nil, fmt.Errorf("listing posts of blog %d: %w", b.ID, err)
		}
		out = append(out, posts...)
	}
	return out, nil
}
