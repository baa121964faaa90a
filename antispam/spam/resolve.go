package spam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/moderation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ResolveSummary struct {
	SpammerID   int64         `json:"spammer_id"`
	ModeratorID int64         `json:"moderator_id"`
	Resolved    []content.Ref `json:"resolved"`
	Approved    int           `json:"approved"`
	// Workflow IDs whose approval failed. These are logged and skipped.
	FailedWorkflows []int64 `json:"failed_workflows,omitempty"`
	Enabled         bool    `json:"enabled"`
}

// Clears a user of spam accusations: resolves reports and approves pending abuse workflows on all of the user's hidden content, then re-enables the account.
//
// Covered: documents pending approval, abuse-hidden forum messages (plus, once each, the threads behind them which the user started), abuse-hidden posts of personal blogs, and bookmarked external URLs.
func (m *Manager) ResolveContentAsSpam(ctx context.Context, spammer, moderator *community.User) (*ResolveSummary, error) {
	ctx, span := tracer.Start(ctx, "ResolveContentAsSpam", trace.WithAttributes(
		attribute.Int64("spammer", spammer.ID),
		attribute.Int64("moderator", moderator.ID),
	))
	defer span.End()
	start := time.Now()
	defer func() {
		batchDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	}()

	logger := m.Logger.With("spammer", spammer.ID, "moderator", moderator.ID)
	logger.Info("resolving spam reports on all content of user", "username", spammer.Username)

	summary := &ResolveSummary{
		SpammerID:   spammer.ID,
		ModeratorID: moderator.ID,
	}

	docs, err := m.Content.UserDocuments(ctx, spammer, content.StatusPendingApproval)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	for _, d := range docs {
		if err := m.resolveItem(ctx, d, moderator, summary); err != nil {
			return nil, err
		}
	}

	msgs, err := m.Content.UserMessages(ctx, spammer, content.StatusAbuseHidden)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	threads := make(map[int64]bool)
	for _, msg := range msgs {
		if !threads[msg.ThreadID] {
			threads[msg.ThreadID] = true
			if err := m.resolveThread(ctx, msg.ThreadID, spammer, moderator, summary); err != nil {
				return nil, err
			}
		}
		if err := m.resolveItem(ctx, msg, moderator, summary); err != nil {
			return nil, err
		}
	}

	posts, err := m.userBlogPosts(ctx, spammer, content.StatusAbuseHidden)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if err := m.resolveItem(ctx, p, moderator, summary); err != nil {
			return nil, err
		}
	}

	urls, err := m.Content.UserBookmarkedURLs(ctx, spammer)
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}
	for _, u := range urls {
		if err := m.resolveItem(ctx, u, moderator, summary); err != nil {
			return nil, err
		}
	}

	if err := m.Users.EnableUser(ctx, spammer); err != nil {
		return summary, fmt.Errorf("enabling user %d: %w", spammer.ID, err)
	}
	summary.Enabled = true
	spammerActions.WithLabelValues("resolve").Inc()
	span.SetAttributes(
		attribute.Int("resolved", len(summary.Resolved)),
		attribute.Int("approved", summary.Approved),
		attribute.Int("failed", len(summary.FailedWorkflows)),
	)
	logger.Info("resolved spam reports", "items", len(summary.Resolved), "approved", summary.Approved, "failed", len(summary.FailedWorkflows))

	if m.Notifier != nil {
		if err := m.Notifier.SendResolve(ctx, spammer, moderator, summary); err != nil {
			logger.Error("failed to send resolve notification", "err", err)
		}
	}
	return summary, nil
}

// Resolves the thread only when the spammer started it; replies in other users' threads leave the thread alone.
func (m *Manager) resolveThread(ctx context.Context, threadID int64, spammer, moderator *community.User, summary *ResolveSummary) error {
	thread, err := m.Content.GetThread(ctx, threadID)
	if errors.Is(err, content.ErrNotFound) {
		m.Logger.Warn("thread of hidden message not found", "thread", threadID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading thread %d: %w", threadID, err)
	}
	if a := thread.Author(); a == nil || a.ID != spammer.ID {
		return nil
	}
	return m.resolveItem(ctx, thread, moderator, summary)
}

// Resolves all reports against the item and approves its pending abuse workflows. A failed approval is logged and skipped.
func (m *Manager) resolveItem(ctx context.Context, item content.Item, moderator *community.User, summary *ResolveSummary) error {
	ref := item.Ref()
	logger := m.Logger.With("ref", ref.String(), "moderator", moderator.ID)
	logger.Debug("resolving spam report")

	if err := m.Approvals.ResolveAbuseReports(ctx, ref, moderator); err != nil {
		return fmt.Errorf("resolving reports on %s: %w", ref, err)
	}

	workflows, err := m.Approvals.WorkflowEntries(ctx, ref, moderation.CategoryAbuse)
	if err != nil {
		return fmt.Errorf("listing workflows of %s: %w", ref, err)
	}
	for _, wf := range workflows {
		if wf.State != moderation.StatePending {
			continue
		}
		if err := m.Approvals.Approve(ctx, wf.WorkflowID, ref, moderator, moderation.NotSpamComment); err != nil {
			approvalFailures.Inc()
			logger.Error("cannot approve workflow", "workflow", wf.WorkflowID, "err", err)
			summary.FailedWorkflows = append(summary.FailedWorkflows, wf.WorkflowID)
			continue
		}
		summary.Approved++
	}

	summary.Resolved = append(summary.Resolved, ref)
	itemsResolved.WithLabelValues(string(ref.Kind)).Inc()
	return nil
}

// Looks up the user by username, resolves their content, and re-enables the account.
func (m *Manager) ResolveSpammerByUsername(ctx context.Context, username string, moderator *community.User) (*ResolveSummary, error) {
	spammer, err := m.Users.LookupUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", username, err)
	}
	return m.ResolveContentAsSpam(ctx, spammer, moderator)
}
