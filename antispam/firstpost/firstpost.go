// Post-save hook which holds a user's first piece of content for moderation.
package firstpost

import (
	"context"
	"log/slog"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/moderation"
)

// Implemented by spam.Manager.
type ContentChecker interface {
	// Whether the author has published content other than excluded.
	HasSomeContent(ctx context.Context, author *community.User, excluded content.Item) (bool, error)
}

type Outcome string

const (
	OutcomeSkipped          Outcome = "skipped"
	OutcomeNotModeratable   Outcome = "not_moderatable"
	OutcomeNotFirst         Outcome = "not_first"
	OutcomeModerated        Outcome = "moderated"
	OutcomeModerationFailed Outcome = "moderation_failed"
)

type Gate struct {
	Logger   *slog.Logger
	Checker  ContentChecker
	Approval moderation.Bridge
	// Defaults to content.Kind.Moderatable.
	Moderatable func(content.Kind) bool
}

func NewGate(checker ContentChecker, approval moderation.Bridge, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		Logger:      logger.With("component", "firstpost"),
		Checker:     checker,
		Approval:    approval,
		Moderatable: content.Kind.Moderatable,
	}
}

// Runs after an item was created or edited. Never blocks the item; failures are logged and reported through the Outcome only.
func (g *Gate) AfterSave(ctx context.Context, item content.Item) Outcome {
	out := g.afterSave(ctx, item)
	firstPostOutcomes.WithLabelValues(string(out)).Inc()
	return out
}

func (g *Gate) afterSave(ctx context.Context, item content.Item) Outcome {
	if item == nil {
		return OutcomeSkipped
	}
	ref := item.Ref()
	if !g.Moderatable(ref.Kind) {
		return OutcomeNotModeratable
	}

	author := item.Author()
	if !author.IsRegistered() {
		return OutcomeSkipped
	}
	logger := g.Logger.With("user", author.ID, "ref", ref.String())

	hasContent, err := g.Checker.HasSomeContent(ctx, author, item)
	if err != nil {
		logger.Error("failed to check for existing content", "err", err)
		return OutcomeSkipped
	}
	if hasContent {
		return OutcomeNotFirst
	}

	if err := g.Approval.ForceModeration(ctx, item); err != nil {
		logger.Warn("failed to force first post into moderation", "err", err)
		return OutcomeModerationFailed
	}

	held, err := g.Approval.InModeration(ctx, ref)
	if err != nil {
		logger.Warn("could not verify moderation state of first post", "err", err)
		return OutcomeModerationFailed
	}
	if !held {
		logger.Warn("first post not in moderation after forcing it", "subject", content.Subject(item))
		return OutcomeModerationFailed
	}
	logger.Info("first post held for moderation", "subject", content.Subject(item))
	return OutcomeModerated
}
