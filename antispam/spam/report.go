package spam

import (
	"context"
	"fmt"
	"time"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/moderation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ReportSummary struct {
	SpammerID  int64         `json:"spammer_id"`
	ReporterID int64         `json:"reporter_id"`
	Comment    string        `json:"comment"`
	ReportDate time.Time     `json:"report_date"`
	Reported   []content.Ref `json:"reported"`
	Disabled   bool          `json:"disabled"`
}

// Files one spam report per item of the spammer's content, then disables the account.
//
// Covered: published documents, all forum messages, every post of the spammer's personal blogs, and bookmarked external URLs. Threads are not reported; their messages are. Every report shares one timestamp and comment. An item reachable twice is reported once.
func (m *Manager) ReportSpammersContent(ctx context.Context, spammer, reporter *community.User, comment string) (*ReportSummary, error) {
	ctx, span := tracer.Start(ctx, "ReportSpammersContent", trace.WithAttributes(
		attribute.Int64("spammer", spammer.ID),
		attribute.Int64("reporter", reporter.ID),
	))
	defer span.End()
	start := time.Now()
	defer func() {
		batchDuration.WithLabelValues("report").Observe(time.Since(start).Seconds())
	}()

	logger := m.Logger.With("spammer", spammer.ID, "reporter", reporter.ID)
	logger.Info("reporting all content of spammer", "username", spammer.Username)

	summary := &ReportSummary{
		SpammerID:  spammer.ID,
		ReporterID: reporter.ID,
		Comment:    comment,
		ReportDate: m.now(),
	}
	seen := make(map[content.Ref]bool)
	report := func(item content.Item) error {
		ref := item.Ref()
		if seen[ref] {
			return nil
		}
		seen[ref] = true
		logger.Debug("reporting spam", "ref", ref.String())
		if err := m.reportItem(ctx, item, reporter, comment, summary.ReportDate); err != nil {
			return err
		}
		summary.Reported = append(summary.Reported, ref)
		return nil
	}

	docs, err := m.Content.UserDocuments(ctx, spammer, content.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	for _, d := range docs {
		if err := report(d); err != nil {
			return nil, err
		}
	}

	msgs, err := m.Content.UserMessages(ctx, spammer)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	for _, msg := range msgs {
		if err := report(msg); err != nil {
			return nil, err
		}
	}

	posts, err := m.userBlogPosts(ctx, spammer)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if err := report(p); err != nil {
			return nil, err
		}
	}

	urls, err := m.Content.UserBookmarkedURLs(ctx, spammer)
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}
	for _, u := range urls {
		if err := report(u); err != nil {
			return nil, err
		}
	}

	if err := m.DisableSpammer(ctx, spammer); err != nil {
		return summary, err
	}
	summary.Disabled = true
	spammerActions.WithLabelValues("report").Inc()
	span.SetAttributes(attribute.Int("reported", len(summary.Reported)))
	logger.Info("reported spammer content", "count", len(summary.Reported))

	if m.Notifier != nil {
		if err := m.Notifier.SendReport(ctx, spammer, reporter, summary); err != nil {
			logger.Error("failed to send report notification", "err", err)
		}
	}
	return summary, nil
}

func (m *Manager) reportItem(ctx context.Context, item content.Item, reporter *community.User, comment string, date time.Time) error {
	ref := item.Ref()
	err := m.Approvals.ReportAbuse(ctx, &moderation.AbuseReport{
		Type:       moderation.AbuseSpam,
		Target:     ref,
		ReporterID: reporter.ID,
		Comment:    comment,
		ReportDate: date,
	})
	if err != nil {
		return fmt.Errorf("reporting %s: %w", ref, err)
	}
	reportsFiled.WithLabelValues(string(ref.Kind)).Inc()
	return nil
}

type ReportSpamResult struct {
	Target content.Ref `json:"target"`
	// Set when the reporter was eligible and the item had an author, meaning all of the author's content was reported and the account disabled.
	Spammer *ReportSummary `json:"spammer,omitempty"`
}

// Reports a single item as spam. If the reporter may mass-report and the item has an author, escalates to ReportSpammersContent for that author.
//
// Ownerless external URLs stop after the single report. Any other item without an author fails with ErrSpammerNotFound (the single report is still filed).
func (m *Manager) ReportSpam(ctx context.Context, target content.Ref, reporter *community.User, comment string) (*ReportSpamResult, error) {
	item, err := m.Content.LoadItem(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := m.reportItem(ctx, item, reporter, comment, m.now()); err != nil {
		return nil, err
	}
	res := &ReportSpamResult{Target: target}
	logger := m.Logger.With("ref", target.String(), "reporter", reporter.ID)

	ok, err := m.CanReportSpammer(ctx, reporter)
	if err != nil {
		return res, err
	}
	if !ok {
		logger.Debug("reporter cannot report spammers, only the single item was reported")
		return res, nil
	}

	spammer := m.GetSpammer(item)
	if spammer == nil {
		if target.Kind == content.KindExternalURL {
			logger.Debug("external URL has no owner")
			return res, nil
		}
		logger.Error("spammer not found for reported content")
		return res, ErrSpammerNotFound
	}

	summary, err := m.ReportSpammersContent(ctx, spammer, reporter, comment)
	if err != nil {
		return res, err
	}
	res.Spammer = summary
	return res, nil
}
