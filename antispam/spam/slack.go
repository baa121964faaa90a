package spam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/forumguard/spamguard/antispam/community"
)

type Notifier interface {
	SendReport(ctx context.Context, spammer, reporter *community.User, summary *ReportSummary) error
	SendResolve(ctx context.Context, spammer, moderator *community.User, summary *ResolveSummary) error
}

type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendReport(ctx context.Context, spammer, reporter *community.User, summary *ReportSummary) error {
	msg := "⚠️ Spammer Reported ⚠️\n"
	msg += fmt.Sprintf("`%s` (id %d) reported by `%s` (id %d)\n", spammer.Username, spammer.ID, reporter.Username, reporter.ID)
	msg += fmt.Sprintf("Reported items: %d\n", len(summary.Reported))
	if summary.Comment != "" {
		msg += fmt.Sprintf("Comment: ```%s```\n", summary.Comment)
	}
	if summary.Disabled {
		msg += "Account: disabled\n"
	}
	return n.sendSlackMsg(ctx, msg)
}

func (n *SlackNotifier) SendResolve(ctx context.Context, spammer, moderator *community.User, summary *ResolveSummary) error {
	msg := "✅ Spam Reports Resolved ✅\n"
	msg += fmt.Sprintf("`%s` (id %d) cleared by `%s` (id %d)\n", spammer.Username, spammer.ID, moderator.Username, moderator.ID)
	msg += fmt.Sprintf("Resolved items: %d / Approved workflows: %d\n", len(summary.Resolved), summary.Approved)
	if len(summary.FailedWorkflows) > 0 {
		msg += fmt.Sprintf("Failed workflows: `%v`\n", summary.FailedWorkflows)
	}
	return n.sendSlackMsg(ctx, msg)
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// slack answers with a short plain-text status, "ok" on success
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("reading slack webhook response (status=%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || string(respBody) != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d body=%q", resp.StatusCode, respBody)
	}
	return nil
}
