package moderation

import (
	"context"
	"time"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
)

type AbuseType string

const (
	AbuseSpam AbuseType = "spam"
)

// Reason an approval workflow exists. Only abuse-category workflows are touched by the spam workflow.
type Category string

const (
	CategoryAbuse     Category = "abuse"
	CategoryFirstPost Category = "first_post"
)

type WorkflowState string

const (
	StatePending  WorkflowState = "pending"
	StateApproved WorkflowState = "approved"
	StateRejected WorkflowState = "rejected"
)

// Approval comment attached when a moderator clears a false spam accusation.
const NotSpamComment = "Spam report: Content is not spam"

type AbuseReport struct {
	Type       AbuseType   `json:"type"`
	Target     content.Ref `json:"target"`
	ReporterID int64       `json:"reporter_id"`
	// Zero until the report is resolved.
	ResolvedByID int64     `json:"resolved_by_id,omitempty"`
	Comment      string    `json:"comment"`
	ReportDate   time.Time `json:"report_date"`
}

type WorkflowEntry struct {
	WorkflowID int64         `json:"workflow_id"`
	Target     content.Ref   `json:"target"`
	Category   Category      `json:"category"`
	State      WorkflowState `json:"state"`
	// Moderator the entry is queued for.
	AssigneeID int64 `json:"assignee_id,omitempty"`
}

// The abuse-report store, approval-workflow engine, and moderation queue, behind one interface.
//
// Each call is expected to be atomic at the collaborator boundary. Nothing returned here is cached by callers.
type Bridge interface {
	// Files a report. The store keeps at most one report per (target, reporter) pair.
	ReportAbuse(ctx context.Context, report *AbuseReport) error
	// Resolves every outstanding report against the target.
	ResolveAbuseReports(ctx context.Context, target content.Ref, moderator *community.User) error
	WorkflowEntries(ctx context.Context, target content.Ref, category Category) ([]*WorkflowEntry, error)
	UnapprovedEntries(ctx context.Context, moderatorID int64, category Category) ([]*WorkflowEntry, error)
	Approve(ctx context.Context, workflowID int64, target content.Ref, moderator *community.User, comment string) error
	// Places a live item into the moderation queue.
	ForceModeration(ctx context.Context, item content.Item) error
	InModeration(ctx context.Context, target content.Ref) (bool, error)
}
