package platform

import (
	"fmt"

	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/moderation"
)

// Request and response bodies of the platform admin API.

// Repeated "status" params; no params means no status filter.
type StatusQuery struct {
	Status []content.Status `url:"status,omitempty"`
}

type UsernameQuery struct {
	Username string `url:"username"`
}

type WorkflowQuery struct {
	Category moderation.Category `url:"category"`
}

type PointsResponse struct {
	Points int64 `json:"points"`
}

type MembershipResponse struct {
	Member bool `json:"member"`
}

type ModerationStatus struct {
	InModeration bool `json:"in_moderation"`
}

type ResolveRequest struct {
	Target      content.Ref `json:"target"`
	ModeratorID int64       `json:"moderator_id"`
}

type ApproveRequest struct {
	Target      content.Ref `json:"target"`
	ModeratorID int64       `json:"moderator_id"`
	Comment     string      `json:"comment"`
}

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Non-2xx response from the platform which has no more specific mapping.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("platform %s %s: HTTP %d: %s: %s", e.Method, e.Path, e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("platform %s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}
