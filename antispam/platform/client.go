package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/moderation"

	"github.com/carlmjohnson/versioninfo"
	"github.com/google/go-querystring/query"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// Client for the platform admin API. Implements every collaborator interface the policy layer consumes.
type Client struct {
	Host      string
	AuthToken string
	UserAgent string
	Client    *http.Client
	// Optional client-side limit on outbound requests.
	Limiter *rate.Limiter
}

var _ community.UserDirectory = (*Client)(nil)
var _ community.GroupDirectory = (*Client)(nil)
var _ community.StatusLevels = (*Client)(nil)
var _ content.Enumerator = (*Client)(nil)
var _ moderation.Bridge = (*Client)(nil)

type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type Option func(*retryablehttp.Client)

func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMin = waitMin
		client.RetryWaitMax = waitMax
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(client *retryablehttp.Client) {
		client.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger})
	}
}

// Retries on connection errors and 5xx (except 501). 429 is not retried; the limiter is expected to keep us under quota.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func NewClient(host, token string, options ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: slog.Default().With("subsystem", "platform-client")})
	retryClient.CheckRetry = retryPolicy
	for _, option := range options {
		option(retryClient)
	}

	hc := retryClient.StandardClient()
	hc.Timeout = 30 * time.Second
	return &Client{
		Host:      host,
		AuthToken: token,
		UserAgent: "spamguard/" + versioninfo.Short(),
		Client:    hc,
		Limiter:   rate.NewLimiter(rate.Limit(50), 10),
	}
}

// Performs one JSON request. params is a struct with url tags, or nil. A 404 is reported as the "missing" error when one is provided.
func (c *Client) do(ctx context.Context, method, path string, params, body, out any, missing error) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	u := c.Host + path
	if params != nil {
		vals, err := query.Values(params)
		if err != nil {
			return fmt.Errorf("encoding query params: %w", err)
		}
		if len(vals) > 0 {
			u += "?" + vals.Encode()
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	platformRequestDuration.WithLabelValues(method, statusLabel(resp)).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("platform %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && missing != nil {
		return fmt.Errorf("platform %s %s: %w", method, path, missing)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Name:       eb.Error,
			Message:    eb.Message,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("platform %s %s: decoding response: %w", method, path, err)
	}
	return nil
}

func statusLabel(resp *http.Response) string {
	if resp == nil {
		return "error"
	}
	return strconv.Itoa(resp.StatusCode)
}

func statusParams(statuses []content.Status) StatusQuery {
	return StatusQuery{Status: statuses}
}

func userPath(u *community.User, suffix string) string {
	return "/api/users/" + strconv.FormatInt(u.ID, 10) + suffix
}

func (c *Client) LookupUserID(ctx context.Context, id int64) (*community.User, error) {
	var u community.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+strconv.FormatInt(id, 10), nil, nil, &u, community.ErrUserNotFound); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) LookupUsername(ctx context.Context, username string) (*community.User, error) {
	var u community.User
	params := UsernameQuery{Username: username}
	if err := c.do(ctx, http.MethodGet, "/api/users", params, nil, &u, community.ErrUserNotFound); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) DisableUser(ctx context.Context, u *community.User) error {
	return c.do(ctx, http.MethodPost, userPath(u, "/disable"), nil, nil, nil, community.ErrUserNotFound)
}

func (c *Client) EnableUser(ctx context.Context, u *community.User) error {
	return c.do(ctx, http.MethodPost, userPath(u, "/enable"), nil, nil, nil, community.ErrUserNotFound)
}

func (c *Client) LookupGroup(ctx context.Context, id int64) (*community.Group, error) {
	var g community.Group
	if err := c.do(ctx, http.MethodGet, "/api/groups/"+strconv.FormatInt(id, 10), nil, nil, &g, community.ErrGroupNotFound); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) IsMember(ctx context.Context, groupID int64, u *community.User) (bool, error) {
	var out MembershipResponse
	path := fmt.Sprintf("/api/groups/%d/members/%d", groupID, u.ID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out, community.ErrGroupNotFound); err != nil {
		return false, err
	}
	return out.Member, nil
}

func (c *Client) PointLevel(ctx context.Context, u *community.User) (int64, error) {
	var out PointsResponse
	if err := c.do(ctx, http.MethodGet, userPath(u, "/points"), nil, nil, &out, community.ErrUserNotFound); err != nil {
		return 0, err
	}
	return out.Points, nil
}

func (c *Client) UserDocuments(ctx context.Context, u *community.User, statuses ...content.Status) ([]*content.Document, error) {
	var out []*content.Document
	if err := c.do(ctx, http.MethodGet, userPath(u, "/documents"), statusParams(statuses), nil, &out, community.ErrUserNotFound); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UserMessages(ctx context.Context, u *community.User, statuses ...content.Status) ([]*content.Message, error) {
	var out []*content.Message
	if err := c.do(ctx, http.MethodGet, userPath(u, "/messages"), statusParams(statuses), nil, &out, community.ErrUserNotFound); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetThread(ctx context.Context, threadID int64) (*content.Thread, error) {
	var t content.Thread
	if err := c.do(ctx, http.MethodGet, "/api/threads/"+strconv.FormatInt(threadID, 10), nil, nil, &t, content.ErrNotFound); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) UserBlogs(ctx context.Context, u *community.User) ([]*content.Blog, error) {
	var out []*content.Blog
	if err := c.do(ctx, http.MethodGet, userPath(u, "/blogs"), nil, nil, &out, community.ErrUserNotFound); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BlogPosts(ctx context.Context, blogID int64, statuses ...content.Status) ([]*content.BlogPost, error) {
	var out []*content.BlogPost
	path := "/api/blogs/" + strconv.FormatInt(blogID, 10) + "/posts"
	if err := c.do(ctx, http.MethodGet, path, statusParams(statuses), nil, &out, content.ErrNotFound); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UserBookmarkedURLs(ctx context.Context, u *community.User) ([]*content.ExternalURL, error) {
	var out []*content.ExternalURL
	if err := c.do(ctx, http.MethodGet, userPath(u, "/bookmarks"), nil, nil, &out, community.ErrUserNotFound); err != nil {
		return nil, err
	}
	return out, nil
}

func itemPath(prefix string, ref content.Ref) string {
	return prefix + "/" + string(ref.Kind) + "/" + strconv.FormatInt(ref.ID, 10)
}

func (c *Client) LoadItem(ctx context.Context, ref content.Ref) (content.Item, error) {
	var env content.Envelope
	if err := c.do(ctx, http.MethodGet, itemPath("/api/content", ref), nil, nil, &env, content.ErrNotFound); err != nil {
		return nil, err
	}
	return env.Decode()
}

func (c *Client) ReportAbuse(ctx context.Context, report *moderation.AbuseReport) error {
	return c.do(ctx, http.MethodPost, "/api/abuse/reports", nil, report, nil, content.ErrNotFound)
}

func (c *Client) ResolveAbuseReports(ctx context.Context, target content.Ref, moderator *community.User) error {
	body := ResolveRequest{Target: target, ModeratorID: moderator.ID}
	return c.do(ctx, http.MethodPost, "/api/abuse/resolve", nil, body, nil, content.ErrNotFound)
}

func (c *Client) WorkflowEntries(ctx context.Context, target content.Ref, category moderation.Category) ([]*moderation.WorkflowEntry, error) {
	var out []*moderation.WorkflowEntry
	params := WorkflowQuery{Category: category}
	if err := c.do(ctx, http.MethodGet, itemPath("/api/content", target)+"/workflows", params, nil, &out, content.ErrNotFound); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UnapprovedEntries(ctx context.Context, moderatorID int64, category moderation.Category) ([]*moderation.WorkflowEntry, error) {
	var out []*moderation.WorkflowEntry
	params := WorkflowQuery{Category: category}
	path := "/api/moderators/" + strconv.FormatInt(moderatorID, 10) + "/workflows"
	if err := c.do(ctx, http.MethodGet, path, params, nil, &out, community.ErrUserNotFound); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Approve(ctx context.Context, workflowID int64, target content.Ref, moderator *community.User, comment string) error {
	body := ApproveRequest{Target: target, ModeratorID: moderator.ID, Comment: comment}
	path := "/api/workflows/" + strconv.FormatInt(workflowID, 10) + "/approve"
	return c.do(ctx, http.MethodPost, path, nil, body, nil, ErrWorkflowNotFound)
}

func (c *Client) ForceModeration(ctx context.Context, item content.Item) error {
	env, err := content.NewEnvelope(item)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/moderation/queue", nil, env, nil, content.ErrNotFound)
}

func (c *Client) InModeration(ctx context.Context, target content.Ref) (bool, error) {
	var out ModerationStatus
	if err := c.do(ctx, http.MethodGet, itemPath("/api/moderation/status", target), nil, nil, &out, content.ErrNotFound); err != nil {
		return false, err
	}
	return out.InModeration, nil
}
