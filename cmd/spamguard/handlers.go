package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/governor"
	"github.com/forumguard/spamguard/antispam/spam"
	"github.com/forumguard/spamguard/antispam/throttle"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprintf("%v", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("spamguard-http-internal-error", "err", err)
	}
	if c.Response().Committed {
		return
	}
	if err := c.JSON(code, GenericError{Error: http.StatusText(code), Message: msg}); err != nil {
		srv.logger.Error("failed to write error response", "err", err)
	}
}

// Maps domain errors onto JSON error responses.
func (srv *Server) apiError(c echo.Context, err error) error {
	var ige *governor.InvalidGroupError
	switch {
	case errors.As(err, &ige):
		return c.JSON(http.StatusBadRequest, GenericError{Error: "InvalidGroup", Message: err.Error()})
	case errors.Is(err, community.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "UserNotFound", Message: err.Error()})
	case errors.Is(err, content.ErrNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "ContentNotFound", Message: err.Error()})
	case errors.Is(err, spam.ErrSpammerNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "SpammerNotFound", Message: err.Error()})
	default:
		srv.logger.Error("request failed", "path", c.Path(), "err", err)
		return c.JSON(http.StatusInternalServerError, GenericError{Error: "InternalServerError", Message: err.Error()})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, GenericError{Error: "BadRequest", Message: msg})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "spamguard"})
}

func parseScope(c echo.Context) (throttle.Scope, error) {
	typ := c.Param("type")
	if typ == "" {
		return throttle.Scope{}, fmt.Errorf("scope content type missing")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return throttle.Scope{}, fmt.Errorf("invalid scope container id: %q", c.Param("id"))
	}
	return throttle.Scope{ContentType: typ, ContainerID: id}, nil
}

func parseUserParam(c echo.Context, param string) (int64, error) {
	raw := c.QueryParam(param)
	if raw == "" {
		return 0, fmt.Errorf("query parameter missing or empty: %s", param)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %q", raw)
	}
	return id, nil
}

type ScopeConfigRequest struct {
	PointsThreshold     *int64  `json:"points_threshold,omitempty"`
	PostIntervalSeconds *int    `json:"post_interval_seconds,omitempty"`
	RejectionMessage    *string `json:"rejection_message,omitempty"`
	// Whitespace-separated email domain suffixes.
	EmailDomainWhitelist *string `json:"email_domain_whitelist,omitempty"`
	// Whitespace-separated group IDs.
	GroupWhitelist *string `json:"group_whitelist,omitempty"`
}

type ScopeConfigResponse struct {
	Scope  string          `json:"scope"`
	Config governor.Config `json:"config"`
}

// GET /admission/scopes/:type/:id
func (srv *Server) HandleGetScope(c echo.Context) error {
	scope, err := parseScope(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	g, ok := srv.engine.LookupGate(scope)
	if !ok {
		return c.JSON(http.StatusNotFound, GenericError{Error: "ScopeNotFound", Message: scope.Name()})
	}
	return c.JSON(http.StatusOK, ScopeConfigResponse{Scope: scope.Name(), Config: g.Config()})
}

// PUT /admission/scopes/:type/:id
//
// Fields left out of the request keep their current value (or the daemon default for a new scope). Any change restarts the scope's throttle window.
func (srv *Server) HandleConfigureScope(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := parseScope(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req ScopeConfigRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}

	cfg := srv.defaults
	if g, ok := srv.engine.LookupGate(scope); ok {
		cfg = g.Config()
	}
	if req.PointsThreshold != nil {
		cfg.PointsThreshold = *req.PointsThreshold
	}
	if req.PostIntervalSeconds != nil {
		cfg.PostIntervalSeconds = *req.PostIntervalSeconds
	}
	if req.RejectionMessage != nil {
		cfg.RejectionMessage = *req.RejectionMessage
	}
	if req.EmailDomainWhitelist != nil {
		cfg.EmailDomains = governor.ParseDomainWhitelist(*req.EmailDomainWhitelist)
	}
	if req.GroupWhitelist != nil {
		groups, err := governor.ParseGroupWhitelist(*req.GroupWhitelist)
		if err != nil {
			// a malformed list clears the current whitelist, same as an unknown group
			if g, ok := srv.engine.LookupGate(scope); ok {
				_ = g.SetGroupWhitelist(ctx, *req.GroupWhitelist)
			}
			return srv.apiError(c, err)
		}
		cfg.Groups = groups
	}

	g, err := srv.engine.ConfigureScope(ctx, scope, cfg)
	if err != nil {
		return srv.apiError(c, err)
	}
	return c.JSON(http.StatusOK, ScopeConfigResponse{Scope: scope.Name(), Config: g.Config()})
}

// DELETE /admission/scopes/:type/:id
func (srv *Server) HandleRemoveScope(c echo.Context) error {
	scope, err := parseScope(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := srv.engine.RemoveScope(c.Request().Context(), scope); err != nil {
		return srv.apiError(c, err)
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "spamguard", Message: "removed " + scope.Name()})
}

func bindItem(c echo.Context) (content.Item, error) {
	var env content.Envelope
	if err := c.Bind(&env); err != nil {
		return nil, err
	}
	return env.Decode()
}

// POST /admission/scopes/:type/:id/check
//
// Always 200 when the request is well formed; rejection is reported in the decision body.
func (srv *Server) HandleCheckAdmission(c echo.Context) error {
	scope, err := parseScope(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	item, err := bindItem(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	d := srv.engine.CheckAdmission(c.Request().Context(), scope, item)
	return c.JSON(http.StatusOK, d)
}

type AfterSaveResponse struct {
	Ref     content.Ref `json:"ref"`
	Outcome string      `json:"outcome"`
}

// POST /content/after-save
func (srv *Server) HandleAfterSave(c echo.Context) error {
	item, err := bindItem(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	out := srv.engine.AfterSave(c.Request().Context(), item)
	return c.JSON(http.StatusOK, AfterSaveResponse{Ref: item.Ref(), Outcome: string(out)})
}

type CanReportResponse struct {
	UserID    int64 `json:"user_id"`
	CanReport bool  `json:"can_report"`
}

// GET /spam/can-report?user=<id>
func (srv *Server) HandleCanReport(c echo.Context) error {
	id, err := parseUserParam(c, "user")
	if err != nil {
		return badRequest(c, err.Error())
	}
	u, err := srv.engine.Platform.LookupUserID(c.Request().Context(), id)
	if err != nil {
		return srv.apiError(c, err)
	}
	ok, err := srv.engine.Spam.CanReportSpammer(c.Request().Context(), u)
	if err != nil {
		return srv.apiError(c, err)
	}
	return c.JSON(http.StatusOK, CanReportResponse{UserID: u.ID, CanReport: ok})
}

type ReportRequest struct {
	// Report a single item, escalating to its author when the reporter is eligible.
	Target *content.Ref `json:"target,omitempty"`
	// Or report all content of a user directly.
	SpammerID  int64  `json:"spammer_id,omitempty"`
	ReporterID int64  `json:"reporter_id"`
	Comment    string `json:"comment"`
}

// POST /spam/report
func (srv *Server) HandleReport(c echo.Context) error {
	ctx := c.Request().Context()
	var req ReportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Target == nil && req.SpammerID == 0 {
		return badRequest(c, "one of target or spammer_id is required")
	}

	reporter, err := srv.engine.Platform.LookupUserID(ctx, req.ReporterID)
	if err != nil {
		return srv.apiError(c, err)
	}
	logger := srv.logger.With("reporter", reporter.ID)

	if req.Target != nil {
		res, err := srv.engine.Spam.ReportSpam(ctx, *req.Target, reporter, req.Comment)
		if err != nil {
			return srv.apiError(c, err)
		}
		logger.Info("spam reported", "ref", req.Target.String(), "escalated", res.Spammer != nil)
		return c.JSON(http.StatusOK, res)
	}

	spammer, err := srv.engine.Platform.LookupUserID(ctx, req.SpammerID)
	if err != nil {
		return srv.apiError(c, err)
	}
	ok, err := srv.engine.Spam.CanReportSpammer(ctx, reporter)
	if err != nil {
		return srv.apiError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusForbidden, GenericError{
			Error:   "ReporterNotEligible",
			Message: fmt.Sprintf("user %d may not report spammers", reporter.ID),
		})
	}
	summary, err := srv.engine.Spam.ReportSpammersContent(ctx, spammer, reporter, req.Comment)
	if err != nil {
		return srv.apiError(c, err)
	}
	logger.Info("spammer reported", "spammer", spammer.ID, "items", len(summary.Reported))
	return c.JSON(http.StatusOK, summary)
}

type ResolveRequest struct {
	SpammerID   int64  `json:"spammer_id,omitempty"`
	Username    string `json:"username,omitempty"`
	ModeratorID int64  `json:"moderator_id"`
}

// POST /spam/resolve
func (srv *Server) HandleResolve(c echo.Context) error {
	ctx := c.Request().Context()
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.SpammerID == 0 && req.Username == "" {
		return badRequest(c, "one of spammer_id or username is required")
	}

	moderator, err := srv.engine.Platform.LookupUserID(ctx, req.ModeratorID)
	if err != nil {
		return srv.apiError(c, err)
	}

	var summary *spam.ResolveSummary
	if req.Username != "" {
		summary, err = srv.engine.Spam.ResolveSpammerByUsername(ctx, req.Username, moderator)
	} else {
		var spammer *community.User
		spammer, err = srv.engine.Platform.LookupUserID(ctx, req.SpammerID)
		if err == nil {
			summary, err = srv.engine.Spam.ResolveContentAsSpam(ctx, spammer, moderator)
		}
	}
	if err != nil {
		return srv.apiError(c, err)
	}
	srv.logger.Info("spammer resolved", "spammer", summary.SpammerID, "moderator", moderator.ID, "items", len(summary.Resolved), "failed_workflows", len(summary.FailedWorkflows))
	return c.JSON(http.StatusOK, summary)
}

type UnapprovedResponse struct {
	ModeratorID int64             `json:"moderator_id"`
	Spammers    []*community.User `json:"spammers"`
}

// GET /spam/unapproved?moderator=<id>
func (srv *Server) HandleUnapproved(c echo.Context) error {
	id, err := parseUserParam(c, "moderator")
	if err != nil {
		return badRequest(c, err.Error())
	}
	moderator, err := srv.engine.Platform.LookupUserID(c.Request().Context(), id)
	if err != nil {
		return srv.apiError(c, err)
	}
	users, err := srv.engine.Spam.GetUnapprovedSpammers(c.Request().Context(), moderator)
	if err != nil {
		return srv.apiError(c, err)
	}
	if users == nil {
		users = []*community.User{}
	}
	return c.JSON(http.StatusOK, UnapprovedResponse{ModeratorID: moderator.ID, Spammers: users})
}

type PropertyRequest struct {
	Value string `json:"value"`
}

type PropertyResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PUT /admin/properties/:key
func (srv *Server) HandleSetProperty(c echo.Context) error {
	key := c.Param("key")
	if key != spam.ReporterMinPointsKey {
		return c.JSON(http.StatusNotFound, GenericError{Error: "UnknownProperty", Message: key})
	}
	var req PropertyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if _, err := strconv.ParseInt(req.Value, 10, 64); err != nil {
		return badRequest(c, fmt.Sprintf("property %s must be an integer", key))
	}
	if err := srv.props.Set(c.Request().Context(), key, req.Value); err != nil {
		return srv.apiError(c, err)
	}
	srv.logger.Info("property updated", "key", key, "value", req.Value)
	return c.JSON(http.StatusOK, PropertyResponse{Key: key, Value: req.Value})
}
