package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/governor"
	"github.com/forumguard/spamguard/antispam/platform"
	"github.com/forumguard/spamguard/antispam/spam"

	"github.com/stretchr/testify/assert"
)

func testServer(t *testing.T) (*Server, *platform.MockPlatform) {
	p := platform.NewMockPlatform()
	p.DefaultModeratorID = 9
	p.AddUser(&community.User{ID: 1, Username: "spammer", Email: "spammer@example.com", Enabled: true}, 0)
	p.AddUser(&community.User{ID: 2, Username: "reporter", Enabled: true}, 50)
	p.AddUser(&community.User{ID: 3, Username: "regular", Enabled: true}, 5)
	p.AddUser(&community.User{ID: 9, Username: "moderator", Enabled: true}, 1000)
	p.AddGroup(&community.Group{ID: 1001, Name: "staff"})

	srv, err := NewServer(Config{
		Platform:          p,
		ReporterMinPoints: 10,
		GateDefaults: governor.Config{
			PointsThreshold:     10,
			PostIntervalSeconds: 45,
			RejectionMessage:    "slow down, {0} seconds between posts",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return srv, p
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func envelope(t *testing.T, item content.Item) *content.Envelope {
	env, err := content.NewEnvelope(item)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestHealthCheck(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/_health", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("ok", decode[GenericStatus](t, rec).Status)

	rec = doRequest(t, srv, http.MethodGet, "/nope", nil)
	assert.Equal(http.StatusNotFound, rec.Code)
	assert.Equal("Not Found", decode[GenericError](t, rec).Error)
}

func TestAdmissionDefaults(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	u := &community.User{ID: 1, Username: "spammer", Email: "spammer@example.com"}
	msg := &content.Message{ID: 100, ThreadID: 7, User: u, State: content.StatusPublished}

	rec := doRequest(t, srv, http.MethodPost, "/admission/scopes/message/7/check", envelope(t, msg))
	assert.Equal(http.StatusOK, rec.Code)
	d := decode[governor.Decision](t, rec)
	assert.True(d.Allowed)
	assert.Equal(governor.ReasonFirstInWindow, d.Reason)

	rec = doRequest(t, srv, http.MethodPost, "/admission/scopes/message/7/check", envelope(t, msg))
	assert.Equal(http.StatusOK, rec.Code)
	d = decode[governor.Decision](t, rec)
	assert.False(d.Allowed)
	assert.Equal(governor.ReasonThrottled, d.Reason)
	assert.Equal("slow down, 45 seconds between posts", d.Message)

	// anonymous content always passes
	anon := &content.Message{ID: 101, ThreadID: 7, State: content.StatusPublished}
	rec = doRequest(t, srv, http.MethodPost, "/admission/scopes/message/7/check", envelope(t, anon))
	assert.True(decode[governor.Decision](t, rec).Allowed)

	rec = doRequest(t, srv, http.MethodGet, "/admission/scopes/message/7", nil)
	assert.Equal(http.StatusOK, rec.Code)
	resp := decode[ScopeConfigResponse](t, rec)
	assert.Equal("post-limit/message-7", resp.Scope)
	assert.Equal(45, resp.Config.PostIntervalSeconds)

	rec = doRequest(t, srv, http.MethodGet, "/admission/scopes/message/8", nil)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestAdmissionBadRequests(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/admission/scopes/message/seven/check", envelope(t, &content.Message{ID: 1}))
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/admission/scopes/message/7/check", map[string]any{"kind": "poll", "item": map[string]any{"id": 1}})
	assert.Equal(http.StatusBadRequest, rec.Code)
	assert.Equal("BadRequest", decode[GenericError](t, rec).Error)
}

func TestConfigureScope(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	interval := 60
	domains := "example.com"
	rec := doRequest(t, srv, http.MethodPut, "/admission/scopes/document/3", ScopeConfigRequest{
		PostIntervalSeconds:  &interval,
		EmailDomainWhitelist: &domains,
	})
	assert.Equal(http.StatusOK, rec.Code)
	resp := decode[ScopeConfigResponse](t, rec)
	assert.Equal(60, resp.Config.PostIntervalSeconds)
	assert.Equal([]string{"example.com"}, resp.Config.EmailDomains)
	// unspecified fields fall back to the daemon defaults
	assert.Equal("slow down, {0} seconds between posts", resp.Config.RejectionMessage)

	// whitelisted email domain bypasses the throttle
	u := &community.User{ID: 1, Username: "spammer", Email: "spammer@example.com"}
	doc := &content.Document{ID: 5, Version: 1, User: u, State: content.StatusPublished}
	for i := 0; i < 2; i++ {
		rec = doRequest(t, srv, http.MethodPost, "/admission/scopes/document/3/check", envelope(t, doc))
		d := decode[governor.Decision](t, rec)
		assert.True(d.Allowed)
		assert.Equal(governor.ReasonEmailWhitelist, d.Reason)
	}

	groups := "1001"
	rec = doRequest(t, srv, http.MethodPut, "/admission/scopes/document/3", ScopeConfigRequest{GroupWhitelist: &groups})
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal([]int64{1001}, decode[ScopeConfigResponse](t, rec).Config.Groups)

	// a malformed id clears the existing whitelist and leaves the rest alone
	groups = "1001 abc"
	rec = doRequest(t, srv, http.MethodPut, "/admission/scopes/document/3", ScopeConfigRequest{GroupWhitelist: &groups})
	assert.Equal(http.StatusBadRequest, rec.Code)
	assert.Equal("InvalidGroup", decode[GenericError](t, rec).Error)
	rec = doRequest(t, srv, http.MethodGet, "/admission/scopes/document/3", nil)
	assert.Equal(http.StatusOK, rec.Code)
	resp = decode[ScopeConfigResponse](t, rec)
	assert.Empty(resp.Config.Groups)
	assert.Equal(60, resp.Config.PostIntervalSeconds)
	assert.Equal([]string{"example.com"}, resp.Config.EmailDomains)

	groups = "1001 1002"
	rec = doRequest(t, srv, http.MethodPut, "/admission/scopes/document/3", ScopeConfigRequest{GroupWhitelist: &groups})
	assert.Equal(http.StatusBadRequest, rec.Code)
	assert.Equal("InvalidGroup", decode[GenericError](t, rec).Error)

	groups = "1001"
	rec = doRequest(t, srv, http.MethodPut, "/admission/scopes/document/3", ScopeConfigRequest{GroupWhitelist: &groups})
	assert.Equal(http.StatusOK, rec.Code)
	resp = decode[ScopeConfigResponse](t, rec)
	assert.Equal([]int64{1001}, resp.Config.Groups)
	assert.Equal(60, resp.Config.PostIntervalSeconds)

	rec = doRequest(t, srv, http.MethodDelete, "/admission/scopes/document/3", nil)
	assert.Equal(http.StatusOK, rec.Code)
	rec = doRequest(t, srv, http.MethodGet, "/admission/scopes/document/3", nil)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestAfterSave(t *testing.T) {
	assert := assert.New(t)
	srv, p := testServer(t)

	u, err := p.LookupUserID(t.Context(), 1)
	if err != nil {
		t.Fatal(err)
	}
	first := &content.Message{ID: 20, ThreadID: 30, User: u, State: content.StatusPublished}
	p.AddItem(first)

	rec := doRequest(t, srv, http.MethodPost, "/content/after-save", envelope(t, first))
	assert.Equal(http.StatusOK, rec.Code)
	resp := decode[AfterSaveResponse](t, rec)
	assert.Equal(content.Ref{Kind: content.KindMessage, ID: 20}, resp.Ref)
	assert.Equal("moderated", resp.Outcome)
	assert.Equal(content.StatusPendingApproval, p.Item(first.Ref()).Status())

	url := &content.ExternalURL{ID: 60, URL: "https://example.com", State: content.StatusPublished}
	rec = doRequest(t, srv, http.MethodPost, "/content/after-save", envelope(t, url))
	assert.Equal("skipped", decode[AfterSaveResponse](t, rec).Outcome)
}

func TestSpamWorkflowAPI(t *testing.T) {
	assert := assert.New(t)
	srv, p := testServer(t)

	spammer, err := p.LookupUserID(t.Context(), 1)
	if err != nil {
		t.Fatal(err)
	}
	p.AddItem(&content.Document{ID: 10, Version: 1, User: spammer, State: content.StatusPublished})
	p.AddItem(&content.Thread{ID: 30, RootMessageID: 20, User: spammer, State: content.StatusPublished})
	p.AddItem(&content.Message{ID: 20, ThreadID: 30, User: spammer, State: content.StatusPublished})

	rec := doRequest(t, srv, http.MethodGet, "/spam/can-report?user=2", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.True(decode[CanReportResponse](t, rec).CanReport)

	rec = doRequest(t, srv, http.MethodGet, "/spam/can-report?user=3", nil)
	assert.False(decode[CanReportResponse](t, rec).CanReport)

	rec = doRequest(t, srv, http.MethodGet, "/spam/can-report?user=404", nil)
	assert.Equal(http.StatusNotFound, rec.Code)
	assert.Equal("UserNotFound", decode[GenericError](t, rec).Error)

	rec = doRequest(t, srv, http.MethodGet, "/spam/can-report", nil)
	assert.Equal(http.StatusBadRequest, rec.Code)

	// ineligible reporter can not mass-report
	rec = doRequest(t, srv, http.MethodPost, "/spam/report", ReportRequest{SpammerID: 1, ReporterID: 3, Comment: "spam"})
	assert.Equal(http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/spam/report", ReportRequest{SpammerID: 1, ReporterID: 2, Comment: "spam"})
	assert.Equal(http.StatusOK, rec.Code)
	summary := decode[spam.ReportSummary](t, rec)
	assert.True(summary.Disabled)
	assert.ElementsMatch([]content.Ref{
		{Kind: content.KindDocument, ID: 10},
		{Kind: content.KindMessage, ID: 20},
	}, summary.Reported)
	u, _ := p.LookupUserID(t.Context(), 1)
	assert.False(u.Enabled)

	rec = doRequest(t, srv, http.MethodGet, "/spam/unapproved?moderator=9", nil)
	assert.Equal(http.StatusOK, rec.Code)
	unapproved := decode[UnapprovedResponse](t, rec)
	if assert.Len(unapproved.Spammers, 1) {
		assert.Equal(int64(1), unapproved.Spammers[0].ID)
	}

	rec = doRequest(t, srv, http.MethodPost, "/spam/resolve", ResolveRequest{Username: "spammer", ModeratorID: 9})
	assert.Equal(http.StatusOK, rec.Code)
	resolved := decode[spam.ResolveSummary](t, rec)
	assert.True(resolved.Enabled)
	assert.Equal(2, resolved.Approved)
	u, _ = p.LookupUserID(t.Context(), 1)
	assert.True(u.Enabled)
	assert.Equal(content.StatusPublished, p.Item(content.Ref{Kind: content.KindDocument, ID: 10}).Status())

	rec = doRequest(t, srv, http.MethodGet, "/spam/unapproved?moderator=9", nil)
	assert.Empty(decode[UnapprovedResponse](t, rec).Spammers)

	rec = doRequest(t, srv, http.MethodPost, "/spam/resolve", ResolveRequest{Username: "nobody", ModeratorID: 9})
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/spam/resolve", ResolveRequest{ModeratorID: 9})
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestReportSingleItem(t *testing.T) {
	assert := assert.New(t)
	srv, p := testServer(t)

	spammer, err := p.LookupUserID(t.Context(), 1)
	if err != nil {
		t.Fatal(err)
	}
	p.AddItem(&content.Document{ID: 10, Version: 1, User: spammer, State: content.StatusPublished})
	p.AddItem(&content.Document{ID: 11, Version: 1, User: spammer, State: content.StatusPublished})

	// regular user: only the targeted item is reported
	target := content.Ref{Kind: content.KindDocument, ID: 10}
	rec := doRequest(t, srv, http.MethodPost, "/spam/report", ReportRequest{Target: &target, ReporterID: 3})
	assert.Equal(http.StatusOK, rec.Code)
	res := decode[spam.ReportSpamResult](t, rec)
	assert.Nil(res.Spammer)
	assert.Len(p.ReportsFor(target), 1)
	assert.Empty(p.ReportsFor(content.Ref{Kind: content.KindDocument, ID: 11}))

	missing := content.Ref{Kind: content.KindDocument, ID: 99}
	rec = doRequest(t, srv, http.MethodPost, "/spam/report", ReportRequest{Target: &missing, ReporterID: 2})
	assert.Equal(http.StatusNotFound, rec.Code)
	assert.Equal("ContentNotFound", decode[GenericError](t, rec).Error)
}

func TestSetProperty(t *testing.T) {
	assert := assert.New(t)
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/spam/can-report?user=3", nil)
	assert.False(decode[CanReportResponse](t, rec).CanReport)

	rec = doRequest(t, srv, http.MethodPut, "/admin/properties/"+spam.ReporterMinPointsKey, PropertyRequest{Value: "4"})
	assert.Equal(http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/spam/can-report?user=3", nil)
	assert.True(decode[CanReportResponse](t, rec).CanReport)

	rec = doRequest(t, srv, http.MethodPut, "/admin/properties/"+spam.ReporterMinPointsKey, PropertyRequest{Value: "four"})
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPut, "/admin/properties/other.key", PropertyRequest{Value: "1"})
	assert.Equal(http.StatusNotFound, rec.Code)
}
