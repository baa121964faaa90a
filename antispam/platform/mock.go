package platform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/moderation"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

// Record of a single Approve call.
type Approval struct {
	WorkflowID  int64       `json:"workflow_id"`
	Target      content.Ref `json:"target"`
	ModeratorID int64       `json:"moderator_id"`
	Comment     string      `json:"comment"`
}

// A fake platform holding users, groups, content, and moderation state in memory. Implements every collaborator interface, for use in tests and in demo mode.
//
// Reporting an item hides it (documents go to pending approval, everything else to abuse-hidden) and opens an abuse workflow assigned to DefaultModeratorID. Approving a workflow publishes the item again.
type MockPlatform struct {
	mu *sync.RWMutex

	Users      map[int64]*community.User
	Points     map[int64]int64
	Groups     map[int64]*community.Group
	Members    map[int64]map[int64]bool
	Documents  map[int64]*content.Document
	Messages   map[int64]*content.Message
	Threads    map[int64]*content.Thread
	Blogs      map[int64]*content.Blog
	BlogOwners map[int64][]int64
	Posts      map[int64]*content.BlogPost
	URLs       map[int64]*content.ExternalURL
	Bookmarks  map[int64][]int64

	Reports   []*moderation.AbuseReport
	Workflows map[int64]*moderation.WorkflowEntry
	// Targets passed to ResolveAbuseReports, in call order.
	Resolutions []content.Ref
	Approvals   []Approval

	DefaultModeratorID int64
	// Whether ReportAbuse hides the reported item and opens an abuse workflow, as the platform's abuse threshold would. Defaults to true.
	HideReported bool
	// Approve fails with the mapped error for these workflow IDs.
	FailApprove map[int64]error
	// When set, ForceModeration fails with this error.
	FailModeration error

	nextWorkflow int64
}

var _ community.UserDirectory = (*MockPlatform)(nil)
var _ community.GroupDirectory = (*MockPlatform)(nil)
var _ community.StatusLevels = (*MockPlatform)(nil)
var _ content.Enumerator = (*MockPlatform)(nil)
var _ moderation.Bridge = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		mu:           &sync.RWMutex{},
		Users:        make(map[int64]*community.User),
		Points:       make(map[int64]int64),
		Groups:       make(map[int64]*community.Group),
		Members:      make(map[int64]map[int64]bool),
		Documents:    make(map[int64]*content.Document),
		Messages:     make(map[int64]*content.Message),
		Threads:      make(map[int64]*content.Thread),
		Blogs:        make(map[int64]*content.Blog),
		BlogOwners:   make(map[int64][]int64),
		Posts:        make(map[int64]*content.BlogPost),
		URLs:         make(map[int64]*content.ExternalURL),
		Bookmarks:    make(map[int64][]int64),
		Workflows:    make(map[int64]*moderation.WorkflowEntry),
		FailApprove:  make(map[int64]error),
		HideReported: true,
	}
}

func (p *MockPlatform) AddUser(u *community.User, points int64) *community.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Users[u.ID] = u
	p.Points[u.ID] = points
	return u
}

func (p *MockPlatform) SetPoints(userID, points int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Points[userID] = points
}

func (p *MockPlatform) AddGroup(g *community.Group, memberIDs ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Groups[g.ID] = g
	members := make(map[int64]bool)
	for _, id := range memberIDs {
		members[id] = true
	}
	p.Members[g.ID] = members
}

func (p *MockPlatform) DeleteGroup(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Groups, id)
	delete(p.Members, id)
}

// Inserts or replaces an item. Threads do not need to be added separately from their root message, but can be.
func (p *MockPlatform) AddItem(item content.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch v := item.(type) {
	case *content.Document:
		p.Documents[v.ID] = v
	case *content.Message:
		p.Messages[v.ID] = v
	case *content.Thread:
		p.Threads[v.ID] = v
	case *content.BlogPost:
		p.Posts[v.ID] = v
	case *content.ExternalURL:
		p.URLs[v.ID] = v
	}
}

// Removes an item without touching any workflows which reference it.
func (p *MockPlatform) DeleteItem(ref content.Ref) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ref.Kind {
	case content.KindDocument:
		delete(p.Documents, ref.ID)
	case content.KindMessage:
		delete(p.Messages, ref.ID)
	case content.KindThread:
		delete(p.Threads, ref.ID)
	case content.KindBlogPost:
		delete(p.Posts, ref.ID)
	case content.KindExternalURL:
		delete(p.URLs, ref.ID)
	}
}

func (p *MockPlatform) AddBlog(b *content.Blog, ownerIDs ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Blogs[b.ID] = b
	for _, uid := range ownerIDs {
		p.BlogOwners[uid] = append(p.BlogOwners[uid], b.ID)
	}
}

func (p *MockPlatform) AddBookmark(userID int64, u *content.ExternalURL) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.URLs[u.ID] = u
	p.Bookmarks[userID] = append(p.Bookmarks[userID], u.ID)
}

// Opens a workflow directly, as the approval pipeline would.
func (p *MockPlatform) AddWorkflow(target content.Ref, category moderation.Category, assigneeID int64) *moderation.WorkflowEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openWorkflow(target, category, assigneeID)
}

func (p *MockPlatform) openWorkflow(target content.Ref, category moderation.Category, assigneeID int64) *moderation.WorkflowEntry {
	p.nextWorkflow++
	wf := &moderation.WorkflowEntry{
		WorkflowID: p.nextWorkflow,
		Target:     target,
		Category:   category,
		State:      moderation.StatePending,
		AssigneeID: assigneeID,
	}
	p.Workflows[wf.WorkflowID] = wf
	return wf
}

// Returns a copy of the item, or nil.
func (p *MockPlatform) Item(ref content.Ref) content.Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, err := p.loadItem(ref)
	if err != nil {
		return nil
	}
	return item
}

// Number of ResolveAbuseReports calls made for the target.
func (p *MockPlatform) ResolutionCount(target content.Ref) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, r := range p.Resolutions {
		if r == target {
			n++
		}
	}
	return n
}

func (p *MockPlatform) ReportsFor(target content.Ref) []moderation.AbuseReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []moderation.AbuseReport
	for _, r := range p.Reports {
		if r.Target == target {
			out = append(out, *r)
		}
	}
	return out
}

// community.UserDirectory

func (p *MockPlatform) LookupUserID(ctx context.Context, id int64) (*community.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.Users[id]
	if !ok {
		return nil, community.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (p *MockPlatform) LookupUsername(ctx context.Context, username string) (*community.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, u := range p.Users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, community.ErrUserNotFound
}

func (p *MockPlatform) DisableUser(ctx context.Context, u *community.User) error {
	return p.setEnabled(u, false)
}

func (p *MockPlatform) EnableUser(ctx context.Context, u *community.User) error {
	return p.setEnabled(u, true)
}

func (p *MockPlatform) setEnabled(u *community.User, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored, ok := p.Users[u.ID]
	if !ok {
		return community.ErrUserNotFound
	}
	stored.Enabled = enabled
	return nil
}

// community.GroupDirectory

func (p *MockPlatform) LookupGroup(ctx context.Context, id int64) (*community.Group, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	g, ok := p.Groups[id]
	if !ok {
		return nil, community.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (p *MockPlatform) IsMember(ctx context.Context, groupID int64, u *community.User) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	members, ok := p.Members[groupID]
	if !ok {
		return false, community.ErrGroupNotFound
	}
	return members[u.ID], nil
}

// community.StatusLevels

func (p *MockPlatform) PointLevel(ctx context.Context, u *community.User) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Points[u.ID], nil
}

// content.Enumerator

func authoredBy(item content.Item, u *community.User) bool {
	a := item.Author()
	return a != nil && u != nil && a.ID == u.ID
}

func (p *MockPlatform) UserDocuments(ctx context.Context, u *community.User, statuses ...content.Status) ([]*content.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*content.Document
	for _, d := range p.Documents {
		if authoredBy(d, u) && content.MatchStatus(d.State, statuses) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *MockPlatform) UserMessages(ctx context.Context, u *community.User, statuses ...content.Status) ([]*content.Message, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*content.Message
	for _, m := range p.Messages {
		if authoredBy(m, u) && content.MatchStatus(m.State, statuses) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *MockPlatform) GetThread(ctx context.Context, threadID int64) (*content.Thread, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.Threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %d: %w", threadID, content.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (p *MockPlatform) UserBlogs(ctx context.Context, u *community.User) ([]*content.Blog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*content.Blog
	for _, id := range p.BlogOwners[u.ID] {
		if b, ok := p.Blogs[id]; ok {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (p *MockPlatform) BlogPosts(ctx context.Context, blogID int64, statuses ...content.Status) ([]*content.BlogPost, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*content.BlogPost
	for _, bp := range p.Posts {
		if bp.BlogID == blogID && content.MatchStatus(bp.State, statuses) {
			cp := *bp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *MockPlatform) UserBookmarkedURLs(ctx context.Context, u *community.User) ([]*content.ExternalURL, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*content.ExternalURL
	for _, id := range p.Bookmarks[u.ID] {
		if eu, ok := p.URLs[id]; ok {
			cp := *eu
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (p *MockPlatform) LoadItem(ctx context.Context, ref content.Ref) (content.Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadItem(ref)
}

func (p *MockPlatform) loadItem(ref content.Ref) (content.Item, error) {
	switch ref.Kind {
	case content.KindDocument:
		if v, ok := p.Documents[ref.ID]; ok {
			cp := *v
			return &cp, nil
		}
	case content.KindMessage:
		if v, ok := p.Messages[ref.ID]; ok {
			cp := *v
			return &cp, nil
		}
	case content.KindThread:
		if v, ok := p.Threads[ref.ID]; ok {
			cp := *v
			return &cp, nil
		}
	case content.KindBlogPost:
		if v, ok := p.Posts[ref.ID]; ok {
			cp := *v
			return &cp, nil
		}
	case content.KindExternalURL:
		if v, ok := p.URLs[ref.ID]; ok {
			cp := *v
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", ref, content.ErrNotFound)
}

// must hold the write lock
func (p *MockPlatform) setStatus(ref content.Ref, status content.Status) {
	switch ref.Kind {
	case content.KindDocument:
		if v, ok := p.Documents[ref.ID]; ok {
			v.State = status
		}
	case content.KindMessage:
		if v, ok := p.Messages[ref.ID]; ok {
			v.State = status
		}
	case content.KindThread:
		if v, ok := p.Threads[ref.ID]; ok {
			v.State = status
		}
	case content.KindBlogPost:
		if v, ok := p.Posts[ref.ID]; ok {
			v.State = status
		}
	case content.KindExternalURL:
		if v, ok := p.URLs[ref.ID]; ok {
			v.State = status
		}
	}
}

// moderation.Bridge

func (p *MockPlatform) ReportAbuse(ctx context.Context, report *moderation.AbuseReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.loadItem(report.Target); err != nil {
		return err
	}

	cp := *report
	idx := slices.IndexFunc(p.Reports, func(r *moderation.AbuseReport) bool {
		return r.Target == report.Target && r.ReporterID == report.ReporterID && r.ResolvedByID == 0
	})
	if idx >= 0 {
		p.Reports[idx] = &cp
	} else {
		p.Reports = append(p.Reports, &cp)
	}

	if !p.HideReported {
		return nil
	}
	if report.Target.Kind == content.KindDocument {
		p.setStatus(report.Target, content.StatusPendingApproval)
	} else {
		p.setStatus(report.Target, content.StatusAbuseHidden)
	}
	if !p.hasPending(report.Target, moderation.CategoryAbuse) {
		p.openWorkflow(report.Target, moderation.CategoryAbuse, p.DefaultModeratorID)
	}
	return nil
}

func (p *MockPlatform) hasPending(target content.Ref, category moderation.Category) bool {
	for _, wf := range p.Workflows {
		if wf.Target == target && wf.Category == category && wf.State == moderation.StatePending {
			return true
		}
	}
	return false
}

func (p *MockPlatform) ResolveAbuseReports(ctx context.Context, target content.Ref, moderator *community.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Resolutions = append(p.Resolutions, target)
	for _, r := range p.Reports {
		if r.Target == target && r.ResolvedByID == 0 {
			r.ResolvedByID = moderator.ID
		}
	}
	return nil
}

func (p *MockPlatform) WorkflowEntries(ctx context.Context, target content.Ref, category moderation.Category) ([]*moderation.WorkflowEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*moderation.WorkflowEntry
	for _, wf := range p.Workflows {
		if wf.Target == target && wf.Category == category {
			cp := *wf
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkflowID < out[j].WorkflowID })
	return out, nil
}

func (p *MockPlatform) UnapprovedEntries(ctx context.Context, moderatorID int64, category moderation.Category) ([]*moderation.WorkflowEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*moderation.WorkflowEntry
	for _, wf := range p.Workflows {
		if wf.AssigneeID == moderatorID && wf.Category == category && wf.State == moderation.StatePending {
			cp := *wf
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkflowID < out[j].WorkflowID })
	return out, nil
}

func (p *MockPlatform) Approve(ctx context.Context, workflowID int64, target content.Ref, moderator *community.User, comment string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.FailApprove[workflowID]; ok {
		return err
	}
	wf, ok := p.Workflows[workflowID]
	if !ok || wf.Target != target {
		return fmt.Errorf("workflow %d: %w", workflowID, ErrWorkflowNotFound)
	}
	wf.State = moderation.StateApproved
	p.Approvals = append(p.Approvals, Approval{
		WorkflowID:  workflowID,
		Target:      target,
		ModeratorID: moderator.ID,
		Comment:     comment,
	})
	if !p.hasPending(target, moderation.CategoryAbuse) && !p.hasPending(target, moderation.CategoryFirstPost) {
		p.setStatus(target, content.StatusPublished)
	}
	return nil
}

func (p *MockPlatform) ForceModeration(ctx context.Context, item content.Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailModeration != nil {
		return p.FailModeration
	}
	ref := item.Ref()
	if _, err := p.loadItem(ref); err != nil {
		return err
	}
	p.setStatus(ref, content.StatusPendingApproval)
	if !p.hasPending(ref, moderation.CategoryFirstPost) {
		p.openWorkflow(ref, moderation.CategoryFirstPost, p.DefaultModeratorID)
	}
	return nil
}

func (p *MockPlatform) InModeration(ctx context.Context, target content.Ref) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, wf := range p.Workflows {
		if wf.Target == target && wf.State == moderation.StatePending {
			return true, nil
		}
	}
	return false, nil
}
