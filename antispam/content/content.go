package content

import (
	"errors"
	"fmt"
	"slices"

	"github.com/forumguard/spamguard/antispam/community"
)

var ErrNotFound = errors.New("content not found")

type Kind string

const (
	KindDocument    Kind = "document"
	KindMessage     Kind = "message"
	KindThread      Kind = "thread"
	KindBlogPost    Kind = "blogpost"
	KindExternalURL Kind = "externalurl"
)

var AllKinds = []Kind{KindDocument, KindMessage, KindThread, KindBlogPost, KindExternalURL}

func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if !slices.Contains(AllKinds, k) {
		return "", fmt.Errorf("unknown content kind: %q", raw)
	}
	return k, nil
}

// Whether the approval pipeline can hold items of this kind in a pending state. Bookmarked external URLs can not.
func (k Kind) Moderatable() bool {
	switch k {
	case KindDocument, KindMessage, KindThread, KindBlogPost:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPublished       Status = "published"
	StatusPendingApproval Status = "pending_approval"
	StatusAbuseHidden     Status = "abuse_hidden"
	StatusDraft           Status = "draft"
)

// Returns true if statuses is empty (no filter), or if s is one of statuses.
func MatchStatus(s Status, statuses []Status) bool {
	return len(statuses) == 0 || slices.Contains(statuses, s)
}

// Identity of a content item: kind plus numeric ID (IDs are only unique within a kind).
type Ref struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

type Item interface {
	Ref() Ref
	// nil for anonymous content and for kinds with no attributable owner.
	Author() *community.User
	Status() Status

	isItem()
}

type Document struct {
	ID int64 `json:"id"`
	// Version numbering starts at 1; anything greater is an edit of an existing document.
	Version int             `json:"version"`
	User    *community.User `json:"user,omitempty"`
	State   Status          `json:"status"`
	Subject string          `json:"subject,omitempty"`
}

func (d *Document) Ref() Ref                { return Ref{Kind: KindDocument, ID: d.ID} }
func (d *Document) Author() *community.User { return d.User }
func (d *Document) Status() Status          { return d.State }
func (d *Document) isItem()                 {}

func (d *Document) IsInitialVersion() bool {
	return d.Version <= 1
}

type Message struct {
	ID       int64           `json:"id"`
	ThreadID int64           `json:"thread_id"`
	User     *community.User `json:"user,omitempty"`
	State    Status          `json:"status"`
	Subject  string          `json:"subject,omitempty"`
}

func (m *Message) Ref() Ref                { return Ref{Kind: KindMessage, ID: m.ID} }
func (m *Message) Author() *community.User { return m.User }
func (m *Message) Status() Status          { return m.State }
func (m *Message) isItem()                 {}

// A forum thread. Its author is the author of the root message, which can differ from the authors of replies.
type Thread struct {
	ID            int64           `json:"id"`
	RootMessageID int64           `json:"root_message_id"`
	User          *community.User `json:"user,omitempty"`
	State         Status          `json:"status"`
	Subject       string          `json:"subject,omitempty"`
}

func (t *Thread) Ref() Ref                { return Ref{Kind: KindThread, ID: t.ID} }
func (t *Thread) Author() *community.User { return t.User }
func (t *Thread) Status() Status          { return t.State }
func (t *Thread) isItem()                 {}

type BlogPost struct {
	ID      int64           `json:"id"`
	BlogID  int64           `json:"blog_id"`
	User    *community.User `json:"user,omitempty"`
	State   Status          `json:"status"`
	Subject string          `json:"subject,omitempty"`
}

func (p *BlogPost) Ref() Ref                { return Ref{Kind: KindBlogPost, ID: p.ID} }
func (p *BlogPost) Author() *community.User { return p.User }
func (p *BlogPost) Status() Status          { return p.State }
func (p *BlogPost) isItem()                 {}

// An external URL which users have bookmarked. The platform does not record who first submitted the URL, so it never has an author.
type ExternalURL struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	State Status `json:"status"`
}

func (u *ExternalURL) Ref() Ref                { return Ref{Kind: KindExternalURL, ID: u.ID} }
func (u *ExternalURL) Author() *community.User { return nil }
func (u *ExternalURL) Status() Status          { return u.State }
func (u *ExternalURL) isItem()                 {}

type Blog struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Personal blog of a single user, as opposed to a community or group blog.
	UserBlog bool `json:"user_blog"`
}

// Human-readable label for log lines.
func Subject(item Item) string {
	switch v := item.(type) {
	case *Document:
		return v.Subject
	case *Message:
		return v.Subject
	case *Thread:
		return v.Subject
	case *BlogPost:
		return v.Subject
	case *ExternalURL:
		return v.URL
	}
	return ""
}
