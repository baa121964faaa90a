package spam

import (
	"time"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/platform"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	mgr      *Manager
	p        *platform.MockPlatform
	spammer  *community.User
	reporter *community.User
	mod      *community.User
	other    *community.User
	now      time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// Spammer (id 1) owns: published document 10, draft document 11, thread 30 with root message 20, reply 21 in thread 31 started by another user, personal blog 40 with posts 41 (published) and 42 (draft), a post 51 in community blog 50, and bookmarked URL 60.
func newFixture() *fixture {
	p := platform.NewMockPlatform()
	p.DefaultModeratorID = 9

	spammer := p.AddUser(&community.User{ID: 1, Username: "spammer", Enabled: true}, 0)
	reporter := p.AddUser(&community.User{ID: 2, Username: "reporter", Enabled: true}, 50)
	other := p.AddUser(&community.User{ID: 3, Username: "regular", Enabled: true}, 5)
	mod := p.AddUser(&community.User{ID: 9, Username: "moderator", Enabled: true}, 1000)

	p.AddItem(&content.Document{ID: 10, Version: 1, User: spammer, State: content.StatusPublished})
	p.AddItem(&content.Document{ID: 11, Version: 1, User: spammer, State: content.StatusDraft})
	p.AddItem(&content.Thread{ID: 30, RootMessageID: 20, User: spammer, State: content.StatusPublished})
	p.AddItem(&content.Message{ID: 20, ThreadID: 30, User: spammer, State: content.StatusPublished})
	p.AddItem(&content.Thread{ID: 31, RootMessageID: 25, User: other, State: content.StatusPublished})
	p.AddItem(&content.Message{ID: 25, ThreadID: 31, User: other, State: content.StatusPublished})
	p.AddItem(&content.Message{ID: 21, ThreadID: 31, User: spammer, State: content.StatusPublished})
	p.AddBlog(&content.Blog{ID: 40, Name: "spam blog", UserBlog: true}, 1)
	p.AddItem(&content.BlogPost{ID: 41, BlogID: 40, User: spammer, State: content.StatusPublished})
	p.AddItem(&content.BlogPost{ID: 42, BlogID: 40, User: spammer, State: content.StatusDraft})
	p.AddBlog(&content.Blog{ID: 50, Name: "community", UserBlog: false}, 1, 3)
	p.AddItem(&content.BlogPost{ID: 51, BlogID: 50, User: spammer, State: content.StatusPublished})
	p.AddBookmark(1, &content.ExternalURL{ID: 60, URL: "https://example.com/pills", State: content.StatusPublished})

	f := &fixture{
		p:        p,
		spammer:  spammer,
		reporter: reporter,
		mod:      mod,
		other:    other,
		now:      testNow,
	}
	f.mgr = NewManager(p, p, p, p, nil, nil)
	f.mgr.Clock = func() time.Time { return f.now }
	return f
}

func ref(kind content.Kind, id int64) content.Ref {
	return content.Ref{Kind: kind, ID: id}
}
