package governor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/throttle"

	"github.com/stretchr/testify/assert"
)

type fakeLevels struct {
	points map[int64]int64
	err    error
}

func (f *fakeLevels) PointLevel(ctx context.Context, u *community.User) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.points[u.ID], nil
}

type fakeGroups struct {
	groups  map[int64]bool
	members map[int64][]int64
	// groups which exist at configuration time but vanish afterwards
	deleted map[int64]bool
}

func (f *fakeGroups) LookupGroup(ctx context.Context, id int64) (*community.Group, error) {
	if !f.groups[id] {
		return nil, community.ErrGroupNotFound
	}
	return &community.Group{ID: id}, nil
}

func (f *fakeGroups) IsMember(ctx context.Context, groupID int64, u *community.User) (bool, error) {
	if f.deleted[groupID] || !f.groups[groupID] {
		return false, community.ErrGroupNotFound
	}
	for _, uid := range f.members[groupID] {
		if uid == u.ID {
			return true, nil
		}
	}
	return false, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type gateFixture struct {
	gate   *Gate
	clock  *fakeClock
	levels *fakeLevels
	groups *fakeGroups
	reg    *throttle.Registry
}

func newGateFixture() *gateFixture {
	clk := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	levels := &fakeLevels{points: map[int64]int64{}}
	groups := &fakeGroups{
		groups:  map[int64]bool{1001: true, 1002: true},
		members: map[int64][]int64{1002: {30}},
		deleted: map[int64]bool{},
	}
	reg := throttle.NewRegistry(throttle.MemFactory(clk.Now), nil)
	scope := throttle.Scope{ContentType: "message", ContainerID: 7}
	return &gateFixture{
		gate:   NewGate(context.Background(), scope, reg, levels, groups, nil),
		clock:  clk,
		levels: levels,
		groups: groups,
		reg:    reg,
	}
}

func post(u *community.User, id int64) content.Item {
	return &content.Message{ID: id, ThreadID: 1, User: u, State: content.StatusPublished}
}

func TestGateThrottle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newGateFixture()
	u := &community.User{ID: 10, Username: "alice", Email: "alice@example.com"}

	d := f.gate.Check(ctx, post(u, 1))
	assert.True(d.Allowed)
	assert.Equal(ReasonFirstInWindow, d.Reason)
	assert.NoError(d.Err())

	f.clock.Advance(10 * time.Second)
	second := post(u, 2)
	d = f.gate.Check(ctx, second)
	assert.False(d.Allowed)
	assert.Equal(ReasonThrottled, d.Reason)
	assert.Equal("Not allowed to post content more than once every 30 seconds.", d.Message)

	var rejected *RejectedError
	assert.True(errors.As(d.Err(), &rejected))
	assert.Equal(d.Message, rejected.Message)
	assert.Same(second, rejected.Item)

	// other users are independent
	d = f.gate.Check(ctx, post(&community.User{ID: 11}, 3))
	assert.True(d.Allowed)

	// window never shorter than configured, and over by one and a half
	f.clock.Advance(19 * time.Second)
	assert.False(f.gate.Check(ctx, post(u, 4)).Allowed)
	f.clock.Advance(20 * time.Second)
	assert.True(f.gate.Check(ctx, post(u, 5)).Allowed)
}

func TestGateConcurrentSameUser(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newGateFixture()
	u := &community.User{ID: 10}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if f.gate.Check(ctx, post(u, id)).Allowed {
				allowed.Add(1)
			}
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(int64(1), allowed.Load())
}

func TestGateBypassRules(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newGateFixture()
	f.gate.SetEmailDomainWhitelist("redhat.com jboss.org")
	assert.NoError(f.gate.SetGroupWhitelist(ctx, "1001 1002"))
	f.levels.points[20] = 11

	tests := []struct {
		name   string
		item   content.Item
		reason Reason
	}{
		{"anonymous", post(&community.User{ID: 1, Anonymous: true}, 1), ReasonAnonymous},
		{"no author", post(nil, 1), ReasonAnonymous},
		{"email", post(&community.User{ID: 2, Email: "bob@RedHat.com"}, 1), ReasonEmailWhitelist},
		{"points", post(&community.User{ID: 20}, 1), ReasonPoints},
		{"group", post(&community.User{ID: 30}, 1), ReasonGroupWhitelist},
		{"document edit", &content.Document{ID: 5, Version: 2, User: &community.User{ID: 40}}, ReasonDocumentEdit},
	}

	for _, tc := range tests {
		// repeated submissions never trip the throttle
		for i := 0; i < 3; i++ {
			d := f.gate.Check(ctx, tc.item)
			assert.True(d.Allowed, tc.name)
			assert.Equal(tc.reason, d.Reason, tc.name)
		}
	}

	// points must strictly exceed the threshold
	f.levels.points[21] = 10
	assert.Equal(ReasonFirstInWindow, f.gate.Check(ctx, post(&community.User{ID: 21}, 1)).Reason)
	assert.False(f.gate.Check(ctx, post(&community.User{ID: 21}, 2)).Allowed)

	// initial document versions are throttled like everything else
	doc := &content.Document{ID: 6, Version: 1, User: &community.User{ID: 41}}
	assert.True(f.gate.Check(ctx, doc).Allowed)
	assert.False(f.gate.Check(ctx, doc).Allowed)
}

func TestGateBypassDominatesThrottle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newGateFixture()
	u := &community.User{ID: 50, Email: "carol@jboss.org"}

	assert.True(f.gate.Check(ctx, post(u, 1)).Allowed)
	assert.False(f.gate.Check(ctx, post(u, 2)).Allowed)

	// whitelisting after the throttle window was marked still lets the user through
	f.gate.SetEmailDomainWhitelist("jboss.org")
	assert.True(f.gate.Check(ctx, post(u, 3)).Allowed)
}

func TestGateLookupFailuresDegrade(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newGateFixture()
	assert.NoError(f.gate.SetGroupWhitelist(ctx, "1001 1002"))

	// 1001 disappears after configuration; membership in 1002 still counts
	f.groups.deleted[1001] = true
	d := f.gate.Check(ctx, post(&community.User{ID: 30}, 1))
	assert.True(d.Allowed)
	assert.Equal(ReasonGroupWhitelist, d.Reason)

	f.levels.err = errors.New("directory down")
	u := &community.User{ID: 60}
	assert.Equal(ReasonFirstInWindow, f.gate.Check(ctx, post(u, 1)).Reason)
	assert.Equal(ReasonThrottled, f.gate.Check(ctx, post(u, 2)).Reason)
}

func TestGateGroupWhitelistValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newGateFixture()

	assert.NoError(f.gate.SetGroupWhitelist(ctx, "1001"))
	assert.Equal([]int64{1001}, f.gate.Config().Groups)

	err := f.gate.SetGroupWhitelist(ctx, "1001 9999")
	var ige *InvalidGroupError
	assert.True(errors.As(err, &ige))
	assert.Equal(int64(9999), ige.ID)
	assert.ErrorIs(err, community.ErrGroupNotFound)
	assert.Empty(f.gate.Config().Groups)

	assert.NoError(f.gate.SetGroupWhitelist(ctx, "1002"))
	assert.Error(f.gate.SetGroupWhitelist(ctx, "abc"))
	assert.Empty(f.gate.Config().Groups)
}

func TestGateConfigure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newGateFixture()
	u := &community.User{ID: 70}

	assert.True(f.gate.Check(ctx, post(u, 1)).Allowed)

	err := f.gate.Configure(ctx, Config{
		PointsThreshold:     5,
		PostIntervalSeconds: 0,
		RejectionMessage:    "Wait {0} seconds between posts",
		EmailDomains:        []string{"example.org"},
		Groups:              []int64{1001},
	})
	assert.NoError(err)

	cfg := f.gate.Config()
	assert.Equal(DefaultPostIntervalSeconds, cfg.PostIntervalSeconds)
	assert.Equal(int64(5), cfg.PointsThreshold)

	// reconfiguration starts a fresh throttle window
	assert.True(f.gate.Check(ctx, post(u, 2)).Allowed)
	d := f.gate.Check(ctx, post(u, 3))
	assert.False(d.Allowed)
	assert.Equal("Wait 30 seconds between posts", d.Message)
	assert.Equal(1, f.reg.Len())

	err = f.gate.Configure(ctx, Config{PostIntervalSeconds: 60, Groups: []int64{1001, 4242}})
	assert.Error(err)
	cfg = f.gate.Config()
	assert.Empty(cfg.Groups)
	assert.Equal(DefaultPostIntervalSeconds, cfg.PostIntervalSeconds)
}

func TestGateSetPostInterval(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newGateFixture()
	u := &community.User{ID: 80}

	f.gate.SetPostInterval(ctx, -5)
	assert.Equal(DefaultPostIntervalSeconds, f.gate.Config().PostIntervalSeconds)

	f.gate.SetPostInterval(ctx, 120)
	f.gate.SetRejectionMessage("Only one post per {0} seconds")
	assert.True(f.gate.Check(ctx, post(u, 1)).Allowed)
	f.clock.Advance(100 * time.Second)
	d := f.gate.Check(ctx, post(u, 2))
	assert.False(d.Allowed)
	assert.Equal("Only one post per 120 seconds", d.Message)
}
