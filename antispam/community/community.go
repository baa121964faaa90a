package community

import (
	"context"
	"errors"
)

var ErrUserNotFound = errors.New("user not found")

var ErrGroupNotFound = errors.New("group not found")

// Platform account, as seen by the policy layer. Authoritative state lives in the user directory.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// Registered (non-anonymous) users are the only ones subject to throttling and reporting.
func (u *User) IsRegistered() bool {
	return u != nil && !u.Anonymous
}

type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type UserDirectory interface {
	LookupUserID(ctx context.Context, id int64) (*User, error)
	LookupUsername(ctx context.Context, username string) (*User, error)
	DisableUser(ctx context.Context, u *User) error
	EnableUser(ctx context.Context, u *User) error
}

type GroupDirectory interface {
	LookupGroup(ctx context.Context, id int64) (*Group, error)
	// Returns ErrGroupNotFound if the group no longer exists.
	IsMember(ctx context.Context, groupID int64, u *User) (bool, error)
}

// Reputation ("status level") points for a user.
type StatusLevels interface {
	PointLevel(ctx context.Context, u *User) (int64, error)
}
