package content

import (
	"context"

	"github.com/forumguard/spamguard/antispam/community"
)

// Read access to the content store. An empty statuses filter means "any status".
type Enumerator interface {
	UserDocuments(ctx context.Context, u *community.User, statuses ...Status) ([]*Document, error)
	UserMessages(ctx context.Context, u *community.User, statuses ...Status) ([]*Message, error)
	GetThread(ctx context.Context, threadID int64) (*Thread, error)
	// Blogs the user is explicitly entitled to, personal or not.
	UserBlogs(ctx context.Context, u *community.User) ([]*Blog, error)
	BlogPosts(ctx context.Context, blogID int64, statuses ...Status) ([]*BlogPost, error)
	UserBookmarkedURLs(ctx context.Context, u *community.User) ([]*ExternalURL, error)
	// Returns ErrNotFound (possibly wrapped) if the item no longer exists.
	LoadItem(ctx context.Context, ref Ref) (Item, error)
}
