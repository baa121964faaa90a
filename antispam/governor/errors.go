package governor

import (
	"fmt"

	"github.com/forumguard/spamguard/antispam/content"
)

// Returned by Decision.Err when a submission is denied. Message is meant for the submitter.
type RejectedError struct {
	Message string
	Item    content.Item
}

func (e *RejectedError) Error() string {
	return e.Message
}

// A group whitelist entry which is not numeric or does not resolve in the group directory.
type InvalidGroupError struct {
	Raw string
	ID  int64
	Err error
}

func (e *InvalidGroupError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("invalid whitelist group %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("invalid whitelist group %d: %v", e.ID, e.Err)
}

func (e *InvalidGroupError) Unwrap() error {
	return e.Err
}
