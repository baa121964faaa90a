package antispam

import (
	"github.com/forumguard/spamguard/antispam/community"
	"github.com/forumguard/spamguard/antispam/content"
	"github.com/forumguard/spamguard/antispam/firstpost"
	"github.com/forumguard/spamguard/antispam/governor"
	"github.com/forumguard/spamguard/antispam/spam"
	"github.com/forumguard/spamguard/antispam/throttle"
)

type User = community.User
type Item = content.Item
type Ref = content.Ref
type Scope = throttle.Scope

type GovernorConfig = governor.Config
type Decision = governor.Decision
type RejectedError = governor.RejectedError
type Outcome = firstpost.Outcome

type SpamManager = spam.Manager
type Notifier = spam.Notifier
type SlackNotifier = spam.SlackNotifier
type ReportSummary = spam.ReportSummary
type ResolveSummary = spam.ResolveSummary

var (
	ErrNotFound        = content.ErrNotFound
	ErrUserNotFound    = community.ErrUserNotFound
	ErrGroupNotFound   = community.ErrGroupNotFound
	ErrSpammerNotFound = spam.ErrSpammerNotFound
)
