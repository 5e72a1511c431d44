// Package mentions turns issue, pull request and discussion references in
// chat messages into formatted replies and keeps those replies in sync with
// the messages that produced them.
package mentions

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key resolves to no issue, pull request or discussion.
var ErrNotFound = errors.New("entity not found")

// Kind identifies which of the three entity shapes an Entity carries.
type Kind int

const (
	KindIssue Kind = iota + 1
	KindPullRequest
	KindDiscussion
)

func (k Kind) String() string {
	switch k {
	case KindIssue:
		return "Issue"
	case KindPullRequest:
		return "Pull Request"
	case KindDiscussion:
		return "Discussion"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Key is the canonical identity of an entity once a reference is resolved.
type Key struct {
	Owner  string
	Repo   string
	Number int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s#%d", k.Owner, k.Repo, k.Number)
}

// IssueState is the issue-only part of an Entity.
type IssueState struct {
	State       string // open, closed
	StateReason string // completed, not_planned, reopened, or empty
}

// PullRequestState is the pull-request-only part of an Entity.
type PullRequestState struct {
	State  string
	Draft  bool
	Merged bool
}

// DiscussionState is the discussion-only part of an Entity.
type DiscussionState struct {
	Answered bool
}

// Entity is an immutable snapshot of an issue, pull request or discussion.
// Exactly one of Issue, PullRequest and Discussion is set, matching Kind.
type Entity struct {
	Kind      Kind
	Key       Key
	Number    int
	Title     string
	HTMLURL   string
	Author    string
	CreatedAt time.Time

	Issue       *IssueState
	PullRequest *PullRequestState
	Discussion  *DiscussionState
}
