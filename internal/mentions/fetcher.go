package mentions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghostbot/ghostbot/internal/adapters/github"
)

// DefaultEntityTTR is how long a fetched entity is served before it is refetched.
const DefaultEntityTTR = 30 * time.Minute

// Tracker is the issue tracker the Fetcher reads from.
type Tracker interface {
	GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	GetDiscussion(ctx context.Context, owner, repo string, number int) (*github.Discussion, error)
}

// Fetcher loads a single entity, trying issue, then pull request, then discussion.
type Fetcher struct {
	tracker Tracker
}

// NewFetcher creates a Fetcher.
func NewFetcher(tracker Tracker) *Fetcher {
	return &Fetcher{tracker: tracker}
}

// Fetch resolves key to an entity. Issues flagged as pull requests are
// refetched as pull requests; numbers that are no issue are looked up as
// discussions. ErrNotFound is returned when all lookups miss.
func (f *Fetcher) Fetch(ctx context.Context, key Key) (Entity, error) {
	issue, err := f.tracker.GetIssue(ctx, key.Owner, key.Repo, key.Number)
	switch {
	case err == nil && issue.IsPullRequest:
		return f.fetchPullRequest(ctx, key)
	case err == nil:
		return Entity{
			Kind:      KindIssue,
			Key:       key,
			Number:    issue.Number,
			Title:     issue.Title,
			HTMLURL:   issue.HTMLURL,
			Author:    issue.User.Login,
			CreatedAt: issue.CreatedAt,
			Issue:     &IssueState{State: issue.State, StateReason: issue.StateReason},
		}, nil
	case errors.Is(err, github.ErrNotFound):
		return f.fetchDiscussion(ctx, key)
	default:
		return Entity{}, fmt.Errorf("get issue %s: %w", key, err)
	}
}

func (f *Fetcher) fetchPullRequest(ctx context.Context, key Key) (Entity, error) {
	pr, err := f.tracker.GetPullRequest(ctx, key.Owner, key.Repo, key.Number)
	if err != nil {
		return Entity{}, fmt.Errorf("get pull request %s: %w", key, err)
	}
	return Entity{
		Kind:        KindPullRequest,
		Key:         key,
		Number:      pr.Number,
		Title:       pr.Title,
		HTMLURL:     pr.HTMLURL,
		Author:      pr.User.Login,
		CreatedAt:   pr.CreatedAt,
		PullRequest: &PullRequestState{State: pr.State, Draft: pr.Draft, Merged: pr.Merged},
	}, nil
}

func (f *Fetcher) fetchDiscussion(ctx context.Context, key Key) (Entity, error) {
	d, err := f.tracker.GetDiscussion(ctx, key.Owner, key.Repo, key.Number)
	if errors.Is(err, github.ErrNotFound) {
		return Entity{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Entity{}, fmt.Errorf("get discussion %s: %w", key, err)
	}
	return Entity{
		Kind:       KindDiscussion,
		Key:        key,
		Number:     d.Number,
		Title:      d.Title,
		HTMLURL:    d.HTMLURL,
		Author:     d.User.Login,
		CreatedAt:  d.CreatedAt,
		Discussion: &DiscussionState{Answered: d.Answered},
	}, nil
}
