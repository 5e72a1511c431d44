package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v79/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the requested issue, pull request, discussion
// or repository does not exist (or is not visible to the token).
var ErrNotFound = errors.New("github: not found")

// Client is the issue tracker collaborator: REST for issues, pull requests
// and repository search, GraphQL for discussions.
type Client struct {
	rest    *gogithub.Client
	graphql *githubv4.Client
	limiter *rate.Limiter
	retry   RetryOptions
}

// NewClient creates a new GitHub client
func NewClient(token string) *Client {
	httpClient := newHTTPClient(token)
	return newClient(gogithub.NewClient(httpClient), githubv4.NewClient(httpClient))
}

// NewClientWithBaseURL creates a new GitHub client against a custom API root
// (for testing). GraphQL is served from baseURL + "/graphql".
func NewClientWithBaseURL(token, baseURL string) *Client {
	httpClient := newHTTPClient(token)

	rest := gogithub.NewClient(httpClient)
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err == nil {
		rest.BaseURL = u
	}
	return newClient(rest, githubv4.NewEnterpriseClient(strings.TrimSuffix(baseURL, "/")+"/graphql", httpClient))
}

func newClient(rest *gogithub.Client, graphql *githubv4.Client) *Client {
	return &Client{
		rest:    rest,
		graphql: graphql,
		limiter: rate.NewLimiter(rate.Inf, 0),
		retry:   DefaultRetryOptions(),
	}
}

func newHTTPClient(token string) *http.Client {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = 30 * time.Second
	return httpClient
}

// SetRateLimit caps outgoing requests. A non-positive rps disables the cap.
func (c *Client) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// call runs op under the rate limiter with retries, translating 404s.
func call[T any](ctx context.Context, c *Client, op func() (T, error)) (T, error) {
	result, err := WithRetry(ctx, func() (T, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return op()
	}, c.retry)
	if isNotFoundError(err) && !errors.Is(err, ErrNotFound) {
		return result, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return result, err
}

// GetIssue fetches an issue by owner, repo, and number
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	return call(ctx, c, func() (*Issue, error) {
		issue, _, err := c.rest.Issues.Get(ctx, owner, repo, number)
		if err != nil {
			return nil, err
		}
		return &Issue{
			Number:        issue.GetNumber(),
			Title:         issue.GetTitle(),
			State:         issue.GetState(),
			StateReason:   issue.GetStateReason(),
			HTMLURL:       issue.GetHTMLURL(),
			User:          User{Login: issue.GetUser().GetLogin()},
			CreatedAt:     issue.GetCreatedAt().Time,
			IsPullRequest: issue.IsPullRequest(),
		}, nil
	})
}

// GetPullRequest fetches a pull request by number
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	return call(ctx, c, func() (*PullRequest, error) {
		pr, _, err := c.rest.PullRequests.Get(ctx, owner, repo, number)
		if err != nil {
			return nil, err
		}
		return &PullRequest{
			Number:    pr.GetNumber(),
			Title:     pr.GetTitle(),
			State:     pr.GetState(),
			Draft:     pr.GetDraft(),
			Merged:    pr.GetMerged(),
			HTMLURL:   pr.GetHTMLURL(),
			User:      User{Login: pr.GetUser().GetLogin()},
			CreatedAt: pr.GetCreatedAt().Time,
		}, nil
	})
}

// discussionQuery mirrors:
//
//	repository(owner: $owner, name: $repo) {
//	  discussion(number: $number) { title number url createdAt isAnswered author { login } }
//	}
type discussionQuery struct {
	Repository struct {
		Discussion *struct {
			Title      githubv4.String
			Number     githubv4.Int
			URL        githubv4.String
			CreatedAt  githubv4.DateTime
			IsAnswered *githubv4.Boolean
			Author     *struct {
				Login githubv4.String
			}
		} `graphql:"discussion(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $repo)"`
}

// GetDiscussion fetches a discussion through the GraphQL API.
func (c *Client) GetDiscussion(ctx context.Context, owner, repo string, number int) (*Discussion, error) {
	return call(ctx, c, func() (*Discussion, error) {
		var q discussionQuery
		vars := map[string]interface{}{
			"owner":  githubv4.String(owner),
			"repo":   githubv4.String(repo),
			"number": githubv4.Int(int32(number)), //nolint:gosec // mention numbers have at most 6 digits
		}
		if err := c.graphql.Query(ctx, &q, vars); err != nil {
			return nil, err
		}

		d := q.Repository.Discussion
		if d == nil {
			return nil, ErrNotFound
		}
		out := &Discussion{
			Number:    int(d.Number),
			Title:     string(d.Title),
			HTMLURL:   string(d.URL),
			CreatedAt: d.CreatedAt.Time,
			Answered:  d.IsAnswered != nil && bool(*d.IsAnswered),
		}
		if d.Author != nil {
			out.User.Login = string(d.Author.Login)
		} else {
			out.User.Login = "ghost"
		}
		return out, nil
	})
}

// SearchRepositories searches repositories by name, most starred first.
func (c *Client) SearchRepositories(ctx context.Context, name string) ([]*Repository, error) {
	return call(ctx, c, func() ([]*Repository, error) {
		opts := &gogithub.SearchOptions{
			Sort:        "stars",
			Order:       "desc",
			ListOptions: gogithub.ListOptions{PerPage: 20},
		}
		result, _, err := c.rest.Search.Repositories(ctx, name, opts)
		if err != nil {
			return nil, err
		}

		repos := make([]*Repository, 0, len(result.Repositories))
		for _, r := range result.Repositories {
			repos = append(repos, &Repository{
				Name:     r.GetName(),
				FullName: r.GetFullName(),
				Owner:    User{Login: r.GetOwner().GetLogin()},
				Stars:    r.GetStargazersCount(),
			})
		}
		return repos, nil
	})
}

// isNotFoundError checks for a REST 404 or a GraphQL "could not resolve" error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var errResp *gogithub.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode == http.StatusNotFound
	}
	return strings.Contains(err.Error(), "Could not resolve to")
}
