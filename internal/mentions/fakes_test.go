package mentions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/adapters/github"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeTracker serves issues, pull requests, discussions and repository
// searches from maps and counts calls.
type fakeTracker struct {
	mu          sync.Mutex
	issues      map[Key]*github.Issue
	pulls       map[Key]*github.PullRequest
	discussions map[Key]*github.Discussion
	repos       map[string][]*github.Repository
	failures    map[Key]error
	searchErr   error
	issueCalls  map[Key]int
	discCalls   int
	searchCalls int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		issues:      make(map[Key]*github.Issue),
		pulls:       make(map[Key]*github.PullRequest),
		discussions: make(map[Key]*github.Discussion),
		repos:       make(map[string][]*github.Repository),
		failures:    make(map[Key]error),
		issueCalls:  make(map[Key]int),
	}
}

func (f *fakeTracker) addIssue(key Key, title, state, reason string) {
	f.issues[key] = &github.Issue{
		Number:      key.Number,
		Title:       title,
		State:       state,
		StateReason: reason,
		HTMLURL:     fmt.Sprintf("https://github.com/%s/%s/issues/%d", key.Owner, key.Repo, key.Number),
		User:        github.User{Login: "alice"},
		CreatedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeTracker) GetIssue(_ context.Context, owner, repo string, number int) (*github.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := Key{Owner: owner, Repo: repo, Number: number}
	f.issueCalls[key]++
	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	if issue, ok := f.issues[key]; ok {
		return issue, nil
	}
	return nil, github.ErrNotFound
}

func (f *fakeTracker) GetPullRequest(_ context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr, ok := f.pulls[Key{Owner: owner, Repo: repo, Number: number}]; ok {
		return pr, nil
	}
	return nil, github.ErrNotFound
}

func (f *fakeTracker) GetDiscussion(_ context.Context, owner, repo string, number int) (*github.Discussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discCalls++
	if d, ok := f.discussions[Key{Owner: owner, Repo: repo, Number: number}]; ok {
		return d, nil
	}
	return nil, github.ErrNotFound
}

func (f *fakeTracker) SearchRepositories(_ context.Context, name string) ([]*github.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.repos[name], nil
}

func (f *fakeTracker) issueCallCount(key Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueCalls[key]
}

type chatCall struct {
	Method    string
	ChannelID string
	MessageID string
	Send      *discord.MessageSend
	Edit      *discord.MessageEdit
	Response  int
	Data      *discord.InteractionCallbackData
}

// fakeChat records every call and hands out sequential reply ids.
type fakeChat struct {
	mu        sync.Mutex
	calls     []chatCall
	nextID    int
	deleteErr error
	editErr   error
}

func (c *fakeChat) record(call chatCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeChat) ReplyTo(_ context.Context, channelID, messageID string, msg *discord.MessageSend) (*discord.Message, error) {
	c.record(chatCall{Method: "ReplyTo", ChannelID: channelID, MessageID: messageID, Send: msg})
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return &discord.Message{ID: fmt.Sprintf("reply-%d", c.nextID), ChannelID: channelID}, nil
}

func (c *fakeChat) EditMessage(_ context.Context, channelID, messageID string, edit *discord.MessageEdit) (*discord.Message, error) {
	c.record(chatCall{Method: "EditMessage", ChannelID: channelID, MessageID: messageID, Edit: edit})
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editErr != nil {
		return nil, c.editErr
	}
	return &discord.Message{ID: messageID, ChannelID: channelID}, nil
}

func (c *fakeChat) DeleteMessage(_ context.Context, channelID, messageID string) error {
	c.record(chatCall{Method: "DeleteMessage", ChannelID: channelID, MessageID: messageID})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteErr
}

func (c *fakeChat) SendDirectMessage(_ context.Context, userID string, msg *discord.MessageSend, _ []discord.File) (*discord.Message, error) {
	c.record(chatCall{Method: "SendDirectMessage", ChannelID: userID, Send: msg})
	return &discord.Message{ID: "dm"}, nil
}

func (c *fakeChat) CreateInteractionResponse(_ context.Context, interactionID, _ string, responseType int, data *discord.InteractionCallbackData) error {
	c.record(chatCall{Method: "CreateInteractionResponse", MessageID: interactionID, Response: responseType, Data: data})
	return nil
}

func (c *fakeChat) callsTo(method string) []chatCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []chatCall
	for _, call := range c.calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}
