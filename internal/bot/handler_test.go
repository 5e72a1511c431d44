package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/filter"
	"github.com/ghostbot/ghostbot/internal/logging"
	"github.com/ghostbot/ghostbot/internal/mentions"
)

func init() {
	logging.Suppress()
}

const (
	testGuild    = "guild-1"
	testChannel  = "chan-1"
	testShowcase = "showcase-1"
	botUserID    = "bot-1"
)

// fakeDiscord implements every Discord call the bot makes and records them.
type fakeDiscord struct {
	mu      sync.Mutex
	calls   []string
	emojis  []discord.Emoji
	replyID int
	notices []string
}

func (f *fakeDiscord) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeDiscord) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDiscord) ListGuildEmojis(_ context.Context, guildID string) ([]discord.Emoji, error) {
	f.record("ListGuildEmojis %s", guildID)
	return f.emojis, nil
}

func (f *fakeDiscord) SendDirectMessage(_ context.Context, userID string, msg *discord.MessageSend, _ []discord.File) (*discord.Message, error) {
	f.record("SendDirectMessage %s %s", userID, msg.Content)
	return &discord.Message{ID: "dm"}, nil
}

func (f *fakeDiscord) ReplyTo(_ context.Context, channelID, messageID string, msg *discord.MessageSend) (*discord.Message, error) {
	f.mu.Lock()
	f.replyID++
	id := fmt.Sprintf("reply-%d", f.replyID)
	f.mu.Unlock()
	f.record("ReplyTo %s %s %s", channelID, messageID, msg.Content)
	return &discord.Message{ID: id, ChannelID: channelID}, nil
}

func (f *fakeDiscord) EditMessage(_ context.Context, channelID, messageID string, edit *discord.MessageEdit) (*discord.Message, error) {
	content := "<unchanged>"
	if edit.Content != nil {
		content = *edit.Content
	}
	f.record("EditMessage %s %s %s", channelID, messageID, content)
	return &discord.Message{ID: messageID}, nil
}

func (f *fakeDiscord) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.record("DeleteMessage %s %s", channelID, messageID)
	return nil
}

func (f *fakeDiscord) CreateInteractionResponse(_ context.Context, interactionID, _ string, responseType int, _ *discord.InteractionCallbackData) error {
	f.record("CreateInteractionResponse %s %d", interactionID, responseType)
	return nil
}

func (f *fakeDiscord) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
	return nil
}

// refRenderer renders one line per parsed reference.
type refRenderer struct{}

func (refRenderer) Render(_ context.Context, content string) (string, int) {
	refs := mentions.ParseReferences(content)
	var lines []string
	for _, ref := range refs {
		lines = append(lines, fmt.Sprintf("entity %d", ref.Number))
	}
	return strings.Join(lines, ","), len(refs)
}

func newTestHandler(t *testing.T) (*Handler, *fakeDiscord) {
	t.Helper()
	fake := &fakeDiscord{}
	replies := mentions.NewReplyManager(fake, refRenderer{}, mentions.NewLinkStore(), mentions.ReplyOptions{ButtonTimeout: time.Hour})
	msgFilter := filter.New(fake, &filter.Config{ShowcaseChannelID: testShowcase})

	h, err := NewHandler(&HandlerConfig{GuildID: testGuild, SnapshotSize: 16, Workers: 2},
		fake, replies, msgFilter, mentions.NewEmojiSet(), fake)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h, fake
}

func event(name string, payload any) discord.GatewayEvent {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return discord.GatewayEvent{Op: discord.OpcodeDispatch, T: &name, D: data}
}

func message(id, channelID, guildID, authorID, content string) discord.Message {
	return discord.Message{
		ID:        id,
		ChannelID: channelID,
		GuildID:   guildID,
		Author:    &discord.User{ID: authorID, Username: authorID},
		Content:   content,
	}
}

func TestDispatchReadyLoadsEmojis(t *testing.T) {
	h, fake := newTestHandler(t)
	fake.emojis = []discord.Emoji{{ID: "1", Name: mentions.EmojiIssueOpen}}

	h.Dispatch(context.Background(), event(discord.EventReady, discord.Ready{
		SessionID: "s",
		User:      discord.User{ID: botUserID},
	}))

	if h.emojis.Glyph(mentions.EmojiIssueOpen) != "<:issue_open:1>" {
		t.Errorf("issue_open not loaded")
	}
	if len(fake.notices) != 1 || !strings.HasPrefix(fake.notices[0], "Failed to load the following emojis: ") {
		t.Errorf("expected missing-emoji report, got %v", fake.notices)
	}
	if strings.Contains(fake.notices[0], mentions.EmojiIssueOpen) {
		t.Errorf("loaded emoji reported missing: %s", fake.notices[0])
	}

	// Messages from the bot itself are ignored from now on.
	h.Dispatch(context.Background(), event(discord.EventMessageCreate, message("m1", testChannel, testGuild, botUserID, "#42")))
	for _, call := range fake.recorded() {
		if strings.HasPrefix(call, "ReplyTo") {
			t.Errorf("bot replied to itself: %s", call)
		}
	}
}

func TestDispatchMessageLifecycle(t *testing.T) {
	h, fake := newTestHandler(t)
	ctx := context.Background()

	// Update payloads may leave out the author and guild; the snapshot fills them in.
	update := message("m1", testChannel, "", "", "see #42 and #99")
	update.Author = nil

	h.Dispatch(ctx, event(discord.EventMessageCreate, message("m1", testChannel, testGuild, "u1", "see #42")))
	h.Dispatch(ctx, event(discord.EventMessageUpdate, update))
	h.Dispatch(ctx, event(discord.EventMessageDelete, discord.MessageDelete{ID: "m1", ChannelID: testChannel, GuildID: testGuild}))

	want := []string{
		"ReplyTo chan-1 m1 entity 42",
		"EditMessage chan-1 reply-1 entity 42,entity 99",
		"DeleteMessage chan-1 reply-1",
	}
	if got := fake.recorded(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestDispatchUpdateWithoutContentKeepsReply(t *testing.T) {
	h, fake := newTestHandler(t)
	ctx := context.Background()

	h.Dispatch(ctx, event(discord.EventMessageCreate, message("m1", testChannel, testGuild, "u1", "see #42")))
	// Link previews arrive as an update with embeds and no content key.
	h.Dispatch(ctx, event(discord.EventMessageUpdate, map[string]any{
		"id":         "m1",
		"channel_id": testChannel,
		"guild_id":   testGuild,
		"embeds":     []map[string]string{{"url": "https://example.com"}},
	}))

	want := []string{"ReplyTo chan-1 m1 entity 42"}
	if got := fake.recorded(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("calls = %q, want %q", got, want)
	}
	if h.replies.Links().Len() != 1 {
		t.Errorf("link dropped by embed update")
	}

	// An explicit empty content is a real edit and removes the reply.
	h.Dispatch(ctx, event(discord.EventMessageUpdate, map[string]any{
		"id":         "m1",
		"channel_id": testChannel,
		"content":    "",
	}))
	calls := fake.recorded()
	if len(calls) != 2 || calls[1] != "DeleteMessage chan-1 reply-1" {
		t.Errorf("calls = %q, want reply deleted", calls)
	}
}

func TestShardKeepsMessageEventsTogether(t *testing.T) {
	h, _ := newTestHandler(t)
	h.queues = make([]chan queuedEvent, 8)

	create, _ := json.Marshal(message("m1", testChannel, testGuild, "u1", "#42"))
	del, _ := json.Marshal(discord.MessageDelete{ID: "m1", ChannelID: testChannel})
	if h.shard(create) != h.shard(del) {
		t.Errorf("create and delete of one message on different workers")
	}

	// Messages in one channel spread over workers.
	seen := make(map[int]bool)
	for i := range 32 {
		data, _ := json.Marshal(message(fmt.Sprintf("m%d", i), testChannel, testGuild, "u1", ""))
		seen[h.shard(data)] = true
	}
	if len(seen) < 2 {
		t.Errorf("all messages of a channel on one worker")
	}
}

func TestDispatchEditOfUnknownMessageIgnored(t *testing.T) {
	h, fake := newTestHandler(t)

	h.Dispatch(context.Background(), event(discord.EventMessageUpdate, message("old", testChannel, testGuild, "u1", "#42")))

	if calls := fake.recorded(); len(calls) != 0 {
		t.Errorf("expected no calls, got %v", calls)
	}
}

func TestDispatchFilteredMessageGetsNoReply(t *testing.T) {
	h, fake := newTestHandler(t)

	h.Dispatch(context.Background(), event(discord.EventMessageCreate, message("m1", testShowcase, testGuild, "u1", "my config #42")))

	calls := fake.recorded()
	if len(calls) != 2 || calls[0] != "DeleteMessage showcase-1 m1" || !strings.HasPrefix(calls[1], "SendDirectMessage u1 Hey!") {
		t.Errorf("unexpected calls %q", calls)
	}
}

func TestDispatchDirectMessages(t *testing.T) {
	h, fake := newTestHandler(t)
	ctx := context.Background()

	h.Dispatch(ctx, event(discord.EventMessageCreate, message("d1", "dm-chan", "", "u1", "ping")))
	h.Dispatch(ctx, event(discord.EventMessageCreate, message("d2", "dm-chan", "", "u1", "what is #42")))

	want := []string{
		"SendDirectMessage u1 pong",
		"SendDirectMessage u1 " + mentions.DMNotice,
	}
	if got := fake.recorded(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestDispatchDismissInteraction(t *testing.T) {
	h, fake := newTestHandler(t)
	ctx := context.Background()

	h.Dispatch(ctx, event(discord.EventMessageCreate, message("m1", testChannel, testGuild, "u1", "#42")))
	customID := discord.BuildDismissButton(discord.DismissTarget{AuthorID: "u1", EntityCount: 1})[0].Components[0].CustomID
	h.Dispatch(ctx, event(discord.EventInteractionCreate, discord.InteractionCreate{
		ID:        "ic-1",
		Token:     "tok",
		Type:      discord.InteractionTypeMessageComponent,
		GuildID:   testGuild,
		ChannelID: testChannel,
		Member:    &discord.Member{User: &discord.User{ID: "u1"}},
		Data:      discord.InteractionData{CustomID: customID, ComponentType: discord.ComponentTypeButton},
		Message:   &discord.Message{ID: "reply-1", ChannelID: testChannel},
	}))

	calls := fake.recorded()
	if len(calls) != 3 || calls[2] != "DeleteMessage chan-1 reply-1" {
		t.Errorf("unexpected calls %q", calls)
	}
	if h.replies.Links().Len() != 0 {
		t.Errorf("link not dropped")
	}
}

// fakeGateway replays events and then either closes the stream or holds it
// open until the context ends.
type fakeGateway struct {
	events   []discord.GatewayEvent
	holdOpen bool
	closed   atomic.Bool
}

func (g *fakeGateway) Connect(context.Context) error { return nil }

func (g *fakeGateway) Listen(ctx context.Context) (<-chan discord.GatewayEvent, error) {
	out := make(chan discord.GatewayEvent)
	go func() {
		defer close(out)
		for _, evt := range g.events {
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
		if g.holdOpen {
			<-ctx.Done()
		}
	}()
	return out, nil
}

func (g *fakeGateway) Close() error {
	g.closed.Store(true)
	return nil
}

func TestRunReconnects(t *testing.T) {
	h, fake := newTestHandler(t)
	h.reconnectDelay = time.Millisecond

	first := &fakeGateway{events: []discord.GatewayEvent{
		event(discord.EventMessageCreate, message("m1", testChannel, testGuild, "u1", "#42")),
	}}
	second := &fakeGateway{holdOpen: true, events: []discord.GatewayEvent{
		event(discord.EventMessageCreate, message("m2", testChannel, testGuild, "u1", "#43")),
	}}
	gateways := []*fakeGateway{first, second}
	var connects atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.Run(ctx, func() Gateway {
			n := connects.Add(1)
			if int(n) <= len(gateways) {
				return gateways[n-1]
			}
			return &fakeGateway{holdOpen: true}
		})
	}()

	deadline := time.After(2 * time.Second)
	for len(fake.recorded()) < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("timed out, calls so far: %v", fake.recorded())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
	if !first.closed.Load() || !second.closed.Load() {
		t.Error("expected both gateways to be closed")
	}
	if connects.Load() != 2 {
		t.Errorf("connects = %d, want 2", connects.Load())
	}
}
