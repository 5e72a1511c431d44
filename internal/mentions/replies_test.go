package mentions

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
)

// refRenderer renders one line per parsed reference, so output changes
// exactly when the set of references does.
type refRenderer struct{}

func (refRenderer) Render(_ context.Context, content string) (string, int) {
	refs := ParseReferences(content)
	lines := make([]string, 0, len(refs))
	for _, ref := range refs {
		lines = append(lines, fmt.Sprintf("entity %d", ref.Number))
	}
	return strings.Join(lines, "\n"), len(refs)
}

const (
	testGuild   = "guild-1"
	testChannel = "chan-1"
	testAuthor  = "user-1"
	testModRole = "role-mod"
)

func guildMessage(id, content string) *discord.Message {
	return &discord.Message{
		ID:        id,
		ChannelID: testChannel,
		GuildID:   testGuild,
		Author:    &discord.User{ID: testAuthor, Username: "alice"},
		Content:   content,
	}
}

type replyFixture struct {
	chat    *fakeChat
	clock   *fakeClock
	manager *ReplyManager
}

func newReplyFixture(buttonTimeout time.Duration) *replyFixture {
	chat := &fakeChat{}
	clock := newFakeClock()
	manager := NewReplyManager(chat, refRenderer{}, NewLinkStore(), ReplyOptions{
		ModRoleID:     testModRole,
		ButtonTimeout: buttonTimeout,
		Clock:         clock.Now,
	})
	return &replyFixture{chat: chat, clock: clock, manager: manager}
}

func TestHandleCreatePostsReply(t *testing.T) {
	f := newReplyFixture(time.Hour)

	require.NoError(t, f.manager.HandleCreate(context.Background(), guildMessage("m1", "see #42")))

	replies := f.chat.callsTo("ReplyTo")
	require.Len(t, replies, 1)
	assert.Equal(t, "m1", replies[0].MessageID)
	assert.Equal(t, "entity 42", replies[0].Send.Content)
	assert.Equal(t, discord.NoMentions(), replies[0].Send.AllowedMentions)
	require.Len(t, replies[0].Send.Components, 1)
	target, ok := discord.ParseDismissCustomID(replies[0].Send.Components[0].Components[0].CustomID)
	require.True(t, ok)
	assert.Equal(t, discord.DismissTarget{AuthorID: testAuthor, EntityCount: 1}, target)

	link, ok := f.manager.Links().Get("m1")
	require.True(t, ok)
	assert.Equal(t, "reply-1", link.ReplyID)
	assert.Equal(t, f.clock.Now(), link.UpdatedAt)
}

func TestHandleCreateIgnores(t *testing.T) {
	tests := []struct {
		name string
		msg  *discord.Message
	}{
		{"no references", guildMessage("m1", "hello")},
		{"bot author", func() *discord.Message {
			m := guildMessage("m1", "#42")
			m.Author.Bot = true
			return m
		}()},
		{"thread created", func() *discord.Message {
			m := guildMessage("m1", "#42")
			m.Type = discord.MessageTypeThreadCreated
			return m
		}()},
		{"channel rename", func() *discord.Message {
			m := guildMessage("m1", "#42")
			m.Type = discord.MessageTypeChannelNameChange
			return m
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReplyFixture(time.Hour)
			require.NoError(t, f.manager.HandleCreate(context.Background(), tt.msg))
			assert.Empty(t, f.chat.calls)
			assert.Zero(t, f.manager.Links().Len())
		})
	}
}

func TestHandleCreateDirectMessage(t *testing.T) {
	f := newReplyFixture(time.Hour)

	dm := guildMessage("m1", "what about #42?")
	dm.GuildID = ""
	require.NoError(t, f.manager.HandleCreate(context.Background(), dm))

	notices := f.chat.callsTo("SendDirectMessage")
	require.Len(t, notices, 1)
	assert.Equal(t, testAuthor, notices[0].ChannelID)
	assert.Equal(t, DMNotice, notices[0].Send.Content)
	assert.Empty(t, f.chat.callsTo("ReplyTo"))

	plain := guildMessage("m2", "hi there")
	plain.GuildID = ""
	require.NoError(t, f.manager.HandleCreate(context.Background(), plain))
	assert.Len(t, f.chat.callsTo("SendDirectMessage"), 1)
}

func TestHandleEditUpdatesReplyInPlace(t *testing.T) {
	f := newReplyFixture(time.Hour)
	ctx := context.Background()
	before := guildMessage("m1", "#42")
	require.NoError(t, f.manager.HandleCreate(ctx, before))

	f.clock.Advance(time.Minute)
	require.NoError(t, f.manager.HandleEdit(ctx, before, guildMessage("m1", "#42 and #99")))

	assert.Len(t, f.chat.callsTo("ReplyTo"), 1)
	edits := f.chat.callsTo("EditMessage")
	require.Len(t, edits, 1)
	assert.Equal(t, "reply-1", edits[0].MessageID)
	require.NotNil(t, edits[0].Edit.Content)
	assert.Equal(t, "entity 42\nentity 99", *edits[0].Edit.Content)

	link, ok := f.manager.Links().Get("m1")
	require.True(t, ok)
	assert.Equal(t, "entity 42\nentity 99", link.Content)
	assert.Equal(t, f.clock.Now(), link.UpdatedAt)
}

func TestHandleEditRemovingAllReferencesDeletesReply(t *testing.T) {
	f := newReplyFixture(time.Hour)
	ctx := context.Background()
	before := guildMessage("m1", "#42")
	require.NoError(t, f.manager.HandleCreate(ctx, before))

	require.NoError(t, f.manager.HandleEdit(ctx, before, guildMessage("m1", "never mind")))

	deletes := f.chat.callsTo("DeleteMessage")
	require.Len(t, deletes, 1)
	assert.Equal(t, "reply-1", deletes[0].MessageID)
	_, ok := f.manager.Links().Get("m1")
	assert.False(t, ok)

	// Untracked again: adding a reference posts a fresh reply.
	require.NoError(t, f.manager.HandleEdit(ctx, guildMessage("m1", "never mind"), guildMessage("m1", "#77")))
	assert.Len(t, f.chat.callsTo("ReplyTo"), 2)
}

func TestHandleEditSameEntitiesIsNoop(t *testing.T) {
	f := newReplyFixture(time.Hour)
	ctx := context.Background()
	before := guildMessage("m1", "#42")
	require.NoError(t, f.manager.HandleCreate(ctx, before))

	require.NoError(t, f.manager.HandleEdit(ctx, before, guildMessage("m1", "#42 (typo fixed)")))
	assert.Empty(t, f.chat.callsTo("EditMessage"))
}

func TestHandleEditUntrackedWithoutReferencesActsAsCreate(t *testing.T) {
	f := newReplyFixture(time.Hour)

	err := f.manager.HandleEdit(context.Background(), guildMessage("m1", "hello"), guildMessage("m1", "#42"))
	require.NoError(t, err)

	replies := f.chat.callsTo("ReplyTo")
	require.Len(t, replies, 1)
	assert.Equal(t, "m1", replies[0].MessageID)
	link, ok := f.manager.Links().Get("m1")
	require.True(t, ok)
	assert.Equal(t, "reply-1", link.ReplyID)
	assert.Equal(t, "entity 42", link.Content)
}

func TestHandleEditDroppedLinkCanReturn(t *testing.T) {
	f := newReplyFixture(time.Hour)
	ctx := context.Background()
	require.NoError(t, f.manager.HandleCreate(ctx, guildMessage("m1", "#42")))

	require.NoError(t, f.manager.HandleEdit(ctx, guildMessage("m1", "#42"), guildMessage("m1", "nothing here")))
	require.Zero(t, f.manager.Links().Len())

	require.NoError(t, f.manager.HandleEdit(ctx, guildMessage("m1", "nothing here"), guildMessage("m1", "#42")))

	assert.Len(t, f.chat.callsTo("ReplyTo"), 2)
	assert.Len(t, f.chat.callsTo("DeleteMessage"), 1)
	link, ok := f.manager.Links().Get("m1")
	require.True(t, ok)
	assert.Equal(t, "reply-2", link.ReplyID)
}

func TestHandleEditUntrackedWithPriorReferences(t *testing.T) {
	f := newReplyFixture(time.Hour)

	err := f.manager.HandleEdit(context.Background(), guildMessage("m1", "#42"), guildMessage("m1", "#43"))
	require.NoError(t, err)
	assert.Empty(t, f.chat.calls)
}

func TestHandleEditStaleLinkStopsTracking(t *testing.T) {
	f := newReplyFixture(time.Hour)
	ctx := context.Background()
	before := guildMessage("m1", "#42")
	require.NoError(t, f.manager.HandleCreate(ctx, before))

	f.clock.Advance(DefaultStaleAfter + time.Minute)
	require.NoError(t, f.manager.HandleEdit(ctx, before, guildMessage("m1", "#42 #99")))

	assert.Empty(t, f.chat.callsTo("EditMessage"))
	assert.Empty(t, f.chat.callsTo("DeleteMessage"))
	_, ok := f.manager.Links().Get("m1")
	assert.False(t, ok)
}

func TestHandleEditReplyGone(t *testing.T) {
	f := newReplyFixture(time.Hour)
	ctx := context.Background()
	before := guildMessage("m1", "#42")
	require.NoError(t, f.manager.HandleCreate(ctx, before))

	f.chat.editErr = &discord.APIError{StatusCode: 404, Body: "Unknown Message"}
	require.NoError(t, f.manager.HandleEdit(ctx, before, guildMessage("m1", "#42 #99")))
	assert.Zero(t, f.manager.Links().Len())
}

func TestHandleDelete(t *testing.T) {
	t.Run("source deleted takes the reply", func(t *testing.T) {
		f := newReplyFixture(time.Hour)
		require.NoError(t, f.manager.HandleCreate(context.Background(), guildMessage("m1", "#42")))

		require.NoError(t, f.manager.HandleDelete(context.Background(), "m1"))

		deletes := f.chat.callsTo("DeleteMessage")
		require.Len(t, deletes, 1)
		assert.Equal(t, "reply-1", deletes[0].MessageID)
		assert.Zero(t, f.manager.Links().Len())
	})

	t.Run("reply deleted drops the link", func(t *testing.T) {
		f := newReplyFixture(time.Hour)
		require.NoError(t, f.manager.HandleCreate(context.Background(), guildMessage("m1", "#42")))

		require.NoError(t, f.manager.HandleDelete(context.Background(), "reply-1"))

		assert.Empty(t, f.chat.callsTo("DeleteMessage"))
		assert.Zero(t, f.manager.Links().Len())
	})

	t.Run("reply already gone", func(t *testing.T) {
		f := newReplyFixture(time.Hour)
		require.NoError(t, f.manager.HandleCreate(context.Background(), guildMessage("m1", "#42")))
		f.chat.deleteErr = &discord.APIError{StatusCode: 404}

		assert.NoError(t, f.manager.HandleDelete(context.Background(), "m1"))
	})
}

func dismissInteraction(userID string, roles []string, count int) *discord.InteractionCreate {
	return &discord.InteractionCreate{
		ID:        "ic-1",
		Token:     "token",
		Type:      discord.InteractionTypeMessageComponent,
		GuildID:   testGuild,
		ChannelID: testChannel,
		Member:    &discord.Member{User: &discord.User{ID: userID}, Roles: roles},
		Data: discord.InteractionData{
			CustomID: discord.BuildDismissButton(discord.DismissTarget{AuthorID: testAuthor, EntityCount: count})[0].Components[0].CustomID,
		},
		Message: &discord.Message{ID: "reply-1", ChannelID: testChannel},
	}
}

func TestHandleDismiss(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		roles      []string
		count      int
		wantDelete bool
		wantDenial string
	}{
		{name: "author", userID: testAuthor, count: 1, wantDelete: true},
		{name: "moderator", userID: "user-2", roles: []string{testModRole}, count: 2, wantDelete: true},
		{name: "stranger single", userID: "user-3", count: 1, wantDenial: denialSingular},
		{name: "stranger plural", userID: "user-3", roles: []string{"other"}, count: 3, wantDenial: denialPlural},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReplyFixture(time.Hour)
			ctx := context.Background()
			require.NoError(t, f.manager.HandleCreate(ctx, guildMessage("m1", "#42")))

			handled, err := f.manager.HandleDismiss(ctx, dismissInteraction(tt.userID, tt.roles, tt.count))
			require.NoError(t, err)
			assert.True(t, handled)

			if tt.wantDelete {
				require.Len(t, f.chat.callsTo("DeleteMessage"), 1)
				assert.Zero(t, f.manager.Links().Len())
				return
			}
			assert.Empty(t, f.chat.callsTo("DeleteMessage"))
			assert.Equal(t, 1, f.manager.Links().Len())
			responses := f.chat.callsTo("CreateInteractionResponse")
			require.Len(t, responses, 1)
			assert.Equal(t, discord.InteractionResponseChannelMessage, responses[0].Response)
			assert.Equal(t, tt.wantDenial, responses[0].Data.Content)
			assert.Equal(t, discord.MessageFlagEphemeral, responses[0].Data.Flags)
		})
	}
}

func TestHandleDismissIgnoresOtherInteractions(t *testing.T) {
	f := newReplyFixture(time.Hour)
	ic := dismissInteraction(testAuthor, nil, 1)
	ic.Data.CustomID = "something-else"

	handled, err := f.manager.HandleDismiss(context.Background(), ic)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, f.chat.calls)
}

func TestDismissButtonRemovedAfterTimeout(t *testing.T) {
	f := newReplyFixture(20 * time.Millisecond)
	require.NoError(t, f.manager.HandleCreate(context.Background(), guildMessage("m1", "#42")))

	assert.Eventually(t, func() bool {
		edits := f.chat.callsTo("EditMessage")
		return len(edits) == 1 && edits[0].Edit.Content == nil && len(edits[0].Edit.Components) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDismissButtonRemovalCancelledWithLink(t *testing.T) {
	f := newReplyFixture(50 * time.Millisecond)
	require.NoError(t, f.manager.HandleCreate(context.Background(), guildMessage("m1", "#42")))
	require.NoError(t, f.manager.HandleDelete(context.Background(), "m1"))

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, f.chat.callsTo("EditMessage"))
}
