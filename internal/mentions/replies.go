package mentions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/logging"
)

const (
	// DefaultButtonTimeout is how long the dismiss button stays on a reply.
	DefaultButtonTimeout = 30 * time.Second
	// DefaultStaleAfter is how long after its last change a reply still follows edits.
	DefaultStaleAfter = 24 * time.Hour

	buttonEditTimeout = 10 * time.Second
)

// Notices sent to users.
const (
	DMNotice       = "You can only mention entities in the server."
	denialSingular = "Only the person who mentioned this entity can remove this message."
	denialPlural   = "Only the person who mentioned these entities can remove this message."
)

// Chat is the part of the Discord API the reply manager uses.
type Chat interface {
	ReplyTo(ctx context.Context, channelID, messageID string, msg *discord.MessageSend) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, edit *discord.MessageEdit) (*discord.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendDirectMessage(ctx context.Context, userID string, msg *discord.MessageSend, files []discord.File) (*discord.Message, error)
	CreateInteractionResponse(ctx context.Context, interactionID, interactionToken string, responseType int, data *discord.InteractionCallbackData) error
}

// Renderer turns message content into a reply body and its entity count.
type Renderer interface {
	Render(ctx context.Context, content string) (string, int)
}

// ReplyOptions tunes a ReplyManager. Zero values take the defaults.
type ReplyOptions struct {
	ModRoleID     string
	ButtonTimeout time.Duration
	StaleAfter    time.Duration
	Clock         Clock
}

// ReplyManager posts mention replies and keeps them in step with the
// messages they answer.
type ReplyManager struct {
	chat     Chat
	renderer Renderer
	links    *LinkStore

	modRoleID     string
	buttonTimeout time.Duration
	staleAfter    time.Duration
	now           Clock
	log           *slog.Logger
}

// NewReplyManager creates a ReplyManager.
func NewReplyManager(chat Chat, renderer Renderer, links *LinkStore, opts ReplyOptions) *ReplyManager {
	if opts.ButtonTimeout <= 0 {
		opts.ButtonTimeout = DefaultButtonTimeout
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &ReplyManager{
		chat:          chat,
		renderer:      renderer,
		links:         links,
		modRoleID:     opts.ModRoleID,
		buttonTimeout: opts.ButtonTimeout,
		staleAfter:    opts.StaleAfter,
		now:           opts.Clock,
		log:           logging.WithComponent("mentions.replies"),
	}
}

// Links exposes the link store.
func (m *ReplyManager) Links() *LinkStore {
	return m.links
}

func ignored(msg *discord.Message) bool {
	if msg.Author == nil || msg.Author.Bot {
		return true
	}
	return msg.Type == discord.MessageTypeThreadCreated || msg.Type == discord.MessageTypeChannelNameChange
}

// HandleCreate replies to a new message that mentions entities.
func (m *ReplyManager) HandleCreate(ctx context.Context, msg *discord.Message) error {
	if ignored(msg) {
		return nil
	}

	if msg.GuildID == "" {
		if len(ParseReferences(msg.Content)) == 0 {
			return nil
		}
		if _, err := m.chat.SendDirectMessage(ctx, msg.Author.ID, &discord.MessageSend{Content: DMNotice}, nil); err != nil {
			return fmt.Errorf("send dm notice: %w", err)
		}
		return nil
	}

	body, count := m.renderer.Render(ctx, msg.Content)
	if count == 0 {
		return nil
	}

	reply, err := m.chat.ReplyTo(ctx, msg.ChannelID, msg.ID, &discord.MessageSend{
		Content:         body,
		Components:      discord.BuildDismissButton(discord.DismissTarget{AuthorID: msg.Author.ID, EntityCount: count}),
		AllowedMentions: discord.NoMentions(),
	})
	if err != nil {
		return fmt.Errorf("post mention reply: %w", err)
	}

	m.links.Put(&Link{
		SourceID:  msg.ID,
		ChannelID: msg.ChannelID,
		ReplyID:   reply.ID,
		AuthorID:  msg.Author.ID,
		Content:   body,
		UpdatedAt: m.now(),
	})
	m.scheduleButtonRemoval(msg.ID, msg.ChannelID, reply.ID)

	logging.WithContext(ctx).Debug("Posted mention reply",
		slog.String("reply_id", reply.ID),
		slog.Int("entities", count))
	return nil
}

// HandleEdit brings the reply to before in line with after.
func (m *ReplyManager) HandleEdit(ctx context.Context, before, after *discord.Message) error {
	if before == nil || ignored(after) || before.Content == after.Content {
		return nil
	}

	oldBody, oldCount := m.renderer.Render(ctx, before.Content)
	newBody, newCount := m.renderer.Render(ctx, after.Content)
	if oldBody == newBody && oldCount == newCount {
		return nil
	}

	link, ok := m.links.Get(after.ID)
	if !ok {
		if oldCount == 0 {
			return m.HandleCreate(ctx, after)
		}
		return nil
	}

	if newCount == 0 {
		m.links.Remove(after.ID)
		if err := m.chat.DeleteMessage(ctx, link.ChannelID, link.ReplyID); err != nil && !discord.IsNotFound(err) {
			return fmt.Errorf("delete emptied reply: %w", err)
		}
		return nil
	}

	if m.now().Sub(link.UpdatedAt) > m.staleAfter {
		m.links.Remove(after.ID)
		return nil
	}

	_, err := m.chat.EditMessage(ctx, link.ChannelID, link.ReplyID, &discord.MessageEdit{
		Content:         &newBody,
		Components:      discord.BuildDismissButton(discord.DismissTarget{AuthorID: after.Author.ID, EntityCount: newCount}),
		AllowedMentions: discord.NoMentions(),
	})
	if discord.IsNotFound(err) {
		m.links.Remove(after.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("edit mention reply: %w", err)
	}

	m.links.Update(after.ID, func(l *Link) {
		l.Content = newBody
		l.UpdatedAt = m.now()
	})
	m.scheduleButtonRemoval(after.ID, link.ChannelID, link.ReplyID)
	return nil
}

// HandleDelete reacts to a deleted message: a deleted source takes its reply
// with it, a deleted reply just ends tracking.
func (m *ReplyManager) HandleDelete(ctx context.Context, messageID string) error {
	if link, ok := m.links.Remove(messageID); ok {
		if err := m.chat.DeleteMessage(ctx, link.ChannelID, link.ReplyID); err != nil && !discord.IsNotFound(err) {
			return fmt.Errorf("delete reply of deleted message: %w", err)
		}
		return nil
	}
	m.links.RemoveByReply(messageID)
	return nil
}

// HandleDismiss handles a press of a reply's dismiss button. It reports
// false when the interaction is not a dismiss button press.
func (m *ReplyManager) HandleDismiss(ctx context.Context, ic *discord.InteractionCreate) (bool, error) {
	if ic.Type != discord.InteractionTypeMessageComponent || ic.Message == nil {
		return false, nil
	}
	target, ok := discord.ParseDismissCustomID(ic.Data.CustomID)
	if !ok {
		return false, nil
	}

	invoker := ic.Invoker()
	allowed := invoker != nil && invoker.ID == target.AuthorID
	if !allowed && m.modRoleID != "" && ic.Member != nil {
		allowed = ic.Member.HasRole(m.modRoleID)
	}

	if !allowed {
		denial := denialSingular
		if target.EntityCount > 1 {
			denial = denialPlural
		}
		err := m.chat.CreateInteractionResponse(ctx, ic.ID, ic.Token, discord.InteractionResponseChannelMessage,
			&discord.InteractionCallbackData{Content: denial, Flags: discord.MessageFlagEphemeral})
		if err != nil {
			return true, fmt.Errorf("send dismiss denial: %w", err)
		}
		return true, nil
	}

	if err := m.chat.CreateInteractionResponse(ctx, ic.ID, ic.Token, discord.InteractionResponseDeferredUpdate, nil); err != nil {
		m.log.Warn("Failed to acknowledge dismiss", slog.Any("error", err))
	}
	m.links.RemoveByReply(ic.Message.ID)
	if err := m.chat.DeleteMessage(ctx, ic.ChannelID, ic.Message.ID); err != nil && !discord.IsNotFound(err) {
		return true, fmt.Errorf("delete dismissed reply: %w", err)
	}
	return true, nil
}

// scheduleButtonRemoval strips the dismiss button once the timeout passes,
// replacing any removal already pending for the link.
func (m *ReplyManager) scheduleButtonRemoval(sourceID, channelID, replyID string) {
	timer := time.AfterFunc(m.buttonTimeout, func() {
		m.removeButton(channelID, replyID)
	})
	registered := m.links.Update(sourceID, func(l *Link) {
		l.stopButtonTimer()
		l.buttonTimer = timer
	})
	if !registered {
		timer.Stop()
	}
}

func (m *ReplyManager) removeButton(channelID, replyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), buttonEditTimeout)
	defer cancel()

	_, err := m.chat.EditMessage(ctx, channelID, replyID, &discord.MessageEdit{Components: []discord.Component{}})
	if err != nil && !discord.IsNotFound(err) {
		m.log.Warn("Failed to remove dismiss button",
			slog.String("reply_id", replyID),
			slog.Any("error", err))
	}
}
