// Package filter enforces per-channel content rules: showcase posts need an
// attachment and media posts need a link.
package filter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"unicode/utf8"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/logging"
)

// Config holds the channels the rules apply to. An empty id disables its rule.
type Config struct {
	ShowcaseChannelID string `yaml:"showcase_channel_id"`
	MediaChannelID    string `yaml:"media_channel_id"`
}

// DefaultConfig returns a Config with every rule disabled.
func DefaultConfig() *Config {
	return &Config{}
}

var urlPattern = regexp.MustCompile(
	`https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b(?:[-a-zA-Z0-9()@:%_+.~#?&/=]*)`,
)

const deletionTemplate = "Hey! Your message in <#%s> was deleted because it did not contain %s." +
	" Make sure to include %s, and respond in threads.\n" +
	"Here's the message you tried to send:\n\n"

// ContentFileName is the attachment name used when the original message does
// not fit in the notice.
const ContentFileName = "content.md"

// Rule is a content requirement for one channel.
type Rule struct {
	ChannelID string
	Allows    func(*discord.Message) bool
	Lacking   string // what the deleted message did not contain
	Advice    string // what to include next time
}

// HasAttachment accepts messages with at least one attachment.
func HasAttachment(msg *discord.Message) bool {
	return len(msg.Attachments) > 0
}

// HasLink accepts messages whose content contains an http(s) URL.
func HasLink(msg *discord.Message) bool {
	return urlPattern.MatchString(msg.Content)
}

// Rules builds the rule list for cfg.
func Rules(cfg *Config) []Rule {
	var rules []Rule
	if cfg.ShowcaseChannelID != "" {
		rules = append(rules, Rule{
			ChannelID: cfg.ShowcaseChannelID,
			Allows:    HasAttachment,
			Lacking:   "any attachments",
			Advice:    "a screenshot or a video",
		})
	}
	if cfg.MediaChannelID != "" {
		rules = append(rules, Rule{
			ChannelID: cfg.MediaChannelID,
			Allows:    HasLink,
			Lacking:   "a link",
			Advice:    "a link",
		})
	}
	return rules
}

// Chat is the part of the Discord API the filter uses.
type Chat interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendDirectMessage(ctx context.Context, userID string, msg *discord.MessageSend, files []discord.File) (*discord.Message, error)
}

// Filter applies channel rules to incoming messages.
type Filter struct {
	chat  Chat
	rules []Rule
	log   *slog.Logger
}

// New creates a Filter for the rules in cfg.
func New(chat Chat, cfg *Config) *Filter {
	return &Filter{
		chat:  chat,
		rules: Rules(cfg),
		log:   logging.WithComponent("filter"),
	}
}

// Check deletes msg if it breaks its channel's rule and tells the author why.
// It reports whether the message was removed.
func (f *Filter) Check(ctx context.Context, msg *discord.Message) (bool, error) {
	for _, rule := range f.rules {
		if msg.ChannelID != rule.ChannelID || rule.Allows(msg) {
			continue
		}

		if err := f.chat.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil && !discord.IsNotFound(err) {
			return false, fmt.Errorf("delete filtered message: %w", err)
		}

		// System messages such as "started a thread" have nobody to tell.
		if msg.Type != discord.MessageTypeDefault && msg.Type != discord.MessageTypeReply {
			return true, nil
		}
		if msg.Author == nil {
			return true, nil
		}

		notice, files := deletionNotice(rule, msg)
		if _, err := f.chat.SendDirectMessage(ctx, msg.Author.ID, &discord.MessageSend{Content: notice}, files); err != nil {
			// Users can close their DMs; the deletion stands either way.
			f.log.Info("Could not DM author of filtered message",
				slog.String("user_id", msg.Author.ID),
				slog.Any("error", err))
		}
		return true, nil
	}
	return false, nil
}

// deletionNotice explains the deletion and carries the original content,
// inline when it fits and as a file when it does not.
func deletionNotice(rule Rule, msg *discord.Message) (string, []discord.File) {
	notice := fmt.Sprintf(deletionTemplate, rule.ChannelID, rule.Lacking, rule.Advice)
	if utf8.RuneCountInString(notice)+utf8.RuneCountInString(msg.Content) > discord.MaxMessageLength {
		return notice, []discord.File{{Name: ContentFileName, Content: []byte(msg.Content)}}
	}
	return notice + msg.Content, nil
}
