package discord

import (
	"encoding/json"
	"time"
)

// Config holds Discord adapter configuration.
type Config struct {
	BotToken     string `yaml:"token"`
	GuildID      string `yaml:"guild_id"`       // The one guild the bot serves
	ModRoleID    string `yaml:"mod_role_id"`    // Members with this role may dismiss any reply
	LogChannelID string `yaml:"log_channel_id"` // Operational reports (emoji load, autoclose)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// Discord Gateway intents (https://discord.com/developers/docs/topics/gateway#gateway-intents)
const (
	IntentGuilds                = 1 << 0
	IntentGuildMembers          = 1 << 1
	IntentGuildEmojis           = 1 << 3
	IntentGuildMessages         = 1 << 9
	IntentGuildMessageReactions = 1 << 10
	IntentDirectMessages        = 1 << 12
	IntentMessageContent        = 1 << 15
)

// DefaultIntents covers guild + DM messages with content, and guild emoji updates.
const DefaultIntents = IntentGuilds | IntentGuildMembers | IntentGuildEmojis |
	IntentGuildMessages | IntentDirectMessages | IntentMessageContent

// Discord API constants
const (
	DiscordAPIURL = "https://discord.com/api/v10"

	OpcodeDispatch       = 0
	OpcodeHeartbeat      = 1
	OpcodeIdentify       = 2
	OpcodeReconnect      = 7
	OpcodeInvalidSession = 9
	OpcodeHello          = 10
	OpcodeHeartbeatAck   = 11

	// Non-resumable close code
	CloseCodeInvalidToken = 4014
)

// Gateway dispatch event names handled by the bot.
const (
	EventReady             = "READY"
	EventMessageCreate     = "MESSAGE_CREATE"
	EventMessageUpdate     = "MESSAGE_UPDATE"
	EventMessageDelete     = "MESSAGE_DELETE"
	EventInteractionCreate = "INTERACTION_CREATE"
	EventGuildEmojisUpdate = "GUILD_EMOJIS_UPDATE"
)

// MaxMessageLength is the hard limit on message content, in characters.
const MaxMessageLength = 2000

// Message types (https://discord.com/developers/docs/resources/message#message-object-message-types)
const (
	MessageTypeDefault           = 0
	MessageTypeChannelNameChange = 4
	MessageTypeThreadCreated     = 18
	MessageTypeReply             = 19
)

// Component and interaction constants.
const (
	ComponentTypeActionRow = 1
	ComponentTypeButton    = 2

	ButtonStyleSecondary = 2

	InteractionTypeMessageComponent = 3

	// InteractionResponseChannelMessage replies to the interaction with a message.
	InteractionResponseChannelMessage = 4
	// InteractionResponseDeferredUpdate acknowledges without changing anything visible.
	InteractionResponseDeferredUpdate = 6

	MessageFlagEphemeral = 1 << 6
)

// GatewayEvent represents a Discord Gateway event.
type GatewayEvent struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int            `json:"s"`
	T  *string         `json:"t"`
}

// Heartbeat is sent by client to maintain connection.
type Heartbeat struct {
	Op int  `json:"op"`
	D  *int `json:"d"`
}

// Identify is sent by client on connection.
type Identify struct {
	Op int          `json:"op"`
	D  IdentifyData `json:"d"`
}

// IdentifyData contains identify payload.
type IdentifyData struct {
	Token      string            `json:"token"`
	Intents    int               `json:"intents"`
	Properties map[string]string `json:"properties"`
}

// Hello is sent by server.
type Hello struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// Ready is the payload of the READY dispatch.
type Ready struct {
	SessionID string `json:"session_id"`
	User      User   `json:"user"`
}

// User represents a Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Member represents a guild member.
type Member struct {
	User  *User    `json:"user,omitempty"`
	Nick  string   `json:"nick,omitempty"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the member carries the given role.
func (m *Member) HasRole(roleID string) bool {
	if m == nil || roleID == "" {
		return false
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Message represents a Discord message, as returned by REST and carried by
// MESSAGE_CREATE / MESSAGE_UPDATE dispatches.
type Message struct {
	ID              string       `json:"id,omitempty"`
	ChannelID       string       `json:"channel_id,omitempty"`
	GuildID         string       `json:"guild_id,omitempty"`
	Author          *User        `json:"author,omitempty"` // absent on some MESSAGE_UPDATE payloads
	Content         string       `json:"content"`
	Type            int          `json:"type"`
	Timestamp       time.Time    `json:"timestamp"`
	EditedTimestamp *time.Time   `json:"edited_timestamp,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	Components      []Component  `json:"components,omitempty"`
}

// MessageDelete is the payload of the MESSAGE_DELETE dispatch.
type MessageDelete struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// MessageReference points a new message at the message it replies to.
type MessageReference struct {
	MessageID       string `json:"message_id"`
	ChannelID       string `json:"channel_id,omitempty"`
	FailIfNotExists bool   `json:"fail_if_not_exists"`
}

// AllowedMentions controls which mentions in content actually ping.
type AllowedMentions struct {
	Parse       []string `json:"parse"`
	RepliedUser bool     `json:"replied_user"`
}

// NoMentions suppresses every ping, including the replied-to author.
func NoMentions() *AllowedMentions {
	return &AllowedMentions{Parse: []string{}}
}

// MessageSend is the body of a create-message request.
type MessageSend struct {
	Content          string            `json:"content,omitempty"`
	Components       []Component       `json:"components,omitempty"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
	AllowedMentions  *AllowedMentions  `json:"allowed_mentions,omitempty"`
}

// MessageEdit is the body of an edit-message request. Components are always
// sent, so an empty slice strips every control from the message.
type MessageEdit struct {
	Content         *string          `json:"content,omitempty"`
	Components      []Component      `json:"components"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

// File is an upload sent alongside a message.
type File struct {
	Name    string
	Content []byte
}

// Emoji is a guild custom emoji.
type Emoji struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Animated bool   `json:"animated,omitempty"`
}

// GuildEmojisUpdate is the payload of the GUILD_EMOJIS_UPDATE dispatch.
type GuildEmojisUpdate struct {
	GuildID string  `json:"guild_id"`
	Emojis  []Emoji `json:"emojis"`
}

// Channel covers the channel fields the bot reads: text channels, DMs, forums and threads.
type Channel struct {
	ID             string          `json:"id"`
	Type           int             `json:"type"`
	GuildID        string          `json:"guild_id,omitempty"`
	ParentID       string          `json:"parent_id,omitempty"`
	Name           string          `json:"name,omitempty"`
	LastMessageID  string          `json:"last_message_id,omitempty"`
	AppliedTags    []string        `json:"applied_tags,omitempty"`
	AvailableTags  []ForumTag      `json:"available_tags,omitempty"`
	ThreadMetadata *ThreadMetadata `json:"thread_metadata,omitempty"`
}

// ForumTag is a tag that can be applied to forum posts.
type ForumTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ThreadMetadata holds thread-only channel state.
type ThreadMetadata struct {
	Archived bool `json:"archived"`
	Locked   bool `json:"locked"`
}

// InteractionCreate event data.
type InteractionCreate struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	Type      int             `json:"type"` // 1=PING, 2=APPLICATION_COMMAND, 3=MESSAGE_COMPONENT
	GuildID   string          `json:"guild_id,omitempty"`
	ChannelID string          `json:"channel_id,omitempty"`
	Member    *Member         `json:"member,omitempty"`
	User      *User           `json:"user,omitempty"`
	Data      InteractionData `json:"data"`
	Message   *Message        `json:"message,omitempty"`
}

// Invoker returns the user who triggered the interaction, whether in a guild or a DM.
func (i *InteractionCreate) Invoker() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// InteractionData contains interaction payload data.
type InteractionData struct {
	CustomID      string `json:"custom_id,omitempty"`
	ComponentType int    `json:"component_type,omitempty"`
}

// Component represents an action row holding buttons.
type Component struct {
	Type       int      `json:"type"`
	Components []Button `json:"components,omitempty"`
}

// Button represents a button in a component.
type Button struct {
	Type     int             `json:"type"`
	Style    int             `json:"style"`
	Label    string          `json:"label"`
	CustomID string          `json:"custom_id"`
	Emoji    *ComponentEmoji `json:"emoji,omitempty"`
}

// ComponentEmoji is the emoji shown on a button.
type ComponentEmoji struct {
	Name string `json:"name"`
}

// InteractionResponse is sent to acknowledge an interaction.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionCallbackData `json:"data,omitempty"`
}

// InteractionCallbackData is the message part of an interaction response.
type InteractionCallbackData struct {
	Content string `json:"content,omitempty"`
	Flags   int    `json:"flags,omitempty"`
}
