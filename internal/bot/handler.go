// Package bot connects to the Discord gateway and routes events to the
// mention replies, the channel filter and emoji loading.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/filter"
	"github.com/ghostbot/ghostbot/internal/logging"
	"github.com/ghostbot/ghostbot/internal/mentions"
)

const (
	defaultWorkers      = 8
	defaultSnapshotSize = 1000
	queueSize           = 64
	maxReconnectDelay   = time.Minute
)

// Gateway is a single gateway connection.
type Gateway interface {
	Connect(ctx context.Context) error
	Listen(ctx context.Context) (<-chan discord.GatewayEvent, error)
	Close() error
}

// API is the part of the Discord REST API the handler calls directly.
type API interface {
	ListGuildEmojis(ctx context.Context, guildID string) ([]discord.Emoji, error)
	SendDirectMessage(ctx context.Context, userID string, msg *discord.MessageSend, files []discord.File) (*discord.Message, error)
}

// Reporter delivers operational reports to the log channel.
type Reporter interface {
	Notify(ctx context.Context, text string) error
}

// HandlerConfig holds configuration for the event handler.
type HandlerConfig struct {
	GuildID      string
	SnapshotSize int
	Workers      int
}

// Handler processes gateway events. Events for one message are handled in
// arrival order; different messages proceed in parallel.
type Handler struct {
	api      API
	replies  *mentions.ReplyManager
	filter   *filter.Filter
	emojis   *mentions.EmojiSet
	reporter Reporter
	guildID  string

	// snapshots holds the last seen state of recent messages, the "before"
	// side of MESSAGE_UPDATE.
	snapshots *lru.Cache[string, discord.Message]

	queues         []chan queuedEvent
	workersWG      sync.WaitGroup
	reconnectDelay time.Duration

	mu     sync.RWMutex
	selfID string

	log *slog.Logger
}

type queuedEvent struct {
	ctx   context.Context
	event discord.GatewayEvent
}

// NewHandler creates a new event handler.
func NewHandler(config *HandlerConfig, api API, replies *mentions.ReplyManager, msgFilter *filter.Filter, emojis *mentions.EmojiSet, reporter Reporter) (*Handler, error) {
	size := config.SnapshotSize
	if size <= 0 {
		size = defaultSnapshotSize
	}
	snapshots, err := lru.New[string, discord.Message](size)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}

	workers := config.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Handler{
		api:            api,
		replies:        replies,
		filter:         msgFilter,
		emojis:         emojis,
		reporter:       reporter,
		guildID:        config.GuildID,
		snapshots:      snapshots,
		queues:         make([]chan queuedEvent, workers),
		reconnectDelay: time.Second,
		log:            logging.WithComponent("bot.handler"),
	}, nil
}

// Run serves gateway connections made by connect until ctx is cancelled,
// reconnecting with backoff whenever a connection ends.
func (h *Handler) Run(ctx context.Context, connect func() Gateway) error {
	h.startWorkers()
	defer h.stopWorkers()

	delay := h.reconnectDelay
	for {
		started := time.Now()
		err := h.serve(ctx, connect())
		if ctx.Err() != nil {
			h.log.Info("Event handler stopping")
			return nil
		}

		if time.Since(started) > maxReconnectDelay {
			delay = h.reconnectDelay
		}
		h.log.Warn("Gateway connection ended, reconnecting",
			slog.Duration("delay", delay),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

func (h *Handler) serve(ctx context.Context, gw Gateway) error {
	defer func() { _ = gw.Close() }()

	if err := gw.Connect(ctx); err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}
	events, err := gw.Listen(ctx)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	h.log.Info("Listening for gateway events")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			h.enqueue(ctx, evt)
		}
	}
}

func (h *Handler) startWorkers() {
	for i := range h.queues {
		q := make(chan queuedEvent, queueSize)
		h.queues[i] = q
		h.workersWG.Add(1)
		go func() {
			defer h.workersWG.Done()
			for item := range q {
				h.Dispatch(item.ctx, item.event)
			}
		}()
	}
}

// stopWorkers lets the workers drain their queues and waits for them.
func (h *Handler) stopWorkers() {
	for _, q := range h.queues {
		close(q)
	}
	h.workersWG.Wait()
}

func (h *Handler) enqueue(ctx context.Context, evt discord.GatewayEvent) {
	q := h.queues[h.shard(evt.D)]
	select {
	case q <- queuedEvent{ctx: ctx, event: evt}:
	case <-ctx.Done():
	}
}

// shard picks the worker for an event payload. Message events carry the
// message id as "id", so one message's create, update and delete land on
// the same worker.
func (h *Handler) shard(data json.RawMessage) int {
	var route struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &route)

	hash := fnv.New32a()
	_, _ = hash.Write([]byte(route.ID))
	return int(hash.Sum32() % uint32(len(h.queues)))
}

// Dispatch handles a single gateway event.
func (h *Handler) Dispatch(ctx context.Context, evt discord.GatewayEvent) {
	if evt.T == nil {
		return
	}
	ctx = logging.ContextWithCorrelationID(ctx, uuid.NewString())
	log := logging.WithContext(ctx).With(slog.String("event", *evt.T))

	var err error
	switch *evt.T {
	case discord.EventReady:
		err = h.handleReady(ctx, evt.D)
	case discord.EventGuildEmojisUpdate:
		err = h.handleEmojisUpdate(ctx, evt.D)
	case discord.EventMessageCreate:
		err = h.handleMessageCreate(ctx, evt.D)
	case discord.EventMessageUpdate:
		err = h.handleMessageUpdate(ctx, evt.D)
	case discord.EventMessageDelete:
		err = h.handleMessageDelete(ctx, evt.D)
	case discord.EventInteractionCreate:
		err = h.handleInteractionCreate(ctx, evt.D)
	default:
		return
	}

	if err != nil {
		log.Warn("Failed to handle event", slog.Any("error", err))
	}
}

func (h *Handler) isSelf(user *discord.User) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return user != nil && h.selfID != "" && user.ID == h.selfID
}

func (h *Handler) handleReady(ctx context.Context, data json.RawMessage) error {
	var ready discord.Ready
	if err := json.Unmarshal(data, &ready); err != nil {
		return fmt.Errorf("parse READY: %w", err)
	}

	h.mu.Lock()
	h.selfID = ready.User.ID
	h.mu.Unlock()

	emojis, err := h.api.ListGuildEmojis(ctx, h.guildID)
	if err != nil {
		return fmt.Errorf("list guild emojis: %w", err)
	}
	if missing := h.emojis.Load(emojis); len(missing) > 0 {
		return h.reporter.Notify(ctx, "Failed to load the following emojis: "+strings.Join(missing, ", "))
	}
	return nil
}

func (h *Handler) handleEmojisUpdate(ctx context.Context, data json.RawMessage) error {
	var update discord.GuildEmojisUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return fmt.Errorf("parse GUILD_EMOJIS_UPDATE: %w", err)
	}
	if update.GuildID != h.guildID {
		return nil
	}
	if missing := h.emojis.Load(update.Emojis); len(missing) > 0 {
		logging.WithContext(ctx).Info("Status emojis missing after update", slog.Any("missing", missing))
	}
	return nil
}

func (h *Handler) handleMessageCreate(ctx context.Context, data json.RawMessage) error {
	var msg discord.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse MESSAGE_CREATE: %w", err)
	}
	if msg.Author == nil || h.isSelf(msg.Author) {
		return nil
	}
	ctx = logging.ContextWithMessage(ctx, msg.ChannelID, msg.ID)
	h.snapshots.Add(msg.ID, msg)

	if msg.GuildID == "" && strings.TrimSpace(msg.Content) == "ping" {
		_, err := h.api.SendDirectMessage(ctx, msg.Author.ID, &discord.MessageSend{Content: "pong"}, nil)
		return err
	}

	if msg.GuildID != "" {
		removed, err := h.filter.Check(ctx, &msg)
		if err != nil {
			return err
		}
		if removed {
			h.snapshots.Remove(msg.ID)
			return nil
		}
	}

	return h.replies.HandleCreate(ctx, &msg)
}

func (h *Handler) handleMessageUpdate(ctx context.Context, data json.RawMessage) error {
	var after discord.Message
	if err := json.Unmarshal(data, &after); err != nil {
		return fmt.Errorf("parse MESSAGE_UPDATE: %w", err)
	}
	// Embed and link preview updates carry no content key at all.
	var present struct {
		Content *string `json:"content"`
	}
	_ = json.Unmarshal(data, &present)
	ctx = logging.ContextWithMessage(ctx, after.ChannelID, after.ID)

	before, ok := h.snapshots.Get(after.ID)
	if !ok {
		logging.WithContext(ctx).Debug("Ignoring edit of unknown message")
		return nil
	}
	if after.Author == nil {
		after.Author = before.Author
	}
	if after.GuildID == "" {
		after.GuildID = before.GuildID
	}
	if present.Content == nil {
		after.Content = before.Content
	}
	h.snapshots.Add(after.ID, after)

	if h.isSelf(after.Author) {
		return nil
	}
	return h.replies.HandleEdit(ctx, &before, &after)
}

func (h *Handler) handleMessageDelete(ctx context.Context, data json.RawMessage) error {
	var del discord.MessageDelete
	if err := json.Unmarshal(data, &del); err != nil {
		return fmt.Errorf("parse MESSAGE_DELETE: %w", err)
	}
	h.snapshots.Remove(del.ID)
	return h.replies.HandleDelete(logging.ContextWithMessage(ctx, del.ChannelID, del.ID), del.ID)
}

func (h *Handler) handleInteractionCreate(ctx context.Context, data json.RawMessage) error {
	var ic discord.InteractionCreate
	if err := json.Unmarshal(data, &ic); err != nil {
		return fmt.Errorf("parse INTERACTION_CREATE: %w", err)
	}
	handled, err := h.replies.HandleDismiss(ctx, &ic)
	if !handled {
		logging.WithContext(ctx).Debug("Ignoring interaction", slog.String("custom_id", ic.Data.CustomID))
	}
	return err
}
