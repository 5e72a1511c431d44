package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ghostbot/ghostbot/internal/logging"
)

// Notifier posts operational reports to the configured log channel.
type Notifier struct {
	client    *Client
	channelID string
	log       *slog.Logger
}

// NewNotifier creates a notifier for the given log channel. An empty channel
// id turns every report into a log line only.
func NewNotifier(client *Client, channelID string) *Notifier {
	return &Notifier{
		client:    client,
		channelID: channelID,
		log:       logging.WithComponent("discord.notifier"),
	}
}

// Notify sends text to the log channel.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if n.channelID == "" {
		n.log.Info("Log channel not configured", slog.String("report", TruncateText(text, 200)))
		return nil
	}
	if _, err := n.client.SendMessage(ctx, n.channelID, text); err != nil {
		return fmt.Errorf("notify log channel: %w", err)
	}
	return nil
}
