// Package autoclose archives help forum posts that were marked solved and
// have gone quiet, and reports what it did to the log channel.
package autoclose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/logging"
)

// Config holds autoclose configuration.
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	Schedule      string        `yaml:"schedule"` // cron spec
	HelpChannelID string        `yaml:"help_channel_id"`
	IdleFor       time.Duration `yaml:"idle_for"` // minimum age of a post's last message
}

// DefaultConfig returns default autoclose configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:  true,
		Schedule: "@hourly",
		IdleFor:  24 * time.Hour,
	}
}

// solvedMarkers are matched case-insensitively against tag names.
var solvedMarkers = []string{"solved", "moved to github"}

// maxListed caps how many posts a report names.
const maxListed = 30

// Discord is the part of the Discord API the closer uses.
type Discord interface {
	GetChannel(ctx context.Context, channelID string) (*discord.Channel, error)
	ListActiveThreads(ctx context.Context, guildID string) ([]discord.Channel, error)
	ArchiveThread(ctx context.Context, threadID string) error
}

// Reporter delivers the run summary.
type Reporter interface {
	Notify(ctx context.Context, text string) error
}

// Report is the outcome of one pass over the help forum.
type Report struct {
	HelpChannelID string
	Scanned       int
	Closed        []string // thread ids
	Failed        []string // thread ids that could not be checked
}

var printer = message.NewPrinter(language.English)

// String renders the report for the log channel.
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString(printer.Sprintf("Scanned %d open posts in <#%s>.\n", r.Scanned, r.HelpChannelID))
	if len(r.Closed) > 0 {
		b.WriteString("Automatically closed ")
		b.WriteString(postList(r.Closed))
	}
	if len(r.Failed) > 0 {
		b.WriteString("Failed to check ")
		b.WriteString(postList(r.Failed))
	}
	return b.String()
}

func postList(ids []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d solved posts:\n", len(ids))
	for i, id := range ids {
		if i == maxListed {
			b.WriteString(printer.Sprintf("* [...] (%d more)\n", len(ids)-maxListed))
			break
		}
		fmt.Fprintf(&b, "* <#%s>\n", id)
	}
	return b.String()
}

// Closer archives solved, idle help posts.
type Closer struct {
	api      Discord
	reporter Reporter
	guildID  string
	config   *Config
	now      func() time.Time
	log      *slog.Logger
}

// NewCloser creates a Closer for the help forum of guildID.
func NewCloser(api Discord, reporter Reporter, guildID string, config *Config) *Closer {
	return &Closer{
		api:      api,
		reporter: reporter,
		guildID:  guildID,
		config:   config,
		now:      time.Now,
		log:      logging.WithComponent("autoclose"),
	}
}

// Run makes one pass over the help forum and sends the report.
func (c *Closer) Run(ctx context.Context) (*Report, error) {
	forum, err := c.api.GetChannel(ctx, c.config.HelpChannelID)
	if err != nil {
		return nil, fmt.Errorf("get help channel: %w", err)
	}
	solvedTags := make(map[string]bool)
	for _, tag := range forum.AvailableTags {
		if isSolvedTag(tag.Name) {
			solvedTags[tag.ID] = true
		}
	}

	threads, err := c.api.ListActiveThreads(ctx, c.guildID)
	if err != nil {
		return nil, fmt.Errorf("list active threads: %w", err)
	}

	report := &Report{HelpChannelID: c.config.HelpChannelID}
	cutoff := c.now().Add(-c.config.IdleFor)
	for _, post := range threads {
		if post.ParentID != c.config.HelpChannelID {
			continue
		}
		report.Scanned++

		if post.ThreadMetadata != nil && post.ThreadMetadata.Archived {
			continue
		}
		if !hasAnyTag(post.AppliedTags, solvedTags) {
			continue
		}

		lastActivity, err := discord.SnowflakeTime(post.LastMessageID)
		if err != nil {
			report.Failed = append(report.Failed, post.ID)
			continue
		}
		if !lastActivity.Before(cutoff) {
			continue
		}

		if err := c.api.ArchiveThread(ctx, post.ID); err != nil {
			c.log.Warn("Failed to archive help post",
				slog.String("thread_id", post.ID),
				slog.Any("error", err))
			report.Failed = append(report.Failed, post.ID)
			continue
		}
		report.Closed = append(report.Closed, post.ID)
	}

	c.log.Info("Autoclose pass finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("closed", len(report.Closed)),
		slog.Int("failed", len(report.Failed)))

	if err := c.reporter.Notify(ctx, report.String()); err != nil {
		return report, fmt.Errorf("send autoclose report: %w", err)
	}
	return report, nil
}

func isSolvedTag(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range solvedMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func hasAnyTag(applied []string, tags map[string]bool) bool {
	for _, id := range applied {
		if tags[id] {
			return true
		}
	}
	return false
}
