package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/adapters/github"
	"github.com/ghostbot/ghostbot/internal/autoclose"
	"github.com/ghostbot/ghostbot/internal/banner"
	"github.com/ghostbot/ghostbot/internal/bot"
	"github.com/ghostbot/ghostbot/internal/config"
	"github.com/ghostbot/ghostbot/internal/filter"
	"github.com/ghostbot/ghostbot/internal/health"
	"github.com/ghostbot/ghostbot/internal/logging"
	"github.com/ghostbot/ghostbot/internal/mentions"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}

			banner.Startup(cmd.OutOrStdout(), version, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runBot(ctx, cfg)
		},
	}
}

func runBot(ctx context.Context, cfg *config.Config) error {
	log := logging.WithComponent("main")

	rest := discord.NewClient(cfg.Discord.BotToken)
	notifier := discord.NewNotifier(rest, cfg.Discord.LogChannelID)

	emojis := mentions.NewEmojiSet()
	service := newMentionService(cfg, emojis)
	replies := mentions.NewReplyManager(rest, service, mentions.NewLinkStore(), mentions.ReplyOptions{
		ModRoleID:     cfg.Discord.ModRoleID,
		ButtonTimeout: cfg.Mentions.ButtonTimeout,
		StaleAfter:    cfg.Mentions.StaleAfter,
	})

	handler, err := bot.NewHandler(&bot.HandlerConfig{
		GuildID:      cfg.Discord.GuildID,
		SnapshotSize: cfg.Mentions.SnapshotSize,
	}, rest, replies, filter.New(rest, cfg.Filter), emojis, notifier)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	if cfg.Autoclose.Enabled && cfg.Autoclose.HelpChannelID != "" {
		closer := autoclose.NewCloser(rest, notifier, cfg.Discord.GuildID, cfg.Autoclose)
		scheduler := autoclose.NewScheduler(closer, cfg.Autoclose)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start autoclose: %w", err)
		}
		defer scheduler.Stop()
		log.Info("Autoclose scheduled",
			slog.String("schedule", cfg.Autoclose.Schedule),
			slog.Time("next_run", scheduler.NextRun()))
	} else {
		log.Info("Autoclose disabled")
	}

	log.Info("Starting ghostbot",
		slog.String("version", version),
		slog.String("guild_id", cfg.Discord.GuildID),
		slog.String("org", cfg.GitHub.Org))

	connect := func() bot.Gateway {
		return discord.NewGatewayClient(cfg.Discord.BotToken, discord.DefaultIntents, rest)
	}
	if err := handler.Run(ctx, connect); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info("Shutting down")
	return nil
}

// newMentionService builds the parse, resolve, fetch and format pipeline.
func newMentionService(cfg *config.Config, emojis *mentions.EmojiSet) *mentions.Service {
	gh := github.NewClient(cfg.GitHub.Token)
	gh.SetRateLimit(cfg.GitHub.RequestsPerSecond, cfg.GitHub.Burst)

	owners := mentions.NewOwnerResolver(gh, cfg.Mentions.OwnerTTR, nil)
	resolver := mentions.NewResolver(cfg.GitHub.Org, cfg.GitHub.Repos, owners)
	return mentions.NewService(resolver, mentions.NewFetcher(gh), mentions.NewFormatter(emojis), cfg.Mentions.EntityTTR, nil)
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := health.RunChecks(cfg)
			fmt.Fprintf(out, "Config %s\n\n", configPath())
			fmt.Fprintln(out, "Settings:")
			for _, c := range report.Settings {
				fmt.Fprintf(out, "  %s %-14s %s\n", c.Status.ColorSymbol(), c.Name, c.Message)
				if c.Fix != "" && c.Status != health.StatusOK {
					fmt.Fprintf(out, "    fix: %s\n", c.Fix)
				}
			}
			fmt.Fprintln(out, "\nFeatures:")
			for _, f := range report.Features {
				line := fmt.Sprintf("  %s %s", f.Status.ColorSymbol(), f.Name)
				if f.Note != "" {
					line += " (" + f.Note + ")"
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "\nRepos: %s\n", formatRepos(cfg.GitHub.Repos))

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Fprintln(out, "Config OK")
			return nil
		},
	}
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <text>",
		Short: "Print the reply the bot would post for a message",
		Long: `Parses GitHub references out of the given text, fetches them and prints
the formatted reply. Custom emojis are not loaded, so status glyphs fall
back to :question:.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateGitHub(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logging.Suppress()

			service := newMentionService(cfg, mentions.NewEmojiSet())
			body, shown := service.Render(cmd.Context(), strings.Join(args, " "))
			if shown == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No entities found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			cfg.Discord.BotToken = "${BOT_TOKEN}"
			cfg.GitHub.Token = "${GITHUB_TOKEN}"
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func formatRepos(repos map[string]string) string {
	keys := make([]string, 0, len(repos))
	for k := range repos {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+repos[k])
	}
	return strings.Join(parts, ", ")
}
