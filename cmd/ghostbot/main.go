package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ghostbot/ghostbot/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	cfgFile string
	envFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghostbot",
		Short: "Discord bot that expands GitHub mentions",
		Long: `ghostbot watches a Discord server for GitHub references such as #123,
web#45 or owner/repo#6 and replies with a summary of each issue, pull
request or discussion. It also enforces channel content rules and closes
solved help posts.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.ghostbot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(
		newRunCmd(),
		newCheckConfigCmd(),
		newResolveCmd(),
		newInitConfigCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the dotenv file and the config file, in that order.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ghostbot %s (built %s)\n", version, buildTime)
		},
	}
}
