// Package testutil provides testing utilities for ghostbot.
package testutil

// Obviously fake credentials, safe to commit and to send to test servers.
const (
	// FakeDiscordBotToken is a safe test token for Discord bot authentication.
	FakeDiscordBotToken = "test-discord-bot-token"

	// FakeGitHubToken is a safe test token for GitHub API authentication.
	FakeGitHubToken = "test-github-token"
)
