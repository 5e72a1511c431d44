package github

import "time"

// Config holds GitHub adapter configuration
type Config struct {
	Token string `yaml:"token"`
	Org   string `yaml:"org"` // Owner assumed for bare #N mentions
	// Repos maps short names usable as mention prefixes (main#12, web#3) to
	// repository names under Org. The "main" entry is the repo for bare #N.
	Repos             map[string]string `yaml:"repos"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Burst             int               `yaml:"burst"`
}

// MainRepoKey is the Repos entry used for unqualified mentions.
const MainRepoKey = "main"

// DefaultConfig returns default GitHub configuration
func DefaultConfig() *Config {
	return &Config{
		Org: "ghostty-org",
		Repos: map[string]string{
			MainRepoKey: "ghostty",
			"web":       "website",
			"bot":       "discord-bot",
		},
		RequestsPerSecond: 10,
		Burst:             10,
	}
}

// Issue and pull request states
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// StateReasonCompleted is the state_reason of issues closed as done.
const StateReasonCompleted = "completed"

// User represents a GitHub user
type User struct {
	Login string
}

// Issue is the projection of a GitHub issue the bot renders.
type Issue struct {
	Number        int
	Title         string
	State         string
	StateReason   string
	HTMLURL       string
	User          User
	CreatedAt     time.Time
	IsPullRequest bool // GitHub serves pull requests through the issues API too
}

// PullRequest is the projection of a GitHub pull request.
type PullRequest struct {
	Number    int
	Title     string
	State     string
	Draft     bool
	Merged    bool
	HTMLURL   string
	User      User
	CreatedAt time.Time
}

// Discussion is the projection of a GitHub discussion.
type Discussion struct {
	Number    int
	Title     string
	HTMLURL   string
	User      User
	CreatedAt time.Time
	Answered  bool
}

// Repository is a repository search hit.
type Repository struct {
	Name     string
	FullName string
	Owner    User
	Stars    int
}
