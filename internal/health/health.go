// Package health summarizes which parts of the bot a configuration enables.
package health

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/ghostbot/ghostbot/internal/config"
)

// Status represents feature or setting status
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusDisabled
)

// Check represents a single setting check
type Check struct {
	Name    string
	Status  Status
	Message string
	Fix     string
}

// FeatureStatus represents a feature with its availability
type FeatureStatus struct {
	Name    string
	Enabled bool
	Status  Status
	Note    string
}

// Report contains all check results
type Report struct {
	Settings []Check
	Features []FeatureStatus
}

// OK reports whether no setting check failed.
func (r *Report) OK() bool {
	for _, c := range r.Settings {
		if c.Status == StatusError {
			return false
		}
	}
	return true
}

// RunChecks inspects cfg without contacting Discord or GitHub.
func RunChecks(cfg *config.Config) *Report {
	return &Report{
		Settings: checkSettings(cfg),
		Features: checkFeatures(cfg),
	}
}

func checkSettings(cfg *config.Config) []Check {
	checks := []Check{
		required("discord token", cfg.Discord.BotToken != "", "set BOT_TOKEN"),
		required("guild", cfg.Discord.GuildID != "", "set BOT_GUILD_ID"),
		required("github token", cfg.GitHub.Token != "", "set GITHUB_TOKEN"),
	}

	if cfg.GitHub.Org == "" {
		checks = append(checks, Check{Name: "github org", Status: StatusError, Message: "missing", Fix: "set GITHUB_ORG"})
	} else {
		checks = append(checks, Check{Name: "github org", Status: StatusOK, Message: cfg.GitHub.Org})
	}

	if cfg.Discord.LogChannelID == "" {
		checks = append(checks, Check{
			Name:    "log channel",
			Status:  StatusWarning,
			Message: "not set (reports go to the log only)",
			Fix:     "set BOT_LOG_CHANNEL_ID",
		})
	} else {
		checks = append(checks, Check{Name: "log channel", Status: StatusOK, Message: cfg.Discord.LogChannelID})
	}

	return checks
}

func required(name string, present bool, fix string) Check {
	if present {
		return Check{Name: name, Status: StatusOK, Message: "set"}
	}
	return Check{Name: name, Status: StatusError, Message: "missing", Fix: fix}
}

func checkFeatures(cfg *config.Config) []FeatureStatus {
	features := []FeatureStatus{{
		Name:    "Mentions",
		Enabled: true,
		Status:  StatusOK,
		Note:    fmt.Sprintf("%d repo prefixes", len(cfg.GitHub.Repos)),
	}}

	modDismiss := cfg.Discord.ModRoleID != ""
	features = append(features, FeatureStatus{
		Name:    "Moderator dismiss",
		Enabled: modDismiss,
		Status:  boolToStatus(modDismiss),
	})

	showcase := cfg.Filter.ShowcaseChannelID != ""
	media := cfg.Filter.MediaChannelID != ""
	features = append(features,
		FeatureStatus{Name: "Showcase filter", Enabled: showcase, Status: boolToStatus(showcase)},
		FeatureStatus{Name: "Media filter", Enabled: media, Status: boolToStatus(media)},
	)

	ac := cfg.Autoclose
	autoclose := FeatureStatus{Name: "Autoclose", Enabled: ac.Enabled, Status: boolToStatus(ac.Enabled)}
	switch {
	case ac.Enabled && ac.HelpChannelID == "":
		autoclose.Enabled = false
		autoclose.Status = StatusWarning
		autoclose.Note = "no help channel"
	case ac.Enabled:
		autoclose.Note = ac.Schedule
	}
	features = append(features, autoclose)

	return features
}

// boolToStatus converts bool to Status
func boolToStatus(enabled bool) Status {
	if enabled {
		return StatusOK
	}
	return StatusDisabled
}

// Symbol returns the symbol for a status
func (s Status) Symbol() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "○"
	case StatusError:
		return "✗"
	case StatusDisabled:
		return "·"
	default:
		return "?"
	}
}

var (
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#7ec699")) // sage green
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d4a054")) // amber
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#d48a8a")) // dusty rose
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e")) // mid gray
)

// ColorSymbol returns Symbol styled for the terminal. Without a color
// terminal it is the plain symbol.
func (s Status) ColorSymbol() string {
	switch s {
	case StatusOK:
		return okStyle.Render(s.Symbol())
	case StatusWarning:
		return warningStyle.Render(s.Symbol())
	case StatusError:
		return errorStyle.Render(s.Symbol())
	case StatusDisabled:
		return disabledStyle.Render(s.Symbol())
	default:
		return s.Symbol()
	}
}
