// Package banner prints the startup summary of the run command.
package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/ghostbot/ghostbot/internal/config"
	"github.com/ghostbot/ghostbot/internal/health"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Startup writes the compact startup banner with enabled features.
func Startup(w io.Writer, version string, cfg *config.Config) {
	report := health.RunChecks(cfg)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "GHOSTBOT v%s │ guild %s\n", version, cfg.Discord.GuildID)
	fmt.Fprintln(w, rule)

	// Features inline
	var enabled []string
	var warnings []string
	for _, f := range report.Features {
		switch f.Status {
		case health.StatusOK:
			enabled = append(enabled, f.Name)
		case health.StatusWarning:
			warnings = append(warnings, f.Name+"*")
		}
	}

	if len(enabled) > 0 {
		fmt.Fprintf(w, "✓ %s\n", strings.Join(enabled, ", "))
	}
	if len(warnings) > 0 {
		fmt.Fprintf(w, "○ %s\n", strings.Join(warnings, ", "))
		for _, f := range report.Features {
			if f.Status == health.StatusWarning && f.Note != "" {
				fmt.Fprintf(w, "  * %s: %s\n", f.Name, f.Note)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Org: %s\n", cfg.GitHub.Org)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Listening... (Ctrl+C to stop)")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}
