package discord

import (
	"fmt"
	"strconv"
	"strings"
)

// dismissPrefix namespaces the custom id of reply dismiss buttons.
const dismissPrefix = "dismiss"

// DismissTarget is what a dismiss button carries in its custom id: who may
// press it and how many entities the reply shows (for the denial wording).
type DismissTarget struct {
	AuthorID    string
	EntityCount int
}

// BuildDismissButton creates the single-button action row attached to replies.
func BuildDismissButton(target DismissTarget) []Component {
	return []Component{
		{
			Type: ComponentTypeActionRow,
			Components: []Button{
				{
					Type:     ComponentTypeButton,
					Style:    ButtonStyleSecondary,
					Label:    "Delete",
					CustomID: fmt.Sprintf("%s:%s:%d", dismissPrefix, target.AuthorID, target.EntityCount),
					Emoji:    &ComponentEmoji{Name: "🗑️"},
				},
			},
		},
	}
}

// ParseDismissCustomID decodes a dismiss button custom id.
func ParseDismissCustomID(customID string) (DismissTarget, bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != dismissPrefix || parts[1] == "" {
		return DismissTarget{}, false
	}
	count, err := strconv.Atoi(parts[2])
	if err != nil {
		return DismissTarget{}, false
	}
	return DismissTarget{AuthorID: parts[1], EntityCount: count}, true
}

// TruncateText truncates text to at most maxLen runes, ending in "..."
// when there is room for it.
func TruncateText(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
