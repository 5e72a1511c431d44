package mentions

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/adapters/github"
)

// Status emoji names looked up among the guild's custom emojis.
const (
	EmojiIssueOpen            = "issue_open"
	EmojiIssueClosedCompleted = "issue_closed_completed"
	EmojiIssueClosedUnplanned = "issue_closed_unplanned"
	EmojiIssueDraft           = "issue_draft"
	EmojiPullOpen             = "pull_open"
	EmojiPullClosed           = "pull_closed"
	EmojiPullDraft            = "pull_draft"
	EmojiPullMerged           = "pull_merged"
	EmojiDiscussionAnswered   = "discussion_answered"
)

// EmojiNames lists every status emoji the formatter may ask for.
var EmojiNames = []string{
	EmojiDiscussionAnswered,
	EmojiIssueClosedCompleted,
	EmojiIssueClosedUnplanned,
	EmojiIssueDraft,
	EmojiIssueOpen,
	EmojiPullClosed,
	EmojiPullDraft,
	EmojiPullMerged,
	EmojiPullOpen,
}

// FallbackGlyph stands in for a status emoji the guild does not have.
const FallbackGlyph = ":question:"

// EmojiSet maps status emoji names to their rendered form.
type EmojiSet struct {
	mu     sync.RWMutex
	glyphs map[string]string
}

// NewEmojiSet creates an empty set; every lookup falls back until Load.
func NewEmojiSet() *EmojiSet {
	return &EmojiSet{glyphs: make(map[string]string)}
}

// Load replaces the set with the status emojis found in emojis and returns
// the names that are missing, sorted.
func (s *EmojiSet) Load(emojis []discord.Emoji) []string {
	wanted := make(map[string]bool, len(EmojiNames))
	for _, name := range EmojiNames {
		wanted[name] = true
	}

	glyphs := make(map[string]string, len(EmojiNames))
	for _, e := range emojis {
		if !wanted[e.Name] || e.ID == "" {
			continue
		}
		if e.Animated {
			glyphs[e.Name] = fmt.Sprintf("<a:%s:%s>", e.Name, e.ID)
		} else {
			glyphs[e.Name] = fmt.Sprintf("<:%s:%s>", e.Name, e.ID)
		}
	}

	var missing []string
	for _, name := range EmojiNames {
		if _, ok := glyphs[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	s.mu.Lock()
	s.glyphs = glyphs
	s.mu.Unlock()
	return missing
}

// Glyph returns the rendered emoji for name, or FallbackGlyph.
func (s *EmojiSet) Glyph(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.glyphs[name]; ok {
		return g
	}
	return FallbackGlyph
}

// Formatter renders entities into a single reply body.
type Formatter struct {
	emojis *EmojiSet
	limit  int
}

// NewFormatter creates a Formatter bounded by discord.MaxMessageLength.
func NewFormatter(emojis *EmojiSet) *Formatter {
	return &Formatter{emojis: emojis, limit: discord.MaxMessageLength}
}

// Format renders entities in order, skipping identical renderings. When the
// result would exceed the message limit, trailing entities are dropped and an
// omission notice is appended. It returns the body and how many entities it shows.
func (f *Formatter) Format(entities []Entity) (string, int) {
	var entries []string
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		entry := f.render(e)
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		entries = append(entries, entry)
	}

	body := joinEntries(entries)
	if utf8.RuneCountInString(body) <= f.limit {
		return body, len(entries)
	}

	for omitted := 1; omitted <= len(entries); omitted++ {
		kept := entries[:len(entries)-omitted]
		body = joinEntries(append(kept[:len(kept):len(kept)], omissionNotice(omitted)))
		if utf8.RuneCountInString(body) <= f.limit {
			return body, len(kept)
		}
	}
	return omissionNotice(len(entries)), 0
}

func joinEntries(entries []string) string {
	return strings.Join(entries, "\n\n")
}

func omissionNotice(n int) string {
	if n == 1 {
		return "-# Omitted 1 mention"
	}
	return fmt.Sprintf("-# Omitted %d mentions", n)
}

// render produces the two-line rendering of one entity:
//
//	<glyph> **Issue [#12](<url>):** title
//	-# by [`author`](<domain/author>) in [`owner/repo`](<domain/owner/repo>) on Jan 02, 2006
func (f *Formatter) render(e Entity) string {
	headline := fmt.Sprintf("%s **%s [#%d](<%s>):** %s",
		f.emojis.Glyph(statusEmoji(e)), e.Kind, e.Number, e.HTMLURL, e.Title)

	domain, owner, repo := splitEntityURL(e)
	subtext := fmt.Sprintf("-# by [`%s`](<%s/%s>) in [`%s/%s`](<%s/%s/%s>) on %s",
		e.Author, domain, e.Author,
		owner, repo, domain, owner, repo,
		e.CreatedAt.Format("Jan 02, 2006"))

	return headline + "\n" + subtext
}

// statusEmoji picks the emoji name for an entity's current state.
func statusEmoji(e Entity) string {
	switch e.Kind {
	case KindIssue:
		if e.Issue == nil || e.Issue.State == github.StateOpen {
			return EmojiIssueOpen
		}
		if e.Issue.StateReason == github.StateReasonCompleted {
			return EmojiIssueClosedCompleted
		}
		return EmojiIssueClosedUnplanned
	case KindPullRequest:
		switch {
		case e.PullRequest == nil:
			return EmojiPullOpen
		case e.PullRequest.Draft:
			return EmojiPullDraft
		case e.PullRequest.Merged:
			return EmojiPullMerged
		default:
			return "pull_" + e.PullRequest.State
		}
	case KindDiscussion:
		if e.Discussion != nil && e.Discussion.Answered {
			return EmojiDiscussionAnswered
		}
		return EmojiIssueDraft
	default:
		return ""
	}
}

// splitEntityURL takes the site root, owner and repository from an entity
// URL such as https://github.com/owner/repo/issues/12, falling back to the
// key when the URL has another shape.
func splitEntityURL(e Entity) (domain, owner, repo string) {
	parts := strings.Split(e.HTMLURL, "/")
	if n := len(parts); n >= 7 {
		return strings.Join(parts[:n-4], "/"), parts[n-4], parts[n-3]
	}
	return "https://github.com", e.Key.Owner, e.Key.Repo
}
