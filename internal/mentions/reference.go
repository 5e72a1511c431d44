package mentions

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxReferences bounds how many references one message may produce.
const MaxReferences = 10

// minBareNumber is the smallest number accepted for a bare #N mention.
// Lower ones are usually list markers or ordinals.
const minBareNumber = 10

var referencePattern = regexp.MustCompile(
	`(?i)(\b[a-z0-9\-]+/)?` + // owner/
		`(\b[a-z0-9\-._]+)?` + // repo or configured prefix
		`#(\d{1,6})\b`,
)

// Reference is a mention as written, before owner and repository are resolved.
// Owner and Repo are empty when the text omits them.
type Reference struct {
	Owner  string
	Repo   string
	Number int
}

// Bare reports whether the reference is a plain #N.
func (r Reference) Bare() bool {
	return r.Owner == "" && r.Repo == ""
}

// ParseReferences extracts references from message content in order of first
// appearance, without duplicates and at most MaxReferences of them.
func ParseReferences(content string) []Reference {
	var refs []Reference
	seen := make(map[Reference]struct{})

	for _, m := range referencePattern.FindAllStringSubmatchIndex(content, -1) {
		if len(refs) == MaxReferences {
			break
		}
		// "#1.5" is a version number, not a mention.
		end := m[1]
		if end+1 < len(content) && content[end] == '.' && isDigit(content[end+1]) {
			continue
		}

		var ref Reference
		if m[2] >= 0 {
			ref.Owner = strings.TrimSuffix(content[m[2]:m[3]], "/")
		}
		if m[4] >= 0 {
			ref.Repo = content[m[4]:m[5]]
		}
		number, err := strconv.Atoi(content[m[6]:m[7]])
		if err != nil {
			continue
		}
		ref.Number = number

		switch {
		case ref.Owner != "" && ref.Repo == "":
			// owner/#N names no repository
			continue
		case ref.Bare() && ref.Number < minBareNumber:
			continue
		}

		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
