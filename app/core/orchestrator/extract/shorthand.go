package extract

import (
	"regexp"
	"strings"
)

var (
	// "edit it to X", "change that to X", "rename the task to X"
	anaphoricEditRe = regexp.MustCompile(`(?i)^\s*(?:edit|change|rename)\s+(?:it|that|this|the task|the)\s+(?:to|into)?\s+(.+)$`)
	// "edit last to X", "edit previous to X"
	previousEditRe = regexp.MustCompile(`(?i)^\s*(?:edit)\s+(?:previous|last)\s+(?:to|into)?\s+(.+)$`)
)

// EditShorthand recognizes anaphoric edit phrasings and returns the new task
// text. It is a pure pattern match, checked before any backend call.
func EditShorthand(message string) (string, bool) {
	if m := anaphoricEditRe.FindStringSubmatch(message); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := previousEditRe.FindStringSubmatch(message); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
