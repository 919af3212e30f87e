package extract

import (
	"regexp"
	"strings"
)

var (
	fencedJSONRe = regexp.MustCompile("(?is)```json[ \t]*\r?\n?(.*?)```")
	fencedAnyRe  = regexp.MustCompile("(?s)```(?:[^\n]*\n)?(.*?)```")
)

// FirstJSON pulls the first embedded JSON value out of a mixed prose/JSON
// reply. It returns the JSON candidate, the remaining prose with the JSON
// span removed, and whether a candidate was found. The candidate is not
// guaranteed to parse; callers must treat a parse failure as "no actions".
//
// Priority: a ```json fenced block, then any fenced block whose contents are
// bracket-delimited, then a bracket-depth walk from the first '{' or '['.
func FirstJSON(text string) (string, string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", "", false
	}

	if loc := fencedJSONRe.FindStringSubmatchIndex(text); loc != nil {
		jsonText := strings.TrimSpace(text[loc[2]:loc[3]])
		return jsonText, joinProse(text[:loc[0]], text[loc[1]:]), true
	}

	if loc := fencedAnyRe.FindStringSubmatchIndex(text); loc != nil {
		inner := strings.TrimSpace(text[loc[2]:loc[3]])
		if isBracketDelimited(inner) {
			return inner, joinProse(text[:loc[0]], text[loc[1]:]), true
		}
	}

	return walkBrackets(text)
}

func isBracketDelimited(s string) bool {
	if s == "" {
		return false
	}
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

// walkBrackets scans from the first '{' or '[' tracking bracket depth,
// skipping brackets inside double-quoted strings (with backslash escaping).
func walkBrackets(text string) (string, string, bool) {
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			break
		}
	}
	if start == -1 {
		return "", strings.TrimSpace(text), false
	}

	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) == 0 {
				return "", strings.TrimSpace(text), false
			}
			top := stack[len(stack)-1]
			if (top == '{' && ch != '}') || (top == '[' && ch != ']') {
				return "", strings.TrimSpace(text), false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				jsonText := strings.TrimSpace(text[start : i+1])
				return jsonText, joinProse(text[:start], text[i+1:]), true
			}
		}
	}
	return "", strings.TrimSpace(text), false
}

func joinProse(before, after string) string {
	before = strings.TrimSpace(before)
	after = strings.TrimSpace(after)
	switch {
	case before == "":
		return after
	case after == "":
		return before
	default:
		return before + "\n" + after
	}
}
