package triage

import (
	"encoding/json"
	"regexp"
	"strings"
)

// jsonFencePattern matches the body of the first markdown code fence.
var jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSONArray pulls a JSON array out of a model reply that may wrap it
// in a code fence or prose. Trailing commas are only stripped when nothing
// decodes as is. It returns "" when no array is present.
func extractJSONArray(content string) string {
	if raw := findJSONArray(content); raw != "" {
		return raw
	}
	return findJSONArray(stripTrailingCommas(content))
}

// findJSONArray returns the whole reply or fence body when it is an array,
// otherwise the first array that decodes starting at some '['.
func findJSONArray(content string) string {
	candidates := make([]string, 0, 2)
	if m := jsonFencePattern.FindStringSubmatch(content); len(m) > 1 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	candidates = append(candidates, strings.TrimSpace(content))
	for _, c := range candidates {
		if strings.HasPrefix(c, "[") && json.Valid([]byte(c)) {
			return c
		}
	}

	for i := strings.IndexByte(content, '['); i >= 0; {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(content[i:])).Decode(&raw); err == nil {
			return string(raw)
		}
		next := strings.IndexByte(content[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return ""
}

// stripTrailingCommas drops commas that directly precede ] or }, leaving
// string literals untouched.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',':
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// cleanAnswer strips whitespace, wrapping quotes and a trailing period from a
// one-line model answer.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Trim(s, "\"'`*")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}
