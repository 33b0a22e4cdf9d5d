package llm

import (
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object in response")

// extractJSONObject returns the first balanced {...} in s, unwrapping a
// Markdown fence first. Braces inside string literals are ignored.
func extractJSONObject(s string) (string, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\uFEFF")
	if inner, ok := unfence(s); ok {
		s = strings.TrimSpace(inner)
	}
	for i := strings.IndexByte(s, '{'); i >= 0; {
		if end, ok := balancedEnd(s, i); ok {
			return s[i : end+1], nil
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", errNoJSONObject
}

// unfence strips a leading ``` or ~~~ block, with or without a language tag.
func unfence(s string) (string, bool) {
	for _, fence := range []string{"```", "~~~"} {
		if !strings.HasPrefix(s, fence) {
			continue
		}
		rest := s[len(fence):]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return "", false
		}
		rest = rest[nl+1:]
		if end := strings.Index(rest, fence); end >= 0 {
			return rest[:end], true
		}
		return rest, true
	}
	return "", false
}

// balancedEnd returns the index of the brace closing the object opened at start.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, c == '}'
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}
