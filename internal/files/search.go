package files

import (
	"strings"
	"unicode"
)

// Match reports whether candidate satisfies the search pattern.
//
// Strict matching is a case-insensitive substring test. Otherwise three tiers
// are tried in order: substring; every token of the pattern present when the
// pattern splits into at least two tokens longer than one character; and
// finally an in-order subsequence of the pattern's characters.
func Match(pattern, candidate string, strict bool) bool {
	p := strings.ToLower(pattern)
	c := strings.ToLower(candidate)
	if p == "" {
		return true
	}
	if strings.Contains(c, p) {
		return true
	}
	if strict {
		return false
	}
	if tokens := searchTokens(p); len(tokens) >= 2 {
		all := true
		for _, tok := range tokens {
			if !strings.Contains(c, tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return subsequence(p, c)
}

func searchTokens(pattern string) []string {
	fields := strings.FieldsFunc(pattern, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '/'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func subsequence(pattern, s string) bool {
	pr := []rune(pattern)
	i := 0
	for _, r := range s {
		if i < len(pr) && pr[i] == r {
			i++
		}
	}
	return i == len(pr)
}
