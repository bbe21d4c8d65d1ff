package sqlparse

import (
	"regexp"
	"strings"
)

var terminatorRe = regexp.MustCompile(`(?i)^(?:ORDER\s+BY|GROUP\s+BY|LIMIT)\b`)

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// wordAt reports whether the keyword w starts at s[i] as a whole word.
func wordAt(s string, i int, w string) bool {
	if i+len(w) > len(s) || !strings.EqualFold(s[i:i+len(w)], w) {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	return i+len(w) == len(s) || !isIdentByte(s[i+len(w)])
}

// walk calls fn at every byte offset that lies outside a quoted literal.
// Returning false stops the walk.
func walk(s string, fn func(i int) bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				if quote == '\'' && i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if !fn(i) {
			return
		}
	}
}

// splitConjuncts cuts the WHERE body at its terminating clause and splits
// it on AND, ignoring anything inside quotes.
func splitConjuncts(where string) []string {
	var parts []string
	start, end := 0, len(where)
	walk(where, func(i int) bool {
		if where[i] == ';' || (i == 0 || !isIdentByte(where[i-1])) && terminatorRe.MatchString(where[i:]) {
			end = i
			return false
		}
		if wordAt(where, i, "AND") {
			parts = append(parts, where[start:i])
			start = i + len("AND")
		}
		return true
	})
	if start <= end {
		parts = append(parts, where[start:end])
	}

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// containsWord reports whether keyword w appears outside quotes.
func containsWord(s, w string) bool {
	found := false
	walk(s, func(i int) bool {
		if wordAt(s, i, w) {
			found = true
			return false
		}
		return true
	})
	return found
}
