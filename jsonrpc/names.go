package jsonrpc

import "strings"

// CamelToSnake splits a camel-case identifier into lower-case segments joined
// by "_". A run of capitals is one segment when followed by the end of the
// string or by a capital that starts a lower-case word, so "HTMLParser"
// becomes "html_parser" and "getProfile" becomes "get_profile". Characters
// that belong to no segment, such as existing underscores, are dropped, which
// makes the conversion idempotent on snake-case input.
func CamelToSnake(s string) string {
	var segs []string
	for i := 0; i < len(s); {
		if end := upperRun(s, i); end > i {
			segs = append(segs, strings.ToLower(s[i:end]))
			i = end
			continue
		}
		if isLetter(s[i]) && i+1 < len(s) && isLowerOrDigit(s[i+1]) {
			end := i + 2
			for end < len(s) && isLowerOrDigit(s[end]) {
				end++
			}
			segs = append(segs, lowerFirst(s[i:end]))
			i = end
			continue
		}
		i++
	}
	return strings.Join(segs, "_")
}

// upperRun returns the end of an acronym segment starting at i, or i if there
// is none. The segment is the longest run of [A-Z0-9] after a leading capital
// that is followed by the end of s or by a capital plus [a-z0-9].
func upperRun(s string, i int) int {
	if !isUpper(s[i]) {
		return i
	}
	k := i + 1
	for k < len(s) && (isUpper(s[k]) || isDigit(s[k])) {
		k++
	}
	for end := k; end > i; end-- {
		if end == len(s) {
			return end
		}
		if isUpper(s[end]) && end+1 < len(s) && isLowerOrDigit(s[end+1]) {
			return end
		}
	}
	return i
}

// SnakeToCamel joins "_"-separated words, capitalizing each. The first letter
// is upper-case only if firstUpper is set.
func SnakeToCamel(s string, firstUpper bool) string {
	words := strings.Split(s, "_")
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	out := b.String()
	if !firstUpper && out != "" {
		out = strings.ToLower(out[:1]) + out[1:]
	}
	return out
}

// lowerFirst folds an all-capital segment to lower-case and otherwise lowers
// only the first letter.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if s == strings.ToUpper(s) {
		return strings.ToLower(s)
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func isUpper(c byte) bool        { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool        { return c >= '0' && c <= '9' }
func isLetter(c byte) bool       { return isUpper(c) || (c >= 'a' && c <= 'z') }
func isLowerOrDigit(c byte) bool { return (c >= 'a' && c <= 'z') || isDigit(c) }
