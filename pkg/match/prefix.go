package match

import (
	"slices"
	"strings"
)

// DerivePrefix returns the literal directory prefix of a pattern: the text
// up to and including the last '/' before the first unescaped glob
// metacharacter. A pattern without metacharacters is its own prefix.
//
//	"data/2024/**/*.xml" -> "data/2024/"
//	"data/file.xml"      -> "data/file.xml"
//	"*.xml"              -> ""
//	`a\*b/**`            -> "a*b/"
func DerivePrefix(pattern string) string {
	meta := -1
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '*', '?', '[', '{':
			meta = i
		}
		if meta >= 0 {
			break
		}
	}
	if meta < 0 {
		return unescape(pattern)
	}
	slash := strings.LastIndexByte(pattern[:meta], '/')
	if slash < 0 {
		return ""
	}
	return unescape(pattern[:slash+1])
}

// IsGlobPattern reports whether pattern holds an unescaped glob
// metacharacter.
func IsGlobPattern(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// DerivePrefixes derives a prefix per pattern and drops any prefix already
// covered by a shorter one. The result is sorted.
func DerivePrefixes(patterns []string) []string {
	all := make([]string, 0, len(patterns))
	for _, p := range patterns {
		all = append(all, DerivePrefix(p))
	}
	slices.Sort(all)

	out := all[:0]
	for _, p := range all {
		if len(out) > 0 && strings.HasPrefix(p, out[len(out)-1]) {
			continue
		}
		out = append(out, p)
	}
	return slices.Clip(out)
}
