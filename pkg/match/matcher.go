// Package match selects object keys with doublestar glob patterns.
//
// A Matcher is built from include and exclude patterns. Keys are matched
// as-is using '/' as the separator. Hidden keys (any segment starting with
// '.') are skipped unless IncludeHidden is set.
package match

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Config configures a Matcher.
type Config struct {
	Includes      []string `mapstructure:"includes" json:"includes" yaml:"includes"`
	Excludes      []string `mapstructure:"excludes" json:"excludes,omitempty" yaml:"excludes,omitempty"`
	IncludeHidden bool     `mapstructure:"include_hidden" json:"include_hidden,omitempty" yaml:"include_hidden,omitempty"`
}

var (
	// ErrNoIncludes is returned when a Matcher has nothing to include.
	ErrNoIncludes = errors.New("at least one include pattern is required")

	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError reports a pattern doublestar rejected.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Matcher evaluates keys against compiled include/exclude patterns.
// It is immutable and safe for concurrent use.
type Matcher struct {
	includes      []string
	excludes      []string
	prefixes      []string
	includeHidden bool
}

// New validates the patterns in cfg and builds a Matcher.
func New(cfg Config) (*Matcher, error) {
	if len(cfg.Includes) == 0 {
		return nil, ErrNoIncludes
	}

	includes, err := compile(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		includes:      includes,
		excludes:      excludes,
		prefixes:      DerivePrefixes(includes),
		includeHidden: cfg.IncludeHidden,
	}, nil
}

func compile(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		norm := NormalizePattern(p)
		if !doublestar.ValidatePattern(norm) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
		out = append(out, norm)
	}
	return out, nil
}

// Match reports whether key is included and not excluded.
func (m *Matcher) Match(key string) bool {
	if !m.includeHidden && IsHidden(key) {
		return false
	}
	if !anyMatch(m.includes, key) {
		return false
	}
	return !anyMatch(m.excludes, key)
}

func anyMatch(patterns []string, key string) bool {
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, key) {
			return true
		}
	}
	return false
}

// Descend reports whether keys under the directory prefix dir could match.
// A crawler listing with a delimiter uses it to prune common prefixes.
func (m *Matcher) Descend(dir string) bool {
	if !m.includeHidden && IsHidden(strings.TrimSuffix(dir, "/")) {
		return false
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(dir, p) || strings.HasPrefix(p, dir) {
			return true
		}
	}
	return false
}

// Prefixes returns the minimal set of listing prefixes covering all
// include patterns. A single "" means the whole bucket must be listed.
func (m *Matcher) Prefixes() []string {
	return append([]string(nil), m.prefixes...)
}

// IncludePatterns returns the normalized include patterns.
func (m *Matcher) IncludePatterns() []string {
	return append([]string(nil), m.includes...)
}

// ExcludePatterns returns the normalized exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string(nil), m.excludes...)
}

// globMeta are the characters a backslash may escape in a pattern.
const globMeta = `*?[]{}\`

// NormalizePattern turns Windows-style separators into '/'. A backslash
// followed by a glob metacharacter (one of *?[]{}\) is always an escape and
// is kept, so a separator directly before a wildcard must be written as '/'.
//
//	`data\2024\file.xml` -> "data/2024/file.xml"
//	`data\2024/*.xml`    -> "data/2024/*.xml"
//	`data\2024\*.xml`    -> `data/2024\*.xml` (literal "*.xml")
func NormalizePattern(pattern string) string {
	if !strings.Contains(pattern, `\`) {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(pattern) && strings.IndexByte(globMeta, pattern[i+1]) >= 0 {
			b.WriteByte(c)
			b.WriteByte(pattern[i+1])
			i++
			continue
		}
		b.WriteByte('/')
	}
	return b.String()
}

// IsHidden reports whether any segment of key starts with '.'.
func IsHidden(key string) bool {
	for seg := range strings.SplitSeq(key, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
