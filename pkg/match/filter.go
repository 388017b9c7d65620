package match

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/3leaps/ossxml/pkg/provider"
)

// Filter narrows listed objects using fields available from a listing page.
type Filter interface {
	Match(obj *provider.ObjectSummary) bool
	String() string
}

// FilterConfig holds filter criteria from config files or CLI flags.
type FilterConfig struct {
	// Size bounds are inclusive and accept human sizes ("1KiB", "10 MB").
	MinSize string `mapstructure:"min_size" json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize string `mapstructure:"max_size" json:"max_size,omitempty" yaml:"max_size,omitempty"`

	// After is inclusive and Before exclusive. Both accept "2006-01-02" or
	// RFC 3339.
	After  string `mapstructure:"after" json:"after,omitempty" yaml:"after,omitempty"`
	Before string `mapstructure:"before" json:"before,omitempty" yaml:"before,omitempty"`

	// StorageClasses keeps only these classes (case-insensitive).
	StorageClasses []string `mapstructure:"storage_classes" json:"storage_classes,omitempty" yaml:"storage_classes,omitempty"`

	KeyRegex string `mapstructure:"key_regex" json:"key_regex,omitempty" yaml:"key_regex,omitempty"`
}

var (
	ErrInvalidSize  = errors.New("invalid size value")
	ErrInvalidDate  = errors.New("invalid date value")
	ErrInvalidRegex = errors.New("invalid regex pattern")
)

// NewFilter builds the filter described by cfg. It returns nil when cfg
// sets no criteria.
func NewFilter(cfg FilterConfig) (Filter, error) {
	var all All

	if cfg.MinSize != "" || cfg.MaxSize != "" {
		f := SizeFilter{Min: -1, Max: -1}
		var err error
		if cfg.MinSize != "" {
			if f.Min, err = ParseSize(cfg.MinSize); err != nil {
				return nil, fmt.Errorf("min size: %w", err)
			}
		}
		if cfg.MaxSize != "" {
			if f.Max, err = ParseSize(cfg.MaxSize); err != nil {
				return nil, fmt.Errorf("max size: %w", err)
			}
		}
		if f.Min >= 0 && f.Max >= 0 && f.Min > f.Max {
			return nil, fmt.Errorf("%w: min %d exceeds max %d", ErrInvalidSize, f.Min, f.Max)
		}
		all = append(all, f)
	}

	if cfg.After != "" || cfg.Before != "" {
		var f DateFilter
		var err error
		if cfg.After != "" {
			if f.After, err = ParseDate(cfg.After); err != nil {
				return nil, fmt.Errorf("after: %w", err)
			}
		}
		if cfg.Before != "" {
			if f.Before, err = ParseDate(cfg.Before); err != nil {
				return nil, fmt.Errorf("before: %w", err)
			}
		}
		if !f.After.IsZero() && !f.Before.IsZero() && !f.After.Before(f.Before) {
			return nil, fmt.Errorf("%w: after must be earlier than before", ErrInvalidDate)
		}
		all = append(all, f)
	}

	if len(cfg.StorageClasses) > 0 {
		all = append(all, NewStorageClassFilter(cfg.StorageClasses...))
	}

	if cfg.KeyRegex != "" {
		re, err := regexp.Compile(cfg.KeyRegex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegex, err)
		}
		all = append(all, RegexFilter{re: re})
	}

	switch len(all) {
	case 0:
		return nil, nil
	case 1:
		return all[0], nil
	}
	return all, nil
}

// SizeFilter keeps objects whose size is within [Min, Max].
// A negative bound is open.
type SizeFilter struct {
	Min int64
	Max int64
}

func (f SizeFilter) Match(obj *provider.ObjectSummary) bool {
	return (f.Min < 0 || obj.Size >= f.Min) && (f.Max < 0 || obj.Size <= f.Max)
}

func (f SizeFilter) String() string {
	switch {
	case f.Min >= 0 && f.Max >= 0:
		return fmt.Sprintf("size %s..%s", FormatSize(f.Min), FormatSize(f.Max))
	case f.Min >= 0:
		return "size >= " + FormatSize(f.Min)
	default:
		return "size <= " + FormatSize(f.Max)
	}
}

// DateFilter keeps objects modified in [After, Before).
// A zero bound is open.
type DateFilter struct {
	After  time.Time
	Before time.Time
}

func (f DateFilter) Match(obj *provider.ObjectSummary) bool {
	if !f.After.IsZero() && obj.LastModified.Before(f.After) {
		return false
	}
	return f.Before.IsZero() || obj.LastModified.Before(f.Before)
}

func (f DateFilter) String() string {
	var parts []string
	if !f.After.IsZero() {
		parts = append(parts, "modified >= "+f.After.Format(time.RFC3339))
	}
	if !f.Before.IsZero() {
		parts = append(parts, "modified < "+f.Before.Format(time.RFC3339))
	}
	return strings.Join(parts, " and ")
}

// StorageClassFilter keeps objects in one of a set of storage classes.
type StorageClassFilter struct {
	classes []string
}

// NewStorageClassFilter matches any of classes, ignoring case.
func NewStorageClassFilter(classes ...string) StorageClassFilter {
	f := StorageClassFilter{classes: make([]string, len(classes))}
	for i, c := range classes {
		f.classes[i] = strings.ToUpper(strings.TrimSpace(c))
	}
	return f
}

func (f StorageClassFilter) Match(obj *provider.ObjectSummary) bool {
	return slices.Contains(f.classes, strings.ToUpper(obj.StorageClass))
}

func (f StorageClassFilter) String() string {
	return "storage class in " + strings.Join(f.classes, ",")
}

// RegexFilter keeps objects whose key matches a regular expression.
type RegexFilter struct {
	re *regexp.Regexp
}

func (f RegexFilter) Match(obj *provider.ObjectSummary) bool { return f.re.MatchString(obj.Key) }
func (f RegexFilter) String() string                         { return "key =~ " + f.re.String() }

// All keeps objects that pass every filter in the slice.
type All []Filter

func (a All) Match(obj *provider.ObjectSummary) bool {
	for _, f := range a {
		if !f.Match(obj) {
			return false
		}
	}
	return true
}

func (a All) String() string {
	parts := make([]string, len(a))
	for i, f := range a {
		parts[i] = f.String()
	}
	return strings.Join(parts, " and ")
}

// ParseSize parses a human size such as "512", "1KB" or "1.5 GiB".
// Decimal units are powers of 1000 and binary units powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidSize
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	if n > 1<<63-1 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// FormatSize renders n with binary units, e.g. "1.5 KiB".
func FormatSize(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// ParseDate parses "2006-01-02" (midnight UTC) or an RFC 3339 timestamp,
// normalized to UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
