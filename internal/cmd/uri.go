package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/ossxml/pkg/match"
	ossapi "github.com/3leaps/ossxml/pkg/oss"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingBucket indicates the URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

const (
	schemeOSS  = "oss"
	schemeFile = "file"
)

// ObjectURI is a parsed storage URI.
//
// Example URIs:
//   - oss://bucket/key/path.xml
//   - oss://bucket/prefix/
//   - oss://bucket/prefix/**/*.parquet
//   - oss://bucket.oss-cn-shanghai.aliyuncs.com/prefix/
//   - file:///srv/mirror/prefix/**/*.xml
type ObjectURI struct {
	Provider string

	// Bucket is the bucket name, or the base directory of a file URI.
	Bucket string

	// Endpoint is set when the URI names the bucket by its virtual-hosted
	// host rather than its bare name.
	Endpoint string

	// Key is the object key or listing prefix. Empty for the bucket root.
	Key string

	// Pattern is set if the path contains glob characters. Key is then the
	// literal prefix before the first glob character.
	Pattern string
}

// String returns the URI in canonical form.
func (u *ObjectURI) String() string {
	if u.Provider == schemeFile {
		return fmt.Sprintf("%s://%s/%s", u.Provider, strings.TrimSuffix(u.Bucket, "/"), u.path())
	}
	host := u.Bucket
	if u.Endpoint != "" {
		host += "." + u.Endpoint
	}
	switch {
	case u.Pattern != "":
		return fmt.Sprintf("%s://%s/%s", u.Provider, host, u.Pattern)
	case u.Key != "":
		return fmt.Sprintf("%s://%s/%s", u.Provider, host, u.Key)
	}
	return fmt.Sprintf("%s://%s/", u.Provider, host)
}

func (u *ObjectURI) path() string {
	if u.Pattern != "" {
		return u.Pattern
	}
	return u.Key
}

// IsPattern returns true if the URI contains glob pattern characters.
func (u *ObjectURI) IsPattern() bool {
	return u.Pattern != ""
}

// IsPrefix returns true if the URI represents a prefix (ends with /).
func (u *ObjectURI) IsPrefix() bool {
	return strings.HasSuffix(u.Key, "/") || u.Key == ""
}

// ParseURI parses a storage URI into its components.
func ParseURI(uri string) (*ObjectURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// url.Parse would treat '?' in a glob as the start of a query.
	scheme, remainder, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("%w: missing scheme (expected oss://...)", ErrInvalidURI)
	}

	provider := strings.ToLower(scheme)
	switch provider {
	case schemeOSS:
	case schemeFile:
		return parseFileURI(uri, remainder)
	default:
		return nil, fmt.Errorf("%w: %s (supported: oss, file)", ErrUnsupportedProvider, provider)
	}

	host, key, _ := strings.Cut(remainder, "/")
	if host == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}

	result := &ObjectURI{Provider: provider}
	if strings.Contains(host, ".") {
		base, err := ossapi.ParseBucketBase(host)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
		}
		result.Bucket = base.Name.String()
		result.Endpoint = base.Endpoint.Host()
	} else {
		name, err := ossapi.ParseBucketName(host)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
		}
		result.Bucket = name.String()
	}

	if match.IsGlobPattern(key) {
		result.Pattern = key
	}
	// DerivePrefix also unescapes literal keys ("file\*.xml" -> "file*.xml").
	result.Key = match.DerivePrefix(key)

	return result, nil
}

// parseFileURI splits an absolute path into the directory that serves as
// the bucket and the key or pattern below it. The directory is the longest
// literal leading path that ends in '/'.
func parseFileURI(uri, path string) (*ObjectURI, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: file URIs need an absolute path (file:///dir/...)", ErrInvalidURI)
	}

	literal := path[:globIndex(path)]
	cut := strings.LastIndex(literal, "/")
	dir, rel := path[:cut+1], path[cut+1:]

	result := &ObjectURI{Provider: schemeFile, Bucket: match.DerivePrefix(dir)}
	if result.Bucket != "/" {
		result.Bucket = strings.TrimSuffix(result.Bucket, "/")
	}
	if match.IsGlobPattern(rel) {
		result.Pattern = rel
	}
	result.Key = match.DerivePrefix(rel)
	return result, nil
}

// globIndex returns the index of the first unescaped glob character in s,
// or len(s).
func globIndex(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*', '?', '[', '{':
			return i
		}
	}
	return len(s)
}
