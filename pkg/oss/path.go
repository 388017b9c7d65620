package oss

import (
	"fmt"
	"strings"
)

// ObjectPath is the key of a file object: non-empty, not starting with '/'
// or '\', not ending with '/'.
type ObjectPath string

// ParseObjectPath validates key as a file key.
func ParseObjectPath(key string) (ObjectPath, error) {
	switch {
	case key == "":
		return "", &InvalidObjectPath{Key: key, Reason: "empty"}
	case strings.HasPrefix(key, "/"), strings.HasPrefix(key, `\`):
		return "", &InvalidObjectPath{Key: key, Reason: "must not start with a separator"}
	case strings.HasSuffix(key, "/"):
		return "", &InvalidObjectPath{Key: key, Reason: "ends with '/', use ObjectDir"}
	}
	return ObjectPath(key), nil
}

// String returns the key.
func (p ObjectPath) String() string { return string(p) }

// Dir returns the directory containing p, or "" at the bucket root.
func (p ObjectPath) Dir() ObjectDir {
	i := strings.LastIndexByte(string(p), '/')
	if i < 0 {
		return ""
	}
	return ObjectDir(p[:i+1])
}

// Base returns the last segment of p.
func (p ObjectPath) Base() string {
	s := string(p)
	return s[strings.LastIndexByte(s, '/')+1:]
}

// ObjectDir is a directory-like key prefix ending with '/'.
type ObjectDir string

// ParseObjectDir validates prefix as a directory key.
func ParseObjectDir(prefix string) (ObjectDir, error) {
	switch {
	case prefix == "":
		return "", &InvalidObjectDir{Prefix: prefix, Reason: "empty"}
	case strings.HasPrefix(prefix, "/"), strings.HasPrefix(prefix, `\`):
		return "", &InvalidObjectDir{Prefix: prefix, Reason: "must not start with a separator"}
	case !strings.HasSuffix(prefix, "/"):
		return "", &InvalidObjectDir{Prefix: prefix, Reason: "must end with '/'"}
	}
	return ObjectDir(prefix), nil
}

// String returns the prefix.
func (d ObjectDir) String() string { return string(d) }

// Join returns the file key name inside d.
func (d ObjectDir) Join(name string) (ObjectPath, error) {
	return ParseObjectPath(string(d) + strings.TrimPrefix(name, "/"))
}

// InvalidObjectPath is returned by ParseObjectPath.
type InvalidObjectPath struct {
	Key    string
	Reason string
}

func (e *InvalidObjectPath) Error() string {
	return fmt.Sprintf("invalid object path %q: %s", e.Key, e.Reason)
}

// InvalidObjectDir is returned by ParseObjectDir.
type InvalidObjectDir struct {
	Prefix string
	Reason string
}

func (e *InvalidObjectDir) Error() string {
	return fmt.Sprintf("invalid object dir %q: %s", e.Prefix, e.Reason)
}
