package oss

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/3leaps/ossxml/pkg/decode"
)

// Object is one entry of an object listing.
type Object struct {
	// Bucket is shared by every object of a listing.
	Bucket *BucketBase

	Key          string
	LastModified time.Time
	ETag         string
	Type         string
	Size         int64
	StorageClass string
}

var _ decode.ObjectDecoder = (*Object)(nil)

// NewObjectFactory returns a factory producing objects bound to bucket.
func NewObjectFactory(bucket *BucketBase) func() *Object {
	return func() *Object {
		return &Object{Bucket: bucket}
	}
}

func (o *Object) SetKey(key string) error {
	o.Key = key
	return nil
}

func (o *Object) SetLastModified(lastModified string) error {
	t, err := parseTime(lastModified)
	if err != nil {
		return fmt.Errorf("last modified: %w", err)
	}
	o.LastModified = t
	return nil
}

func (o *Object) SetETag(etag string) error {
	o.ETag = etag
	return nil
}

func (o *Object) SetType(typ string) error {
	o.Type = typ
	return nil
}

func (o *Object) SetSize(size string) error {
	n, err := strconv.ParseInt(size, 10, 64)
	if err != nil {
		return fmt.Errorf("size: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("size: negative value %d", n)
	}
	o.Size = n
	return nil
}

func (o *Object) SetStorageClass(storageClass string) error {
	o.StorageClass = storageClass
	return nil
}

// Path returns the key as an ObjectPath. Directory markers (keys ending with
// '/') fail validation.
func (o *Object) Path() (ObjectPath, error) {
	return ParseObjectPath(o.Key)
}

// IsDirMarker reports whether the object is a zero-byte directory marker.
func (o *Object) IsDirMarker() bool {
	return o.Size == 0 && len(o.Key) > 0 && o.Key[len(o.Key)-1] == '/'
}

// ObjectList is one page of a bucket's object listing.
type ObjectList struct {
	Bucket BucketBase

	Name           string
	Prefix         string
	MaxKeys        int
	KeyCount       int
	IsTruncated    bool
	CommonPrefixes []string
	Objects        []*Object

	// NextContinuationToken is empty on the last page.
	NextContinuationToken string

	// Query is the query that produced this page.
	Query Query

	hasNext bool
}

var (
	_ decode.ObjectListDecoder[*Object] = (*ObjectList)(nil)
	_ decode.TruncationSetter           = (*ObjectList)(nil)
)

func (l *ObjectList) SetName(name string) error {
	l.Name = name
	return nil
}

func (l *ObjectList) SetPrefix(prefix string) error {
	l.Prefix = prefix
	return nil
}

// SetCommonPrefix appends one CommonPrefixes block. Listings may carry any
// number of blocks. Prefixes end with whatever delimiter the query used, so
// only empty ones are rejected.
func (l *ObjectList) SetCommonPrefix(prefixes []string) error {
	for _, p := range prefixes {
		if p == "" {
			return errors.New("empty common prefix")
		}
		l.CommonPrefixes = append(l.CommonPrefixes, p)
	}
	return nil
}

// Dirs returns the common prefixes that are directory keys. With the "/"
// delimiter that is all of them.
func (l *ObjectList) Dirs() []ObjectDir {
	dirs := make([]ObjectDir, 0, len(l.CommonPrefixes))
	for _, p := range l.CommonPrefixes {
		if dir, err := ParseObjectDir(p); err == nil {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func (l *ObjectList) SetMaxKeys(maxKeys string) error {
	n, err := parseCount(maxKeys)
	if err != nil {
		return fmt.Errorf("max keys: %w", err)
	}
	l.MaxKeys = n
	return nil
}

func (l *ObjectList) SetKeyCount(keyCount string) error {
	n, err := parseCount(keyCount)
	if err != nil {
		return fmt.Errorf("key count: %w", err)
	}
	l.KeyCount = n
	return nil
}

func (l *ObjectList) SetIsTruncated(truncated bool) error {
	l.IsTruncated = truncated
	return nil
}

func (l *ObjectList) SetNextContinuationTokenStr(token string) error {
	l.NextContinuationToken = token
	return nil
}

// Deprecated: kept for decoders that still deliver the optional token.
func (l *ObjectList) SetNextContinuationToken(token *string) error {
	l.hasNext = token != nil
	return nil
}

func (l *ObjectList) SetList(objects []*Object) error {
	l.Objects = objects
	return nil
}

// HasNext reports whether another page can be requested.
func (l *ObjectList) HasNext() bool {
	return l.hasNext || l.NextContinuationToken != ""
}

// NextQuery returns the query for the following page. ok is false on the
// last page.
func (l *ObjectList) NextQuery() (q Query, ok bool) {
	if !l.HasNext() {
		return Query{}, false
	}
	q = l.Query
	q.ContinuationToken = l.NextContinuationToken
	return q, true
}

// parseCount parses a non-negative count, treating empty text as zero.
func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
