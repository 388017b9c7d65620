// Package provider defines abstractions for object storage listing.
//
// Providers implement a minimal surface focused on listing and metadata
// retrieval. Signing is delegated to a pluggable signer; providers do not
// implement credential discovery themselves.
package provider

import (
	"context"
	"time"
)

// Provider abstracts object storage listing operations.
//
// Implementations should:
//   - Support pagination via continuation tokens
//   - Report common prefixes when a delimiter is requested
//   - Be safe for concurrent use
type Provider interface {
	// List returns a page of objects with the given prefix.
	// Use ContinuationToken from ListResult for subsequent pages.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Head returns metadata for a single object.
	// Returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ListOptions configures a List operation.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	Prefix string

	// Delimiter groups keys below Prefix into CommonPrefixes (usually "/").
	// Empty lists recursively.
	Delimiter string

	// ContinuationToken resumes listing from a previous ListResult.
	ContinuationToken string

	// StartAfter starts the listing after this key.
	StartAfter string

	// MaxKeys limits the number of objects returned per page.
	// Zero uses the provider default.
	MaxKeys int
}

// ListResult contains a page of objects from a List operation.
type ListResult struct {
	Objects []ObjectSummary

	// CommonPrefixes are the immediate child prefixes when a delimiter was
	// requested.
	CommonPrefixes []string

	// KeyCount is the count reported by the service, which may differ from
	// len(Objects).
	KeyCount int

	// ContinuationToken is used to retrieve the next page.
	// Empty string indicates no more pages.
	ContinuationToken string

	IsTruncated bool
}

// ObjectSummary contains basic metadata returned from List operations.
type ObjectSummary struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	StorageClass string

	// Type is the upload type (Normal, Multipart, Appendable).
	Type string
}

// ObjectMeta contains full metadata for a single object.
// Returned by Head operations.
type ObjectMeta struct {
	ObjectSummary

	ContentType string

	// Metadata contains user-defined metadata (x-oss-meta-*) without the
	// header prefix.
	Metadata map[string]string
}

// ProviderType identifies a storage provider.
type ProviderType string

const (
	// ProviderOSS represents OSS or an OSS-compatible store.
	ProviderOSS ProviderType = "oss"

	// ProviderFile represents a local directory served as a bucket.
	ProviderFile ProviderType = "file"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
