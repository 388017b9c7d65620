package provider

import (
	"context"
	"io"
	"time"
)

// Optional provider capability interfaces, detected with type assertions.

// BucketLister can enumerate the buckets of the account.
type BucketLister interface {
	ListBuckets(ctx context.Context, opts BucketListOptions) (*BucketListResult, error)
}

// BucketListOptions configures a ListBuckets operation.
type BucketListOptions struct {
	Prefix  string
	Marker  string
	MaxKeys int
}

// BucketListResult contains a page of buckets.
type BucketListResult struct {
	Buckets []BucketSummary

	// NextMarker resumes the listing. Empty on the last page.
	NextMarker  string
	IsTruncated bool

	OwnerID          string
	OwnerDisplayName string
}

// BucketSummary describes one bucket.
type BucketSummary struct {
	Name             string
	Region           string
	Endpoint         string
	IntranetEndpoint string
	Location         string
	StorageClass     string
	CreationDate     time.Time
}

// BucketInfoGetter can describe the configured bucket.
type BucketInfoGetter interface {
	BucketInfo(ctx context.Context) (*BucketSummary, error)
}

// ObjectGetter streams whole objects. The returned size is -1 when the
// service did not report it.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) (body io.ReadCloser, size int64, err error)
}

// ObjectRanger reads part of an object. A range starting past the end of the
// object yields an empty body.
type ObjectRanger interface {
	GetRange(ctx context.Context, key string, r ByteRange) (body io.ReadCloser, size int64, err error)
}

// ObjectPutter creates or overwrites objects. An empty contentType leaves the
// choice to the provider. It returns the new object's ETag when the provider
// reports one.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (etag string, err error)
}

// ObjectDeleter removes objects. Deleting a missing key is not an error.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}
