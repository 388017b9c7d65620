// Package output writes listing and crawl results as JSONL records.
//
// Every line is a Record envelope whose Type names the payload schema
// (ossxml.<kind>.v<version>) and whose Data holds the payload.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/ossxml/pkg/provider"
)

// Record types.
const (
	TypeObject   = "ossxml.object.v1"
	TypePrefix   = "ossxml.prefix.v1"
	TypeBucket   = "ossxml.bucket.v1"
	TypeError    = "ossxml.error.v1"
	TypeProgress = "ossxml.progress.v1"
	TypeSummary  = "ossxml.summary.v1"
)

// Record is the envelope of every output line. Seq numbers the lines of one
// writer from 1 so consumers can spot gaps.
type Record struct {
	Type     string          `json:"type" yaml:"type"`
	Seq      int64           `json:"seq" yaml:"seq"`
	TS       time.Time       `json:"ts" yaml:"ts"`
	JobID    string          `json:"job_id" yaml:"job_id"`
	Provider string          `json:"provider" yaml:"provider"`
	Data     json.RawMessage `json:"data" yaml:"data"`
}

// ObjectRecord describes one listed object.
type ObjectRecord struct {
	Bucket       string    `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Key          string    `json:"key" yaml:"key"`
	Size         int64     `json:"size" yaml:"size"`
	ETag         string    `json:"etag" yaml:"etag"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
	StorageClass string    `json:"storage_class,omitempty" yaml:"storage_class,omitempty"`
	Type         string    `json:"object_type,omitempty" yaml:"object_type,omitempty"`

	// Set only when objects are enriched with a HEAD request.
	ContentType string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewObjectRecord copies the listing fields of obj.
func NewObjectRecord(bucket string, obj *provider.ObjectSummary) *ObjectRecord {
	return &ObjectRecord{
		Bucket:       bucket,
		Key:          obj.Key,
		Size:         obj.Size,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
		StorageClass: obj.StorageClass,
		Type:         obj.Type,
	}
}

// PrefixRecord describes a common prefix returned by a delimited listing.
type PrefixRecord struct {
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix string `json:"prefix" yaml:"prefix"`

	// Parent is the prefix that was listed to discover Prefix.
	Parent string `json:"parent" yaml:"parent"`
}

// BucketRecord describes one bucket from a bucket listing.
type BucketRecord struct {
	Name             string    `json:"name" yaml:"name"`
	Region           string    `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint         string    `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	IntranetEndpoint string    `json:"intranet_endpoint,omitempty" yaml:"intranet_endpoint,omitempty"`
	Location         string    `json:"location,omitempty" yaml:"location,omitempty"`
	StorageClass     string    `json:"storage_class,omitempty" yaml:"storage_class,omitempty"`
	CreationDate     time.Time `json:"creation_date" yaml:"creation_date"`
}

// NewBucketRecord copies b.
func NewBucketRecord(b *provider.BucketSummary) *BucketRecord {
	return &BucketRecord{
		Name:             b.Name,
		Region:           b.Region,
		Endpoint:         b.Endpoint,
		IntranetEndpoint: b.IntranetEndpoint,
		Location:         b.Location,
		StorageClass:     b.StorageClass,
		CreationDate:     b.CreationDate,
	}
}

// ErrorRecord reports a failure that did not stop the run.
type ErrorRecord struct {
	Code      string `json:"code" yaml:"code"`
	Message   string `json:"message" yaml:"message"`
	Key       string `json:"key,omitempty" yaml:"key,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	RequestID string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
}

// Error codes.
const (
	ErrCodeAccessDenied        = "ACCESS_DENIED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeThrottled           = "THROTTLED"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeMalformedResponse   = "MALFORMED_RESPONSE"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeInternal            = "INTERNAL"
)

// NewErrorRecord classifies err into an ErrorRecord. The request id is
// taken from a *provider.ProviderError when err carries one.
func NewErrorRecord(err error, prefix string) *ErrorRecord {
	rec := &ErrorRecord{Code: ErrorCode(err), Message: err.Error(), Prefix: prefix}

	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		rec.Key = perr.Key
		rec.RequestID = perr.RequestID
	}
	return rec
}

// ErrorCode maps a provider error to an error code.
func ErrorCode(err error) string {
	switch {
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return ErrCodeAccessDenied
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return ErrCodeNotFound
	case provider.IsThrottled(err):
		return ErrCodeThrottled
	case provider.IsProviderUnavailable(err):
		return ErrCodeProviderUnavailable
	case provider.IsMalformedResponse(err):
		return ErrCodeMalformedResponse
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeInternal
	}
}

// ProgressRecord is emitted periodically during long runs.
type ProgressRecord struct {
	Phase          string `json:"phase" yaml:"phase"`
	ObjectsFound   int64  `json:"objects_found" yaml:"objects_found"`
	ObjectsMatched int64  `json:"objects_matched" yaml:"objects_matched"`
	BytesTotal     int64  `json:"bytes_total" yaml:"bytes_total"`
	Prefix         string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Progress phases.
const (
	PhaseStarting = "starting"
	PhaseListing  = "listing"
	PhaseComplete = "complete"
)

// SummaryRecord closes a run.
type SummaryRecord struct {
	ObjectsFound   int64         `json:"objects_found" yaml:"objects_found"`
	ObjectsMatched int64         `json:"objects_matched" yaml:"objects_matched"`
	BytesTotal     int64         `json:"bytes_total" yaml:"bytes_total"`
	PrefixesFound  int64         `json:"prefixes_found" yaml:"prefixes_found"`
	Pages          int64         `json:"pages" yaml:"pages"`
	Duration       time.Duration `json:"duration_ns" yaml:"duration_ns"`
	DurationHuman  string        `json:"duration" yaml:"duration"`
	Errors         int64         `json:"errors" yaml:"errors"`
	Prefixes       []string      `json:"prefixes,omitempty" yaml:"prefixes,omitempty"`
}

var ErrWriterClosed = errors.New("writer is closed")

// WriteError wraps a failure to encode or write a record.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
