package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	ErrAccessDenied = errors.New("access denied")

	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates the request signature was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the service.
	ErrThrottled = errors.New("request throttled")

	// ErrMalformedResponse indicates a response body could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// ProviderError wraps provider-specific errors with context.
type ProviderError struct {
	// Op is the operation that failed (e.g., "List", "Head").
	Op string

	Provider ProviderType
	Bucket   string
	Key      string

	// RequestID is the service request id, when the service returned one.
	RequestID string

	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	var msg string
	switch {
	case e.Key != "":
		msg = fmt.Sprintf("%s %s: %s/%s: %v", e.Provider, e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		msg = fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Bucket, e.Err)
	default:
		msg = fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsBucketNotFound returns true if the error indicates the bucket does not exist.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsInvalidCredentials returns true if the request signature was rejected.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsProviderUnavailable returns true if the service is unavailable.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsMalformedResponse returns true if a response body failed to decode.
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsFatal reports whether err should stop a crawl rather than be recorded
// and skipped.
func IsFatal(err error) bool {
	return IsAccessDenied(err) || IsBucketNotFound(err) || IsInvalidCredentials(err)
}
