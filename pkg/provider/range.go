package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ByteRange selects bytes Start through End of an object, both inclusive.
// A negative End reads to the end of the object.
type ByteRange struct {
	Start int64
	End   int64
}

// ErrInvalidRange is returned for ranges that select nothing.
var ErrInvalidRange = errors.New("invalid byte range")

// ParseByteRange reads "start-end" or "start-" (both in bytes).
func ParseByteRange(s string) (ByteRange, error) {
	start, end, ok := strings.Cut(strings.TrimPrefix(strings.TrimSpace(s), "bytes="), "-")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w %q: want start-end", ErrInvalidRange, s)
	}
	r := ByteRange{End: -1}
	var err error
	if r.Start, err = strconv.ParseInt(start, 10, 64); err != nil {
		return ByteRange{}, fmt.Errorf("%w %q: start: %v", ErrInvalidRange, s, err)
	}
	if end != "" {
		if r.End, err = strconv.ParseInt(end, 10, 64); err != nil {
			return ByteRange{}, fmt.Errorf("%w %q: end: %v", ErrInvalidRange, s, err)
		}
	}
	if err := r.Validate(); err != nil {
		return ByteRange{}, err
	}
	return r, nil
}

// Validate rejects negative starts and ends before the start.
func (r ByteRange) Validate() error {
	if r.Start < 0 {
		return fmt.Errorf("%w: start %d is negative", ErrInvalidRange, r.Start)
	}
	if r.End >= 0 && r.End < r.Start {
		return fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// OpenEnded reports whether r reads to the end of the object.
func (r ByteRange) OpenEnded() bool { return r.End < 0 }

// Clamp limits r to an object of size bytes. ok is false when r starts at or
// past the end.
func (r ByteRange) Clamp(size int64) (clamped ByteRange, ok bool) {
	if r.Start >= size {
		return ByteRange{}, false
	}
	if r.End < 0 || r.End >= size {
		r.End = size - 1
	}
	return r, true
}

// Len returns the number of bytes r selects, or -1 when open ended.
func (r ByteRange) Len() int64 {
	if r.End < 0 {
		return -1
	}
	return r.End - r.Start + 1
}

// Header returns the HTTP Range header value.
func (r ByteRange) Header() string {
	if r.End < 0 {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// String returns r in the form ParseByteRange reads.
func (r ByteRange) String() string {
	return strings.TrimPrefix(r.Header(), "bytes=")
}
