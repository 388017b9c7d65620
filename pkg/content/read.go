// Package content moves object bodies through the optional provider
// capabilities: whole and ranged reads, uploads with sniffed content types,
// and deletes.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/3leaps/ossxml/pkg/provider"
)

// ErrUnsupported is returned when a provider lacks the capability an
// operation needs.
var ErrUnsupported = errors.New("operation not supported by provider")

// Open streams the whole object.
func Open(ctx context.Context, p provider.Provider, key string) (io.ReadCloser, int64, error) {
	g, ok := p.(provider.ObjectGetter)
	if !ok {
		return nil, 0, fmt.Errorf("get %s: %w", key, ErrUnsupported)
	}
	return g.GetObject(ctx, key)
}

// ReadRange streams r of key. Providers without ranged reads serve it from a
// full GetObject with the unwanted bytes skipped.
func ReadRange(ctx context.Context, p provider.Provider, key string, r provider.ByteRange) (io.ReadCloser, int64, error) {
	if err := r.Validate(); err != nil {
		return nil, 0, err
	}
	if rg, ok := p.(provider.ObjectRanger); ok {
		return rg.GetRange(ctx, key, r)
	}

	body, size, err := Open(ctx, p, key)
	if err != nil {
		return nil, 0, err
	}
	if size >= 0 {
		clamped, ok := r.Clamp(size)
		if !ok {
			_ = body.Close()
			return empty(), 0, nil
		}
		r = clamped
	}
	if _, err := io.CopyN(io.Discard, body, r.Start); err != nil {
		_ = body.Close()
		if errors.Is(err, io.EOF) {
			return empty(), 0, nil
		}
		return nil, 0, err
	}
	if r.OpenEnded() {
		return body, -1, nil
	}
	return &readCloser{Reader: io.LimitReader(body, r.Len()), Closer: body}, r.Len(), nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

func empty() io.ReadCloser { return io.NopCloser(strings.NewReader("")) }

// HeadBytes returns the object's metadata and its first n bytes. Objects
// shorter than n are returned whole; n == 0 only fetches metadata.
func HeadBytes(ctx context.Context, p provider.Provider, key string, n int64) ([]byte, *provider.ObjectMeta, error) {
	if n < 0 {
		return nil, nil, errors.New("head bytes must be >= 0")
	}

	meta, err := p.Head(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 || meta.Size == 0 {
		return nil, meta, nil
	}

	end := n - 1
	if meta.Size > 0 && meta.Size-1 < end {
		end = meta.Size - 1
	}
	body, _, err := ReadRange(ctx, p, key, provider.ByteRange{Start: 0, End: end})
	if err != nil {
		return nil, meta, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(io.LimitReader(body, n))
	if err != nil {
		return nil, meta, err
	}
	return data, meta, nil
}
