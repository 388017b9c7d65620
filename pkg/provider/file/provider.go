// Package file serves a local directory through the provider interface.
//
// Keys are slash-separated paths relative to the base directory. It is used
// to list and crawl mirrored buckets and saved response sets offline.
package file

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/3leaps/ossxml/pkg/provider"
)

// DefaultMaxKeys is the page size when ListOptions.MaxKeys is zero.
const DefaultMaxKeys = 1000

// Provider implements provider.Provider for a local directory.
type Provider struct {
	baseDir string
}

var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.ObjectGetter  = (*Provider)(nil)
	_ provider.ObjectRanger  = (*Provider)(nil)
	_ provider.ObjectPutter  = (*Provider)(nil)
	_ provider.ObjectDeleter = (*Provider)(nil)
)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

// New returns a provider rooted at cfg.BaseDir. The directory must exist.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := filepath.Clean(cfg.BaseDir)
	st, err := os.Stat(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderFile, Bucket: base, Err: provider.ErrBucketNotFound}
		}
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("base dir %s is not a directory", base)
	}
	return &Provider{baseDir: base}, nil
}

// BaseDir returns the cleaned base directory.
func (p *Provider) BaseDir() string { return p.baseDir }

func (p *Provider) Close() error { return nil }

// List returns keys under opts.Prefix in lexical order. The continuation
// token is the last key of the previous page.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	prefix := strings.TrimPrefix(opts.Prefix, "/")
	keys, err := p.collectKeys(ctx, prefix)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}
	sort.Strings(keys)

	after := opts.StartAfter
	if opts.ContinuationToken != "" {
		after = opts.ContinuationToken
	}
	start := 0
	if after != "" {
		start = sort.Search(len(keys), func(i int) bool { return keys[i] > after })
	}

	res := &provider.ListResult{}
	seen := map[string]bool{}
	var last string
	i := start
	for ; i < len(keys) && res.KeyCount < maxKeys; i++ {
		k := keys[i]
		last = k
		if opts.Delimiter != "" {
			rest := k[len(prefix):]
			if j := strings.Index(rest, opts.Delimiter); j >= 0 {
				cp := prefix + rest[:j+len(opts.Delimiter)]
				if !seen[cp] {
					seen[cp] = true
					res.CommonPrefixes = append(res.CommonPrefixes, cp)
					res.KeyCount++
				}
				continue
			}
		}

		st, err := os.Stat(p.path(k))
		if err != nil || st.IsDir() {
			continue
		}
		res.Objects = append(res.Objects, provider.ObjectSummary{
			Key:          k,
			Size:         st.Size(),
			LastModified: st.ModTime().UTC(),
			Type:         "Normal",
		})
		res.KeyCount++
	}

	// Skip the rest of a common prefix that was already reported.
	for opts.Delimiter != "" && i < len(keys) {
		rest := keys[i][len(prefix):]
		j := strings.Index(rest, opts.Delimiter)
		if j < 0 || !seen[prefix+rest[:j+len(opts.Delimiter)]] {
			break
		}
		last = keys[i]
		i++
	}

	if i < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = last
	}
	return res, nil
}

// Head returns metadata for key. ContentType is sniffed from the content.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	full, err := p.fullPath(key)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	if st.IsDir() {
		return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderFile, Bucket: p.baseDir, Key: key, Err: provider.ErrNotFound}
	}

	meta := &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          strings.TrimPrefix(key, "/"),
			Size:         st.Size(),
			LastModified: st.ModTime().UTC(),
			Type:         "Normal",
		},
	}
	if mt, err := mimetype.DetectFile(full); err == nil {
		meta.ContentType = mt.String()
	}
	return meta, nil
}

// GetObject opens key for reading.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	f, st, err := p.open(ctx, "GetObject", key)
	if err != nil {
		return nil, 0, err
	}
	return f, st.Size(), nil
}

// GetRange reads r of key. The range is clamped to the file size.
func (p *Provider) GetRange(ctx context.Context, key string, r provider.ByteRange) (io.ReadCloser, int64, error) {
	if err := r.Validate(); err != nil {
		return nil, 0, p.wrapError("GetRange", key, err)
	}
	f, st, err := p.open(ctx, "GetRange", key)
	if err != nil {
		return nil, 0, err
	}
	r, ok := r.Clamp(st.Size())
	if !ok {
		_ = f.Close()
		return io.NopCloser(strings.NewReader("")), 0, nil
	}
	return &sectionReadCloser{Reader: io.NewSectionReader(f, r.Start, r.Len()), Closer: f}, r.Len(), nil
}

type sectionReadCloser struct {
	io.Reader
	io.Closer
}

func (p *Provider) open(ctx context.Context, op, key string) (*os.File, fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	full, err := p.fullPath(key)
	if err != nil {
		return nil, nil, p.wrapError(op, key, err)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, nil, p.wrapError(op, key, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, p.wrapError(op, key, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, nil, p.wrapError(op, key, fs.ErrNotExist)
	}
	return f, st, nil
}

// PutObject writes body to key through a temp file and rename, creating
// parent directories. A non-negative size must match the body length. The
// returned ETag is the upper-case hex MD5 of the content, as the service
// reports for simple uploads. contentType is not stored.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := p.fullPath(key)
	if err != nil {
		return "", p.wrapError("PutObject", key, err)
	}
	if full == p.baseDir || strings.HasSuffix(key, "/") {
		return "", p.wrapError("PutObject", key, fmt.Errorf("invalid key path %q", key))
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", p.wrapError("PutObject", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".ossxml-put-*")
	if err != nil {
		return "", p.wrapError("PutObject", key, err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	sum := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, sum), body)
	if err != nil {
		return "", p.wrapError("PutObject", key, err)
	}
	if size >= 0 && n != size {
		return "", p.wrapError("PutObject", key, fmt.Errorf("body has %d bytes, want %d", n, size))
	}
	if err := tmp.Close(); err != nil {
		return "", p.wrapError("PutObject", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", p.wrapError("PutObject", key, err)
	}
	return strings.ToUpper(hex.EncodeToString(sum.Sum(nil))), nil
}

// DeleteObject removes key. Missing keys are ignored.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	if full == p.baseDir {
		return p.wrapError("DeleteObject", key, fmt.Errorf("invalid key path %q", key))
	}
	if st, err := os.Lstat(full); err == nil && st.IsDir() {
		return nil
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

func (p *Provider) path(key string) string {
	return filepath.Join(p.baseDir, filepath.FromSlash(key))
}

// fullPath maps key to a path under the base directory, rejecting keys that
// escape it.
func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	clean := strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+key)), "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path %q", key)
	}
	return p.path(clean), nil
}

// collectKeys walks the deepest directory covering prefix and returns the
// keys that start with it.
func (p *Provider) collectKeys(ctx context.Context, prefix string) ([]string, error) {
	dir := prefix
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	} else {
		dir = ""
	}
	root, err := p.fullPath(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.baseDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			keys = append(keys, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Bucket: p.baseDir, Key: key, Err: err}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		wrapped.Err = provider.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
