package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ossxml/pkg/provider"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for key, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return dir
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	dir := writeTree(t, map[string]string{
		"pages/0001.xml":  `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult></ListBucketResult>`,
		"pages/0002.xml":  `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult></ListBucketResult>`,
		"pages/old/a.xml": "<a/>",
		"readme.txt":      "saved responses",
		"pagesx.txt":      "x",
	})
	p, err := New(Config{BaseDir: dir})
	require.NoError(t, err)
	return p
}

func keys(res *provider.ListResult) []string {
	out := make([]string, 0, len(res.Objects))
	for _, o := range res.Objects {
		out = append(out, o.Key)
	}
	return out
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{BaseDir: filepath.Join(t.TempDir(), "missing")})
	assert.True(t, provider.IsBucketNotFound(err))

	f := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(f, nil, 0o600))
	_, err = New(Config{BaseDir: f})
	assert.Error(t, err)
}

func TestList_Recursive(t *testing.T) {
	p := newTestProvider(t)

	res, err := p.List(context.Background(), provider.ListOptions{Prefix: "pages/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pages/0001.xml", "pages/0002.xml", "pages/old/a.xml"}, keys(res))
	assert.False(t, res.IsTruncated)
	assert.Equal(t, 3, res.KeyCount)
}

func TestList_PartialSegmentPrefix(t *testing.T) {
	p := newTestProvider(t)

	res, err := p.List(context.Background(), provider.ListOptions{Prefix: "pages"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pages/0001.xml", "pages/0002.xml", "pages/old/a.xml", "pagesx.txt"}, keys(res))
}

func TestList_Delimiter(t *testing.T) {
	p := newTestProvider(t)

	res, err := p.List(context.Background(), provider.ListOptions{Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pages/"}, res.CommonPrefixes)
	assert.Equal(t, []string{"pagesx.txt", "readme.txt"}, keys(res))
}

func TestList_Pagination(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	var all []string
	opts := provider.ListOptions{Prefix: "pages/", MaxKeys: 2}
	pages := 0
	for {
		res, err := p.List(ctx, opts)
		require.NoError(t, err)
		pages++
		all = append(all, keys(res)...)
		if !res.IsTruncated {
			break
		}
		opts.ContinuationToken = res.ContinuationToken
	}
	assert.Equal(t, 2, pages)
	assert.Equal(t, []string{"pages/0001.xml", "pages/0002.xml", "pages/old/a.xml"}, all)
}

func TestList_DelimiterPaginationSkipsReportedPrefix(t *testing.T) {
	p := newTestProvider(t)

	res, err := p.List(context.Background(), provider.ListOptions{Delimiter: "/", MaxKeys: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"pages/"}, res.CommonPrefixes)
	require.True(t, res.IsTruncated)

	next, err := p.List(context.Background(), provider.ListOptions{Delimiter: "/", MaxKeys: 1, ContinuationToken: res.ContinuationToken})
	require.NoError(t, err)
	assert.Empty(t, next.CommonPrefixes)
	assert.Equal(t, []string{"pagesx.txt"}, keys(next))
}

func TestList_StartAfter(t *testing.T) {
	p := newTestProvider(t)

	res, err := p.List(context.Background(), provider.ListOptions{Prefix: "pages/", StartAfter: "pages/0001.xml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pages/0002.xml", "pages/old/a.xml"}, keys(res))
}

func TestList_MissingPrefix(t *testing.T) {
	p := newTestProvider(t)

	res, err := p.List(context.Background(), provider.ListOptions{Prefix: "nothing/here/"})
	require.NoError(t, err)
	assert.Empty(t, res.Objects)
}

func TestList_Cancelled(t *testing.T) {
	p := newTestProvider(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.List(ctx, provider.ListOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHead(t *testing.T) {
	p := newTestProvider(t)

	meta, err := p.Head(context.Background(), "pages/0001.xml")
	require.NoError(t, err)
	assert.Equal(t, "pages/0001.xml", meta.Key)
	assert.Positive(t, meta.Size)
	assert.Contains(t, meta.ContentType, "xml")

	_, err = p.Head(context.Background(), "pages/missing.xml")
	assert.True(t, provider.IsNotFound(err))

	_, err = p.Head(context.Background(), "pages")
	assert.True(t, provider.IsNotFound(err))

	_, err = p.Head(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestProvider_GetObject(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	body, size, err := p.GetObject(ctx, "readme.txt")
	require.NoError(t, err)
	assert.EqualValues(t, len("saved responses"), size)
	assert.Equal(t, "saved responses", readAll(t, body))

	for _, key := range []string{"missing.txt", "pages", "../outside"} {
		_, _, err := p.GetObject(ctx, key)
		assert.Error(t, err, key)
	}
	_, _, err = p.GetObject(ctx, "pages")
	assert.True(t, provider.IsNotFound(err))
}

func TestProvider_GetRange(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	tests := []struct {
		name string
		r    provider.ByteRange
		want string
	}{
		{"prefix", provider.ByteRange{Start: 0, End: 4}, "saved"},
		{"middle", provider.ByteRange{Start: 6, End: 8}, "res"},
		{"open ended", provider.ByteRange{Start: 6, End: -1}, "responses"},
		{"past end clamped", provider.ByteRange{Start: 10, End: 500}, "onses"},
		{"starts past end", provider.ByteRange{Start: 100, End: 200}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, size, err := p.GetRange(ctx, "readme.txt", tt.r)
			require.NoError(t, err)
			assert.EqualValues(t, len(tt.want), size)
			assert.Equal(t, tt.want, readAll(t, body))
		})
	}

	_, _, err := p.GetRange(ctx, "readme.txt", provider.ByteRange{Start: 5, End: 2})
	assert.ErrorIs(t, err, provider.ErrInvalidRange)
}

func TestProvider_PutDelete(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	etag, err := p.PutObject(ctx, "out/2024/list.xml", strings.NewReader("<a/>"), 4, "application/xml")
	require.NoError(t, err)
	// md5("<a/>")
	assert.Equal(t, "F019EE9A03978AFF9F9B78D0DDF3EDB7", etag)

	body, _, err := p.GetObject(ctx, "out/2024/list.xml")
	require.NoError(t, err)
	assert.Equal(t, "<a/>", readAll(t, body))

	_, err = p.PutObject(ctx, "out/short.xml", strings.NewReader("<a/>"), 10, "")
	assert.ErrorContains(t, err, "want 10")
	_, err = os.Stat(filepath.Join(p.BaseDir(), "out", "short.xml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = p.PutObject(ctx, "out/", strings.NewReader(""), 0, "")
	assert.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(p.BaseDir(), "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files left behind")

	require.NoError(t, p.DeleteObject(ctx, "out/2024/list.xml"))
	require.NoError(t, p.DeleteObject(ctx, "out/2024/list.xml"))
	_, err = p.Head(ctx, "out/2024/list.xml")
	assert.True(t, provider.IsNotFound(err))

	require.NoError(t, p.DeleteObject(ctx, "pages/old"))
	_, err = p.Head(ctx, "pages/old/a.xml")
	assert.NoError(t, err)
}
