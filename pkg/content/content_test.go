package content

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ossxml/pkg/provider"
	"github.com/3leaps/ossxml/pkg/provider/file"
)

// listOnly has no optional capabilities.
type listOnly struct {
	objects map[string][]byte
}

func (p *listOnly) List(context.Context, provider.ListOptions) (*provider.ListResult, error) {
	return &provider.ListResult{}, nil
}

func (p *listOnly) Head(_ context.Context, key string) (*provider.ObjectMeta, error) {
	data, ok := p.objects[key]
	if !ok {
		return nil, &provider.ProviderError{Op: "Head", Key: key, Err: provider.ErrNotFound}
	}
	return &provider.ObjectMeta{ObjectSummary: provider.ObjectSummary{Key: key, Size: int64(len(data))}}, nil
}

func (p *listOnly) Close() error { return nil }

// getter adds whole-object reads and uploads.
type getter struct {
	listOnly
	mu          sync.Mutex
	contentType string
}

func (p *getter) GetObject(_ context.Context, key string) (io.ReadCloser, int64, error) {
	data, ok := p.objects[key]
	if !ok {
		return nil, 0, &provider.ProviderError{Op: "GetObject", Key: key, Err: provider.ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (p *getter) PutObject(_ context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if int64(len(data)) != size {
		return "", io.ErrShortWrite
	}
	p.objects[key] = data
	p.contentType = contentType
	return "etag-" + key, nil
}

func newGetter(objects map[string]string) *getter {
	g := &getter{listOnly: listOnly{objects: map[string][]byte{}}}
	for k, v := range objects {
		g.objects[k] = []byte(v)
	}
	return g
}

func readString(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestReadRange_FallsBackToGetObject(t *testing.T) {
	p := newGetter(map[string]string{"k": "hello world"})

	tests := []struct {
		name string
		r    provider.ByteRange
		want string
		size int64
	}{
		{"start", provider.ByteRange{Start: 0, End: 4}, "hello", 5},
		{"middle", provider.ByteRange{Start: 6, End: 8}, "wor", 3},
		{"open ended", provider.ByteRange{Start: 6, End: -1}, "world", 5},
		{"clamped", provider.ByteRange{Start: 9, End: 100}, "ld", 2},
		{"past end", provider.ByteRange{Start: 50, End: -1}, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, size, err := ReadRange(context.Background(), p, "k", tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.size, size)
			assert.Equal(t, tt.want, readString(t, body))
		})
	}

	_, _, err := ReadRange(context.Background(), p, "k", provider.ByteRange{Start: 3, End: 1})
	assert.ErrorIs(t, err, provider.ErrInvalidRange)
}

func TestReadRange_UsesRanger(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.xml"), []byte("<ListBucketResult/>"), 0o600))
	p, err := file.New(file.Config{BaseDir: dir})
	require.NoError(t, err)

	body, size, err := ReadRange(context.Background(), p, "page.xml", provider.ByteRange{Start: 1, End: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 4, size)
	assert.Equal(t, "List", readString(t, body))
}

func TestHeadBytes(t *testing.T) {
	p := newGetter(map[string]string{"k": "hello world", "empty": ""})
	ctx := context.Background()

	data, meta, err := HeadBytes(ctx, p, "k", 5)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "hello", string(data))
	assert.EqualValues(t, 11, meta.Size)

	data, _, err = HeadBytes(ctx, p, "k", 64)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	data, meta, err = HeadBytes(ctx, p, "k", 0)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NotNil(t, meta)

	data, _, err = HeadBytes(ctx, p, "empty", 10)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, _, err = HeadBytes(ctx, p, "k", -1)
	assert.Error(t, err)

	_, _, err = HeadBytes(ctx, p, "missing", 5)
	assert.True(t, provider.IsNotFound(err))
}

func TestHeadBytesAll(t *testing.T) {
	p := newGetter(map[string]string{"a.xml": "<a/>", "b.xml": "<bb/>", "c.xml": "<ccc/>"})

	results, err := HeadBytesAll(context.Background(), p, []string{"c.xml", "missing.xml", "a.xml", "b.xml"}, 3, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	keys := make([]string, 0, len(results))
	for _, r := range results {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"c.xml", "missing.xml", "a.xml", "b.xml"}, keys)
	assert.Equal(t, "<cc", string(results[0].Data))
	assert.True(t, provider.IsNotFound(results[1].Err))
	assert.Equal(t, "<a/", string(results[2].Data))
	assert.NoError(t, results[3].Err)
}

func TestHeadBytesAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := HeadBytesAll(ctx, newGetter(map[string]string{"a": "x"}), []string{"a"}, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPutBytes_SniffsContentType(t *testing.T) {
	p := newGetter(nil)
	ctx := context.Background()

	etag, err := PutBytes(ctx, p, "saved/list.xml", []byte(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult/>`), "")
	require.NoError(t, err)
	assert.Equal(t, "etag-saved/list.xml", etag)
	assert.True(t, strings.HasPrefix(p.contentType, "text/xml"), p.contentType)

	_, err = PutBytes(ctx, p, "saved/list.json", []byte(`{"objects":[]}`), "")
	require.NoError(t, err)
	assert.Equal(t, "application/json", p.contentType)

	_, err = PutBytes(ctx, p, "raw.bin", []byte{0x00, 0x01, 0x02}, "")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", p.contentType)

	_, err = PutBytes(ctx, p, "forced.txt", []byte(`{}`), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", p.contentType)
}

func TestPutFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "page.xml")
	body := `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>abc</Name></ListBucketResult>`
	require.NoError(t, os.WriteFile(src, []byte(body), 0o600))

	p := newGetter(nil)
	etag, err := PutFile(context.Background(), p, "pages/0001.xml", src, "")
	require.NoError(t, err)
	assert.Equal(t, "etag-pages/0001.xml", etag)
	assert.Equal(t, body, string(p.objects["pages/0001.xml"]), "sniffing must not consume the body")
	assert.True(t, strings.HasPrefix(p.contentType, "text/xml"), p.contentType)

	_, err = PutFile(context.Background(), p, "x", filepath.Dir(src), "")
	assert.ErrorContains(t, err, "is a directory")
	_, err = PutFile(context.Background(), p, "x", filepath.Join(t.TempDir(), "missing"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnsupported(t *testing.T) {
	p := &listOnly{objects: map[string][]byte{"k": []byte("v")}}
	ctx := context.Background()

	_, _, err := Open(ctx, p, "k")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, _, err = ReadRange(ctx, p, "k", provider.ByteRange{End: -1})
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = PutBytes(ctx, p, "k", nil, "")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, Delete(ctx, p, "k"), ErrUnsupported)
}

func TestDelete_File(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.xml"), []byte("<a/>"), 0o600))
	p, err := file.New(file.Config{BaseDir: dir})
	require.NoError(t, err)

	require.NoError(t, Delete(context.Background(), p, "old.xml"))
	_, err = os.Stat(filepath.Join(dir, "old.xml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
