package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ossxml/pkg/provider"
)

func fixedClock() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }

func newTestWriter(buf io.Writer) *JSONLWriter {
	w := NewJSONLWriter(buf, "job-1", "oss")
	w.now = fixedClock
	return w
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []Record {
	t.Helper()
	var out []Record
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec), sc.Text())
		out = append(out, rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestJSONLWriter_Envelope(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	err := w.WriteObject(context.Background(), &ObjectRecord{
		Bucket:       "logs",
		Key:          "2024/a.xml",
		Size:         42,
		ETag:         "abc",
		LastModified: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		StorageClass: "Standard",
		Type:         "Normal",
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(buf.String(), "\n"))

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, TypeObject, recs[0].Type)
	assert.Equal(t, "job-1", recs[0].JobID)
	assert.Equal(t, "oss", recs[0].Provider)
	assert.Equal(t, fixedClock(), recs[0].TS)

	var obj ObjectRecord
	require.NoError(t, json.Unmarshal(recs[0].Data, &obj))
	assert.Equal(t, "2024/a.xml", obj.Key)
	assert.Equal(t, int64(42), obj.Size)
	assert.Equal(t, "Normal", obj.Type)
	assert.JSONEq(t,
		`{"bucket":"logs","key":"2024/a.xml","size":42,"etag":"abc","last_modified":"2024-01-15T12:00:00Z","storage_class":"Standard","object_type":"Normal"}`,
		string(recs[0].Data))
}

func TestJSONLWriter_RecordTypes(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	ctx := context.Background()

	require.NoError(t, w.WritePrefix(ctx, &PrefixRecord{Prefix: "a/b/", Parent: "a/"}))
	require.NoError(t, w.WriteBucket(ctx, &BucketRecord{Name: "logs", Region: "cn-hangzhou"}))
	require.NoError(t, w.WriteError(ctx, &ErrorRecord{Code: ErrCodeNotFound, Message: "gone"}))
	require.NoError(t, w.WriteProgress(ctx, &ProgressRecord{Phase: PhaseListing, ObjectsFound: 3}))
	require.NoError(t, w.WriteSummary(ctx, &SummaryRecord{ObjectsFound: 3, Duration: time.Second, DurationHuman: "1s"}))

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 5)
	types := make([]string, len(recs))
	for i, r := range recs {
		types[i] = r.Type
	}
	assert.Equal(t, []string{TypePrefix, TypeBucket, TypeError, TypeProgress, TypeSummary}, types)
	assert.JSONEq(t, `{"prefix":"a/b/","parent":"a/"}`, string(recs[0].Data))
}

func TestJSONLWriter_Sequence(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	ctx := context.Background()

	require.NoError(t, w.WriteProgress(ctx, &ProgressRecord{Phase: PhaseListing}))
	require.NoError(t, w.WriteObject(ctx, &ObjectRecord{Key: "a"}))
	require.Error(t, w.WriteObject(ctx, &ObjectRecord{Key: "b", LastModified: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, w.WriteSummary(ctx, &SummaryRecord{ObjectsFound: 1}))

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 3)
	for i, r := range recs {
		assert.Equal(t, int64(i+1), r.Seq)
	}
	assert.Equal(t, int64(3), w.Count())
}

func TestJSONLWriter_Closed(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	require.NoError(t, w.Close())

	err := w.WriteObject(context.Background(), &ObjectRecord{Key: "a"})
	assert.ErrorIs(t, err, ErrWriterClosed)
	assert.Zero(t, buf.Len())
}

func TestJSONLWriter_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.WriteObject(ctx, &ObjectRecord{Key: "a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

// shortWriter accepts at most n bytes per call.
type shortWriter struct {
	buf bytes.Buffer
	n   int
}

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) > s.n {
		p = p[:s.n]
	}
	return s.buf.Write(p)
}

type failWriter struct{ n int }

func (f failWriter) Write([]byte) (int, error) {
	if f.n > 0 {
		return 0, nil
	}
	return 0, errors.New("disk full")
}

func TestJSONLWriter_ShortWrites(t *testing.T) {
	sw := &shortWriter{n: 7}
	w := newTestWriter(sw)

	require.NoError(t, w.WriteObject(context.Background(), &ObjectRecord{Key: "short/write.xml"}))
	recs := decodeLines(t, &sw.buf)
	require.Len(t, recs, 1)
}

func TestJSONLWriter_WriteFailures(t *testing.T) {
	w := newTestWriter(failWriter{})
	err := w.WriteObject(context.Background(), &ObjectRecord{Key: "a"})
	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "write", werr.Op)
	assert.EqualError(t, err, "output: write: disk full")

	w = newTestWriter(failWriter{n: 1})
	err = w.WriteObject(context.Background(), &ObjectRecord{Key: "a"})
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestJSONLWriter_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.WriteObject(context.Background(), &ObjectRecord{Key: fmt.Sprintf("k/%03d", i)}))
		}()
	}
	wg.Wait()

	recs := decodeLines(t, &buf)
	assert.Len(t, recs, 50)
}

func TestNewErrorRecord(t *testing.T) {
	err := &provider.ProviderError{
		Op:        "List",
		Provider:  provider.ProviderOSS,
		Bucket:    "logs",
		Key:       "a.xml",
		RequestID: "req-9",
		Err:       provider.ErrAccessDenied,
	}

	rec := NewErrorRecord(err, "a/")
	assert.Equal(t, ErrCodeAccessDenied, rec.Code)
	assert.Equal(t, "a.xml", rec.Key)
	assert.Equal(t, "a/", rec.Prefix)
	assert.Equal(t, "req-9", rec.RequestID)
	assert.Equal(t, err.Error(), rec.Message)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{provider.ErrAccessDenied, ErrCodeAccessDenied},
		{provider.ErrInvalidCredentials, ErrCodeAccessDenied},
		{provider.ErrNotFound, ErrCodeNotFound},
		{provider.ErrBucketNotFound, ErrCodeNotFound},
		{provider.ErrThrottled, ErrCodeThrottled},
		{provider.ErrProviderUnavailable, ErrCodeProviderUnavailable},
		{fmt.Errorf("page 3: %w", provider.ErrMalformedResponse), ErrCodeMalformedResponse},
		{context.DeadlineExceeded, ErrCodeTimeout},
		{errors.New("boom"), ErrCodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}

func TestNewObjectRecord(t *testing.T) {
	mod := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewObjectRecord("logs", &provider.ObjectSummary{
		Key: "a", Size: 1, ETag: "e", LastModified: mod, StorageClass: "IA", Type: "Appendable",
	})
	assert.Equal(t, &ObjectRecord{
		Bucket: "logs", Key: "a", Size: 1, ETag: "e", LastModified: mod, StorageClass: "IA", Type: "Appendable",
	}, rec)
}
