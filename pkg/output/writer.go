package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer emits records. Implementations must be safe for concurrent use
// and write each record as one complete line.
type Writer interface {
	WriteObject(ctx context.Context, obj *ObjectRecord) error
	WritePrefix(ctx context.Context, prefix *PrefixRecord) error
	WriteBucket(ctx context.Context, bucket *BucketRecord) error
	WriteError(ctx context.Context, err *ErrorRecord) error
	WriteProgress(ctx context.Context, prog *ProgressRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error
	Close() error
}

// JSONLWriter writes one Record per line to an io.Writer it does not own.
type JSONLWriter struct {
	out  io.Writer
	base Record
	now  func() time.Time

	mu     sync.Mutex
	seq    int64
	closed bool
}

var _ Writer = (*JSONLWriter)(nil)

// NewJSONLWriter tags every record with jobID and provider.
func NewJSONLWriter(w io.Writer, jobID, provider string) *JSONLWriter {
	return &JSONLWriter{
		out:  w,
		base: Record{JobID: jobID, Provider: provider},
		now:  time.Now,
	}
}

func (jw *JSONLWriter) WriteObject(ctx context.Context, v *ObjectRecord) error {
	return jw.emit(ctx, TypeObject, v)
}

func (jw *JSONLWriter) WritePrefix(ctx context.Context, v *PrefixRecord) error {
	return jw.emit(ctx, TypePrefix, v)
}

func (jw *JSONLWriter) WriteBucket(ctx context.Context, v *BucketRecord) error {
	return jw.emit(ctx, TypeBucket, v)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, v *ErrorRecord) error {
	return jw.emit(ctx, TypeError, v)
}

func (jw *JSONLWriter) WriteProgress(ctx context.Context, v *ProgressRecord) error {
	return jw.emit(ctx, TypeProgress, v)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, v *SummaryRecord) error {
	return jw.emit(ctx, TypeSummary, v)
}

// Count returns how many records were written.
func (jw *JSONLWriter) Count() int64 {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.seq
}

// Close rejects further writes. The underlying writer stays open.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	jw.closed = true
	jw.mu.Unlock()
	return nil
}

func (jw *JSONLWriter) emit(ctx context.Context, typ string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.closed {
		return ErrWriterClosed
	}

	rec := jw.base
	rec.Type = typ
	rec.Seq = jw.seq + 1
	rec.TS = jw.now().UTC()
	rec.Data = data
	line, err := json.Marshal(rec)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}
	if err := writeFull(jw.out, append(line, '\n')); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	jw.seq = rec.Seq
	return nil
}

// writeFull retries short writes until p is written.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		switch {
		case err != nil:
			return err
		case n == 0:
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
