package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/ossxml/internal/errors"
	ossapi "github.com/3leaps/ossxml/pkg/oss"
	"github.com/3leaps/ossxml/pkg/output"
)

// Document kinds accepted by DecodeHandler.
const (
	KindObjects = "objects"
	KindBuckets = "buckets"
	KindBucket  = "bucket"
)

// DefaultMaxBodyBytes caps request bodies when DecodeHandler.MaxBodyBytes
// is zero.
const DefaultMaxBodyBytes int64 = 16 << 20

// DecodeHandler turns posted OSS XML documents into JSON.
type DecodeHandler struct {
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// ServeHTTP decodes the body as the document kind named by the {kind}
// route parameter. The optional "bucket" query parameter is the bucket
// host an object listing belongs to.
func (h *DecodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind != KindObjects && kind != KindBuckets && kind != KindBucket {
		respondWithError(w, r, apperrors.New(http.StatusNotFound, apperrors.CodeNotFound, "unknown document kind "+kind))
		return
	}

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	start := time.Now()
	var resp any
	switch kind {
	case KindObjects:
		resp, err = decodeObjects(r, string(body))
	case KindBuckets:
		resp, err = decodeBuckets(string(body))
	case KindBucket:
		resp, err = decodeBucket(string(body))
	}

	h.logger().Debug("decode",
		zap.String("kind", kind),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", chimw.GetReqID(r.Context())),
		zap.Error(err),
	)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, resp)
}

func (h *DecodeHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func decodeObjects(r *http.Request, body string) (*output.ObjectListView, error) {
	var base ossapi.BucketBase
	if host := r.URL.Query().Get("bucket"); host != "" {
		b, err := ossapi.ParseBucketBase(host)
		if err != nil {
			return nil, apperrors.BadRequest("invalid bucket parameter", err)
		}
		base = b
	}

	list, err := ossapi.DecodeObjectList(body, base)
	if err != nil {
		return nil, err
	}
	return output.NewObjectListView(list), nil
}

func decodeBuckets(body string) (*output.BucketListView, error) {
	list, err := ossapi.DecodeBucketList(body)
	if err != nil {
		return nil, err
	}
	return output.NewBucketListView(list), nil
}

func decodeBucket(body string) (*output.BucketRecord, error) {
	b, err := ossapi.DecodeBucketInfo(body)
	if err != nil {
		return nil, err
	}
	return output.BucketRecordOf(b), nil
}
