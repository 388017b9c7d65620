package oss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/ossxml/pkg/decode"
	ossapi "github.com/3leaps/ossxml/pkg/oss"
	"github.com/3leaps/ossxml/pkg/provider"
)

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrNoBucket is returned by object operations on a provider configured
// without a bucket.
var ErrNoBucket = errors.New("no bucket configured")

// maxBodyBytes bounds how much of a response body is read into memory.
const maxBodyBytes = 64 << 20

// metaHeaderPrefix marks user metadata response headers.
const metaHeaderPrefix = "X-Oss-Meta-"

// unsignedPayload signs uploads without hashing the streamed body.
const unsignedPayload = "UNSIGNED-PAYLOAD"

// errSizeRequired is returned by PutObject for bodies of unknown length.
var errSizeRequired = errors.New("upload size is required")

// Provider implements provider.Provider for OSS.
type Provider struct {
	http    HTTPDoer
	signer  Signer
	bucket  ossapi.BucketBase
	rootURL *url.URL
	path    bool
	maxKeys int
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Ensure Provider implements the interfaces.
var (
	_ provider.Provider         = (*Provider)(nil)
	_ provider.BucketLister     = (*Provider)(nil)
	_ provider.BucketInfoGetter = (*Provider)(nil)
	_ provider.ObjectGetter     = (*Provider)(nil)
	_ provider.ObjectRanger     = (*Provider)(nil)
	_ provider.ObjectPutter     = (*Provider)(nil)
	_ provider.ObjectDeleter    = (*Provider)(nil)
)

// Option customizes a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(p *Provider) { p.http = doer }
}

// WithSigner replaces the request signer.
func WithSigner(s Signer) Option {
	return func(p *Provider) { p.signer = s }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a new OSS provider.
//
// Unless WithSigner is given, requests are signed with V4 signatures using
// the credentials described on Config, or left unsigned when
// cfg.Anonymous is set.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		maxKeys: cfg.MaxKeys,
		path:    cfg.ForcePathStyle,
		logger:  zap.NewNop(),
	}
	if p.maxKeys <= 0 {
		p.maxKeys = DefaultMaxKeys
	}
	if cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	if err := p.resolveEndpoint(cfg); err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderOSS, Bucket: cfg.Bucket, Err: err}
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		p.http = &http.Client{Timeout: timeout}
	}

	if p.signer == nil {
		if cfg.Anonymous {
			p.signer = Anonymous
		} else {
			region := cfg.signingRegion(p.bucket.Endpoint.Region())
			creds, err := loadCredentials(ctx, cfg, region)
			if err != nil {
				return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderOSS, Bucket: cfg.Bucket, Err: err}
			}
			p.signer = NewSigV4Signer(creds, region)
		}
	}

	return p, nil
}

func (p *Provider) resolveEndpoint(cfg Config) error {
	if cfg.Bucket != "" {
		name, err := ossapi.ParseBucketName(cfg.Bucket)
		if err != nil {
			return err
		}
		p.bucket.Name = name
	}

	if cfg.EndpointURL != "" {
		u, err := url.Parse(cfg.EndpointURL)
		if err != nil {
			return fmt.Errorf("endpoint url: %w", err)
		}
		p.rootURL = &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
		if ep, err := ossapi.ParseEndpoint(u.Host); err == nil {
			p.bucket.Endpoint = ep
		}
		return nil
	}

	ep, err := ossapi.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return err
	}
	p.bucket.Endpoint = ep
	p.rootURL = ep.URL()
	return nil
}

// Bucket returns the configured bucket.
func (p *Provider) Bucket() ossapi.BucketBase {
	return p.bucket
}

// bucketURL returns the URL of key inside the configured bucket ("" for the
// bucket root).
func (p *Provider) bucketURL(key string) *url.URL {
	u := *p.rootURL
	if p.path {
		u.Path = "/" + p.bucket.Name.String() + "/" + key
	} else {
		u.Host = p.bucket.Name.String() + "." + u.Host
		u.Path = "/" + key
	}
	return &u
}

// List returns a page of objects with the given prefix.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = p.maxKeys
	}

	list, err := p.ListObjects(ctx, ossapi.Query{
		Prefix:            opts.Prefix,
		Delimiter:         opts.Delimiter,
		MaxKeys:           maxKeys,
		ContinuationToken: opts.ContinuationToken,
		StartAfter:        opts.StartAfter,
	})
	if err != nil {
		return nil, err
	}

	objects := make([]provider.ObjectSummary, 0, len(list.Objects))
	for _, obj := range list.Objects {
		objects = append(objects, provider.ObjectSummary{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
			StorageClass: obj.StorageClass,
			Type:         obj.Type,
		})
	}

	return &provider.ListResult{
		Objects:           objects,
		CommonPrefixes:    list.CommonPrefixes,
		KeyCount:          list.KeyCount,
		ContinuationToken: list.NextContinuationToken,
		IsTruncated:       list.IsTruncated,
	}, nil
}

// ListObjects fetches one ListObjectsV2 page into the package's own model.
func (p *Provider) ListObjects(ctx context.Context, q ossapi.Query) (*ossapi.ObjectList, error) {
	list := &ossapi.ObjectList{Bucket: p.bucket, Query: q}
	if err := ListObjectsInto(ctx, p, q, list, ossapi.NewObjectFactory(&list.Bucket)); err != nil {
		return nil, err
	}
	return list, nil
}

// ListObjectsInto fetches one ListObjectsV2 page and decodes it into
// caller-defined types. newObject is called once per listed object.
func ListObjectsInto[T decode.ObjectDecoder](ctx context.Context, p *Provider, q ossapi.Query, list decode.ObjectListDecoder[T], newObject func() T) error {
	if p.bucket.Name == "" {
		return p.wrapError("List", "", ErrNoBucket)
	}
	u := p.bucketURL("")
	u.RawQuery = q.Encode()

	body, err := p.get(ctx, "List", "", u)
	if err != nil {
		return err
	}
	if err := decode.DecodeObjectList(body, list, newObject); err != nil {
		return p.decodeError("List", "", err)
	}
	return nil
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if p.bucket.Name == "" {
		return nil, p.wrapError("Head", key, ErrNoBucket)
	}
	resp, err := p.do(ctx, http.MethodHead, "Head", key, p.bucketURL(key))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	meta := &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          key,
			Size:         resp.ContentLength,
			ETag:         strings.Trim(resp.Header.Get("ETag"), `"`),
			StorageClass: resp.Header.Get("X-Oss-Storage-Class"),
			Type:         resp.Header.Get("X-Oss-Object-Type"),
		},
		ContentType: resp.Header.Get("Content-Type"),
		Metadata:    make(map[string]string),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			meta.LastModified = t
		}
	}
	if meta.Size < 0 {
		if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
			meta.Size = n
		} else {
			meta.Size = 0
		}
	}
	for name, values := range resp.Header {
		if strings.HasPrefix(name, metaHeaderPrefix) && len(values) > 0 {
			meta.Metadata[strings.ToLower(strings.TrimPrefix(name, metaHeaderPrefix))] = values[0]
		}
	}

	return meta, nil
}

// GetObject streams key. The size is -1 when the response carries no
// Content-Length.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	if p.bucket.Name == "" {
		return nil, 0, p.wrapError("GetObject", key, ErrNoBucket)
	}
	resp, err := p.do(ctx, http.MethodGet, "GetObject", key, p.bucketURL(key))
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// GetRange streams part of key with a Range request. A range starting past
// the end of the object yields an empty body. When the service ignores the
// range and answers 200 the selection is cut from the full body.
func (p *Provider) GetRange(ctx context.Context, key string, r provider.ByteRange) (io.ReadCloser, int64, error) {
	if err := r.Validate(); err != nil {
		return nil, 0, p.wrapError("GetRange", key, err)
	}
	if p.bucket.Name == "" {
		return nil, 0, p.wrapError("GetRange", key, ErrNoBucket)
	}
	resp, err := p.send(ctx, request{
		method: http.MethodGet,
		op:     "GetRange",
		key:    key,
		url:    p.bucketURL(key),
		header: http.Header{"Range": {r.Header()}},
	})
	var se *ossapi.ServiceError
	if errors.As(err, &se) && se.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return io.NopCloser(strings.NewReader("")), 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode == http.StatusPartialContent {
		return resp.Body, resp.ContentLength, nil
	}

	full := resp.ContentLength
	if full >= 0 {
		clamped, ok := r.Clamp(full)
		if !ok {
			_ = resp.Body.Close()
			return io.NopCloser(strings.NewReader("")), 0, nil
		}
		r = clamped
	}
	if _, err := io.CopyN(io.Discard, resp.Body, r.Start); err != nil {
		_ = resp.Body.Close()
		if errors.Is(err, io.EOF) {
			return io.NopCloser(strings.NewReader("")), 0, nil
		}
		return nil, 0, p.wrapError("GetRange", key, err)
	}
	if r.OpenEnded() {
		return resp.Body, -1, nil
	}
	return &limitedBody{Reader: io.LimitReader(resp.Body, r.Len()), Closer: resp.Body}, r.Len(), nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// PutObject uploads size bytes of body to key and returns the new ETag.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if p.bucket.Name == "" {
		return "", p.wrapError("PutObject", key, ErrNoBucket)
	}
	if _, err := ossapi.ParseObjectPath(key); err != nil {
		return "", p.wrapError("PutObject", key, err)
	}
	if size < 0 {
		return "", p.wrapError("PutObject", key, errSizeRequired)
	}

	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	resp, err := p.send(ctx, request{
		method:      http.MethodPut,
		op:          "PutObject",
		key:         key,
		url:         p.bucketURL(key),
		header:      header,
		body:        body,
		size:        size,
		payloadHash: unsignedPayload,
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// DeleteObject removes key. The service reports success for missing keys;
// a NotFound answer is treated the same way.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	if p.bucket.Name == "" {
		return p.wrapError("DeleteObject", key, ErrNoBucket)
	}
	if _, err := ossapi.ParseObjectPath(key); err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	resp, err := p.do(ctx, http.MethodDelete, "DeleteObject", key, p.bucketURL(key))
	if provider.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// ListBuckets returns a page of the account's buckets.
func (p *Provider) ListBuckets(ctx context.Context, opts provider.BucketListOptions) (*provider.BucketListResult, error) {
	list, err := p.ListBucketsPage(ctx, ossapi.BucketQuery{Prefix: opts.Prefix, Marker: opts.Marker, MaxKeys: opts.MaxKeys})
	if err != nil {
		return nil, err
	}

	result := &provider.BucketListResult{
		Buckets:          make([]provider.BucketSummary, 0, len(list.Buckets)),
		NextMarker:       list.NextMarker,
		IsTruncated:      list.IsTruncated,
		OwnerID:          list.OwnerID,
		OwnerDisplayName: list.OwnerDisplayName,
	}
	for _, b := range list.Buckets {
		result.Buckets = append(result.Buckets, bucketSummary(b))
	}
	return result, nil
}

// ListBucketsPage fetches one ListBuckets page into the package's own model.
func (p *Provider) ListBucketsPage(ctx context.Context, q ossapi.BucketQuery) (*ossapi.BucketList, error) {
	u := *p.rootURL
	u.RawQuery = q.Encode()

	body, err := p.get(ctx, "ListBuckets", "", &u)
	if err != nil {
		return nil, err
	}
	list, err := ossapi.DecodeBucketList(body)
	if err != nil {
		return nil, p.decodeError("ListBuckets", "", err)
	}
	return list, nil
}

// BucketInfo describes the configured bucket.
func (p *Provider) BucketInfo(ctx context.Context) (*provider.BucketSummary, error) {
	if p.bucket.Name == "" {
		return nil, p.wrapError("BucketInfo", "", ErrNoBucket)
	}
	u := p.bucketURL("")
	u.RawQuery = "bucketInfo"

	body, err := p.get(ctx, "BucketInfo", "", u)
	if err != nil {
		return nil, err
	}
	b, err := ossapi.DecodeBucketInfo(body)
	if err != nil {
		return nil, p.decodeError("BucketInfo", "", err)
	}
	summary := bucketSummary(b)
	return &summary, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

func bucketSummary(b *ossapi.Bucket) provider.BucketSummary {
	return provider.BucketSummary{
		Name:             b.Name().String(),
		Region:           b.Base.Endpoint.Region(),
		Endpoint:         b.Base.Endpoint.Host(),
		IntranetEndpoint: b.IntranetEndpoint,
		Location:         b.Location,
		StorageClass:     b.StorageClass,
		CreationDate:     b.CreationDate,
	}
}

// get issues a GET and returns the response body as a string.
func (p *Provider) get(ctx context.Context, op, key string, u *url.URL) (string, error) {
	resp, err := p.do(ctx, http.MethodGet, op, key, u)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", p.wrapError(op, key, err)
	}
	return string(data), nil
}

// request is one signed call. A nil body sends no payload.
type request struct {
	method      string
	op          string
	key         string
	url         *url.URL
	header      http.Header
	body        io.Reader
	size        int64
	payloadHash string
}

// do sends a bodiless signed request and turns non-2xx responses into errors.
func (p *Provider) do(ctx context.Context, method, op, key string, u *url.URL) (*http.Response, error) {
	return p.send(ctx, request{method: method, op: op, key: key, url: u})
}

func (p *Provider) send(ctx context.Context, r request) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return nil, p.wrapError(r.op, r.key, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url.String(), r.body)
	if err != nil {
		return nil, p.wrapError(r.op, r.key, err)
	}
	if r.body != nil {
		req.ContentLength = r.size
	}
	for name, values := range r.header {
		req.Header[name] = values
	}
	hash := r.payloadHash
	if hash == "" {
		hash = emptyPayloadHash
	}
	if err := p.signer.Sign(ctx, req, hash); err != nil {
		return nil, p.wrapError(r.op, r.key, fmt.Errorf("sign request: %w", err))
	}

	start := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, p.wrapError(r.op, r.key, ctxErr)
		}
		p.logger.Debug("request failed", zap.String("op", r.op), zap.String("url", r.url.String()), zap.Error(err))
		return nil, p.wrapError(r.op, r.key, fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err))
	}

	p.logger.Debug("request",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("url", r.url.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	return nil, p.wrapError(r.op, r.key, ossapi.ParseServiceError(resp.StatusCode, body))
}

// decodeError wraps a response decoding failure.
func (p *Provider) decodeError(op, key string, err error) error {
	return &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderOSS,
		Bucket:   p.bucket.Name.String(),
		Key:      key,
		Err:      fmt.Errorf("%w: %w", provider.ErrMalformedResponse, err),
	}
}

// wrapError converts service errors to provider errors with appropriate
// sentinel errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderOSS,
		Bucket:   p.bucket.Name.String(),
		Key:      key,
		Err:      err,
	}

	var se *ossapi.ServiceError
	if errors.As(err, &se) {
		wrapped.RequestID = se.RequestID
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return wrapped
	}

	var sentinel error
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "Not Found":
		sentinel = provider.ErrNotFound
	case "NoSuchBucket":
		sentinel = provider.ErrBucketNotFound
	case "AccessDenied", "Forbidden":
		sentinel = provider.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidSecurityToken":
		sentinel = provider.ErrInvalidCredentials
	case "SlowDown", "Throttling", "RequestLimitExceeded", "Too Many Requests":
		sentinel = provider.ErrThrottled
	case "ServiceUnavailable", "Service Unavailable", "InternalError":
		sentinel = provider.ErrProviderUnavailable
	}
	if sentinel == nil && se != nil {
		sentinel = statusSentinel(se.StatusCode)
	}
	if sentinel != nil {
		wrapped.Err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return wrapped
}

// statusSentinel maps bare status codes, as returned for HEAD requests
// without a body.
func statusSentinel(status int) error {
	switch {
	case status == http.StatusNotFound:
		return provider.ErrNotFound
	case status == http.StatusForbidden:
		return provider.ErrAccessDenied
	case status == http.StatusTooManyRequests:
		return provider.ErrThrottled
	case status >= 500:
		return provider.ErrProviderUnavailable
	}
	return nil
}
