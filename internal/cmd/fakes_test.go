package cmd

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/3leaps/ossxml/pkg/provider"
)

// fakeProvider serves a fixed set of objects, one page per call.
type fakeProvider struct {
	mu       sync.Mutex
	objects  []provider.ObjectSummary
	pageSize int
	buckets  []provider.BucketSummary
	info     *provider.BucketSummary
	listErr  error
	headErr  error
	calls    int
}

func newFakeProvider(keys map[string]int64) *fakeProvider {
	p := &fakeProvider{pageSize: 1000}
	for k, size := range keys {
		p.objects = append(p.objects, provider.ObjectSummary{Key: k, Size: size, ETag: "etag-" + k, StorageClass: "Standard"})
	}
	sort.Slice(p.objects, func(i, j int) bool { return p.objects[i].Key < p.objects[j].Key })
	return p
}

func (p *fakeProvider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}

	var matched []provider.ObjectSummary
	seen := map[string]bool{}
	var prefixes []string
	for _, obj := range p.objects {
		if !strings.HasPrefix(obj.Key, opts.Prefix) {
			continue
		}
		if opts.Delimiter != "" {
			rest := obj.Key[len(opts.Prefix):]
			if i := strings.Index(rest, opts.Delimiter); i >= 0 {
				cp := opts.Prefix + rest[:i+len(opts.Delimiter)]
				if !seen[cp] {
					seen[cp] = true
					prefixes = append(prefixes, cp)
				}
				continue
			}
		}
		matched = append(matched, obj)
	}

	start := 0
	if opts.ContinuationToken != "" {
		for i, obj := range matched {
			if obj.Key == opts.ContinuationToken {
				start = i
				break
			}
		}
	}
	end := min(start+p.pageSize, len(matched))

	res := &provider.ListResult{Objects: matched[start:end], KeyCount: end - start}
	if start == 0 {
		res.CommonPrefixes = prefixes
	}
	if end < len(matched) {
		res.IsTruncated = true
		res.ContinuationToken = matched[end].Key
	}
	return res, nil
}

func (p *fakeProvider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if p.headErr != nil {
		return nil, p.headErr
	}
	for _, obj := range p.objects {
		if obj.Key == key {
			return &provider.ObjectMeta{ObjectSummary: obj, ContentType: "application/xml", Metadata: map[string]string{"owner": "ops"}}, nil
		}
	}
	return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderOSS, Key: key, Err: provider.ErrNotFound}
}

func (p *fakeProvider) Close() error { return nil }

func (p *fakeProvider) ListBuckets(ctx context.Context, opts provider.BucketListOptions) (*provider.BucketListResult, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	var all []provider.BucketSummary
	for _, b := range p.buckets {
		if strings.HasPrefix(b.Name, opts.Prefix) && b.Name > opts.Marker {
			all = append(all, b)
		}
	}
	res := &provider.BucketListResult{}
	if len(all) > 1 {
		res.Buckets = all[:1]
		res.IsTruncated = true
		res.NextMarker = all[0].Name
		return res, nil
	}
	res.Buckets = all
	return res, nil
}

func (p *fakeProvider) BucketInfo(ctx context.Context) (*provider.BucketSummary, error) {
	if p.info == nil {
		return nil, provider.ErrBucketNotFound
	}
	return p.info, nil
}
