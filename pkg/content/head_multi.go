package content

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/3leaps/ossxml/pkg/provider"
)

// DefaultParallel is the number of concurrent reads HeadBytesAll uses when
// none is given.
const DefaultParallel = 4

// HeadBytesResult is the outcome for one key of HeadBytesAll.
type HeadBytesResult struct {
	Key  string
	Meta *provider.ObjectMeta
	Data []byte
	Err  error
}

// HeadBytesAll reads the first n bytes of every key with up to parallel
// reads in flight. Results keep the order of keys; a failed key carries its
// error without stopping the others. The error is non-nil only when ctx ends
// first.
func HeadBytesAll(ctx context.Context, p provider.Provider, keys []string, n int64, parallel int) ([]HeadBytesResult, error) {
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	results := make([]HeadBytesResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, key := range keys {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			data, meta, err := HeadBytes(gctx, p, key, n)
			results[i] = HeadBytesResult{Key: key, Meta: meta, Data: data, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
