// Package crawler walks a bucket and streams matching objects to an
// output.Writer.
//
// A crawl runs three stages connected by bounded channels:
//   - listers page through prefixes in parallel, optionally descending
//     through common prefixes when a delimiter is set
//   - a matcher applies glob patterns and filters
//   - a writer emits object records, enriching them with HEAD when asked
package crawler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/3leaps/ossxml/pkg/match"
	"github.com/3leaps/ossxml/pkg/output"
	"github.com/3leaps/ossxml/pkg/provider"
)

// Config configures a crawl.
type Config struct {
	// Concurrency bounds parallel list requests. Default: 4
	Concurrency int `mapstructure:"concurrency" validate:"gte=0"`

	// ChannelBuffer sizes the channels between stages. Default: 1000
	ChannelBuffer int `mapstructure:"channel_buffer" validate:"gte=0"`

	// RateLimit caps list requests per second. Zero means unlimited.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`

	// ProgressEvery emits a progress record every N matched objects.
	// Default: 1000
	ProgressEvery int `mapstructure:"progress_every" validate:"gte=0"`

	// PageSize is passed as max-keys. Zero uses the provider default.
	PageSize int `mapstructure:"page_size" validate:"gte=0,lte=1000"`

	// Delimiter switches to a directory walk: each listing returns the
	// objects of one level plus its common prefixes, which are emitted as
	// prefix records and descended into when the matcher allows it.
	Delimiter string `mapstructure:"delimiter"`

	// MaxDepth stops descending below this many levels. Zero is unlimited.
	// Only used with Delimiter.
	MaxDepth int `mapstructure:"max_depth" validate:"gte=0"`

	// Enrich fetches content type and user metadata with a HEAD request
	// per matched object.
	Enrich bool `mapstructure:"enrich"`
}

// DefaultConfig returns the default crawl configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   4,
		ChannelBuffer: 1000,
		ProgressEvery: 1000,
	}
}

// Summary holds the totals of a crawl.
type Summary struct {
	ObjectsListed  int64
	ObjectsMatched int64
	BytesTotal     int64
	PrefixesFound  int64
	Pages          int64
	Duration       time.Duration
	Errors         int64
	Prefixes       []string
}

// Crawler runs one crawl. Create a new Crawler per job.
type Crawler struct {
	provider provider.Provider
	matcher  *match.Matcher
	filter   match.Filter
	writer   output.Writer
	config   Config
	bucket   string
	logger   *zap.Logger
	prefixes []string
	limiter  *rate.Limiter

	objectsListed  atomic.Int64
	objectsMatched atomic.Int64
	bytesTotal     atomic.Int64
	prefixesFound  atomic.Int64
	pages          atomic.Int64
	errorCount     atomic.Int64
}

// New creates a crawler listing from p, selecting with m and writing to w.
// Zero fields of cfg take their DefaultConfig values.
func New(p provider.Provider, m *match.Matcher, w output.Writer, cfg Config) *Crawler {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = def.ChannelBuffer
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = def.ProgressEvery
	}

	c := &Crawler{
		provider: p,
		matcher:  m,
		writer:   w,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// WithFilter applies f after pattern matching.
func (c *Crawler) WithFilter(f match.Filter) *Crawler {
	c.filter = f
	return c
}

// WithPrefixes lists these prefixes instead of the matcher's.
func (c *Crawler) WithPrefixes(prefixes []string) *Crawler {
	c.prefixes = prefixes
	return c
}

// WithBucket sets the bucket name copied into records.
func (c *Crawler) WithBucket(bucket string) *Crawler {
	c.bucket = bucket
	return c
}

func (c *Crawler) WithLogger(l *zap.Logger) *Crawler {
	if l != nil {
		c.logger = l
	}
	return c
}

// Run executes the crawl. Non-fatal listing failures are written as error
// records and counted. On cancellation Run returns the partial summary
// together with the context error.
func (c *Crawler) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	prefixes := c.prefixes
	if prefixes == nil {
		prefixes = c.matcher.Prefixes()
	}
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}

	if err := c.writeProgress(ctx, output.PhaseStarting, ""); err != nil {
		return nil, err
	}

	c.logger.Debug("crawl starting",
		zap.Strings("prefixes", prefixes),
		zap.String("delimiter", c.config.Delimiter),
		zap.Int("concurrency", c.config.Concurrency))

	if err := c.runPipeline(ctx, prefixes); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return c.summary(prefixes, time.Since(start)), err
		}
		return nil, err
	}

	sum := c.summary(prefixes, time.Since(start))
	if err := c.writer.WriteSummary(ctx, &output.SummaryRecord{
		ObjectsFound:   sum.ObjectsListed,
		ObjectsMatched: sum.ObjectsMatched,
		BytesTotal:     sum.BytesTotal,
		PrefixesFound:  sum.PrefixesFound,
		Pages:          sum.Pages,
		Duration:       sum.Duration,
		DurationHuman:  sum.Duration.Round(time.Millisecond).String(),
		Errors:         sum.Errors,
		Prefixes:       sum.Prefixes,
	}); err != nil {
		return sum, err
	}
	return sum, nil
}

func (c *Crawler) summary(prefixes []string, d time.Duration) *Summary {
	return &Summary{
		ObjectsListed:  c.objectsListed.Load(),
		ObjectsMatched: c.objectsMatched.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		PrefixesFound:  c.prefixesFound.Load(),
		Pages:          c.pages.Load(),
		Duration:       d,
		Errors:         c.errorCount.Load(),
		Prefixes:       prefixes,
	}
}

func (c *Crawler) writeProgress(ctx context.Context, phase, prefix string) error {
	return c.writer.WriteProgress(ctx, &output.ProgressRecord{
		Phase:          phase,
		ObjectsFound:   c.objectsListed.Load(),
		ObjectsMatched: c.objectsMatched.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		Prefix:         prefix,
	})
}

// recordError writes a best-effort error record.
func (c *Crawler) recordError(ctx context.Context, err error, prefix string) {
	c.errorCount.Add(1)
	c.logger.Warn("crawl error", zap.String("prefix", prefix), zap.Error(err))
	_ = c.writer.WriteError(ctx, output.NewErrorRecord(err, prefix))
}

type item struct {
	summary provider.ObjectSummary
	prefix  string
}

func (c *Crawler) runPipeline(ctx context.Context, prefixes []string) error {
	g, gctx := errgroup.WithContext(ctx)

	listed := make(chan item, c.config.ChannelBuffer)
	matched := make(chan item, c.config.ChannelBuffer)

	g.Go(func() error {
		defer close(listed)
		return c.runListers(gctx, prefixes, listed)
	})
	g.Go(func() error {
		defer close(matched)
		return c.runMatcher(gctx, listed, matched)
	})
	g.Go(func() error {
		return c.runWriter(gctx, matched)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// runListers walks every prefix with at most Concurrency requests in
// flight. Child prefixes found with a delimiter are scheduled on the same
// group, or listed inline when the group is full.
func (c *Crawler) runListers(ctx context.Context, prefixes []string, out chan<- item) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	var visit func(prefix string, depth int) error
	visit = func(prefix string, depth int) error {
		children, err := c.listPrefix(gctx, prefix, out)
		if err != nil {
			return err
		}
		for _, child := range children {
			if c.config.MaxDepth > 0 && depth+1 > c.config.MaxDepth {
				break
			}
			task := func() error { return visit(child, depth+1) }
			if !g.TryGo(task) {
				if err := task(); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, p := range prefixes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return visit(p, 0) })
	}
	return g.Wait()
}

// listPrefix pages through one prefix and returns the child prefixes worth
// descending into.
func (c *Crawler) listPrefix(ctx context.Context, prefix string, out chan<- item) ([]string, error) {
	var children []string
	opts := provider.ListOptions{
		Prefix:    prefix,
		Delimiter: c.config.Delimiter,
		MaxKeys:   c.config.PageSize,
	}

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		res, err := c.provider.List(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if provider.IsFatal(err) {
				return nil, err
			}
			c.recordError(ctx, err, prefix)
			return children, nil
		}
		c.pages.Add(1)
		c.logger.Debug("listed page",
			zap.String("prefix", prefix),
			zap.Int("objects", len(res.Objects)),
			zap.Int("common_prefixes", len(res.CommonPrefixes)))

		for _, cp := range res.CommonPrefixes {
			c.prefixesFound.Add(1)
			if err := c.writer.WritePrefix(ctx, &output.PrefixRecord{Bucket: c.bucket, Prefix: cp, Parent: prefix}); err != nil {
				return nil, err
			}
			if c.matcher.Descend(cp) {
				children = append(children, cp)
			}
		}

		for _, obj := range res.Objects {
			c.objectsListed.Add(1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case out <- item{summary: obj, prefix: prefix}:
			}
		}

		if !res.IsTruncated || res.ContinuationToken == "" {
			return children, nil
		}
		opts.ContinuationToken = res.ContinuationToken
	}
}

func (c *Crawler) runMatcher(ctx context.Context, in <-chan item, out chan<- item) error {
	for it := range in {
		if !c.matcher.Match(it.summary.Key) {
			continue
		}
		if c.filter != nil && !c.filter.Match(&it.summary) {
			continue
		}
		c.objectsMatched.Add(1)
		c.bytesTotal.Add(it.summary.Size)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- it:
		}
	}
	return nil
}

func (c *Crawler) runWriter(ctx context.Context, in <-chan item) error {
	var n int64
	var last string

	for it := range in {
		rec := output.NewObjectRecord(c.bucket, &it.summary)
		if c.config.Enrich {
			c.enrich(ctx, rec, it.prefix)
		}
		if err := c.writer.WriteObject(ctx, rec); err != nil {
			return err
		}

		n++
		last = it.prefix
		if n%int64(c.config.ProgressEvery) == 0 {
			if err := c.writeProgress(ctx, output.PhaseListing, it.prefix); err != nil {
				return err
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.writeProgress(ctx, output.PhaseComplete, last)
}

func (c *Crawler) enrich(ctx context.Context, rec *output.ObjectRecord, prefix string) {
	meta, err := c.provider.Head(ctx, rec.Key)
	if err != nil {
		c.recordError(ctx, err, prefix)
		return
	}
	rec.ContentType = meta.ContentType
	rec.Metadata = meta.Metadata
}
