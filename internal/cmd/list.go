package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/pkg/match"
	"github.com/3leaps/ossxml/pkg/output"
	"github.com/3leaps/ossxml/pkg/provider"
	"github.com/3leaps/ossxml/pkg/provider/file"
)

var listCmd = &cobra.Command{
	Use:     "list <uri>",
	Aliases: []string{"ls"},
	Short:   "List objects under a prefix or pattern",
	Long: `List objects in a bucket without a manifest.

An exact key is looked up with HEAD. A prefix (trailing "/") is listed,
and a glob pattern lists its literal prefix and keeps matching keys.

Examples:
  ossxml list oss://bucket/path/to/object.xml
  ossxml list oss://bucket/prefix/ --delimiter /
  ossxml list oss://bucket/data/**/*.parquet --min-size 1MiB
  ossxml list oss://bucket.oss-cn-shanghai.aliyuncs.com/logs/ --limit 10 --format json
  ossxml list file:///srv/mirror/logs/ --delimiter /`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

var (
	listConn          connFlags
	listLimit         int
	listDelimiter     string
	listFormat        string
	listIncludeHidden bool
	listFilters       match.FilterConfig
)

func init() {
	rootCmd.AddCommand(listCmd)

	listConn.register(listCmd)
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 100, "Max objects to list (0 = no limit)")
	listCmd.Flags().StringVarP(&listDelimiter, "delimiter", "d", "", "Group keys into common prefixes")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", formatTable, "Output format (table|json|yaml)")
	listCmd.Flags().BoolVar(&listIncludeHidden, "include-hidden", false, "Include keys with dot-prefixed segments")
	registerFilterFlags(listCmd, &listFilters)
}

func registerFilterFlags(cmd *cobra.Command, cfg *match.FilterConfig) {
	cmd.Flags().StringVar(&cfg.MinSize, "min-size", "", "Minimum object size, e.g. 1KiB")
	cmd.Flags().StringVar(&cfg.MaxSize, "max-size", "", "Maximum object size, e.g. 10MB")
	cmd.Flags().StringVar(&cfg.After, "after", "", "Modified at or after (2006-01-02 or RFC 3339)")
	cmd.Flags().StringVar(&cfg.Before, "before", "", "Modified before (2006-01-02 or RFC 3339)")
	cmd.Flags().StringSliceVar(&cfg.StorageClasses, "storage-class", nil, "Keep only these storage classes")
	cmd.Flags().StringVar(&cfg.KeyRegex, "key-regex", "", "Keep only keys matching this regex")
}

// listing is the result of the list command.
type listing struct {
	Bucket    string                 `json:"bucket" yaml:"bucket"`
	Prefix    string                 `json:"prefix" yaml:"prefix"`
	Prefixes  []string               `json:"prefixes,omitempty" yaml:"prefixes,omitempty"`
	Objects   []*output.ObjectRecord `json:"objects" yaml:"objects"`
	Truncated bool                   `json:"truncated" yaml:"truncated"`
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	uri := args[0]

	if err := validFormat(listFormat); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}

	parsed, err := ParseURI(uri)
	if err != nil {
		observability.CLILogger.Error("Invalid URI", zap.String("uri", uri), zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}

	observability.CLILogger.Debug("Parsed URI",
		zap.String("bucket", parsed.Bucket),
		zap.String("endpoint", parsed.Endpoint),
		zap.String("key", parsed.Key),
		zap.String("pattern", parsed.Pattern))

	filter, err := match.NewFilter(listFilters)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filters", err)
	}

	prov, err := openProvider(ctx, cmd, &listConn, parsed)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	result, err := listObjects(ctx, prov, parsed, listOptions{
		limit:         listLimit,
		delimiter:     listDelimiter,
		includeHidden: listIncludeHidden,
		filter:        filter,
	})
	if err != nil {
		observability.CLILogger.Error("Failed to list objects", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list objects", err)
	}

	return render(cmd.OutOrStdout(), listFormat, result, func(tw *tabwriter.Writer) error {
		return listingTable(cmd.OutOrStdout(), tw, result)
	})
}

// openProvider connects to the store named by uri.
func openProvider(ctx context.Context, cmd *cobra.Command, conn *connFlags, uri *ObjectURI) (provider.Provider, error) {
	if uri.Provider == schemeFile {
		p, err := file.New(file.Config{BaseDir: uri.Bucket})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	p, err := conn.connect(ctx, cmd, uri.Bucket, uri.Endpoint)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type listOptions struct {
	limit         int
	delimiter     string
	includeHidden bool
	filter        match.Filter
}

// listObjects lists objects matching the URI.
func listObjects(ctx context.Context, prov provider.Provider, uri *ObjectURI, opts listOptions) (*listing, error) {
	result := &listing{Bucket: uri.Bucket, Prefix: uri.Key, Objects: []*output.ObjectRecord{}}

	// An exact key is a HEAD so "object.xml" does not also pick up
	// "object.xml.bak".
	if !uri.IsPattern() && !uri.IsPrefix() {
		meta, err := prov.Head(ctx, uri.Key)
		if err != nil {
			return nil, err
		}
		rec := output.NewObjectRecord(uri.Bucket, &meta.ObjectSummary)
		rec.ContentType = meta.ContentType
		rec.Metadata = meta.Metadata
		result.Objects = append(result.Objects, rec)
		return result, nil
	}

	var matcher *match.Matcher
	if uri.IsPattern() {
		var err error
		matcher, err = match.New(match.Config{Includes: []string{uri.Pattern}, IncludeHidden: opts.includeHidden})
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	full := func() bool { return opts.limit > 0 && len(result.Objects) >= opts.limit }

	var token string
	for !full() {
		page, err := prov.List(ctx, provider.ListOptions{
			Prefix:            uri.Key,
			Delimiter:         opts.delimiter,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}

		for _, p := range page.CommonPrefixes {
			if matcher == nil || matcher.Descend(p) {
				result.Prefixes = append(result.Prefixes, p)
			}
		}
		for i := range page.Objects {
			obj := &page.Objects[i]
			if matcher != nil && !matcher.Match(obj.Key) {
				continue
			}
			if matcher == nil && !opts.includeHidden && match.IsHidden(obj.Key) {
				continue
			}
			if opts.filter != nil && !opts.filter.Match(obj) {
				continue
			}
			result.Objects = append(result.Objects, output.NewObjectRecord(uri.Bucket, obj))
			if full() {
				result.Truncated = page.IsTruncated || i < len(page.Objects)-1
				break
			}
		}

		if !page.IsTruncated || page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}

	return result, nil
}

func listingTable(w io.Writer, tw *tabwriter.Writer, l *listing) error {
	if len(l.Objects) == 0 && len(l.Prefixes) == 0 {
		_, err := fmt.Fprintln(w, "No objects found.")
		return err
	}

	if _, err := fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED\tCLASS"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range l.Prefixes {
		if _, err := fmt.Fprintf(tw, "%s\tPRE\t-\t-\n", p); err != nil {
			return fmt.Errorf("failed to write prefix: %w", err)
		}
	}
	var total int64
	for _, obj := range l.Objects {
		total += obj.Size
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			obj.Key, formatSize(obj.Size), formatTime(obj.LastModified), obj.StorageClass); err != nil {
			return fmt.Errorf("failed to write object: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	note := ""
	if l.Truncated {
		note = " (limit reached)"
	}
	_, err := fmt.Fprintf(w, "\nFound %d object(s) (%s total)%s\n", len(l.Objects), formatSize(total), note)
	return err
}
