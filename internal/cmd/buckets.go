package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/pkg/output"
	"github.com/3leaps/ossxml/pkg/provider"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List the buckets of the account",
	Long: `List buckets with ListBuckets, following NextMarker across pages.

Examples:
  ossxml buckets --endpoint cn-hangzhou
  ossxml buckets --prefix app- --format json`,
	Args: cobra.NoArgs,
	RunE: runBuckets,
}

var bucketInfoCmd = &cobra.Command{
	Use:   "bucket-info <uri>",
	Short: "Describe one bucket",
	Long: `Fetch GetBucketInfo for the bucket named by the URI.

Examples:
  ossxml bucket-info oss://photos --endpoint cn-shanghai
  ossxml bucket-info oss://photos.oss-cn-shanghai.aliyuncs.com --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runBucketInfo,
}

var (
	bucketsConn   connFlags
	bucketsPrefix string
	bucketsLimit  int
	bucketsFormat string

	bucketInfoConn   connFlags
	bucketInfoFormat string
)

func init() {
	rootCmd.AddCommand(bucketsCmd)
	rootCmd.AddCommand(bucketInfoCmd)

	bucketsConn.register(bucketsCmd)
	bucketsCmd.Flags().StringVar(&bucketsPrefix, "prefix", "", "Only buckets whose name starts with prefix")
	bucketsCmd.Flags().IntVarP(&bucketsLimit, "limit", "n", 0, "Max buckets to list (0 = no limit)")
	bucketsCmd.Flags().StringVarP(&bucketsFormat, "format", "f", formatTable, "Output format (table|json|yaml)")

	bucketInfoConn.register(bucketInfoCmd)
	bucketInfoCmd.Flags().StringVarP(&bucketInfoFormat, "format", "f", formatTable, "Output format (table|json|yaml)")
}

func runBuckets(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := validFormat(bucketsFormat); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}

	prov, err := bucketsConn.connect(ctx, cmd, "", "")
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	buckets, err := listBuckets(ctx, prov, bucketsPrefix, bucketsLimit)
	if err != nil {
		observability.CLILogger.Error("Failed to list buckets", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list buckets", err)
	}

	return render(cmd.OutOrStdout(), bucketsFormat, buckets, func(tw *tabwriter.Writer) error {
		if len(buckets) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "No buckets found.")
			return err
		}
		return bucketTable(tw, buckets)
	})
}

// listBuckets pages through ListBuckets until limit buckets are collected
// or the listing ends.
func listBuckets(ctx context.Context, lister provider.BucketLister, prefix string, limit int) ([]*output.BucketRecord, error) {
	out := []*output.BucketRecord{}
	opts := provider.BucketListOptions{Prefix: prefix}
	for {
		page, err := lister.ListBuckets(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range page.Buckets {
			out = append(out, output.NewBucketRecord(&page.Buckets[i]))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if !page.IsTruncated || page.NextMarker == "" {
			return out, nil
		}
		opts.Marker = page.NextMarker
	}
}

func runBucketInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := validFormat(bucketInfoFormat); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}

	parsed, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}

	prov, err := bucketInfoConn.connect(ctx, cmd, parsed.Bucket, parsed.Endpoint)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	info, err := fetchBucketInfo(ctx, prov)
	if err != nil {
		observability.CLILogger.Error("Failed to get bucket info", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to get bucket info", err)
	}

	return render(cmd.OutOrStdout(), bucketInfoFormat, info, func(tw *tabwriter.Writer) error {
		return bucketTable(tw, []*output.BucketRecord{info})
	})
}

func fetchBucketInfo(ctx context.Context, getter provider.BucketInfoGetter) (*output.BucketRecord, error) {
	summary, err := getter.BucketInfo(ctx)
	if err != nil {
		return nil, err
	}
	return output.NewBucketRecord(summary), nil
}
