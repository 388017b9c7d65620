package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/pkg/crawler"
	"github.com/3leaps/ossxml/pkg/manifest"
	"github.com/3leaps/ossxml/pkg/match"
	"github.com/3leaps/ossxml/pkg/output"
	"github.com/3leaps/ossxml/pkg/provider"
	"github.com/3leaps/ossxml/pkg/provider/oss"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a crawl job from manifest",
	Long: `Run a crawl job as defined in a YAML or JSON manifest file.

The manifest specifies the OSS connection, pattern matching rules,
listing filters, crawl behavior, and output configuration. Records are
written as JSON lines.

Example:
  ossxml crawl --job crawl.yaml
  ossxml crawl --job crawl.yaml --output results.jsonl
  ossxml crawl --job crawl.yaml --quiet
  ossxml crawl --job crawl.yaml --dry-run
  ossxml crawl --job crawl.yaml --jobs-dir ~/.ossxml/jobs`,
	RunE: runCrawl,
}

var (
	crawlJobPath string
	crawlOutput  string
	crawlQuiet   bool
	crawlDryRun  bool
	crawlPlan    bool
	crawlJobsDir string
	crawlRecord  bool
)

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&crawlJobPath, "job", "j", "", "Path to job manifest (required)")
	crawlCmd.Flags().StringVarP(&crawlOutput, "output", "o", "", "Override output destination")
	crawlCmd.Flags().BoolVarP(&crawlQuiet, "quiet", "q", false, "Suppress progress records")
	crawlCmd.Flags().BoolVar(&crawlDryRun, "dry-run", false, "Validate manifest and show plan without executing")
	crawlCmd.Flags().BoolVar(&crawlPlan, "plan", false, "Alias for --dry-run")
	crawlCmd.Flags().BoolVar(&crawlRecord, "record", false, "Record the run in the default job registry")
	crawlCmd.Flags().StringVar(&crawlJobsDir, "jobs-dir", "", "Record the run in this job registry directory (default $"+jobsDirEnv+")")

	_ = crawlCmd.MarkFlagRequired("job")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(crawlJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", crawlJobPath),
			zap.Error(err))
		if errors.Is(err, fs.ErrNotExist) {
			return exitError(foundry.ExitFileNotFound, "Manifest not found", err)
		}
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", crawlJobPath),
		zap.String("bucket", m.Connection.Bucket),
		zap.Strings("includes", m.Match.Includes))

	if crawlOutput != "" {
		m.Output.Destination = crawlOutput
	}
	if crawlQuiet {
		enabled := false
		m.Output.Progress = &enabled
	}

	if crawlPlan || crawlDryRun {
		return showCrawlPlan(cmd.OutOrStdout(), m)
	}
	return executeCrawl(ctx, m)
}

// showCrawlPlan displays what would be crawled without executing.
func showCrawlPlan(w io.Writer, m *manifest.Manifest) error {
	matcher, err := match.New(m.Match)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid match patterns", err)
	}
	filter, err := match.NewFilter(m.Filters)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filters", err)
	}

	var b strings.Builder
	b.WriteString("=== Crawl Plan (dry-run) ===\n\n")
	fmt.Fprintf(&b, "Bucket:      %s\n", m.Connection.Bucket)
	if m.Connection.Endpoint != "" {
		fmt.Fprintf(&b, "Endpoint:    %s\n", m.Connection.Endpoint)
	}
	if m.Connection.EndpointURL != "" {
		fmt.Fprintf(&b, "Service URL: %s\n", m.Connection.EndpointURL)
	}
	if m.Connection.Region != "" {
		fmt.Fprintf(&b, "Region:      %s\n", m.Connection.Region)
	}
	b.WriteString("\nPatterns:\n  Include:\n")
	for _, p := range m.Match.Includes {
		fmt.Fprintf(&b, "    - %s\n", p)
	}
	if len(m.Match.Excludes) > 0 {
		b.WriteString("  Exclude:\n")
		for _, p := range m.Match.Excludes {
			fmt.Fprintf(&b, "    - %s\n", p)
		}
	}
	b.WriteString("  Prefixes:\n")
	for _, p := range matcher.Prefixes() {
		if p == "" {
			p = "(bucket root)"
		}
		fmt.Fprintf(&b, "    - %s\n", p)
	}
	b.WriteString("\n")

	if filter != nil {
		fmt.Fprintf(&b, "Filters:     %s\n\n", filter)
	}

	fmt.Fprintf(&b, "Concurrency: %d\n", m.Crawl.Concurrency)
	if m.Crawl.RateLimit > 0 {
		fmt.Fprintf(&b, "Rate Limit:  %.1f req/s\n", m.Crawl.RateLimit)
	}
	if m.Crawl.Delimiter != "" {
		fmt.Fprintf(&b, "Delimiter:   %q", m.Crawl.Delimiter)
		if m.Crawl.MaxDepth > 0 {
			fmt.Fprintf(&b, " (max depth %d)", m.Crawl.MaxDepth)
		}
		b.WriteString("\n")
	}
	if m.Crawl.Enrich {
		b.WriteString("Enrich:      HEAD per matched object\n")
	}
	fmt.Fprintf(&b, "Output:      %s\n", m.Output.Destination)
	fmt.Fprintf(&b, "Progress:    %v\n", m.Output.ProgressEnabled())
	b.WriteString("\nManifest validated successfully. Remove --dry-run to execute.\n")

	_, err = io.WriteString(w, b.String())
	return err
}

// executeCrawl runs the actual crawl job.
func executeCrawl(ctx context.Context, m *manifest.Manifest) error {
	jobID := uuid.New().String()

	prov, err := oss.New(ctx, m.Connection, oss.WithLogger(observability.CLILogger))
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	writer, cleanup, err := createWriter(m, jobID)
	if err != nil {
		observability.CLILogger.Error("Failed to create writer", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	dir := jobsDir(crawlJobsDir)
	if crawlRecord {
		dir = registryDir(crawlJobsDir)
	}
	rec := newJobRecorder(dir, jobID, crawlJobPath, m)
	rec.start()
	summary, err := runCrawlJob(ctx, prov, writer, m, jobID)
	rec.finish(ctx, summary, err)
	return err
}

// runCrawlJob crawls with an already connected provider and writer.
func runCrawlJob(ctx context.Context, prov provider.Provider, writer output.Writer, m *manifest.Manifest, jobID string) (*crawler.Summary, error) {
	matcher, err := match.New(m.Match)
	if err != nil {
		observability.CLILogger.Error("Failed to create matcher", zap.Error(err))
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid match patterns", err)
	}

	filter, err := match.NewFilter(m.Filters)
	if err != nil {
		observability.CLILogger.Error("Invalid filters", zap.Error(err))
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid filters", err)
	}

	if !m.Output.ProgressEnabled() {
		writer = quietWriter{writer}
	}

	c := crawler.New(prov, matcher, writer, m.Crawl).
		WithBucket(m.Connection.Bucket).
		WithLogger(observability.CLILogger.With(zap.String("job_id", jobID)))
	if filter != nil {
		c.WithFilter(filter)
	}

	observability.CLILogger.Info("Starting crawl",
		zap.String("job_id", jobID),
		zap.String("bucket", m.Connection.Bucket),
		zap.Int("concurrency", m.Crawl.Concurrency))

	summary, err := c.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			var matched int64
			if summary != nil {
				matched = summary.ObjectsMatched
			}
			observability.CLILogger.Warn("Crawl cancelled",
				zap.String("job_id", jobID),
				zap.Int64("objects_matched", matched))
			return summary, exitError(foundry.ExitSignalInt, "Crawl cancelled", err)
		}
		observability.CLILogger.Error("Crawl failed",
			zap.String("job_id", jobID),
			zap.Error(err))
		return summary, exitError(foundry.ExitExternalServiceUnavailable, "Crawl failed", err)
	}

	observability.CLILogger.Info("Crawl completed",
		zap.String("job_id", jobID),
		zap.Int64("objects_listed", summary.ObjectsListed),
		zap.Int64("objects_matched", summary.ObjectsMatched),
		zap.Int64("prefixes_found", summary.PrefixesFound),
		zap.Int64("errors", summary.Errors),
		zap.String("bytes_total", formatSize(summary.BytesTotal)),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// quietWriter drops progress records.
type quietWriter struct {
	output.Writer
}

func (quietWriter) WriteProgress(context.Context, *output.ProgressRecord) error { return nil }

// createWriter creates an output writer from manifest configuration.
// Returns the writer, a cleanup function, and any error.
func createWriter(m *manifest.Manifest, jobID string) (output.Writer, func(), error) {
	dest := m.Output.Destination
	prov := string(provider.ProviderOSS)

	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, jobID, prov)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, jobID, prov)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}
