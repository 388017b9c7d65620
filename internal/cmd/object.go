package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/pkg/content"
	"github.com/3leaps/ossxml/pkg/provider"
)

var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Read, write and delete single objects",
	Long: `Object commands move object bodies: whole or ranged reads, the first
bytes of many objects, uploads and deletes.

URIs name exact keys. Prefixes and glob patterns are rejected.`,
}

var objectGetCmd = &cobra.Command{
	Use:   "get <uri>",
	Short: "Write an object's bytes to stdout or a file",
	Long: `Read an object, or a byte range of it, and write the raw bytes.

Ranges use HTTP form without the unit: "0-1023" reads the first KiB and
"4096-" reads from offset 4096 to the end.

Examples:
  ossxml object get oss://bucket/pages/0001.xml
  ossxml object get oss://bucket/big.xml --range 0-4095 --output head.xml
  ossxml object get file:///srv/mirror/pages/0001.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runObjectGet,
}

var objectHeadBytesCmd = &cobra.Command{
	Use:   "head-bytes <uri>...",
	Short: "Read the first N bytes of one or more objects",
	Long: `Read the first N bytes of each object, with metadata.

All URIs must name keys in the same bucket. Failed keys are reported
in the output and the command exits non-zero once every key is done.

Examples:
  ossxml object head-bytes oss://bucket/a.xml oss://bucket/b.xml --bytes 64
  ossxml object head-bytes oss://bucket/a.xml --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runObjectHeadBytes,
}

// headBytesMax caps --bytes.
const headBytesMax = 10 * 1024 * 1024

var (
	objectGetConn   connFlags
	objectGetRange  string
	objectGetOutput string

	objectHeadConn     connFlags
	objectHeadBytes    int64
	objectHeadParallel int
	objectHeadFormat   string
)

func init() {
	rootCmd.AddCommand(objectCmd)
	objectCmd.AddCommand(objectGetCmd)
	objectCmd.AddCommand(objectHeadBytesCmd)

	objectGetConn.register(objectGetCmd)
	objectGetCmd.Flags().StringVar(&objectGetRange, "range", "", "Byte range to read, e.g. 0-1023 or 4096-")
	objectGetCmd.Flags().StringVarP(&objectGetOutput, "output", "o", "", "Write to this file instead of stdout")

	objectHeadConn.register(objectHeadBytesCmd)
	objectHeadBytesCmd.Flags().Int64VarP(&objectHeadBytes, "bytes", "n", 512, fmt.Sprintf("Bytes to read per object (max %d)", headBytesMax))
	objectHeadBytesCmd.Flags().IntVar(&objectHeadParallel, "parallel", content.DefaultParallel, "Max concurrent reads")
	objectHeadBytesCmd.Flags().StringVarP(&objectHeadFormat, "format", "f", formatTable, "Output format (table|json|yaml)")
}

// parseObjectURI parses uri and requires it to name a single key.
func parseObjectURI(uri string) (*ObjectURI, error) {
	parsed, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if parsed.IsPattern() || parsed.IsPrefix() {
		return nil, fmt.Errorf("%w: %s names a prefix or pattern, not an object", ErrInvalidURI, uri)
	}
	return parsed, nil
}

func runObjectGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	parsed, err := parseObjectURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	var r *provider.ByteRange
	if objectGetRange != "" {
		br, err := provider.ParseByteRange(objectGetRange)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --range value", err)
		}
		r = &br
	}

	prov, err := openProvider(ctx, cmd, &objectGetConn, parsed)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	w := cmd.OutOrStdout()
	if objectGetOutput != "" {
		f, err := os.Create(objectGetOutput)
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to create output file", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	start := time.Now()
	n, err := getObject(ctx, prov, parsed.Key, r, w)
	if err != nil {
		observability.CLILogger.Error("Failed to read object", zap.String("key", parsed.Key), zap.Error(err))
		return exitError(objectExitCode(err), "Failed to read object", err)
	}
	observability.CLILogger.Debug("Object read",
		zap.String("key", parsed.Key),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// getObject copies key, or the range r of it, to w.
func getObject(ctx context.Context, prov provider.Provider, key string, r *provider.ByteRange, w io.Writer) (int64, error) {
	var (
		body io.ReadCloser
		err  error
	)
	if r != nil {
		body, _, err = content.ReadRange(ctx, prov, key, *r)
	} else {
		body, _, err = content.Open(ctx, prov, key)
	}
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()
	return io.Copy(w, body)
}

// objectExitCode maps a read or write failure to an exit code.
func objectExitCode(err error) int {
	switch {
	case provider.IsNotFound(err):
		return foundry.ExitFileNotFound
	case provider.IsAccessDenied(err):
		return foundry.ExitPermissionDenied
	}
	return foundry.ExitExternalServiceUnavailable
}

// headBytesRecord is one row of head-bytes output.
type headBytesRecord struct {
	Key          string    `json:"key" yaml:"key"`
	Size         int64     `json:"size" yaml:"size"`
	ETag         string    `json:"etag,omitempty" yaml:"etag,omitempty"`
	ContentType  string    `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
	Bytes        int       `json:"bytes" yaml:"bytes"`
	Data         []byte    `json:"data,omitempty" yaml:"data,omitempty"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func runObjectHeadBytes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := validFormat(objectHeadFormat); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}
	if objectHeadBytes < 0 || objectHeadBytes > headBytesMax {
		return exitError(foundry.ExitInvalidArgument, "Invalid --bytes value", fmt.Errorf("bytes must be between 0 and %d", headBytesMax))
	}
	uris, keys, err := sameStoreKeys(args)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}

	prov, err := openProvider(ctx, cmd, &objectHeadConn, uris[0])
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	records, failed, err := headBytes(ctx, prov, keys, objectHeadBytes, objectHeadParallel)
	if err != nil {
		return exitError(foundry.ExitSignalInt, "head-bytes cancelled", err)
	}
	if err := render(cmd.OutOrStdout(), objectHeadFormat, records, func(tw *tabwriter.Writer) error {
		return headBytesTable(tw, records)
	}); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	if failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "head-bytes completed with errors", fmt.Errorf("errors=%d", failed))
	}
	return nil
}

// sameStoreKeys parses every uri as an exact object URI and requires them to
// share one bucket.
func sameStoreKeys(args []string) ([]*ObjectURI, []string, error) {
	uris := make([]*ObjectURI, 0, len(args))
	keys := make([]string, 0, len(args))
	for _, arg := range args {
		u, err := parseObjectURI(arg)
		if err != nil {
			return nil, nil, err
		}
		if len(uris) > 0 {
			first := uris[0]
			if u.Provider != first.Provider || u.Bucket != first.Bucket || u.Endpoint != first.Endpoint {
				return nil, nil, fmt.Errorf("%w: %s is not in the bucket of %s", ErrInvalidURI, arg, first.String())
			}
		}
		uris = append(uris, u)
		keys = append(keys, u.Key)
	}
	return uris, keys, nil
}

// headBytes reads the first n bytes of keys and returns one record per key
// along with the number of keys that failed.
func headBytes(ctx context.Context, prov provider.Provider, keys []string, n int64, parallel int) ([]headBytesRecord, int, error) {
	results, err := content.HeadBytesAll(ctx, prov, keys, n, parallel)
	if err != nil {
		return nil, 0, err
	}

	records := make([]headBytesRecord, 0, len(results))
	failed := 0
	for _, res := range results {
		rec := headBytesRecord{Key: res.Key, Bytes: len(res.Data), Data: res.Data}
		if res.Meta != nil {
			rec.Size = res.Meta.Size
			rec.ETag = res.Meta.ETag
			rec.ContentType = res.Meta.ContentType
			rec.LastModified = res.Meta.LastModified
		}
		if res.Err != nil {
			failed++
			rec.Error = res.Err.Error()
			observability.CLILogger.Warn("Failed to read object head", zap.String("key", res.Key), zap.Error(res.Err))
		}
		records = append(records, rec)
	}
	return records, failed, nil
}

// previewLen is how many bytes of each object the table shows.
const previewLen = 48

func headBytesTable(tw *tabwriter.Writer, records []headBytesRecord) error {
	if _, err := fmt.Fprintln(tw, "KEY\tSIZE\tBYTES\tHEAD"); err != nil {
		return err
	}
	for _, rec := range records {
		head := strconv.Quote(string(rec.Data[:min(len(rec.Data), previewLen)]))
		if rec.Error != "" {
			head = "error: " + rec.Error
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", rec.Key, formatSize(rec.Size), rec.Bytes, head); err != nil {
			return err
		}
	}
	return nil
}
