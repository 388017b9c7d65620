package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/pkg/decode"
	ossapi "github.com/3leaps/ossxml/pkg/oss"
	"github.com/3leaps/ossxml/pkg/output"
)

// Document kinds.
const (
	kindObjects = "objects"
	kindBuckets = "buckets"
	kindBucket  = "bucket"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode an OSS XML response document",
	Long: `Decode a saved OSS XML response into typed records.

The document is read from file, or from stdin when file is omitted or "-".

Kinds:
  objects   ListBucketResult (ListObjectsV2)
  buckets   ListAllMyBucketsResult (ListBuckets)
  bucket    BucketInfo (GetBucketInfo)

Examples:
  ossxml decode list.xml
  ossxml decode list.xml --bucket photos.oss-cn-shanghai.aliyuncs.com --format json
  curl -s ... | ossxml decode --kind buckets --format yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

var (
	decodeKind   string
	decodeBucket string
	decodeFormat string
)

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVarP(&decodeKind, "kind", "k", kindObjects, "Document kind (objects|buckets|bucket)")
	decodeCmd.Flags().StringVarP(&decodeBucket, "bucket", "b", "", "Bucket host the listing belongs to, e.g. name.oss-cn-hangzhou.aliyuncs.com")
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", formatTable, "Output format (table|json|yaml)")
}

func runDecode(cmd *cobra.Command, args []string) error {
	if err := validFormat(decodeFormat); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}

	var base ossapi.BucketBase
	if decodeBucket != "" {
		b, err := ossapi.ParseBucketBase(decodeBucket)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --bucket value", err)
		}
		base = b
	}

	src := "-"
	if len(args) == 1 {
		src = args[0]
	}
	doc, err := readDocument(cmd.InOrStdin(), src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return exitError(foundry.ExitFileNotFound, "Document not found", err)
		}
		return exitError(foundry.ExitFileReadError, "Failed to read document", err)
	}

	observability.CLILogger.Debug("Decoding document",
		zap.String("source", src),
		zap.String("kind", decodeKind),
		zap.Int("bytes", len(doc)))

	return decodeDocument(cmd.OutOrStdout(), decodeKind, doc, base, decodeFormat)
}

func readDocument(stdin io.Reader, src string) (string, error) {
	var (
		data []byte
		err  error
	)
	if src == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeDocument decodes doc as kind and renders it to w.
func decodeDocument(w io.Writer, kind, doc string, base ossapi.BucketBase, format string) error {
	switch kind {
	case kindObjects:
		list, err := ossapi.DecodeObjectList(doc, base)
		if err != nil {
			return decodeFailure(err)
		}
		view := output.NewObjectListView(list)
		return render(w, format, view, func(tw *tabwriter.Writer) error {
			return objectTable(w, tw, view)
		})

	case kindBuckets:
		list, err := ossapi.DecodeBucketList(doc)
		if err != nil {
			return decodeFailure(err)
		}
		view := output.NewBucketListView(list)
		return render(w, format, view, func(tw *tabwriter.Writer) error {
			return bucketTable(tw, view.Buckets)
		})

	case kindBucket:
		b, err := ossapi.DecodeBucketInfo(doc)
		if err != nil {
			return decodeFailure(err)
		}
		rec := output.BucketRecordOf(b)
		return render(w, format, rec, func(tw *tabwriter.Writer) error {
			return bucketTable(tw, []*output.BucketRecord{rec})
		})
	}
	return exitError(foundry.ExitInvalidArgument, "Invalid --kind value",
		fmt.Errorf("unknown kind %q (expected objects, buckets or bucket)", kind))
}

func decodeFailure(err error) error {
	kind := "item"
	switch {
	case decode.IsXMLError(err):
		kind = "xml"
	case decode.IsCustomError(err):
		kind = "custom"
	}
	observability.CLILogger.Debug("Decode failed", zap.String("failure", kind), zap.Error(err))
	return exitError(foundry.ExitInvalidArgument, "Failed to decode document", err)
}

func objectTable(w io.Writer, tw *tabwriter.Writer, v *output.ObjectListView) error {
	if len(v.Objects) == 0 && len(v.CommonPrefixes) == 0 {
		_, err := fmt.Fprintln(w, "No objects found.")
		return err
	}

	if _, err := fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED\tCLASS\tTYPE"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range v.CommonPrefixes {
		if _, err := fmt.Fprintf(tw, "%s\t-\t-\t-\tPREFIX\n", p); err != nil {
			return fmt.Errorf("failed to write prefix: %w", err)
		}
	}
	var total int64
	for _, obj := range v.Objects {
		total += obj.Size
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			obj.Key, formatSize(obj.Size), formatTime(obj.LastModified), obj.StorageClass, obj.Type); err != nil {
			return fmt.Errorf("failed to write object: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d object(s), %d prefix(es), %s total", len(v.Objects), len(v.CommonPrefixes), formatSize(total))
	if err == nil && v.IsTruncated {
		_, err = fmt.Fprintf(w, " (truncated, next token %s)", v.NextContinuationToken)
	}
	if err == nil {
		_, err = fmt.Fprintln(w)
	}
	return err
}

func bucketTable(tw *tabwriter.Writer, buckets []*output.BucketRecord) error {
	if _, err := fmt.Fprintln(tw, "NAME\tREGION\tCLASS\tCREATED\tENDPOINT"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, b := range buckets {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			b.Name, b.Region, b.StorageClass, formatTime(b.CreationDate), b.Endpoint); err != nil {
			return fmt.Errorf("failed to write bucket: %w", err)
		}
	}
	return nil
}
