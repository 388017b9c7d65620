package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/pkg/content"
	"github.com/3leaps/ossxml/pkg/provider"
)

var objectPutCmd = &cobra.Command{
	Use:   "put <local-file> <uri>",
	Short: "Upload a local file",
	Long: `Upload a local file to an exact object key.

The content type is sniffed from the file's leading bytes unless
--content-type is given. A saved ListBucketResult uploads as text/xml.

Examples:
  ossxml object put page.xml oss://bucket/pages/0001.xml
  ossxml object put report.bin oss://bucket/reports/r.bin --content-type application/x-report
  ossxml object put page.xml file:///srv/mirror/pages/0001.xml`,
	Args: cobra.ExactArgs(2),
	RunE: runObjectPut,
}

var objectRmCmd = &cobra.Command{
	Use:     "rm <uri>...",
	Aliases: []string{"delete"},
	Short:   "Delete objects",
	Long: `Delete one or more objects by exact key. Deleting a missing key
succeeds. All URIs must name keys in the same bucket.

Examples:
  ossxml object rm oss://bucket/pages/0001.xml oss://bucket/pages/0002.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runObjectRm,
}

var (
	objectPutConn        connFlags
	objectPutContentType string

	objectRmConn connFlags
)

func init() {
	objectCmd.AddCommand(objectPutCmd)
	objectCmd.AddCommand(objectRmCmd)

	objectPutConn.register(objectPutCmd)
	objectPutCmd.Flags().StringVar(&objectPutContentType, "content-type", "", "Content type (default: sniffed from the file)")

	objectRmConn.register(objectRmCmd)
}

func runObjectPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	src := args[0]

	parsed, err := parseObjectURI(args[1])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if _, err := os.Stat(src); err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot read local file", err)
	}

	prov, err := openProvider(ctx, cmd, &objectPutConn, parsed)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	etag, err := content.PutFile(ctx, prov, parsed.Key, src, objectPutContentType)
	if err != nil {
		observability.CLILogger.Error("Failed to upload object", zap.String("key", parsed.Key), zap.Error(err))
		return exitError(objectExitCode(err), "Failed to upload object", err)
	}
	observability.CLILogger.Info("Object uploaded", zap.String("key", parsed.Key), zap.String("etag", etag))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", parsed.String(), etag)
	return err
}

func runObjectRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	uris, keys, err := sameStoreKeys(args)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}

	prov, err := openProvider(ctx, cmd, &objectRmConn, uris[0])
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = prov.Close() }()

	if err := removeObjects(ctx, prov, keys); err != nil {
		return exitError(objectExitCode(err), "Failed to delete objects", err)
	}
	return nil
}

// removeObjects deletes keys in order and stops at the first failure.
func removeObjects(ctx context.Context, prov provider.Provider, keys []string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := content.Delete(ctx, prov, key); err != nil {
			observability.CLILogger.Error("Failed to delete object", zap.String("key", key), zap.Error(err))
			return fmt.Errorf("delete %s: %w", key, err)
		}
		observability.CLILogger.Debug("Object deleted", zap.String("key", key))
	}
	return nil
}
