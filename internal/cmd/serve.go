package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/internal/server"
	"github.com/3leaps/ossxml/internal/server/handlers"
	ossapi "github.com/3leaps/ossxml/pkg/oss"
	"github.com/3leaps/ossxml/pkg/provider"
	"github.com/3leaps/ossxml/pkg/provider/oss"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the decoders over HTTP",
	Long: `Start the HTTP service.

Endpoints:
  POST /v1/decode/objects[?bucket=<host>]   ListBucketResult -> JSON
  POST /v1/decode/buckets                   ListAllMyBucketsResult -> JSON
  POST /v1/decode/bucket                    BucketInfo -> JSON
  GET  /health, /health/live, /health/ready, /health/startup
  GET  /version

When oss.bucket is configured, readiness also checks that the bucket
answers GetBucketInfo.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	overrides := map[string]any{}
	serverSection := map[string]any{}
	if cmd.Flags().Changed("host") {
		serverSection["host"] = serveHost
	}
	if cmd.Flags().Changed("port") {
		serverSection["port"] = servePort
	}
	overrides["server"] = serverSection

	cfg, err := loadConfig(ctx, overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Profile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	defer func() { _ = logger.Sync() }()

	handlers.InitHealthManager(versionInfo.Version)
	health := handlers.GetHealthManager()
	health.RegisterChecker("decoder", decoderHealthChecker{})

	if cfg.OSS.Bucket != "" {
		prov, err := oss.New(ctx, cfg.OSS, oss.WithLogger(logger))
		if err != nil {
			logger.Error("Failed to create provider", zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
		}
		defer func() { _ = prov.Close() }()
		health.RegisterChecker("oss", bucketHealthChecker{getter: prov})
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port,
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout, cfg.Server.ShutdownTimeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithLogger(logger),
	)

	logger.Info("Starting server",
		zap.String("addr", srv.Addr()),
		zap.String("version", versionInfo.Version),
		zap.Bool("bucket_check", cfg.OSS.Bucket != ""))

	if err := srv.Run(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}

// decoderSample is a minimal listing the decoder must accept.
const decoderSample = `<ListBucketResult><Name>health</Name><KeyCount>1</KeyCount>
<Contents><Key>sample.xml</Key><LastModified>2024-01-01T00:00:00.000Z</LastModified><Size>0</Size></Contents>
</ListBucketResult>`

// decoderHealthChecker decodes a fixed document.
type decoderHealthChecker struct{}

func (decoderHealthChecker) CheckHealth(ctx context.Context) error {
	list, err := ossapi.DecodeObjectList(decoderSample, ossapi.BucketBase{})
	if err != nil {
		return err
	}
	if len(list.Objects) != 1 || list.Objects[0].Key != "sample.xml" {
		return fmt.Errorf("decoder self-check: unexpected result")
	}
	return nil
}

// bucketHealthChecker asks the configured bucket for its info.
type bucketHealthChecker struct {
	getter provider.BucketInfoGetter
}

func (c bucketHealthChecker) CheckHealth(ctx context.Context) error {
	_, err := c.getter.BucketInfo(ctx)
	return err
}
