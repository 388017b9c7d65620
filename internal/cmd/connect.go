package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/pkg/provider/oss"
)

// connFlags are the connection flags shared by commands that talk to a
// bucket. Unset flags leave the configured values alone.
type connFlags struct {
	endpoint    string
	endpointURL string
	region      string
	profile     string
	anonymous   bool
	pathStyle   bool
	rateLimit   float64
	timeout     time.Duration
}

func (f *connFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.endpoint, "endpoint", "", "Regional endpoint, e.g. oss-cn-hangzhou.aliyuncs.com or cn-hangzhou")
	fs.StringVar(&f.endpointURL, "endpoint-url", "", "Service URL override for OSS-compatible stores")
	fs.StringVarP(&f.region, "region", "r", "", "Signing region (default: endpoint region)")
	fs.StringVarP(&f.profile, "profile", "p", "", "Shared credentials profile")
	fs.BoolVar(&f.anonymous, "anonymous", false, "Send unsigned requests")
	fs.BoolVar(&f.pathStyle, "path-style", false, "Put the bucket in the URL path")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "Max requests per second (0 = unlimited)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Per-request timeout")
}

// overrides returns the changed flags as an "oss" config section.
func (f *connFlags) overrides(cmd *cobra.Command) map[string]any {
	oss := map[string]any{}
	set := func(flag, key string, v any) {
		if cmd.Flags().Changed(flag) {
			oss[key] = v
		}
	}
	set("endpoint", "endpoint", f.endpoint)
	set("endpoint-url", "endpoint_url", f.endpointURL)
	set("region", "region", f.region)
	set("profile", "profile", f.profile)
	set("anonymous", "anonymous", f.anonymous)
	set("path-style", "force_path_style", f.pathStyle)
	set("rate-limit", "rate_limit", f.rateLimit)
	set("timeout", "timeout", f.timeout)
	return map[string]any{"oss": oss}
}

// connect builds a provider for bucket from config and flags. endpoint, when
// set, comes from a virtual-hosted URI and wins over both.
func (f *connFlags) connect(ctx context.Context, cmd *cobra.Command, bucket, endpoint string) (*oss.Provider, error) {
	cfg, err := loadConfig(ctx, f.overrides(cmd))
	if err != nil {
		return nil, err
	}

	ossCfg := cfg.OSS
	if bucket != "" {
		ossCfg.Bucket = bucket
	}
	if endpoint != "" {
		ossCfg.Endpoint = endpoint
	}
	return oss.New(ctx, ossCfg, oss.WithLogger(observability.CLILogger))
}
