// Package cmd implements the ossxml command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/config"
	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/internal/server/handlers"
)

const binaryName = "ossxml"

// Exit codes not covered by foundry.
const (
	exitOK      = 0
	exitFailure = 1
)

// VersionInfo is the build metadata stamped in by main.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
}

var versionInfo = VersionInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

// SetVersionInfo records build metadata for the version command and the
// /version endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo = VersionInfo{Version: version, Commit: commit, BuildDate: buildDate}
	handlers.SetVersionInfo(version, commit, buildDate)
}

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Decode and crawl OSS XML listings",
	Long: `ossxml decodes the XML documents returned by OSS-compatible object
storage into typed records, lists and crawls buckets, and serves the
decoders over HTTP.

Configuration is read from --config (or OSSXML_CONFIG), then OSSXML_*
environment variables, then flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.InitCLILogger(binaryName, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $OSSXML_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	observability.CLILogger.Error("command failed", zap.Error(err))
	fmt.Fprintln(os.Stderr, "Error:", err)
	return ExitCode(err)
}

// loadConfig merges the config file, environment and overrides.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv(config.ConfigEnv)
	}
	return config.LoadFile(ctx, path, overrides...)
}

// cliError carries the process exit code of a failed command.
type cliError struct {
	code    int
	message string
	err     error
}

func (e *cliError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *cliError) Unwrap() error { return e.err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &cliError{code: code, message: message, err: err}
}

// ExitCode returns the exit code carried by err, or the generic failure
// code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitFailure
}
