package cmd

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validFormat(versionFormat); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
		}
		info := struct {
			VersionInfo `yaml:",inline"`
			GoVersion   string `json:"go_version" yaml:"go_version"`
		}{versionInfo, runtime.Version()}

		return render(cmd.OutOrStdout(), versionFormat, info, func(tw *tabwriter.Writer) error {
			_, err := fmt.Fprintf(tw, "%s\t%s\ncommit\t%s\nbuilt\t%s\ngo\t%s\n",
				binaryName, info.Version, info.Commit, info.BuildDate, info.GoVersion)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", formatTable, "Output format (table|json|yaml)")
}
