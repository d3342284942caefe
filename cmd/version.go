package cmd

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X thoreinstein.com/quill/cmd.version=..."
var version = "dev"

// GetVersion returns the quill version. Release builds report a normalized
// semantic version; anything else is returned as-is.
func GetVersion() string {
	v, err := semver.NewVersion(version)
	if err != nil {
		return version
	}
	return v.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the quill version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quill %s\n", GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
