package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var version string
var commitHash string
var buildDate string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of streamgraph",
	Long:  `All software has versions. This is streamgraph's.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}

func versionString() string {
	return fmt.Sprintf("streamgraph Version: %s, %s/%s, BuildDate: %s, Commit: %s",
		version, runtime.GOOS, runtime.GOARCH, buildDate, commitHash)
}
