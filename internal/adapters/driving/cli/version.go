package cli

import (
	"github.com/spf13/cobra"
)

// Version is stamped by the build; "dev" for local builds.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("ragcore " + Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
