package cmd

import (
	"fmt"

	"github.com/Bookworm370/interpunctbot/interpunct"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the application",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf(
			"version=%s commit=%s built: %s",
			interpunct.Version,
			interpunct.CommitSHA,
			interpunct.BuildTime,
		)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
