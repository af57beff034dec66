package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibvoice/vibsynth/cmd/vibsynth/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("format") {
			return outputResult(build.Get())
		}
		fmt.Println(build.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
