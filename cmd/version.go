package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicozefrench/diveteacher/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Get().String())
		return nil
	},
}

func init() {
	diveteacherCmd.AddCommand(versionCmd)
}
