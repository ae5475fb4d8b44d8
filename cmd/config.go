package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nicozefrench/diveteacher/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the DiveTeacher configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: "Write a default configuration file to " +
		"~/.config/diveteacher/config.yaml.\n\n" +
		"Refuses to overwrite an existing file. Edit the generated file or " +
		"override individual values with DIVETEACHER_ environment variables.",
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	diveteacherCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	path := config.DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	defaults := config.NewDefaultConfig()
	if err := config.WriteDefault(&defaults); err != nil {
		return err
	}

	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
