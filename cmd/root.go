package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nicozefrench/diveteacher/internal/config"
	"github.com/nicozefrench/diveteacher/internal/logging"
)

// logManager is the global logging manager, created in init() and
// upgraded once config is available.
var logManager *logging.Manager

// cfg is the loaded service configuration, populated by runInitialize.
var cfg *config.Config

var diveteacherCmd = &cobra.Command{
	Use:   "diveteacher",
	Short: "A knowledge graph backend for scuba diving instruction",
	Long: "DiveTeacher turns diving instruction documents (PDF, PPTX, DOCX) into a " +
		"queryable knowledge graph and answers questions over it with streamed, " +
		"citation-grounded responses.\n\n" +
		"Uploaded documents are converted to structured markdown, chunked, and " +
		"ingested into FalkorDB under a provider token budget. Questions are " +
		"answered with hybrid retrieval, optional cross-encoder reranking, and a " +
		"streaming LLM completion.",
	PersistentPreRunE: runInitialize,
}

func init() {
	// Bootstrap mode logs to stderr only; Upgrade switches to the
	// configured file once config loads.
	logManager = logging.NewManager()
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default",
				"configured", cfg.LogLevel, "default", "info")
		}
	}

	if err := logManager.Upgrade(cfg.LogFile, level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
	}

	return nil
}

func Execute() error {
	diveteacherCmd.SilenceErrors = true
	diveteacherCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := diveteacherCmd.Execute()

	if err != nil {
		cmd, _, _ := diveteacherCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = diveteacherCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}

		return err
	}

	return nil
}
