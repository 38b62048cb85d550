// Package cmd implements the studyai command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/studyforge/studyai/internal/log"
)

var (
	debugFlag bool
	jsonLogs  bool
)

var rootCmd = &cobra.Command{
	Use:   "studyai",
	Short: "AI study assistant over your own course material",
	Long: `studyai indexes lecture slides, PDFs, and notes into a searchable
knowledge base, then answers theory questions, builds mind maps, and
generates quizzes and spaced-repetition flashcards from it.

Run 'studyai ingest <path>' to index material, then 'studyai serve' to
start the HTTP API or 'studyai ask <question>' for a one-shot answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "log in JSON format")
}

// newLogger builds the process logger from the persistent flags.
// DEBUG in the environment also enables debug logging, matching the
// behavior of the HTTP deployment scripts.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if debugFlag || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: jsonLogs})
}
