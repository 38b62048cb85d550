package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/studyforge/studyai/internal/app"
	"github.com/studyforge/studyai/internal/config"
	"github.com/studyforge/studyai/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|url> [...]",
	Short: "Index course material into the knowledge base",
	Long: `Ingest reads files (.txt, .md, .pdf, .pptx, .html) or whole
directories, cleans and chunks the text, and indexes the chunks with
their embeddings. Arguments starting with http:// or https:// are
fetched and extracted as web articles.

Re-ingesting a file replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	for _, arg := range args {
		var result *ingest.Result
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			result, err = a.Ingestor.IngestURL(ctx, arg)
		} else {
			result, err = a.Ingestor.IngestPath(ctx, arg)
		}
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", arg, err)
		}
		printIngestResult(arg, result)
	}
	return nil
}

func printIngestResult(target string, r *ingest.Result) {
	fmt.Printf("%s: %d file(s) indexed, %d chunk(s) added", target, r.FilesAdded, r.ChunksAdded)
	if r.FilesSkipped > 0 {
		fmt.Printf(", %d skipped", r.FilesSkipped)
	}
	if r.FilesFailed > 0 {
		fmt.Printf(", %d FAILED", r.FilesFailed)
	}
	fmt.Printf(" (%s)\n", r.Duration.Round(10*time.Millisecond))
}
