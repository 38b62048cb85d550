package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const gapSystem = "You are a study coach reviewing a course syllabus for coverage gaps."

// ErrNoSources is returned when gap analysis runs against an empty index.
var ErrNoSources = errors.New("no indexed material to analyze")

// GapAnalysis compares the indexed syllabus files and the student's
// recent questions, and asks the model for missing topics plus a study
// roadmap.
func (e *Engine) GapAnalysis(ctx context.Context) (string, error) {
	if e.sources == nil {
		return "", errors.New("source lister not configured")
	}

	infos, err := e.sources.Sources(ctx)
	if err != nil {
		return "", fmt.Errorf("listing sources: %w", err)
	}
	if len(infos) == 0 {
		return "", ErrNoSources
	}

	files := make([]string, len(infos))
	for i, info := range infos {
		files[i] = info.SourceFile
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Syllabus files: %s\n", strings.Join(files, ", "))

	if e.history != nil {
		recent, err := e.history.Recent(ctx, 0)
		if err != nil {
			e.logger.Warn("reading query history for gap analysis", "error", err)
		} else if len(recent) > 0 {
			fmt.Fprintf(&sb, "Questions the student asked recently: %s\n", strings.Join(recent, "; "))
		}
	}

	sb.WriteString("Identify topics that look missing or underrepresented and suggest a study roadmap.")

	analysis, err := e.llm.GenerateText(ctx, gapSystem, sb.String())
	if err != nil {
		return "", fmt.Errorf("generating gap analysis: %w", err)
	}
	return analysis, nil
}
