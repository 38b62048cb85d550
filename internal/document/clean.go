package document

import (
	"regexp"
	"strings"
)

var (
	markerRe = regexp.MustCompile(`^\[(SLIDE|PAGE)\b`)
	bulletRe = regexp.MustCompile(`^[•\-–]+`)
)

// Clean normalizes extracted text: drops blank lines and slide/page
// markers, and strips leading bullets.
func Clean(text string) string {
	var cleaned []string
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if markerRe.MatchString(line) {
			continue
		}
		line = strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}

// Structure adds light academic structure: the first short line (six words
// or fewer) that is not a loader header becomes the TOPIC heading, followed
// by a Definition scaffold. Everything else passes through unchanged.
func Structure(text string) string {
	var structured []string
	topicAdded := false

	for line := range strings.Lines(text) {
		line = strings.TrimRight(line, "\n")
		if !topicAdded && !isHeaderLine(line) && len(strings.Fields(line)) <= 6 && strings.TrimSpace(line) != "" {
			structured = append(structured, "\nTOPIC: "+line, "\nDefinition:")
			topicAdded = true
			continue
		}
		structured = append(structured, line)
	}

	return strings.Join(structured, "\n")
}

// isHeaderLine reports whether the line is a loader-written header such as
// "[UNIT: ...]" or the dashed separator.
func isHeaderLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "----")
}
