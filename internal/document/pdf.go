package document

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts plain text page by page, writing a [PAGE n] marker
// before each page so the original location survives into cleaning.
func loadPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages rather than losing the whole deck.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "[PAGE %d]\n%s\n\n", i, strings.TrimSpace(text))
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no extractable text in %d pages", reader.NumPage())
	}
	return sb.String(), nil
}
