// Package document extracts text from course material: plain text and
// markdown files, PDF decks, PPTX slide decks, and HTML pages or URLs.
// Extracted text carries structural markers ([PAGE n], [SLIDE n]) plus a
// unit/source header; the cleaner strips the markers before chunking.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is the extracted text of one source document.
type File struct {
	Name string // base name, e.g. "oop-basics.pptx"
	Stem string // base name without extension
	Unit string // course unit, inferred from the parent directory
	Text string // extracted text, headers included
}

// supportedExtensions are the file types the loader understands.
var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".pptx": true,
	".html": true,
	".htm":  true,
}

// Supported reports whether the loader can handle the given path.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load extracts text from a local file, dispatching on extension.
// The course unit is inferred from the parent directory name.
func Load(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	name := filepath.Base(abs)
	unit := filepath.Base(filepath.Dir(abs))

	var text string
	switch ext := strings.ToLower(filepath.Ext(abs)); ext {
	case ".txt", ".md":
		text, err = loadText(abs)
	case ".pdf":
		text, err = loadPDF(abs)
	case ".pptx":
		text, err = loadPPTX(abs)
	case ".html", ".htm":
		text, err = loadHTMLFile(abs)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}

	return &File{
		Name: name,
		Stem: strings.TrimSuffix(name, filepath.Ext(name)),
		Unit: unit,
		Text: header(unit, name) + text,
	}, nil
}

// header builds the unit/source preamble written at the top of every
// extracted document, in the same form ParseHeaders reads back.
func header(unit, name string) string {
	return fmt.Sprintf("[UNIT: %s]\n[SOURCE_FILE: %s]\n%s\n", unit, name, strings.Repeat("-", 40))
}

// loadText reads a plain text or markdown file as-is.
func loadText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(content), nil
}
