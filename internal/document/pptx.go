package document

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slideNameRe matches slide part names inside a pptx archive and captures
// the slide number for ordering.
var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// loadPPTX extracts slide text from a PowerPoint file. A pptx is a zip of
// DrawingML parts; text lives in <a:t> elements inside each slide part.
// Each slide is prefixed with a [SLIDE n] marker.
func loadPPTX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening pptx: %w", err)
	}
	defer archive.Close()

	type slide struct {
		number int
		file   *zip.File
	}
	var slides []slide
	for _, f := range archive.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{number: n, file: f})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found in archive")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var sb strings.Builder
	for _, s := range slides {
		text, err := extractSlideText(s.file)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.number, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "[SLIDE %d]\n%s\n", s.number, text)
	}
	return sb.String(), nil
}

// extractSlideText walks one slide's XML and collects text runs. Each
// closed paragraph (<a:p>) becomes one output line.
func extractSlideText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		sb      strings.Builder
		line    strings.Builder
		inRun   bool
		decoder = xml.NewDecoder(rc)
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing slide xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				if text := strings.TrimSpace(line.String()); text != "" {
					sb.WriteString(text)
					sb.WriteByte('\n')
				}
				line.Reset()
			}
		case xml.CharData:
			if inRun {
				line.Write(t)
			}
		}
	}
	if text := strings.TrimSpace(line.String()); text != "" {
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
